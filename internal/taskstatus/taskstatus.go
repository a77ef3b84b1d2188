// Package taskstatus keeps the inspectable state of every task instance in
// redis, independent of the queue backend's own retention.
package taskstatus

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cubattendance/attendance/model"
	"github.com/redis/go-redis/v9"
)

var ErrTaskNotFound = errors.New("task not found")

const keyPrefix = "tasks:status:"

func key(taskID string) string {
	return keyPrefix + taskID
}

// transition moves a task to ARGV[2] unless it already reached a terminal
// state. It returns 1 when the state changed.
var transition = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if current == 'SUCCESS' or current == 'FAILURE' then
	return 0
end
if ARGV[5] == 'create' and current then
	return 0
end
redis.call('HSET', KEYS[1], 'task_id', ARGV[1], 'status', ARGV[2], 'metadata', ARGV[3], 'updated_at', ARGV[4])
if ARGV[6] ~= '' then
	redis.call('HSET', KEYS[1], 'name', ARGV[6])
end
redis.call('EXPIRE', KEYS[1], ARGV[7])
return 1
`)

// Store records task state transitions. A terminal state is written at most
// once per task id.
type Store struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewStore(client redis.UniversalClient, retention time.Duration) *Store {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Store{client: client, retention: retention}
}

func (s *Store) run(ctx context.Context, taskID, name string, status model.TaskStatus, metadata, mode string) (bool, error) {
	res, err := transition.Run(ctx, s.client, []string{key(taskID)},
		taskID,
		string(status),
		metadata,
		strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
		mode,
		name,
		int(s.retention.Seconds()),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Pending registers a newly enqueued task. It does nothing when a record
// already exists, so re-enqueueing a known task keeps its state.
func (s *Store) Pending(ctx context.Context, taskID, name string) error {
	_, err := s.run(ctx, taskID, name, model.TaskPending, "", "create")
	return err
}

// Start marks a task as executing. It reports false when the task already
// finished, in which case the caller should not run it again.
func (s *Store) Start(ctx context.Context, taskID, name string) (bool, error) {
	return s.run(ctx, taskID, name, model.TaskStarted, "", "update")
}

// Finish writes the terminal state. It reports false when a terminal state was
// already recorded; the earlier one is kept.
func (s *Store) Finish(ctx context.Context, taskID string, status model.TaskStatus, metadata string) (bool, error) {
	if !status.IsTerminal() {
		return false, errors.New("finish requires a terminal status")
	}
	return s.run(ctx, taskID, "", status, metadata, "update")
}

// Get returns the recorded state of a task.
func (s *Store) Get(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	fields, err := s.client.HGetAll(ctx, key(taskID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrTaskNotFound
	}

	rec := &model.TaskRecord{
		TaskID:   fields["task_id"],
		Name:     fields["name"],
		Status:   model.TaskStatus(fields["status"]),
		Metadata: fields["metadata"],
	}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		rec.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return rec, nil
}
