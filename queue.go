/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/cubattendance/attendance/config"
	redis_db "github.com/cubattendance/attendance/internal/redis-db"
	"github.com/cubattendance/attendance/internal/taskstatus"
	"github.com/cubattendance/attendance/model"
)

// Queue is the task delivery layer: an asynq client for enqueueing and an
// inspector for looking tasks up after the fact.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	statuses  *taskstatus.Store
	conf      config.QueueConfig
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := redis_db.AsynqConnOpt(conf.Redis)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:    asynq.NewClient(opt),
		Inspector: asynq.NewInspector(opt),
		conf:      conf.Queue,
	}, nil
}

// QueueFor returns the queue a task name is delivered on.
func (q *Queue) QueueFor(taskName string) string {
	if taskName == model.TaskUpdateNameAutocomplete {
		return q.conf.MaintenanceQueue
	}
	return q.conf.AttendanceQueue
}

// Enqueue hands a task to the workers and returns immediately. A non-empty
// taskID deduplicates submissions of the same logical event: while a task with
// that id is still known to the queue, the existing handle is returned.
func (q *Queue) Enqueue(ctx context.Context, taskName, taskID string, args interface{}) (*model.TaskHandle, error) {
	ctx, span := tracer.Start(ctx, "Enqueue "+taskName)
	defer span.End()

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	queueName := q.QueueFor(taskName)
	opts := []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(q.conf.MaxRetry),
		asynq.Retention(time.Duration(q.conf.RetentionHours) * time.Hour),
	}
	if taskID != "" {
		opts = append(opts, asynq.TaskID(taskID))
	}

	info, err := q.Client.EnqueueContext(ctx, asynq.NewTask(taskName, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logrus.WithFields(logrus.Fields{"task_id": taskID, "task_name": taskName}).Info("task already enqueued")
		return &model.TaskHandle{TaskID: taskID, Name: taskName, Queue: queueName}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if q.statuses != nil {
		if err := q.statuses.Pending(ctx, info.ID, taskName); err != nil {
			logrus.WithError(err).WithField("task_id", info.ID).Warn("failed to record pending task status")
		}
	}
	logrus.WithFields(logrus.Fields{"task_id": info.ID, "task_name": taskName, "queue": queueName}).Info(" [*] Successfully enqueued task")

	return &model.TaskHandle{TaskID: info.ID, Name: taskName, Queue: queueName}, nil
}

// Inspect looks a task up in every queue the workers consume. It returns
// asynq.ErrTaskNotFound when no queue holds it.
func (q *Queue) Inspect(taskID string) (*asynq.TaskInfo, error) {
	for _, queueName := range []string{q.conf.AttendanceQueue, q.conf.MaintenanceQueue} {
		info, err := q.Inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, err
		}
	}
	return nil, asynq.ErrTaskNotFound
}

// RecordFromTaskInfo maps the queue state of a task onto the task status lifecycle.
func RecordFromTaskInfo(info *asynq.TaskInfo) *model.TaskRecord {
	rec := &model.TaskRecord{TaskID: info.ID, Name: info.Type}
	switch info.State {
	case asynq.TaskStateActive:
		rec.Status = model.TaskStarted
	case asynq.TaskStateCompleted:
		rec.Status = model.TaskSuccess
		rec.UpdatedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		rec.Status = model.TaskFailure
		rec.Metadata = info.LastErr
		rec.UpdatedAt = info.LastFailedAt
	default:
		rec.Status = model.TaskPending
	}
	return rec
}

// RegisterPeriodicTasks adds the name autocomplete refresh to a scheduler.
func (q *Queue) RegisterPeriodicTasks(scheduler *asynq.Scheduler) (string, error) {
	task := asynq.NewTask(model.TaskUpdateNameAutocomplete, nil)
	return scheduler.Register(q.conf.AutocompleteSpec, task,
		asynq.Queue(q.conf.MaintenanceQueue),
		asynq.MaxRetry(0),
	)
}

func (q *Queue) Close() error {
	return errors.Join(q.Client.Close(), q.Inspector.Close())
}
