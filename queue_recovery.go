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
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/cubattendance/attendance/internal/taskstatus"
	"github.com/cubattendance/attendance/model"
)

// AttendanceRecoveryProcessor re-dispatches staging records whose spreadsheet
// write never landed. A task that failed or stopped mid-write is dispatched
// again under a new instance id that checks the sheet before writing.
type AttendanceRecoveryProcessor struct {
	attendance   *Attendance
	batchSize    int
	maxWorkers   int
	pollInterval time.Duration
	staleAfter   time.Duration
	maxAttempts  int
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewAttendanceRecoveryProcessor(a *Attendance) *AttendanceRecoveryProcessor {
	r := a.config.Recovery
	maxWorkers := a.config.Queue.Concurrency
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &AttendanceRecoveryProcessor{
		attendance:   a,
		batchSize:    r.BatchSize,
		maxWorkers:   maxWorkers,
		pollInterval: time.Duration(r.PollIntervalSec) * time.Second,
		staleAfter:   time.Duration(r.StaleAfterSec) * time.Second,
		maxAttempts:  r.MaxAttempts,
		stopCh:       make(chan struct{}),
	}
}

func (p *AttendanceRecoveryProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("Attendance recovery processor started")
}

func (p *AttendanceRecoveryProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Attendance recovery processor stopped")
}

func (p *AttendanceRecoveryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AttendanceRecoveryProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Attendance recovery processor context cancelled")
			return
		case <-p.stopCh:
			logrus.Info("Attendance recovery processor stop signal received")
			return
		case <-ticker.C:
			p.recoverWithThreshold(ctx, p.staleAfter)
		}
	}
}

// RecoverStaleAttendance runs one recovery pass immediately over records last
// touched before threshold. It returns the number of records examined.
func (a *Attendance) RecoverStaleAttendance(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < time.Minute {
		threshold = time.Minute
	}
	processor := NewAttendanceRecoveryProcessor(a)
	return processor.recoverWithThreshold(ctx, threshold), nil
}

func (p *AttendanceRecoveryProcessor) recoverWithThreshold(ctx context.Context, threshold time.Duration) int {
	before := time.Now().UTC().Add(-threshold)
	stale, err := p.attendance.datasource.GetStaleAttendance(ctx, before, p.maxAttempts, p.batchSize)
	if err != nil {
		logrus.Errorf("failed to get stale attendance records: %v", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	logrus.Infof("Processing %d stale attendance records with %d workers (threshold=%v)", len(stale), p.maxWorkers, threshold)

	sem := make(chan struct{}, p.maxWorkers)
	var batchWg sync.WaitGroup
	for _, rec := range stale {
		sem <- struct{}{}
		batchWg.Add(1)
		go func(r *model.AttendanceRecord) {
			defer batchWg.Done()
			defer func() { <-sem }()
			if err := p.recoverRecord(ctx, r); err != nil {
				logrus.Errorf("failed to recover attendance record %s: %v", r.AttendanceID, err)
			}
		}(rec)
	}
	batchWg.Wait()
	return len(stale)
}

// pendingTask returns the task that still has to reach the sheet for a record.
func pendingTask(rec *model.AttendanceRecord) (name, id string, payload interface{}) {
	if !rec.SignInSynced && !rec.IsOrphan() {
		p := model.SignInPayloadFromRecord(rec)
		return model.TaskAddSignIn, p.TaskID, p
	}
	if rec.TimeOut != nil {
		p := model.SignOutPayloadFromRecord(rec)
		return model.TaskAddSignOut, p.TaskID, p
	}
	return "", "", nil
}

func (p *AttendanceRecoveryProcessor) recoverRecord(ctx context.Context, rec *model.AttendanceRecord) error {
	name, baseID, payload := pendingTask(rec)
	if name == "" {
		return nil
	}
	a := p.attendance

	n, status, err := a.latestInstance(ctx, baseID)
	if err != nil && !errors.Is(err, taskstatus.ErrTaskNotFound) {
		return err
	}
	id := model.TaskInstanceID(baseID, n)
	logger := logrus.WithFields(logrus.Fields{"attendance_id": rec.AttendanceID, "task_id": id, "task_name": name})

	info, err := a.queue.Inspect(id)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return err
	}
	if err == nil && info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return nil
	}

	switch {
	case status != nil && (status.Status == model.TaskFailure || status.Status == model.TaskStarted):
		// The earlier write may have landed; the next instance checks the sheet
		// before writing and the recorded state of this one is kept.
		next := model.TaskInstanceID(baseID, n+1)
		if _, err := a.queue.Enqueue(ctx, name, next, verifiedPayload(payload, next)); err != nil {
			return err
		}
		logger.WithField("next_task_id", next).Info("dispatched verified task instance")
	case info != nil && info.State == asynq.TaskStateArchived:
		if err := a.queue.Inspector.RunTask(info.Queue, id); err != nil {
			return err
		}
		logger.Info("re-running archived task")
	case info != nil:
		// The recorded state is kept, so the rerun only finishes the staging follow-up.
		if err := a.queue.Inspector.DeleteTask(info.Queue, id); err != nil {
			return err
		}
		if _, err := a.queue.Enqueue(ctx, name, id, instancePayload(payload, id)); err != nil {
			return err
		}
		logger.Info("re-enqueued completed task to finish staging follow-up")
	default:
		if _, err := a.queue.Enqueue(ctx, name, id, instancePayload(payload, id)); err != nil {
			return err
		}
		logger.Info("re-enqueued task missing from the queue")
	}

	return a.datasource.IncrementRecoveryAttempts(ctx, rec.AttendanceID)
}

// instancePayload points payload at the task instance id.
func instancePayload(payload interface{}, id string) interface{} {
	switch p := payload.(type) {
	case model.SignInPayload:
		p.TaskID = id
		return p
	case model.SignOutPayload:
		p.TaskID = id
		return p
	}
	return payload
}

// verifiedPayload is instancePayload with the sheet check turned on.
func verifiedPayload(payload interface{}, id string) interface{} {
	switch p := instancePayload(payload, id).(type) {
	case model.SignInPayload:
		p.Verify = true
		return p
	case model.SignOutPayload:
		p.Verify = true
		return p
	}
	return payload
}
