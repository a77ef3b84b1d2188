package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/cubattendance/attendance/database"
	redlock "github.com/cubattendance/attendance/internal/lock"
	"github.com/cubattendance/attendance/internal/notification"
	"github.com/cubattendance/attendance/internal/taskstatus"
	"github.com/cubattendance/attendance/model"
)

// errSignInPending asks the delivery layer to retry a sign-out whose sign-in
// row has not reached the sheet yet. The sign-out stops waiting once the
// sign-in failed or its own last delivery arrives.
var errSignInPending = errors.New("sign-in row not yet replicated")

// taskID prefers the id carried in the payload, then the one asynq assigned.
func taskID(ctx context.Context, fromPayload string) string {
	if fromPayload != "" {
		return fromPayload
	}
	id, _ := asynq.GetTaskID(ctx)
	return id
}

// runOnce executes write unless a terminal state is already recorded for the
// task, in which case the recorded result is returned. The terminal state is
// written before returning.
func (a *Attendance) runOnce(ctx context.Context, id, name string, write func(context.Context) TaskResult) (TaskResult, bool, error) {
	if id == "" {
		return write(ctx), true, nil
	}

	started, err := a.statuses.Start(ctx, id, name)
	if err != nil {
		return TaskResult{}, false, err
	}
	if !started {
		rec, err := a.statuses.Get(ctx, id)
		if err != nil {
			return TaskResult{}, false, err
		}
		return TaskResult{Status: rec.Status, Metadata: rec.Metadata}, false, nil
	}

	result := write(ctx)
	if _, err := a.statuses.Finish(ctx, id, result.Status, result.Metadata); err != nil {
		return result, true, err
	}
	return result, true, nil
}

// terminalFailure reports a task that ran and failed. The wrapped SkipRetry
// stops asynq from delivering it again.
func terminalFailure(name, id string, result TaskResult, notify bool) error {
	err := fmt.Errorf("%s %s failed: %s", name, id, result.Metadata)
	if notify {
		notification.NotifyError(err)
	}
	return fmt.Errorf("%s: %w", result.Metadata, asynq.SkipRetry)
}

// ProcessSignInTask appends the sign-in row of a staging record and flags the
// record as synced once the sheet confirms the write.
func (a *Attendance) ProcessSignInTask(ctx context.Context, t *asynq.Task) error {
	var p model.SignInPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	id := taskID(ctx, p.TaskID)
	logger := logrus.WithFields(logrus.Fields{
		"task_id":    id,
		"task_name":  t.Type(),
		"child_name": p.ChildName,
		"sheet":      p.SheetName,
	})

	result, ran, err := a.runOnce(ctx, id, t.Type(), func(ctx context.Context) TaskResult {
		return a.engine.AppendSignIn(ctx, p)
	})
	if err != nil {
		logger.WithError(err).Error("failed to record task status")
		return err
	}
	if !ran {
		logger.Infof("task already finished with status %s", result.Status)
	}
	if result.Failed() {
		return terminalFailure(t.Type(), id, result, ran)
	}

	if p.AttendanceID != "" {
		err := a.datasource.MarkSignInSynced(ctx, p.AttendanceID)
		if err != nil && !errors.Is(err, database.ErrAttendanceNotFound) {
			logger.WithError(err).Error("failed to flag sign-in as synced")
			return err
		}
	}

	logger.Info(" [*] Sign-in recorded in sheet")
	return nil
}

// ProcessSignOutTask reconciles the sign-out of a staging record with the
// sheet and retires the record once the sheet confirms the write.
func (a *Attendance) ProcessSignOutTask(ctx context.Context, t *asynq.Task) error {
	var p model.SignOutPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	id := taskID(ctx, p.TaskID)
	logger := logrus.WithFields(logrus.Fields{
		"task_id":    id,
		"task_name":  t.Type(),
		"child_name": p.ChildName,
		"sheet":      p.SheetName,
	})

	if p.AttendanceID != "" {
		rec, err := a.datasource.GetAttendanceByID(ctx, p.AttendanceID)
		switch {
		case errors.Is(err, database.ErrAttendanceNotFound):
		case err != nil:
			return err
		case !rec.SignInSynced && !rec.IsOrphan():
			wait, err := a.awaitSignIn(ctx, id, t.Type(), p.AttendanceID)
			if err != nil {
				logger.WithError(err).Error("failed to check sign-in status")
				return err
			}
			if wait {
				logger.Info("waiting for the sign-in row before reconciling")
				return errSignInPending
			}
			logger.Warn("sign-in row will not be replicated, reconciling sign-out on its own")
		}
	}

	if a.config.Queue.LockSignOuts {
		locker := redlock.NewLocker(a.redis, redlock.SignOutKey(p.SpreadsheetID, p.SheetName, p.ChildName, p.Date))
		ttl := time.Duration(a.config.Queue.LockTimeoutSec) * time.Second
		wait := time.Duration(a.config.Queue.LockWaitTimeoutSec) * time.Second
		if err := locker.Lock(ctx, ttl, wait); err != nil {
			logger.WithError(err).Warn("sign-out lock not acquired")
			return err
		}
		defer func() {
			if err := locker.Unlock(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to release sign-out lock")
			}
		}()
	}

	result, ran, err := a.runOnce(ctx, id, t.Type(), func(ctx context.Context) TaskResult {
		return a.engine.ReconcileSignOut(ctx, p)
	})
	if err != nil {
		logger.WithError(err).Error("failed to record task status")
		return err
	}
	if !ran {
		logger.Infof("task already finished with status %s", result.Status)
	}
	if result.Failed() {
		return terminalFailure(t.Type(), id, result, ran)
	}

	if p.AttendanceID != "" {
		err := a.datasource.DeleteAttendance(ctx, p.AttendanceID)
		if err != nil && !errors.Is(err, database.ErrAttendanceNotFound) {
			logger.WithError(err).Error("failed to retire staging record")
			return err
		}
	}

	logger.WithField("action", result.Action).Info(" [*] Sign-out recorded in sheet")
	return nil
}

// awaitSignIn reports whether a sign-out should keep waiting for the sign-in
// of its record. A waiting sign-out is recorded as STARTED.
func (a *Attendance) awaitSignIn(ctx context.Context, id, name, attendanceID string) (bool, error) {
	_, signIn, err := a.latestInstance(ctx, model.SignInTaskID(attendanceID))
	if err != nil && !errors.Is(err, taskstatus.ErrTaskNotFound) {
		return false, err
	}
	if signIn != nil && signIn.Status == model.TaskFailure {
		return false, nil
	}
	if lastDelivery(ctx) {
		return false, nil
	}
	if id != "" {
		if _, err := a.statuses.Start(ctx, id, name); err != nil {
			return false, err
		}
	}
	return true, nil
}

// lastDelivery reports whether asynq will not deliver the running task again
// after a failure.
func lastDelivery(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

// latestInstance finds the most recent dispatch of a task, counting the
// redispatches made by recovery, with its recorded state.
func (a *Attendance) latestInstance(ctx context.Context, baseID string) (int, *model.TaskRecord, error) {
	rec, err := a.statuses.Get(ctx, baseID)
	if err != nil {
		return 0, nil, err
	}
	n := 0
	for {
		next, err := a.statuses.Get(ctx, model.TaskInstanceID(baseID, n+1))
		if errors.Is(err, taskstatus.ErrTaskNotFound) {
			return n, rec, nil
		}
		if err != nil {
			return 0, nil, err
		}
		n, rec = n+1, next
	}
}

// ProcessNameAutocompleteTask refreshes the cached names of every account. Every
// worker process schedules the refresh, so only the first delivery within
// Queue.AutocompleteMinGapSec runs it.
func (a *Attendance) ProcessNameAutocompleteTask(ctx context.Context, t *asynq.Task) error {
	id := taskID(ctx, "")
	if gap := time.Duration(a.config.Queue.AutocompleteMinGapSec) * time.Second; gap > 0 {
		err := redlock.NewLocker(a.redis, redlock.AutocompleteKey).TryLock(ctx, gap)
		if errors.Is(err, redlock.ErrLockHeld) {
			logrus.WithField("task_id", id).Info("name autocomplete refreshed recently, skipping")
			return nil
		}
		if err != nil {
			return err
		}
	}

	summary := a.RefreshNameAutocomplete(ctx)
	logrus.WithFields(logrus.Fields{
		"task_id":   id,
		"task_name": t.Type(),
		"accounts":  summary.Accounts,
		"refreshed": summary.Refreshed,
		"failed":    len(summary.Failed),
	}).Info(" [*] Name autocomplete refreshed")
	return nil
}

// RegisterTaskHandlers binds every task name to its handler.
func (a *Attendance) RegisterTaskHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(model.TaskAddSignIn, a.ProcessSignInTask)
	mux.HandleFunc(model.TaskAddSignOut, a.ProcessSignOutTask)
	mux.HandleFunc(model.TaskUpdateNameAutocomplete, a.ProcessNameAutocompleteTask)
}

// TaskStatus returns the recorded state of a task. Tasks unknown to the
// status store are looked up in the queue.
func (a *Attendance) TaskStatus(ctx context.Context, id string) (*model.TaskRecord, error) {
	rec, err := a.statuses.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, taskstatus.ErrTaskNotFound) {
		return nil, err
	}

	info, err := a.queue.Inspect(id)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return nil, taskstatus.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return RecordFromTaskInfo(info), nil
}
