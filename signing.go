package attendance

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/model"
)

var (
	ErrSettingsNotFound = errors.New("no existing settings, save the spreadsheet settings first")
	ErrAlreadySignedIn  = errors.New("child is already signed in on this date")
)

// SignIn is a sign-in event as submitted by a guardian.
type SignIn struct {
	ChildName         string
	ChildSignature    string
	GuardianSignature string
	Time              string
	Date              string
}

// SignOut is a sign-out event as submitted by a guardian.
type SignOut struct {
	ChildName         string
	GuardianSignature string
	Time              string
	Date              string
}

// Submission is the accepted staging record and the task replicating it. Task
// is nil when the task could not be handed to the queue; the staging record is
// then picked up by the recovery processor.
type Submission struct {
	Record *model.AttendanceRecord
	Task   *model.TaskHandle
}

func (a *Attendance) accountSettings(ctx context.Context, email string) (*model.User, *model.Settings, error) {
	user, err := a.datasource.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, nil, ErrUserNotInvited
	}
	if err != nil {
		return nil, nil, err
	}

	settings, err := a.datasource.GetSettings(ctx, user.ID)
	if errors.Is(err, database.ErrSettingsNotFound) {
		return nil, nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return user, settings, nil
}

// RecordSignIn stages a sign-in and queues its replication to the attendance
// sheet. A child can hold one open sign-in per date.
func (a *Attendance) RecordSignIn(ctx context.Context, email string, in SignIn) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "RecordSignIn")
	defer span.End()

	user, settings, err := a.accountSettings(ctx, email)
	if err != nil {
		return nil, err
	}

	rec := &model.AttendanceRecord{
		UserID:              user.ID,
		ChildName:           strings.TrimSpace(in.ChildName),
		ChildSignatureIn:    in.ChildSignature,
		GuardianSignatureIn: in.GuardianSignature,
		TimeIn:              in.Time,
		DateIn:              in.Date,
		SpreadsheetID:       settings.SpreadsheetID,
		SheetName:           settings.AttendanceSheet,
	}
	if err := a.datasource.CreateAttendance(ctx, rec); err != nil {
		if errors.Is(err, database.ErrAttendanceAlreadyOpen) {
			return nil, ErrAlreadySignedIn
		}
		span.RecordError(err)
		return nil, err
	}

	payload := model.SignInPayloadFromRecord(rec)
	return a.submit(ctx, rec, model.TaskAddSignIn, payload.TaskID, payload), nil
}

// RecordSignOut applies a sign-out to the open staging record of the child, or
// stages an orphan record when the child has no open sign-in on that date, and
// queues its reconciliation with the attendance sheet.
func (a *Attendance) RecordSignOut(ctx context.Context, email string, in SignOut) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "RecordSignOut")
	defer span.End()

	user, settings, err := a.accountSettings(ctx, email)
	if err != nil {
		return nil, err
	}

	childName := strings.TrimSpace(in.ChildName)
	rec, err := a.datasource.CompleteAttendance(ctx, user.ID, childName, in.Date, database.SignOut{
		GuardianSignature: in.GuardianSignature,
		Time:              in.Time,
		Date:              in.Date,
	})
	if errors.Is(err, database.ErrAttendanceNotFound) {
		rec = &model.AttendanceRecord{
			UserID:               user.ID,
			ChildName:            childName,
			GuardianSignatureOut: ptr.String(in.GuardianSignature),
			DateIn:               in.Date,
			TimeOut:              ptr.String(in.Time),
			DateOut:              ptr.String(in.Date),
			SpreadsheetID:        settings.SpreadsheetID,
			SheetName:            settings.AttendanceSheet,
			SignInSynced:         true,
		}
		err = a.datasource.CreateAttendance(ctx, rec)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	payload := model.SignOutPayloadFromRecord(rec)
	return a.submit(ctx, rec, model.TaskAddSignOut, payload.TaskID, payload), nil
}

func (a *Attendance) submit(ctx context.Context, rec *model.AttendanceRecord, taskName, taskID string, payload interface{}) *Submission {
	handle, err := a.queue.Enqueue(ctx, taskName, taskID, payload)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"attendance_id": rec.AttendanceID,
			"task_name":     taskName,
		}).Error("failed to enqueue task, leaving staging record for recovery")
	}
	return &Submission{Record: rec, Task: handle}
}
