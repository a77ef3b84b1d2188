package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"

	"github.com/cubattendance/attendance/config"
	"github.com/cubattendance/attendance/database"
	redlock "github.com/cubattendance/attendance/internal/lock"
	"github.com/cubattendance/attendance/model"
)

func newTask(t *testing.T, name string, payload interface{}) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(name, data)
}

func stagedSignIn(id string) model.SignInPayload {
	p := signInPayload("Alex", "sigC", "sigP", "08:00", "2024-03-01")
	p.AttendanceID = id
	p.TaskID = model.SignInTaskID(id)
	return p
}

func stagedSignOut(id string) model.SignOutPayload {
	p := signOutPayload("Alex", "sigP2", "17:00", "2024-03-01")
	p.AttendanceID = id
	p.TaskID = model.SignOutTaskID(id)
	return p
}

func TestProcessSignInTaskMarksRecordSynced(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)
	env.ds.On("MarkSignInSynced", mock.Anything, "att_1").Return(nil)

	err := env.attendance.ProcessSignInTask(context.Background(), newTask(t, model.TaskAddSignIn, stagedSignIn("att_1")))
	require.NoError(t, err)

	rows := sheet.rows(testSpreadsheet, testSheet)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Alex", "sigC", "sigP", "", "08:00", "", "2024-03-01"}, rows[0])

	rec, err := env.attendance.Statuses().Get(context.Background(), "signin_att_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskSuccess, rec.Status)
	env.ds.AssertExpectations(t)
}

func TestProcessSignInTaskRedeliveryDoesNotAppendAgain(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)
	env.ds.On("MarkSignInSynced", mock.Anything, "att_1").Return(nil).Twice()

	task := newTask(t, model.TaskAddSignIn, stagedSignIn("att_1"))
	require.NoError(t, env.attendance.ProcessSignInTask(context.Background(), task))
	require.NoError(t, env.attendance.ProcessSignInTask(context.Background(), task))

	assert.Len(t, sheet.rows(testSpreadsheet, testSheet), 1)
	assert.Equal(t, 1, sheet.appends)
	env.ds.AssertExpectations(t)
}

func TestProcessSignInTaskRetriesWhenStagingStoreFails(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)
	dbErr := errors.New("connection reset by peer")
	env.ds.On("MarkSignInSynced", mock.Anything, "att_1").Return(dbErr).Once()
	env.ds.On("MarkSignInSynced", mock.Anything, "att_1").Return(nil).Once()

	task := newTask(t, model.TaskAddSignIn, stagedSignIn("att_1"))
	err := env.attendance.ProcessSignInTask(context.Background(), task)
	require.ErrorIs(t, err, dbErr)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	require.NoError(t, env.attendance.ProcessSignInTask(context.Background(), task))
	assert.Equal(t, 1, sheet.appends)
}

func TestProcessSignInTaskFailureKeepsStagingRecord(t *testing.T) {
	sheet := newMemorySheet()
	sheet.appendMessage = "quota exceeded"
	env := newTestEnv(t, sheet)

	err := env.attendance.ProcessSignInTask(context.Background(), newTask(t, model.TaskAddSignIn, stagedSignIn("att_1")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	rec, err := env.attendance.Statuses().Get(context.Background(), "signin_att_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailure, rec.Status)
	assert.Equal(t, "quota exceeded", rec.Metadata)

	env.ds.AssertNotCalled(t, "MarkSignInSynced", mock.Anything, mock.Anything)
	env.ds.AssertNotCalled(t, "DeleteAttendance", mock.Anything, mock.Anything)
}

func TestProcessSignInTaskInvalidPayload(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())

	err := env.attendance.ProcessSignInTask(context.Background(), asynq.NewTask(model.TaskAddSignIn, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessSignOutTaskRetiresRecord(t *testing.T) {
	sheet := newMemorySheet()
	sheet.seed(testSpreadsheet, testSheet, header, []string{"Alex", "sigC", "sigP", "", "08:00", "", "2024-03-01"})
	env := newTestEnv(t, sheet)

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(&model.AttendanceRecord{
		AttendanceID: "att_1",
		ChildName:    "Alex",
		TimeIn:       "08:00",
		TimeOut:      ptr.String("17:00"),
		SignInSynced: true,
	}, nil)
	env.ds.On("DeleteAttendance", mock.Anything, "att_1").Return(nil)

	err := env.attendance.ProcessSignOutTask(context.Background(), newTask(t, model.TaskAddSignOut, stagedSignOut("att_1")))
	require.NoError(t, err)

	rows := sheet.rows(testSpreadsheet, testSheet)
	assert.Equal(t, []string{"Alex", "sigC", "sigP", "sigP2", "08:00", "17:00", "2024-03-01"}, rows[1])
	env.ds.AssertExpectations(t)
}

func TestProcessSignOutTaskToleratesRetiredRecord(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(nil, database.ErrAttendanceNotFound)
	env.ds.On("DeleteAttendance", mock.Anything, "att_1").Return(database.ErrAttendanceNotFound)

	err := env.attendance.ProcessSignOutTask(context.Background(), newTask(t, model.TaskAddSignOut, stagedSignOut("att_1")))
	require.NoError(t, err)
	assert.Equal(t, 1, sheet.appends)
}

func TestProcessSignOutTaskWaitsForSignIn(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(&model.AttendanceRecord{
		AttendanceID: "att_1",
		ChildName:    "Alex",
		TimeIn:       "08:00",
		TimeOut:      ptr.String("17:00"),
	}, nil)

	err := env.attendance.ProcessSignOutTask(context.Background(), newTask(t, model.TaskAddSignOut, stagedSignOut("att_1")))
	require.ErrorIs(t, err, errSignInPending)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, 0, sheet.gets)

	rec, err := env.attendance.TaskStatus(context.Background(), "signout_att_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStarted, rec.Status)
}

func unsyncedRecord(id string) *model.AttendanceRecord {
	return &model.AttendanceRecord{
		AttendanceID:        id,
		ChildName:           "Alex",
		ChildSignatureIn:    "sigC",
		GuardianSignatureIn: "sigP",
		TimeIn:              "08:00",
		DateIn:              "2024-03-01",
		TimeOut:             ptr.String("17:00"),
	}
}

func TestProcessSignOutTaskAfterSignInFailure(t *testing.T) {
	sheet := newMemorySheet()
	sheet.seed(testSpreadsheet, testSheet, header)
	sheet.appendMessage = "quota exceeded"
	env := newTestEnv(t, sheet)
	ctx := context.Background()

	err := env.attendance.ProcessSignInTask(ctx, newTask(t, model.TaskAddSignIn, stagedSignIn("att_1")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	sheet.appendMessage = ""

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(unsyncedRecord("att_1"), nil)
	env.ds.On("DeleteAttendance", mock.Anything, "att_1").Return(nil)

	require.NoError(t, env.attendance.ProcessSignOutTask(ctx, newTask(t, model.TaskAddSignOut, stagedSignOut("att_1"))))

	rows := sheet.rows(testSpreadsheet, testSheet)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Alex", "", "", "sigP2", "", "17:00", "2024-03-01"}, rows[1])

	signOut, err := env.attendance.TaskStatus(ctx, "signout_att_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskSuccess, signOut.Status)

	signIn, err := env.attendance.TaskStatus(ctx, "signin_att_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailure, signIn.Status)
	env.ds.AssertExpectations(t)
}

func TestProcessSignOutTaskWaitsForRedispatchedSignIn(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)
	ctx := context.Background()
	statuses := env.attendance.Statuses()

	require.NoError(t, statuses.Pending(ctx, "signin_att_1", model.TaskAddSignIn))
	_, err := statuses.Finish(ctx, "signin_att_1", model.TaskFailure, "context deadline exceeded")
	require.NoError(t, err)
	require.NoError(t, statuses.Pending(ctx, "signin_att_1_retry1", model.TaskAddSignIn))

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(unsyncedRecord("att_1"), nil)

	err = env.attendance.ProcessSignOutTask(ctx, newTask(t, model.TaskAddSignOut, stagedSignOut("att_1")))
	require.ErrorIs(t, err, errSignInPending)
	assert.Equal(t, 0, sheet.gets)
}

func TestProcessSignOutTaskFailureKeepsStagingRecord(t *testing.T) {
	sheet := newMemorySheet()
	sheet.seed(testSpreadsheet, testSheet, header, []string{"Alex", "sigC", "sigP", "", "08:00", "", "2024-03-01"})
	sheet.updateMessage = "quota exceeded"
	env := newTestEnv(t, sheet)

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(&model.AttendanceRecord{
		AttendanceID: "att_1",
		TimeIn:       "08:00",
		TimeOut:      ptr.String("17:00"),
		SignInSynced: true,
	}, nil)

	err := env.attendance.ProcessSignOutTask(context.Background(), newTask(t, model.TaskAddSignOut, stagedSignOut("att_1")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	rec, err := env.attendance.Statuses().Get(context.Background(), "signout_att_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailure, rec.Status)
	assert.Equal(t, "quota exceeded", rec.Metadata)
	env.ds.AssertNotCalled(t, "DeleteAttendance", mock.Anything, mock.Anything)
}

func TestProcessSignOutTaskWithLock(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet, func(c *config.Configuration) { c.Queue.LockSignOuts = true })

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(nil, database.ErrAttendanceNotFound)
	env.ds.On("DeleteAttendance", mock.Anything, "att_1").Return(nil)

	require.NoError(t, env.attendance.ProcessSignOutTask(context.Background(), newTask(t, model.TaskAddSignOut, stagedSignOut("att_1"))))
	assert.False(t, env.redis.Exists(redlock.SignOutKey(testSpreadsheet, testSheet, "Alex", "2024-03-01")))
}

func TestProcessSignOutTaskLockHeld(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet, func(c *config.Configuration) { c.Queue.LockSignOuts = true })
	require.NoError(t, env.redis.Set(redlock.SignOutKey(testSpreadsheet, testSheet, "Alex", "2024-03-01"), "other-worker"))

	env.ds.On("GetAttendanceByID", mock.Anything, "att_1").Return(nil, database.ErrAttendanceNotFound)

	err := env.attendance.ProcessSignOutTask(context.Background(), newTask(t, model.TaskAddSignOut, stagedSignOut("att_1")))
	assert.ErrorIs(t, err, redlock.ErrLockHeld)
	assert.Equal(t, 0, sheet.gets)
}

func TestProcessNameAutocompleteTask(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	env.ds.On("GetAutocompleteSettings", mock.Anything).Return([]model.Settings{}, nil)

	err := env.attendance.ProcessNameAutocompleteTask(context.Background(), asynq.NewTask(model.TaskUpdateNameAutocomplete, nil))
	assert.NoError(t, err)
	env.ds.AssertExpectations(t)
}

func TestProcessNameAutocompleteTaskRunsOncePerWindow(t *testing.T) {
	env := newTestEnv(t, newMemorySheet(), func(c *config.Configuration) { c.Queue.AutocompleteMinGapSec = 240 })
	env.ds.On("GetAutocompleteSettings", mock.Anything).Return([]model.Settings{}, nil).Once()

	task := asynq.NewTask(model.TaskUpdateNameAutocomplete, nil)
	require.NoError(t, env.attendance.ProcessNameAutocompleteTask(context.Background(), task))
	require.NoError(t, env.attendance.ProcessNameAutocompleteTask(context.Background(), task))
	env.ds.AssertNumberOfCalls(t, "GetAutocompleteSettings", 1)

	env.redis.FastForward(241 * time.Second)
	env.ds.On("GetAutocompleteSettings", mock.Anything).Return([]model.Settings{}, nil).Once()
	require.NoError(t, env.attendance.ProcessNameAutocompleteTask(context.Background(), task))
	env.ds.AssertNumberOfCalls(t, "GetAutocompleteSettings", 2)
}

func TestRegisterTaskHandlers(t *testing.T) {
	sheet := newMemorySheet()
	env := newTestEnv(t, sheet)
	env.ds.On("MarkSignInSynced", mock.Anything, "att_1").Return(nil)

	mux := asynq.NewServeMux()
	env.attendance.RegisterTaskHandlers(mux)

	require.NoError(t, mux.ProcessTask(context.Background(), newTask(t, model.TaskAddSignIn, stagedSignIn("att_1"))))
	assert.Equal(t, 1, sheet.appends)
}
