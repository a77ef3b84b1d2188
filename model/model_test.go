package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	module := "att"
	id := GenerateUUIDWithSuffix(module)
	assert.Contains(t, id, module+"_")
}

func TestTaskIDs(t *testing.T) {
	assert.Equal(t, "signin_att_1", SignInTaskID("att_1"))
	assert.Equal(t, "signout_att_1", SignOutTaskID("att_1"))
	assert.Equal(t, "att_1", AttendanceIDFromTaskID("signin_att_1"))
	assert.Equal(t, "att_1", AttendanceIDFromTaskID("signout_att_1"))
	assert.Equal(t, "other", AttendanceIDFromTaskID("other"))
}

func TestTaskInstanceID(t *testing.T) {
	assert.Equal(t, "signin_att_1", TaskInstanceID("signin_att_1", 0))
	assert.Equal(t, "signin_att_1_retry2", TaskInstanceID("signin_att_1", 2))
	assert.Equal(t, "att_1", AttendanceIDFromTaskID("signin_att_1_retry2"))
	assert.Equal(t, "att_1", AttendanceIDFromTaskID(TaskInstanceID(SignOutTaskID("att_1"), 1)))
}

func TestRowFromValuesPadsShortRows(t *testing.T) {
	row := RowFromValues([]string{"Alex", "sigA", "sigP"})
	assert.Equal(t, "Alex", row.ChildName)
	assert.Equal(t, "sigA", row.ChildSignature)
	assert.Equal(t, "sigP", row.GuardianSignatureIn)
	assert.Empty(t, row.GuardianSignatureOut)
	assert.Empty(t, row.Date)
	assert.Len(t, row.Values(), SpreadsheetColumns)
}

func TestSignInRowShape(t *testing.T) {
	row := SignInRow("Alex", "sigA", "sigP", "08:15:00", "2024-03-01")
	assert.Equal(t, []string{"Alex", "sigA", "sigP", "", "08:15:00", "", "2024-03-01"}, row.Values())
}

func TestOrphanSignOutRowShape(t *testing.T) {
	row := OrphanSignOutRow("Jordan", "sigQ", "17:00:00", "2024-03-01")
	assert.Equal(t, []string{"Jordan", "", "", "sigQ", "", "17:00:00", "2024-03-01"}, row.Values())
}

func TestWithSignOutKeepsSignInColumns(t *testing.T) {
	in := SignInRow("Alex", "sigA", "sigP", "08:15:00", "2024-03-01")
	out := in.WithSignOut("sigP2", "16:45:00")
	assert.Equal(t, []string{"Alex", "sigA", "sigP", "sigP2", "08:15:00", "16:45:00", "2024-03-01"}, out.Values())
	assert.Empty(t, in.TimeOut)
}

func TestRowAddress(t *testing.T) {
	assert.Equal(t, "Sheet1!A2", RowAddress("Sheet1", 1))
	assert.Equal(t, "Attendance!A6", RowAddress("Attendance", 5))
}

func TestAttendanceRecordState(t *testing.T) {
	rec := &AttendanceRecord{ChildName: "Alex", TimeIn: "08:15:00", ChildSignatureIn: "s", GuardianSignatureIn: "p"}
	assert.True(t, rec.IsOpen())
	assert.False(t, rec.IsOrphan())

	out := "17:00:00"
	orphan := &AttendanceRecord{ChildName: "Jordan", TimeOut: &out}
	assert.False(t, orphan.IsOpen())
	assert.True(t, orphan.IsOrphan())
}

func TestSettingsAutocompleteRange(t *testing.T) {
	s := &Settings{}
	assert.False(t, s.HasAutocomplete())
	assert.Empty(t, s.AutocompleteRange())

	sheet := "Names"
	s.AutocompleteSheet = &sheet
	assert.True(t, s.HasAutocomplete())
	assert.Equal(t, "Names!A2:A", s.AutocompleteRange())
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskPending.IsTerminal())
	assert.False(t, TaskStarted.IsTerminal())
	assert.True(t, TaskSuccess.IsTerminal())
	assert.True(t, TaskFailure.IsTerminal())
}

func TestSignOutPayloadFromRecord(t *testing.T) {
	out, date, sig := "17:00:00", "2024-03-02", "sigQ"
	rec := &AttendanceRecord{
		AttendanceID:         "att_1",
		ChildName:            "Jordan",
		DateIn:               "2024-03-01",
		TimeOut:              &out,
		DateOut:              &date,
		GuardianSignatureOut: &sig,
		SpreadsheetID:        "sheet",
		SheetName:            "Sheet1",
	}
	p := SignOutPayloadFromRecord(rec)
	assert.Equal(t, "signout_att_1", p.TaskID)
	assert.Equal(t, "17:00:00", p.Time)
	assert.Equal(t, "2024-03-02", p.Date)
	assert.Equal(t, "sigQ", p.GuardianSignature)
}
