package model

import "time"

// Task names understood by the workers.
const (
	TaskAddSignIn              = "tasks.add_sign_in"
	TaskAddSignOut             = "tasks.add_sign_out"
	TaskUpdateNameAutocomplete = "tasks.update_name_autocomplete"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskStarted TaskStatus = "STARTED"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailure TaskStatus = "FAILURE"
)

// IsTerminal reports whether the status can no longer change.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskSuccess || s == TaskFailure
}

// TaskRecord is the inspectable state of one task instance.
type TaskRecord struct {
	TaskID    string     `json:"task_id"`
	Name      string     `json:"name"`
	Status    TaskStatus `json:"status"`
	Metadata  string     `json:"metadata,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TaskHandle is returned to callers of Enqueue.
type TaskHandle struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
	Queue  string `json:"queue"`
}

// SignInPayload is the argument shape of tasks.add_sign_in.
type SignInPayload struct {
	TaskID            string `json:"task_id"`
	AttendanceID      string `json:"attendance_id,omitempty"`
	ChildName         string `json:"cub_name"`
	ChildSignature    string `json:"cub_sig"`
	GuardianSignature string `json:"parent_sig"`
	Time              string `json:"time"`
	Date              string `json:"date"`
	SpreadsheetID     string `json:"spreadsheet_id"`
	SheetName         string `json:"sheet_name"`
	// Verify asks the handler to look for the row in the sheet before writing,
	// because an earlier dispatch may have landed without an acknowledgement.
	Verify bool `json:"verify,omitempty"`
}

// SignOutPayload is the argument shape of tasks.add_sign_out.
type SignOutPayload struct {
	TaskID            string `json:"task_id"`
	AttendanceID      string `json:"attendance_id,omitempty"`
	ChildName         string `json:"cub_name"`
	GuardianSignature string `json:"parent_sig"`
	Time              string `json:"time"`
	Date              string `json:"date"`
	SpreadsheetID     string `json:"spreadsheet_id"`
	SheetName         string `json:"sheet_name"`
	// Verify asks the handler to look for the row in the sheet before writing,
	// because an earlier dispatch may have landed without an acknowledgement.
	Verify bool `json:"verify,omitempty"`
}

// SignInPayloadFromRecord rebuilds the sign-in task arguments of a staging record.
func SignInPayloadFromRecord(rec *AttendanceRecord) SignInPayload {
	return SignInPayload{
		TaskID:            SignInTaskID(rec.AttendanceID),
		AttendanceID:      rec.AttendanceID,
		ChildName:         rec.ChildName,
		ChildSignature:    rec.ChildSignatureIn,
		GuardianSignature: rec.GuardianSignatureIn,
		Time:              rec.TimeIn,
		Date:              rec.DateIn,
		SpreadsheetID:     rec.SpreadsheetID,
		SheetName:         rec.SheetName,
	}
}

// SignOutPayloadFromRecord rebuilds the sign-out task arguments of a completed staging record.
func SignOutPayloadFromRecord(rec *AttendanceRecord) SignOutPayload {
	p := SignOutPayload{
		TaskID:        SignOutTaskID(rec.AttendanceID),
		AttendanceID:  rec.AttendanceID,
		ChildName:     rec.ChildName,
		SpreadsheetID: rec.SpreadsheetID,
		SheetName:     rec.SheetName,
		Date:          rec.DateIn,
	}
	if rec.GuardianSignatureOut != nil {
		p.GuardianSignature = *rec.GuardianSignatureOut
	}
	if rec.TimeOut != nil {
		p.Time = *rec.TimeOut
	}
	if rec.DateOut != nil {
		p.Date = *rec.DateOut
	}
	return p
}
