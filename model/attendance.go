package model

import (
	"fmt"
	"time"
)

// AttendanceRecord is the staging record of one child's daily attendance cycle.
// It lives only until the cycle is durably reflected in the attendance sheet.
type AttendanceRecord struct {
	AttendanceID         string    `json:"attendance_id"`
	UserID               int64     `json:"user_id"`
	ChildName            string    `json:"child_name"`
	ChildSignatureIn     string    `json:"child_signature_in"`
	GuardianSignatureIn  string    `json:"guardian_signature_in"`
	GuardianSignatureOut *string   `json:"guardian_signature_out,omitempty"`
	TimeIn               string    `json:"time_in"`
	DateIn               string    `json:"date_in"`
	TimeOut              *string   `json:"time_out,omitempty"`
	DateOut              *string   `json:"date_out,omitempty"`
	SpreadsheetID        string    `json:"spreadsheet_id"`
	SheetName            string    `json:"sheet_name"`
	SignInSynced         bool      `json:"sign_in_synced"`
	RecoveryAttempts     int       `json:"recovery_attempts"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// IsOpen reports whether the record has a sign-in without a sign-out.
func (r *AttendanceRecord) IsOpen() bool {
	return r.TimeOut == nil
}

// IsOrphan reports whether the record was created by a sign-out that found no open record.
func (r *AttendanceRecord) IsOrphan() bool {
	return r.TimeOut != nil && r.TimeIn == "" && r.ChildSignatureIn == "" && r.GuardianSignatureIn == ""
}

// SpreadsheetColumns is the number of positional columns in an attendance sheet row.
const SpreadsheetColumns = 7

// SpreadsheetRow is a positional row of the attendance sheet:
// child name, child signature, guardian signature in, guardian signature out,
// time in, time out, date.
type SpreadsheetRow struct {
	ChildName            string
	ChildSignature       string
	GuardianSignatureIn  string
	GuardianSignatureOut string
	TimeIn               string
	TimeOut              string
	Date                 string
}

// Values returns the row in column order.
func (r SpreadsheetRow) Values() []string {
	return []string{
		r.ChildName,
		r.ChildSignature,
		r.GuardianSignatureIn,
		r.GuardianSignatureOut,
		r.TimeIn,
		r.TimeOut,
		r.Date,
	}
}

// RowFromValues builds a row from a sheet tuple. The spreadsheet service
// drops trailing empty cells, so short tuples are padded with empty columns.
func RowFromValues(values []string) SpreadsheetRow {
	padded := make([]string, SpreadsheetColumns)
	copy(padded, values)
	return SpreadsheetRow{
		ChildName:            padded[0],
		ChildSignature:       padded[1],
		GuardianSignatureIn:  padded[2],
		GuardianSignatureOut: padded[3],
		TimeIn:               padded[4],
		TimeOut:              padded[5],
		Date:                 padded[6],
	}
}

// SignInRow is the row appended for a sign-in: guardian-out and time-out are empty.
func SignInRow(childName, childSig, guardianSig, timeIn, date string) SpreadsheetRow {
	return SpreadsheetRow{
		ChildName:           childName,
		ChildSignature:      childSig,
		GuardianSignatureIn: guardianSig,
		TimeIn:              timeIn,
		Date:                date,
	}
}

// OrphanSignOutRow is the row appended when a sign-out has no matching sign-in row.
func OrphanSignOutRow(childName, guardianSig, timeOut, date string) SpreadsheetRow {
	return SpreadsheetRow{
		ChildName:            childName,
		GuardianSignatureOut: guardianSig,
		TimeOut:              timeOut,
		Date:                 date,
	}
}

// WithSignOut merges a sign-out into a matched sign-in row, keeping its sign-in columns.
func (r SpreadsheetRow) WithSignOut(guardianSig, timeOut string) SpreadsheetRow {
	r.GuardianSignatureOut = guardianSig
	r.TimeOut = timeOut
	return r
}

// RowAddress returns the A1 address of the row at the zero-based index of a full
// sheet read. Index 0 is row 1, which holds the header.
func RowAddress(sheetName string, index int) string {
	return fmt.Sprintf("%s!A%d", sheetName, index+1)
}
