package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cubattendance/attendance/model"
)

var (
	ErrAttendanceNotFound    = errors.New("attendance record not found")
	ErrAttendanceAlreadyOpen = errors.New("an open attendance record already exists for this child and date")
)

// SignOut carries the sign-out columns applied to an open staging record.
type SignOut struct {
	GuardianSignature string
	Time              string
	Date              string
}

const attendanceColumns = `attendance_id, user_id, child_name, child_signature_in, guardian_signature_in,
	guardian_signature_out, time_in, date_in, time_out, date_out, spreadsheet_id, sheet_name,
	sign_in_synced, recovery_attempts, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttendance(row rowScanner) (*model.AttendanceRecord, error) {
	rec := &model.AttendanceRecord{}
	var sigOut, timeOut, dateOut sql.NullString
	err := row.Scan(
		&rec.AttendanceID,
		&rec.UserID,
		&rec.ChildName,
		&rec.ChildSignatureIn,
		&rec.GuardianSignatureIn,
		&sigOut,
		&rec.TimeIn,
		&rec.DateIn,
		&timeOut,
		&dateOut,
		&rec.SpreadsheetID,
		&rec.SheetName,
		&rec.SignInSynced,
		&rec.RecoveryAttempts,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.GuardianSignatureOut = nullableString(sigOut)
	rec.TimeOut = nullableString(timeOut)
	rec.DateOut = nullableString(dateOut)
	return rec, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreateAttendance inserts a staging record. For records without a sign-out the
// insert only happens when no open record exists for the same account, child
// and date; the check and the insert share one transaction but no constraint
// backs it.
func (d *Datasource) CreateAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	if rec.AttendanceID == "" {
		rec.AttendanceID = model.GenerateUUIDWithSuffix("att")
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	return d.withTx(ctx, func(tx *sql.Tx) error {
		if rec.IsOpen() {
			var existing string
			err := tx.QueryRowContext(ctx, `
				SELECT attendance_id FROM attendance.records
				WHERE user_id = $1 AND child_name = $2 AND date_in = $3 AND time_out IS NULL
				LIMIT 1
			`, rec.UserID, rec.ChildName, rec.DateIn).Scan(&existing)
			if err == nil {
				return ErrAttendanceAlreadyOpen
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance.records (`+attendanceColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			rec.AttendanceID,
			rec.UserID,
			rec.ChildName,
			rec.ChildSignatureIn,
			rec.GuardianSignatureIn,
			toNullString(rec.GuardianSignatureOut),
			rec.TimeIn,
			rec.DateIn,
			toNullString(rec.TimeOut),
			toNullString(rec.DateOut),
			rec.SpreadsheetID,
			rec.SheetName,
			rec.SignInSynced,
			rec.RecoveryAttempts,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		return err
	})
}

// GetAttendanceByID retrieves a staging record by its identifier.
func (d *Datasource) GetAttendanceByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+` FROM attendance.records WHERE attendance_id = $1
	`, id)
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttendanceNotFound
	}
	return rec, err
}

// GetOpenAttendance retrieves the open record of a child on a date.
func (d *Datasource) GetOpenAttendance(ctx context.Context, userID int64, childName, date string) (*model.AttendanceRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+` FROM attendance.records
		WHERE user_id = $1 AND child_name = $2 AND date_in = $3 AND time_out IS NULL
		ORDER BY created_at
		LIMIT 1
	`, userID, childName, date)
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttendanceNotFound
	}
	return rec, err
}

// CompleteAttendance applies a sign-out to the open record of a child on a
// date. It returns ErrAttendanceNotFound when no record is open.
func (d *Datasource) CompleteAttendance(ctx context.Context, userID int64, childName, date string, out SignOut) (*model.AttendanceRecord, error) {
	var rec *model.AttendanceRecord
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+attendanceColumns+` FROM attendance.records
			WHERE user_id = $1 AND child_name = $2 AND date_in = $3 AND time_out IS NULL
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE
		`, userID, childName, date)
		found, err := scanAttendance(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAttendanceNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE attendance.records
			SET guardian_signature_out = $1, time_out = $2, date_out = $3, updated_at = $4
			WHERE attendance_id = $5
		`, out.GuardianSignature, out.Time, out.Date, now, found.AttendanceID)
		if err != nil {
			return err
		}

		found.GuardianSignatureOut = &out.GuardianSignature
		found.TimeOut = &out.Time
		found.DateOut = &out.Date
		found.UpdatedAt = now
		rec = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkSignInSynced flags that the sign-in row of a record is in the spreadsheet.
func (d *Datasource) MarkSignInSynced(ctx context.Context, id string) error {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE attendance.records SET sign_in_synced = TRUE, updated_at = $1 WHERE attendance_id = $2
	`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrAttendanceNotFound)
}

// DeleteAttendance retires a record once its spreadsheet write is confirmed.
func (d *Datasource) DeleteAttendance(ctx context.Context, id string) error {
	res, err := d.Conn.ExecContext(ctx, `DELETE FROM attendance.records WHERE attendance_id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrAttendanceNotFound)
}

// GetStaleAttendance retrieves records last touched before the cutoff whose
// replication has not been confirmed: an unsynced sign-in, or a completed
// record that was never retired.
func (d *Datasource) GetStaleAttendance(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.AttendanceRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+attendanceColumns+` FROM attendance.records
		WHERE updated_at < $1
		  AND recovery_attempts < $2
		  AND (sign_in_synced = FALSE OR time_out IS NOT NULL)
		ORDER BY updated_at
		LIMIT $3
	`, before, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IncrementRecoveryAttempts counts one recovery dispatch of a record.
func (d *Datasource) IncrementRecoveryAttempts(ctx context.Context, id string) error {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE attendance.records
		SET recovery_attempts = recovery_attempts + 1, updated_at = $1
		WHERE attendance_id = $2
	`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrAttendanceNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
