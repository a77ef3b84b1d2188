package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cubattendance/attendance/model"
)

var ErrSettingsNotFound = errors.New("settings not found")

// GetSettings retrieves the spreadsheet settings of an account.
func (d *Datasource) GetSettings(ctx context.Context, userID int64) (*model.Settings, error) {
	s := &model.Settings{}
	var autocomplete sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, spreadsheet_id, attendance_sheet, autocomplete_sheet
		FROM attendance.settings WHERE user_id = $1
	`, userID).Scan(&s.ID, &s.UserID, &s.SpreadsheetID, &s.AttendanceSheet, &autocomplete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	s.AutocompleteSheet = nullableString(autocomplete)
	return s, nil
}

// SaveSettings creates or replaces the settings of an account.
func (d *Datasource) SaveSettings(ctx context.Context, s *model.Settings) (*model.Settings, error) {
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO attendance.settings (user_id, spreadsheet_id, attendance_sheet, autocomplete_sheet)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET spreadsheet_id = EXCLUDED.spreadsheet_id,
		    attendance_sheet = EXCLUDED.attendance_sheet,
		    autocomplete_sheet = EXCLUDED.autocomplete_sheet
		RETURNING id
	`, s.UserID, s.SpreadsheetID, s.AttendanceSheet, toNullString(s.AutocompleteSheet)).Scan(&s.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetAutocompleteSettings lists the settings of every account with an autocomplete sheet.
func (d *Datasource) GetAutocompleteSettings(ctx context.Context) ([]model.Settings, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, user_id, spreadsheet_id, attendance_sheet, autocomplete_sheet
		FROM attendance.settings
		WHERE autocomplete_sheet IS NOT NULL AND autocomplete_sheet <> ''
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []model.Settings
	for rows.Next() {
		var s model.Settings
		var autocomplete sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.SpreadsheetID, &s.AttendanceSheet, &autocomplete); err != nil {
			return nil, err
		}
		s.AutocompleteSheet = nullableString(autocomplete)
		result = append(result, s)
	}
	return result, rows.Err()
}
