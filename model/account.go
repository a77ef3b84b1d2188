package model

import "time"

// User is an invited guardian/leader account allowed to use the API.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Token     *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings holds the spreadsheet coordinates for one account.
type Settings struct {
	ID                int64   `json:"id"`
	UserID            int64   `json:"user_id"`
	SpreadsheetID     string  `json:"spreadsheet_id"`
	AttendanceSheet   string  `json:"attendance_sheet"`
	AutocompleteSheet *string `json:"autocomplete_sheet,omitempty"`
}

// HasAutocomplete reports whether an autocomplete sheet is configured.
func (s *Settings) HasAutocomplete() bool {
	return s.AutocompleteSheet != nil && *s.AutocompleteSheet != ""
}

// AutocompleteRange is the range holding autocomplete names, skipping the header.
func (s *Settings) AutocompleteRange() string {
	if !s.HasAutocomplete() {
		return ""
	}
	return *s.AutocompleteSheet + "!A2:A"
}

// Name is one cached autocomplete entry of an account.
type Name struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}
