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

package database

import (
	"context"
	"time"

	"github.com/cubattendance/attendance/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	attendance // Staging records awaiting spreadsheet replication
	user       // Invited accounts
	settings   // Spreadsheet coordinates per account
	names      // Autocomplete name cache
}

// attendance defines methods for handling staging records.
type attendance interface {
	CreateAttendance(ctx context.Context, rec *model.AttendanceRecord) error                                                // Inserts a record unless one is already open for the child and date
	GetAttendanceByID(ctx context.Context, id string) (*model.AttendanceRecord, error)                                     // Retrieves a record by ID
	GetOpenAttendance(ctx context.Context, userID int64, childName, date string) (*model.AttendanceRecord, error)          // Retrieves the open record for a child and date
	CompleteAttendance(ctx context.Context, userID int64, childName, date string, out SignOut) (*model.AttendanceRecord, error) // Applies a sign-out to the open record in place
	MarkSignInSynced(ctx context.Context, id string) error                                                                  // Flags the sign-in row as appended
	DeleteAttendance(ctx context.Context, id string) error                                                                  // Retires a fully replicated record
	GetStaleAttendance(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.AttendanceRecord, error)   // Retrieves records whose replication has not landed
	IncrementRecoveryAttempts(ctx context.Context, id string) error                                                         // Counts a recovery dispatch
}

// user defines methods for handling invited accounts.
type user interface {
	CreateUser(ctx context.Context, name, email string) (*model.User, error) // Invites a new account
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)   // Retrieves an account by email
	UpdateUserToken(ctx context.Context, userID int64, token string) error  // Stores the last issued token
	CountUsers(ctx context.Context) (int, error)                            // Counts invited accounts
}

// settings defines methods for handling spreadsheet settings.
type settings interface {
	GetSettings(ctx context.Context, userID int64) (*model.Settings, error)     // Retrieves the settings of an account
	SaveSettings(ctx context.Context, s *model.Settings) (*model.Settings, error) // Creates or replaces the settings of an account
	GetAutocompleteSettings(ctx context.Context) ([]model.Settings, error)      // Retrieves the settings of every account with an autocomplete sheet
}

// names defines methods for handling the autocomplete name cache.
type names interface {
	GetNames(ctx context.Context, userID int64) ([]string, error)          // Retrieves the cached names of an account
	ReplaceNames(ctx context.Context, userID int64, names []string) error // Replaces the cached names of an account in one commit
}
