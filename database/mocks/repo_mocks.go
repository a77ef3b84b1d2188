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
package mocks

import (
	"context"
	"time"

	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Attendance methods

func (m *MockDataSource) CreateAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockDataSource) GetAttendanceByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*model.AttendanceRecord)
	return rec, args.Error(1)
}

func (m *MockDataSource) GetOpenAttendance(ctx context.Context, userID int64, childName, date string) (*model.AttendanceRecord, error) {
	args := m.Called(ctx, userID, childName, date)
	rec, _ := args.Get(0).(*model.AttendanceRecord)
	return rec, args.Error(1)
}

func (m *MockDataSource) CompleteAttendance(ctx context.Context, userID int64, childName, date string, out database.SignOut) (*model.AttendanceRecord, error) {
	args := m.Called(ctx, userID, childName, date, out)
	rec, _ := args.Get(0).(*model.AttendanceRecord)
	return rec, args.Error(1)
}

func (m *MockDataSource) MarkSignInSynced(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) DeleteAttendance(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) GetStaleAttendance(ctx context.Context, before time.Time, maxAttempts, limit int) ([]*model.AttendanceRecord, error) {
	args := m.Called(ctx, before, maxAttempts, limit)
	recs, _ := args.Get(0).([]*model.AttendanceRecord)
	return recs, args.Error(1)
}

func (m *MockDataSource) IncrementRecoveryAttempts(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// User methods

func (m *MockDataSource) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	args := m.Called(ctx, name, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockDataSource) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockDataSource) UpdateUserToken(ctx context.Context, userID int64, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *MockDataSource) CountUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// Settings methods

func (m *MockDataSource) GetSettings(ctx context.Context, userID int64) (*model.Settings, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*model.Settings)
	return s, args.Error(1)
}

func (m *MockDataSource) SaveSettings(ctx context.Context, s *model.Settings) (*model.Settings, error) {
	args := m.Called(ctx, s)
	saved, _ := args.Get(0).(*model.Settings)
	return saved, args.Error(1)
}

func (m *MockDataSource) GetAutocompleteSettings(ctx context.Context) ([]model.Settings, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.Settings)
	return list, args.Error(1)
}

// Names methods

func (m *MockDataSource) GetNames(ctx context.Context, userID int64) ([]string, error) {
	args := m.Called(ctx, userID)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockDataSource) ReplaceNames(ctx context.Context, userID int64, names []string) error {
	args := m.Called(ctx, userID, names)
	return args.Error(0)
}

var _ database.IDataSource = (*MockDataSource)(nil)
