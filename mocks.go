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

package attendance

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cubattendance/attendance/internal/identity"
	"github.com/cubattendance/attendance/internal/sheets"
)

// MockSheets is a mock implementation of sheets.Client.
type MockSheets struct {
	mock.Mock
}

func (m *MockSheets) Get(ctx context.Context, spreadsheetID, rng string) ([][]string, sheets.Outcome, error) {
	args := m.Called(ctx, spreadsheetID, rng)
	rows, _ := args.Get(0).([][]string)
	return rows, args.Get(1).(sheets.Outcome), args.Error(2)
}

func (m *MockSheets) Append(ctx context.Context, spreadsheetID, rng string, row []string) (sheets.Outcome, error) {
	args := m.Called(ctx, spreadsheetID, rng, row)
	return args.Get(0).(sheets.Outcome), args.Error(1)
}

func (m *MockSheets) Update(ctx context.Context, spreadsheetID, rowAddress string, row []string) (sheets.Outcome, error) {
	args := m.Called(ctx, spreadsheetID, rowAddress, row)
	return args.Get(0).(sheets.Outcome), args.Error(1)
}

// MockVerifier is a mock implementation of identity.Verifier.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*identity.Identity, error) {
	args := m.Called(ctx, accessToken)
	ident, _ := args.Get(0).(*identity.Identity)
	return ident, args.Error(1)
}

func (m *MockVerifier) VerifyIDToken(ctx context.Context, idToken string) (*identity.Identity, error) {
	args := m.Called(ctx, idToken)
	ident, _ := args.Get(0).(*identity.Identity)
	return ident, args.Error(1)
}

var (
	_ sheets.Client     = (*MockSheets)(nil)
	_ identity.Verifier = (*MockVerifier)(nil)
)
