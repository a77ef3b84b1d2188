package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cubattendance/attendance/config"
	"github.com/cubattendance/attendance/database/mocks"
	"github.com/cubattendance/attendance/internal/sheets"
)

// memorySheet is an in-memory attendance sheet keyed by spreadsheet and sheet name.
type memorySheet struct {
	mu      sync.Mutex
	sheets  map[string][][]string
	gets    int
	appends int
	updates int

	appendMessage string
	updateMessage string
	getErr        error
}

func newMemorySheet() *memorySheet {
	return &memorySheet{sheets: map[string][][]string{}}
}

func sheetKey(spreadsheetID, rng string) string {
	name, _, _ := strings.Cut(rng, "!")
	return spreadsheetID + "/" + name
}

func (s *memorySheet) seed(spreadsheetID, sheetName string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sheetKey(spreadsheetID, sheetName)
	s.sheets[k] = append(s.sheets[k], rows...)
}

func (s *memorySheet) rows(spreadsheetID, sheetName string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheets[sheetKey(spreadsheetID, sheetName)]
}

func (s *memorySheet) Get(_ context.Context, spreadsheetID, rng string) ([][]string, sheets.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, sheets.Outcome{}, s.getErr
	}
	rows := s.sheets[sheetKey(spreadsheetID, rng)]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, sheets.Outcome{OK: true}, nil
}

func (s *memorySheet) Append(_ context.Context, spreadsheetID, rng string, row []string) (sheets.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.appendMessage != "" {
		return sheets.Outcome{OK: false, Message: s.appendMessage}, nil
	}
	k := sheetKey(spreadsheetID, rng)
	s.sheets[k] = append(s.sheets[k], append([]string(nil), row...))
	return sheets.Outcome{OK: true, Message: "Successfully appended row"}, nil
}

func (s *memorySheet) Update(_ context.Context, spreadsheetID, rowAddress string, row []string) (sheets.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateMessage != "" {
		return sheets.Outcome{OK: false, Message: s.updateMessage}, nil
	}
	sheetName, cell, ok := strings.Cut(rowAddress, "!A")
	if !ok {
		return sheets.Outcome{}, fmt.Errorf("bad address %q", rowAddress)
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return sheets.Outcome{}, err
	}
	k := sheetKey(spreadsheetID, sheetName)
	if n < 1 || n > len(s.sheets[k]) {
		return sheets.Outcome{}, errors.New("row out of range")
	}
	s.sheets[k][n-1] = append([]string(nil), row...)
	return sheets.Outcome{OK: true, Message: "Successfully updated row"}, nil
}

func testConfig(redisAddr string) *config.Configuration {
	return &config.Configuration{
		ProjectName: "Cub Attendance",
		Redis:       config.RedisConfig{Dns: redisAddr},
		Queue: config.QueueConfig{
			AttendanceQueue:    "attendance",
			MaintenanceQueue:   "maintenance",
			Concurrency:        2,
			MaxRetry:           3,
			RetentionHours:     1,
			AutocompleteSpec:   "@every 300s",
			LockTimeoutSec:     5,
			LockWaitTimeoutSec: 1,
		},
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 24},
		Recovery: config.RecoveryConfig{
			PollIntervalSec: 60,
			StaleAfterSec:   900,
			BatchSize:       10,
			MaxAttempts:     3,
		},
	}
}

type testEnv struct {
	attendance *Attendance
	ds         *mocks.MockDataSource
	sheet      sheets.Client
	verifier   *MockVerifier
	redis      *miniredis.Miniredis
}

func newTestEnv(t *testing.T, sheet sheets.Client, tweak ...func(*config.Configuration)) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	for _, fn := range tweak {
		fn(cfg)
	}
	config.MockConfig(cfg)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	queue, err := NewQueue(cfg)
	require.NoError(t, err)

	ds := new(mocks.MockDataSource)
	verifier := new(MockVerifier)
	a, err := NewAttendanceWith(Dependencies{
		DataSource: ds,
		Sheets:     sheet,
		Redis:      client,
		Queue:      queue,
		Verifier:   verifier,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = a.Close()
		_ = client.Close()
	})
	return &testEnv{attendance: a, ds: ds, sheet: sheet, verifier: verifier, redis: mr}
}
