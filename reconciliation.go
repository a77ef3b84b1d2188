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
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cubattendance/attendance/internal/sheets"
	"github.com/cubattendance/attendance/model"
)

// ErrAmbiguousMatch is reported when a sign-out matches more than one sheet row.
var ErrAmbiguousMatch = errors.New("more than one row matches the child and date")

// Actions taken on the attendance sheet by a reconciliation.
const (
	ActionAppended       = "appended"
	ActionUpdated        = "updated"
	ActionOrphanAppended = "orphan_appended"
	ActionAlreadyPresent = "already_present"
)

// TaskResult is the terminal outcome of one spreadsheet write.
type TaskResult struct {
	Status    model.TaskStatus `json:"status"`
	Metadata  string           `json:"metadata,omitempty"`
	Action    string           `json:"action,omitempty"`
	RowNumber int              `json:"row_number,omitempty"`
}

func (r TaskResult) Failed() bool {
	return r.Status == model.TaskFailure
}

func success(action string, rowNumber int, message string) TaskResult {
	return TaskResult{Status: model.TaskSuccess, Action: action, RowNumber: rowNumber, Metadata: message}
}

func failure(message string) TaskResult {
	if message == "" {
		message = "spreadsheet write failed"
	}
	return TaskResult{Status: model.TaskFailure, Metadata: message}
}

// Engine mirrors attendance events into the attendance sheet. Every remote
// failure comes back as a FAILURE result carrying the reason; nothing is
// retried here.
type Engine struct {
	sheets sheets.Client
}

func NewEngine(client sheets.Client) *Engine {
	return &Engine{sheets: client}
}

// AppendSignIn appends the sign-in row of a child. A verified dispatch first
// looks for an identical row and reports it instead of appending again.
func (e *Engine) AppendSignIn(ctx context.Context, p model.SignInPayload) TaskResult {
	ctx, span := tracer.Start(ctx, "AppendSignIn")
	defer span.End()
	span.SetAttributes(attribute.String("attendance.sheet", p.SheetName))

	result := e.appendSignIn(ctx, p)
	recordResult(span, result)
	return result
}

func (e *Engine) appendSignIn(ctx context.Context, p model.SignInPayload) TaskResult {
	row := model.SignInRow(p.ChildName, p.ChildSignature, p.GuardianSignature, p.Time, p.Date)
	if p.Verify {
		rows, outcome, err := e.sheets.Get(ctx, p.SpreadsheetID, p.SheetName)
		if err != nil {
			return failure(err.Error())
		}
		if !outcome.OK {
			return failure(outcome.Message)
		}
		if index := findRow(rows, row); index >= 0 {
			return success(ActionAlreadyPresent, index+1, "row already present")
		}
	}
	return e.append(ctx, p.SpreadsheetID, p.SheetName, row, ActionAppended)
}

// ReconcileSignOut finds the sign-in row of a child on a date and fills in its
// sign-out columns. With no matching row an orphan sign-out row is appended;
// with more than one the task fails with ErrAmbiguousMatch. A verified
// dispatch succeeds without writing when a row already carries the sign-out.
func (e *Engine) ReconcileSignOut(ctx context.Context, p model.SignOutPayload) TaskResult {
	ctx, span := tracer.Start(ctx, "ReconcileSignOut")
	defer span.End()
	span.SetAttributes(attribute.String("attendance.sheet", p.SheetName))

	result := e.reconcileSignOut(ctx, p)
	recordResult(span, result)
	return result
}

func (e *Engine) reconcileSignOut(ctx context.Context, p model.SignOutPayload) TaskResult {
	rows, outcome, err := e.sheets.Get(ctx, p.SpreadsheetID, p.SheetName)
	if err != nil {
		return failure(err.Error())
	}
	if !outcome.OK {
		return failure(outcome.Message)
	}

	if p.Verify {
		if index := signedOutRow(rows, p); index >= 0 {
			return success(ActionAlreadyPresent, index+1, "row already present")
		}
	}

	matches := matchingRows(rows, p.ChildName, p.Date)
	switch len(matches) {
	case 0:
		row := model.OrphanSignOutRow(p.ChildName, p.GuardianSignature, p.Time, p.Date)
		return e.append(ctx, p.SpreadsheetID, p.SheetName, row, ActionOrphanAppended)
	case 1:
		index := matches[0]
		merged := model.RowFromValues(rows[index]).WithSignOut(p.GuardianSignature, p.Time)
		address := model.RowAddress(p.SheetName, index)
		outcome, err := e.sheets.Update(ctx, p.SpreadsheetID, address, merged.Values())
		if err != nil {
			return failure(err.Error())
		}
		if !outcome.OK {
			return failure(outcome.Message)
		}
		return success(ActionUpdated, index+1, outcome.Message)
	default:
		rowNumbers := make([]int, len(matches))
		for i, m := range matches {
			rowNumbers[i] = m + 1
		}
		return failure(fmt.Sprintf("%v: %q on %s at rows %v", ErrAmbiguousMatch, p.ChildName, p.Date, rowNumbers))
	}
}

func (e *Engine) append(ctx context.Context, spreadsheetID, sheetName string, row model.SpreadsheetRow, action string) TaskResult {
	outcome, err := e.sheets.Append(ctx, spreadsheetID, sheetName, row.Values())
	if err != nil {
		return failure(err.Error())
	}
	if !outcome.OK {
		return failure(outcome.Message)
	}
	return success(action, 0, outcome.Message)
}

// matchingRows returns the indexes of the rows whose child name and date
// columns equal the given values. Dates compare as stored strings.
func matchingRows(rows [][]string, childName, date string) []int {
	var matches []int
	for i, values := range rows {
		row := model.RowFromValues(values)
		if row.ChildName == childName && row.Date == date {
			matches = append(matches, i)
		}
	}
	return matches
}

// findRow returns the index of the first row equal to want, or -1.
func findRow(rows [][]string, want model.SpreadsheetRow) int {
	for i, values := range rows {
		if model.RowFromValues(values) == want {
			return i
		}
	}
	return -1
}

// signedOutRow returns the index of a row of the child and date that already
// carries this sign-out, or -1.
func signedOutRow(rows [][]string, p model.SignOutPayload) int {
	for _, i := range matchingRows(rows, p.ChildName, p.Date) {
		row := model.RowFromValues(rows[i])
		if row.TimeOut == p.Time && row.GuardianSignatureOut == p.GuardianSignature {
			return i
		}
	}
	return -1
}

func recordResult(span trace.Span, result TaskResult) {
	span.SetAttributes(
		attribute.String("task.status", string(result.Status)),
		attribute.String("task.action", result.Action),
	)
	if result.Failed() {
		logrus.WithField("reason", result.Metadata).Warn("spreadsheet write failed")
	}
}
