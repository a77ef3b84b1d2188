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
package model

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/cubattendance/attendance"
	"github.com/cubattendance/attendance/model"
)

const (
	TimeFormat = "15:04:05"
	DateFormat = "2006-01-02"
)

type GoogleAuth struct {
	AccessToken string `json:"accessToken"`
	IDToken     string `json:"idToken"`
}

type SignIn struct {
	CubName         string `json:"cubName"`
	CubSignature    string `json:"cubSignature"`
	ParentSignature string `json:"parentSignature"`
	Time            string `json:"time"`
	Date            string `json:"date"`
}

type SignOut struct {
	CubName         string `json:"cubName"`
	ParentSignature string `json:"parentSignature"`
	Time            string `json:"time"`
	Date            string `json:"date"`
}

type Settings struct {
	SpreadsheetID     string `json:"spreadsheetId"`
	AttendanceSheet   string `json:"attendanceSheet"`
	AutocompleteSheet string `json:"autocompleteSheet"`
}

type SignInResponse struct {
	CubName           string `json:"cubName"`
	CubSignature      string `json:"cubSignature"`
	ParentSignatureIn string `json:"parentSignatureIn"`
	TimeIn            string `json:"timeIn"`
	DateIn            string `json:"dateIn"`
	TaskID            string `json:"taskId,omitempty"`
}

type SignOutResponse struct {
	CubName            string `json:"cubName"`
	ParentSignatureOut string `json:"parentSignatureOut"`
	TimeOut            string `json:"timeOut"`
	DateOut            string `json:"dateOut"`
	TaskID             string `json:"taskId,omitempty"`
}

type TaskResponse struct {
	TaskID   string `json:"taskId"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Metadata string `json:"metadata,omitempty"`
}

func layout(format, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if _, err := time.Parse(format, s); err != nil {
			return errors.New(message)
		}
		return nil
	}
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func (g *GoogleAuth) ValidateGoogleAuth() error {
	if g.AccessToken == "" && g.IDToken == "" {
		return errors.New("accessToken is required")
	}
	return nil
}

func (s *SignIn) ValidateSignIn() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.CubName, validation.Required, validation.By(notBlank)),
		validation.Field(&s.CubSignature, validation.Required),
		validation.Field(&s.ParentSignature, validation.Required),
		validation.Field(&s.Time, validation.Required, validation.By(layout(TimeFormat, "must be formatted as HH:MM:SS"))),
		validation.Field(&s.Date, validation.Required, validation.By(layout(DateFormat, "must be formatted as YYYY-MM-DD"))),
	)
}

func (s *SignOut) ValidateSignOut() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.CubName, validation.Required, validation.By(notBlank)),
		validation.Field(&s.ParentSignature, validation.Required),
		validation.Field(&s.Time, validation.Required, validation.By(layout(TimeFormat, "must be formatted as HH:MM:SS"))),
		validation.Field(&s.Date, validation.Required, validation.By(layout(DateFormat, "must be formatted as YYYY-MM-DD"))),
	)
}

func (s *Settings) ValidateSettings() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.SpreadsheetID, validation.Required, validation.By(notBlank)),
		validation.Field(&s.AttendanceSheet, validation.Required, validation.By(notBlank)),
	)
}

func (s *SignIn) ToSignIn() attendance.SignIn {
	return attendance.SignIn{
		ChildName:         s.CubName,
		ChildSignature:    s.CubSignature,
		GuardianSignature: s.ParentSignature,
		Time:              s.Time,
		Date:              s.Date,
	}
}

func (s *SignOut) ToSignOut() attendance.SignOut {
	return attendance.SignOut{
		ChildName:         s.CubName,
		GuardianSignature: s.ParentSignature,
		Time:              s.Time,
		Date:              s.Date,
	}
}

func (s *Settings) ToSettingsInput() attendance.SettingsInput {
	return attendance.SettingsInput{
		SpreadsheetID:     s.SpreadsheetID,
		AttendanceSheet:   s.AttendanceSheet,
		AutocompleteSheet: s.AutocompleteSheet,
	}
}

// SettingsFromModel renders stored settings. Missing settings render as empty fields.
func SettingsFromModel(s *model.Settings) Settings {
	if s == nil {
		return Settings{}
	}
	out := Settings{SpreadsheetID: s.SpreadsheetID, AttendanceSheet: s.AttendanceSheet}
	if s.AutocompleteSheet != nil {
		out.AutocompleteSheet = *s.AutocompleteSheet
	}
	return out
}

func SignInResponseFromSubmission(sub *attendance.Submission) SignInResponse {
	rec := sub.Record
	resp := SignInResponse{
		CubName:           rec.ChildName,
		CubSignature:      rec.ChildSignatureIn,
		ParentSignatureIn: rec.GuardianSignatureIn,
		TimeIn:            rec.TimeIn,
		DateIn:            rec.DateIn,
	}
	if sub.Task != nil {
		resp.TaskID = sub.Task.TaskID
	}
	return resp
}

func SignOutResponseFromSubmission(sub *attendance.Submission) SignOutResponse {
	rec := sub.Record
	resp := SignOutResponse{CubName: rec.ChildName}
	if rec.GuardianSignatureOut != nil {
		resp.ParentSignatureOut = *rec.GuardianSignatureOut
	}
	if rec.TimeOut != nil {
		resp.TimeOut = *rec.TimeOut
	}
	if rec.DateOut != nil {
		resp.DateOut = *rec.DateOut
	}
	if sub.Task != nil {
		resp.TaskID = sub.Task.TaskID
	}
	return resp
}

func TaskResponseFromRecord(rec *model.TaskRecord) TaskResponse {
	return TaskResponse{
		TaskID:   rec.TaskID,
		Name:     rec.Name,
		Status:   string(rec.Status),
		Metadata: rec.Metadata,
	}
}
