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
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// SignInTaskID returns the task identifier used to replicate the sign-in of a staging record.
func SignInTaskID(attendanceID string) string {
	return "signin_" + attendanceID
}

// SignOutTaskID returns the task identifier used to replicate the sign-out of a staging record.
func SignOutTaskID(attendanceID string) string {
	return "signout_" + attendanceID
}

// TaskInstanceID returns the id of the nth redispatch of a task. The first
// dispatch keeps the base id.
func TaskInstanceID(baseID string, n int) string {
	if n <= 0 {
		return baseID
	}
	return fmt.Sprintf("%s%s%d", baseID, retrySuffix, n)
}

const retrySuffix = "_retry"

// AttendanceIDFromTaskID strips the task prefix and any redispatch suffix from
// a task identifier.
func AttendanceIDFromTaskID(taskID string) string {
	for _, prefix := range []string{"signin_", "signout_"} {
		if strings.HasPrefix(taskID, prefix) {
			id, _, _ := strings.Cut(strings.TrimPrefix(taskID, prefix), retrySuffix)
			return id
		}
	}
	return taskID
}
