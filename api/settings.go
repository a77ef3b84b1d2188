package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cubattendance/attendance"
	model2 "github.com/cubattendance/attendance/api/model"
)

// GetSettings returns the spreadsheet settings of the caller. Callers without
// settings get empty fields.
func (a Api) GetSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	settings, err := a.attendance.GetSettings(c.Request.Context(), user.Email)
	if err != nil && !errors.Is(err, attendance.ErrSettingsNotFound) {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.SettingsFromModel(settings))
}

// SaveSettings creates or replaces the spreadsheet settings of the caller.
//
// Responses:
// - 201 Created: Settings saved for the first time.
// - 200 OK: Existing settings replaced.
// - 400 Bad Request: Missing spreadsheetId or attendanceSheet.
func (a Api) SaveSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req model2.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateSettings(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	saved, created, err := a.attendance.SaveSettings(c.Request.Context(), user.Email, req.ToSettingsInput())
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, model2.SettingsFromModel(saved))
}

// GetNames lists the autocomplete names of the caller, ranked against q when given.
func (a Api) GetNames(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	names, err := a.attendance.GetNames(c.Request.Context(), user.Email, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"names": names})
}
