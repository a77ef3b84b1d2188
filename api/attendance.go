package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cubattendance/attendance/api/middleware"
	model2 "github.com/cubattendance/attendance/api/model"
	"github.com/cubattendance/attendance/model"
)

func currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated request"})
	}
	return user, ok
}

// SignIn stages a sign-in and queues its append to the attendance sheet.
//
// Responses:
// - 202 Accepted: The staged sign-in with the id of the replicating task.
// - 400 Bad Request: Invalid body or no spreadsheet settings saved yet.
// - 409 Conflict: The cub is already signed in on that date.
func (a Api) SignIn(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req model2.SignIn
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateSignIn(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	sub, err := a.attendance.RecordSignIn(c.Request.Context(), user.Email, req.ToSignIn())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, model2.SignInResponseFromSubmission(sub))
}

// SignOut stages a sign-out and queues its reconciliation against the
// attendance sheet.
//
// Responses:
// - 202 Accepted: The staged sign-out with the id of the replicating task.
// - 400 Bad Request: Invalid body or no spreadsheet settings saved yet.
func (a Api) SignOut(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req model2.SignOut
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateSignOut(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	sub, err := a.attendance.RecordSignOut(c.Request.Context(), user.Email, req.ToSignOut())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, model2.SignOutResponseFromSubmission(sub))
}

// GetTask reports the replication status of a sign-in or sign-out.
func (a Api) GetTask(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	rec, err := a.attendance.TaskStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.TaskResponseFromRecord(rec))
}
