package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/cubattendance/attendance/api/model"

	"github.com/cubattendance/attendance"
)

// GoogleAuth exchanges a Google access token, or a Google ID token, of an
// invited user for an application token.
//
// Responses:
// - 200 OK: {"token": "...", "expiresAt": "..."}
// - 400 Bad Request: When neither token is in the body.
// - 401 Unauthorized: When Google rejects the token or the user is not invited.
func (a Api) GoogleAuth(c *gin.Context) {
	var req model2.GoogleAuth
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateGoogleAuth(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		session *attendance.Session
		err     error
	)
	if req.AccessToken != "" {
		session, err = a.attendance.AuthenticateGoogle(c.Request.Context(), req.AccessToken)
	} else {
		session, err = a.attendance.AuthenticateGoogleIDToken(c.Request.Context(), req.IDToken)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": session.Token, "expiresAt": session.ExpiresAt})
}
