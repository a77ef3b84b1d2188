package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/cubattendance/attendance"
	"github.com/cubattendance/attendance/internal/apierror"
	"github.com/cubattendance/attendance/internal/identity"
	"github.com/cubattendance/attendance/internal/taskstatus"
)

// toAPIError classifies domain errors for the HTTP layer.
func toAPIError(err error) apierror.APIError {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, attendance.ErrSettingsNotFound), errors.Is(err, identity.ErrIDTokenDisabled):
		return apierror.NewAPIError(apierror.ErrBadRequest, err.Error(), nil)
	case errors.Is(err, attendance.ErrAlreadySignedIn):
		return apierror.NewAPIError(apierror.ErrConflict, err.Error(), nil)
	case errors.Is(err, attendance.ErrUserNotInvited), errors.Is(err, identity.ErrTokenInvalid):
		return apierror.NewAPIError(apierror.ErrUnauthorized, err.Error(), nil)
	case errors.Is(err, taskstatus.ErrTaskNotFound):
		return apierror.NewAPIError(apierror.ErrNotFound, err.Error(), nil)
	default:
		return apierror.NewAPIError(apierror.ErrInternalServer, "internal server error", err.Error())
	}
}

func respondError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), gin.H{"error": apiErr.Message, "code": apiErr.Code})
}
