package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cubattendance/attendance"
	"github.com/cubattendance/attendance/internal/auth"
	"github.com/cubattendance/attendance/model"
)

const userKey = "attendance.user"

// Authorizer resolves an application token to the invited user it was issued to.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*model.User, error)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuthMiddleware requires a Bearer token issued by /v1/auth/google and puts
// the resolved user on the request context.
//
// Responses:
// - 400 Bad Request: When the Authorization header carries no Bearer token.
// - 401 Unauthorized: When the token is invalid, expired or its user is no longer invited.
// - 500 Internal Server Error: When the user lookup fails.
func JWTAuthMiddleware(authorizer Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing bearer token in Authorization header"})
			return
		}

		user, err := authorizer.Authorize(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrTokenInvalid):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrTokenInvalid.Error()})
			return
		case errors.Is(err, attendance.ErrUserNotInvited):
			logrus.Info("request from uninvited user")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": attendance.ErrUserNotInvited.Error()})
			return
		default:
			logrus.WithError(err).Error("failed to authorize request")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to authorize request"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user resolved by JWTAuthMiddleware.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}
