package identity

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/cubattendance/attendance/config"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenInfoURL = "https://oauth2.test/tokeninfo"

func newTestVerifier(t *testing.T, clientIDs ...string) *GoogleVerifier {
	v := NewGoogleVerifier(config.AuthConfig{GoogleTokenInfoURL: tokenInfoURL, GoogleClientIDs: clientIDs})
	httpmock.ActivateNonDefault(v.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return v
}

func TestVerifyAccessToken_Valid(t *testing.T) {
	v := newTestVerifier(t)
	exp := time.Now().Add(time.Hour).Unix()

	httpmock.RegisterResponder(http.MethodGet, tokenInfoURL+"?access_token=good-token",
		httpmock.NewStringResponder(http.StatusOK, `{"email":"Leader@Example.com","sub":"123","exp":"`+strconv.FormatInt(exp, 10)+`"}`))

	id, err := v.VerifyAccessToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "leader@example.com", id.Email)
	assert.Equal(t, "123", id.Subject)
	assert.Equal(t, exp, id.ExpiresAt.Unix())
}

func TestVerifyAccessToken_NumericExp(t *testing.T) {
	v := newTestVerifier(t)
	exp := time.Now().Add(time.Hour).Unix()

	httpmock.RegisterResponder(http.MethodGet, tokenInfoURL+"?access_token=good-token",
		httpmock.NewStringResponder(http.StatusOK, `{"email":"leader@example.com","exp":`+strconv.FormatInt(exp, 10)+`}`))

	_, err := v.VerifyAccessToken(context.Background(), "good-token")
	assert.NoError(t, err)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	v := newTestVerifier(t)
	exp := time.Now().Add(-time.Minute).Unix()

	httpmock.RegisterResponder(http.MethodGet, tokenInfoURL+"?access_token=old-token",
		httpmock.NewStringResponder(http.StatusOK, `{"email":"leader@example.com","exp":"`+strconv.FormatInt(exp, 10)+`"}`))

	_, err := v.VerifyAccessToken(context.Background(), "old-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessToken_Rejected(t *testing.T) {
	v := newTestVerifier(t)

	httpmock.RegisterResponder(http.MethodGet, tokenInfoURL+"?access_token=bad-token",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error_description":"Invalid Value"}`))

	_, err := v.VerifyAccessToken(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessToken_WrongAudience(t *testing.T) {
	v := newTestVerifier(t, "our-client")
	exp := time.Now().Add(time.Hour).Unix()

	httpmock.RegisterResponder(http.MethodGet, tokenInfoURL+"?access_token=tok",
		httpmock.NewStringResponder(http.StatusOK, `{"email":"leader@example.com","aud":"other-client","exp":"`+strconv.FormatInt(exp, 10)+`"}`))

	_, err := v.VerifyAccessToken(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessToken_Empty(t *testing.T) {
	v := newTestVerifier(t)
	_, err := v.VerifyAccessToken(context.Background(), " ")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestVerifyAccessToken_TransportFailure(t *testing.T) {
	v := newTestVerifier(t)
	httpmock.RegisterResponder(http.MethodGet, tokenInfoURL+"?access_token=tok",
		httpmock.NewErrorResponder(errors.New("dial tcp: no route to host")))

	_, err := v.VerifyAccessToken(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

type rejectingIDTokens struct{}

func (rejectingIDTokens) VerifyIDToken(string, []string) error {
	return errors.New("wrong signature")
}

func TestVerifyIDToken_RequiresClientIDs(t *testing.T) {
	v := newTestVerifier(t)
	_, err := v.VerifyIDToken(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, ErrIDTokenDisabled)
}

func TestVerifyIDToken_Rejected(t *testing.T) {
	v := newTestVerifier(t, "our-client")
	v.idTokens = rejectingIDTokens{}

	_, err := v.VerifyIDToken(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
