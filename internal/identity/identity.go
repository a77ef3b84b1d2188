// Package identity verifies Google credentials presented by guardians signing in.
package identity

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cubattendance/attendance/config"
	"github.com/cubattendance/attendance/internal/request"
	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/sirupsen/logrus"
)

var (
	ErrTokenInvalid    = errors.New("google token is invalid or expired")
	ErrIDTokenDisabled = errors.New("google ID token sign-in requires auth.google_client_ids")
)

// Identity is the verified subject of a Google credential.
type Identity struct {
	Email     string
	Name      string
	Subject   string
	ExpiresAt time.Time
}

type Verifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*Identity, error)
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

type idTokenVerifier interface {
	VerifyIDToken(idToken string, audience []string) error
}

// GoogleVerifier checks OAuth2 access tokens against the tokeninfo endpoint
// and ID tokens against Google's signing certificates.
type GoogleVerifier struct {
	tokenInfoURL string
	clientIDs    []string
	http         *http.Client
	idTokens     idTokenVerifier
	now          func() time.Time
}

func NewGoogleVerifier(cfg config.AuthConfig) *GoogleVerifier {
	return &GoogleVerifier{
		tokenInfoURL: cfg.GoogleTokenInfoURL,
		clientIDs:    cfg.GoogleClientIDs,
		http:         &http.Client{Timeout: 10 * time.Second},
		idTokens:     &googleAuthIDTokenVerifier.Verifier{},
		now:          time.Now,
	}
}

// unixSeconds accepts the exp claim either as a JSON number or as a quoted one.
type unixSeconds int64

func (u *unixSeconds) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*u = unixSeconds(n)
	return nil
}

type tokenInfo struct {
	Email            string      `json:"email"`
	Subject          string      `json:"sub"`
	Audience         string      `json:"aud"`
	Exp              unixSeconds `json:"exp"`
	ErrorDescription string      `json:"error_description"`
}

// VerifyAccessToken resolves an OAuth2 access token to the account it was issued for.
func (v *GoogleVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrTokenInvalid
	}

	u := v.tokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var info tokenInfo
	resp, err := request.Call(v.http, req, &info)
	if err != nil && resp == nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || info.ErrorDescription != "" {
		logrus.WithField("status", resp.StatusCode).Info("google tokeninfo rejected access token")
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	expiresAt := time.Unix(int64(info.Exp), 0)
	if !expiresAt.After(v.now()) {
		logrus.Info("google access token is expired")
		return nil, ErrTokenInvalid
	}
	if len(v.clientIDs) > 0 && !contains(v.clientIDs, info.Audience) {
		logrus.WithField("aud", info.Audience).Info("google access token issued to an unknown client")
		return nil, ErrTokenInvalid
	}
	if info.Email == "" {
		return nil, ErrTokenInvalid
	}

	return &Identity{Email: strings.ToLower(info.Email), Subject: info.Subject, ExpiresAt: expiresAt}, nil
}

// VerifyIDToken checks the signature, audience and expiry of a Google ID token.
// It needs at least one configured client id.
func (v *GoogleVerifier) VerifyIDToken(_ context.Context, idToken string) (*Identity, error) {
	if len(v.clientIDs) == 0 {
		return nil, ErrIDTokenDisabled
	}
	if err := v.idTokens.VerifyIDToken(idToken, v.clientIDs); err != nil {
		logrus.WithError(err).Info("google ID token rejected")
		return nil, ErrTokenInvalid
	}

	claims, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil || claims.Email == "" {
		return nil, ErrTokenInvalid
	}
	return &Identity{
		Email:   strings.ToLower(claims.Email),
		Name:    claims.Name,
		Subject: claims.Sub,
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
