package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/internal/auth"
	"github.com/cubattendance/attendance/internal/identity"
	"github.com/cubattendance/attendance/model"
)

var ErrUserNotInvited = errors.New("user has not been invited")

// Session is the application token issued after a Google sign-in.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// AuthenticateGoogle exchanges a Google access token of an invited user for
// an application token.
func (a *Attendance) AuthenticateGoogle(ctx context.Context, accessToken string) (*Session, error) {
	ident, err := a.verifier.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, ident)
}

// AuthenticateGoogleIDToken does the same as AuthenticateGoogle for a Google
// ID token. It needs the accepted client IDs to be configured.
func (a *Attendance) AuthenticateGoogleIDToken(ctx context.Context, idToken string) (*Session, error) {
	ident, err := a.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, ident)
}

func (a *Attendance) startSession(ctx context.Context, ident *identity.Identity) (*Session, error) {
	user, err := a.datasource.GetUserByEmail(ctx, ident.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, ErrUserNotInvited
	}
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := a.issuer.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	if err := a.datasource.UpdateUserToken(ctx, user.ID, token); err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authorize resolves an application token to its invited user.
func (a *Attendance) Authorize(ctx context.Context, token string) (*model.User, error) {
	claims, err := a.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := a.datasource.GetUserByEmail(ctx, claims.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, ErrUserNotInvited
	}
	return user, err
}

// Issuer exposes the token issuer, mainly so tests can mint tokens.
func (a *Attendance) Issuer() *auth.Issuer {
	return a.issuer
}

// SeedUser invites the first account when no account exists yet. It reports
// whether an account was created.
func (a *Attendance) SeedUser(ctx context.Context, name, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	count, err := a.datasource.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	user, err := a.datasource.CreateUser(ctx, strings.TrimSpace(name), email)
	if err != nil {
		return false, err
	}
	logrus.WithField("email", user.Email).Info("invited initial account")
	return true, nil
}

// SettingsInput is the spreadsheet configuration submitted by an account.
type SettingsInput struct {
	SpreadsheetID     string
	AttendanceSheet   string
	AutocompleteSheet string
}

// GetSettings returns the spreadsheet settings of an account.
func (a *Attendance) GetSettings(ctx context.Context, email string) (*model.Settings, error) {
	_, settings, err := a.accountSettings(ctx, email)
	return settings, err
}

// SaveSettings creates or replaces the spreadsheet settings of an account. It
// reports whether the settings were created.
func (a *Attendance) SaveSettings(ctx context.Context, email string, in SettingsInput) (*model.Settings, bool, error) {
	user, err := a.datasource.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, false, ErrUserNotInvited
	}
	if err != nil {
		return nil, false, err
	}

	created := false
	if _, err := a.datasource.GetSettings(ctx, user.ID); err != nil {
		if !errors.Is(err, database.ErrSettingsNotFound) {
			return nil, false, err
		}
		created = true
	}

	s := &model.Settings{
		UserID:          user.ID,
		SpreadsheetID:   strings.TrimSpace(in.SpreadsheetID),
		AttendanceSheet: strings.TrimSpace(in.AttendanceSheet),
	}
	if sheet := strings.TrimSpace(in.AutocompleteSheet); sheet != "" {
		s.AutocompleteSheet = &sheet
	}

	saved, err := a.datasource.SaveSettings(ctx, s)
	if err != nil {
		return nil, false, err
	}
	a.invalidateNames(ctx, user.ID)
	return saved, created, nil
}
