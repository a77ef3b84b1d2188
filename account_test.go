package attendance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/internal/auth"
	"github.com/cubattendance/attendance/internal/identity"
	"github.com/cubattendance/attendance/model"
)

func TestAuthenticateGoogleIssuesToken(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	invited(env)
	env.verifier.On("VerifyAccessToken", mock.Anything, "ya29.token").Return(&identity.Identity{Email: guardianEmail}, nil)
	env.ds.On("UpdateUserToken", mock.Anything, int64(7), mock.AnythingOfType("string")).Return(nil)

	session, err := env.attendance.AuthenticateGoogle(context.Background(), "ya29.token")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, int64(7), session.User.ID)

	claims, err := env.attendance.Issuer().Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, guardianEmail, claims.Email)
	env.ds.AssertExpectations(t)
}

func TestAuthenticateGoogleRejectsUninvitedUser(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	env.verifier.On("VerifyAccessToken", mock.Anything, "ya29.token").Return(&identity.Identity{Email: "stranger@example.com"}, nil)
	env.ds.On("GetUserByEmail", mock.Anything, "stranger@example.com").Return(nil, database.ErrUserNotFound)

	_, err := env.attendance.AuthenticateGoogle(context.Background(), "ya29.token")
	assert.ErrorIs(t, err, ErrUserNotInvited)
	env.ds.AssertNotCalled(t, "UpdateUserToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticateGoogleRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	env.verifier.On("VerifyAccessToken", mock.Anything, "expired").Return(nil, identity.ErrTokenInvalid)

	_, err := env.attendance.AuthenticateGoogle(context.Background(), "expired")
	assert.ErrorIs(t, err, identity.ErrTokenInvalid)
}

func TestAuthenticateGoogleIDToken(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	invited(env)
	env.verifier.On("VerifyIDToken", mock.Anything, "id-token").Return(&identity.Identity{Email: guardianEmail}, nil)
	env.ds.On("UpdateUserToken", mock.Anything, int64(7), mock.AnythingOfType("string")).Return(nil)

	session, err := env.attendance.AuthenticateGoogleIDToken(context.Background(), "id-token")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	invited(env)

	token, _, err := env.attendance.Issuer().Issue(guardianEmail)
	require.NoError(t, err)

	user, err := env.attendance.Authorize(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, guardianEmail, user.Email)

	_, err = env.attendance.Authorize(context.Background(), token+"x")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestAuthorizeRevokedUser(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	env.ds.On("GetUserByEmail", mock.Anything, "gone@example.com").Return(nil, database.ErrUserNotFound)

	token, _, err := env.attendance.Issuer().Issue("gone@example.com")
	require.NoError(t, err)

	_, err = env.attendance.Authorize(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserNotInvited)
}

func TestSeedUser(t *testing.T) {
	t.Run("empty users table", func(t *testing.T) {
		env := newTestEnv(t, newMemorySheet())
		env.ds.On("CountUsers", mock.Anything).Return(0, nil)
		env.ds.On("CreateUser", mock.Anything, "Admin", "admin@example.com").Return(&model.User{ID: 1, Email: "admin@example.com"}, nil)

		created, err := env.attendance.SeedUser(context.Background(), " Admin ", "admin@example.com")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("existing users", func(t *testing.T) {
		env := newTestEnv(t, newMemorySheet())
		env.ds.On("CountUsers", mock.Anything).Return(3, nil)

		created, err := env.attendance.SeedUser(context.Background(), "Admin", "admin@example.com")
		require.NoError(t, err)
		assert.False(t, created)
		env.ds.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no admin configured", func(t *testing.T) {
		env := newTestEnv(t, newMemorySheet())

		created, err := env.attendance.SeedUser(context.Background(), "", "")
		require.NoError(t, err)
		assert.False(t, created)
		env.ds.AssertNotCalled(t, "CountUsers", mock.Anything)
	})
}

func TestSaveSettings(t *testing.T) {
	t.Run("creates", func(t *testing.T) {
		env := newTestEnv(t, newMemorySheet())
		invited(env)
		env.ds.On("GetSettings", mock.Anything, int64(7)).Return(nil, database.ErrSettingsNotFound)
		env.ds.On("SaveSettings", mock.Anything, mock.MatchedBy(func(s *model.Settings) bool {
			return s.SpreadsheetID == "sheet-123" && s.AttendanceSheet == "Attendance" && s.AutocompleteSheet == nil
		})).Return(&model.Settings{ID: 1, UserID: 7, SpreadsheetID: "sheet-123", AttendanceSheet: "Attendance"}, nil)

		saved, created, err := env.attendance.SaveSettings(context.Background(), guardianEmail, SettingsInput{
			SpreadsheetID:     "  sheet-123 ",
			AttendanceSheet:   "Attendance ",
			AutocompleteSheet: "   ",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(1), saved.ID)
	})

	t.Run("updates", func(t *testing.T) {
		env := newTestEnv(t, newMemorySheet())
		invited(env)
		configured(env)
		env.ds.On("SaveSettings", mock.Anything, mock.MatchedBy(func(s *model.Settings) bool {
			return s.AutocompleteSheet != nil && *s.AutocompleteSheet == "Names"
		})).Return(&model.Settings{ID: 1, UserID: 7}, nil)

		_, created, err := env.attendance.SaveSettings(context.Background(), guardianEmail, SettingsInput{
			SpreadsheetID:     "sheet-123",
			AttendanceSheet:   "Attendance",
			AutocompleteSheet: "Names",
		})
		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestGetSettingsMissing(t *testing.T) {
	env := newTestEnv(t, newMemorySheet())
	invited(env)
	env.ds.On("GetSettings", mock.Anything, int64(7)).Return(nil, database.ErrSettingsNotFound)

	_, err := env.attendance.GetSettings(context.Background(), guardianEmail)
	assert.ErrorIs(t, err, ErrSettingsNotFound)
}
