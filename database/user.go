package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cubattendance/attendance/model"
)

var ErrUserNotFound = errors.New("user not found")

// CreateUser invites an account. Emails are stored lower-cased.
func (d *Datasource) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	u := &model.User{Name: name, Email: strings.ToLower(strings.TrimSpace(email))}
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO attendance.users (name, email) VALUES ($1, $2)
		RETURNING id, created_at
	`, u.Name, u.Email).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail retrieves an invited account.
func (d *Datasource) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	var token sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, name, email, token, created_at FROM attendance.users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Name, &u.Email, &token, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Token = nullableString(token)
	return u, nil
}

// UpdateUserToken stores the last token issued to an account.
func (d *Datasource) UpdateUserToken(ctx context.Context, userID int64, token string) error {
	res, err := d.Conn.ExecContext(ctx, `UPDATE attendance.users SET token = $1 WHERE id = $2`, token, userID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrUserNotFound)
}

func (d *Datasource) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := d.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance.users`).Scan(&n)
	return n, err
}
