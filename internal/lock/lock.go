package redlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockHeld    = errors.New("lock is held by another worker")
	ErrLockNotHeld = errors.New("lock expired or is held by another worker")
)

const releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// Locker is a single-key redis lock. The token ties the lock to its holder so
// a worker whose lock expired cannot release a lock taken by another.
type Locker struct {
	client redis.UniversalClient
	key    string
	token  string
}

func NewLocker(client redis.UniversalClient, key string) *Locker {
	return &Locker{client: client, key: key, token: uuid.NewString()}
}

// SignOutKey is the lock key serialising sign-out reconciliation for one child on one day of one sheet.
func SignOutKey(spreadsheetID, sheetName, childName, date string) string {
	return fmt.Sprintf("lock:signout:%s:%s:%s:%s",
		spreadsheetID, sheetName, strings.ToLower(strings.TrimSpace(childName)), date)
}

// AutocompleteKey is the lock key taken for one window of the name autocomplete refresh.
const AutocompleteKey = "lock:autocomplete"

func (l *Locker) Key() string {
	return l.key
}

// TryLock takes the lock once without waiting.
func (l *Locker) TryLock(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Lock waits up to wait for the lock, backing off between attempts.
func (l *Locker) Lock(ctx context.Context, ttl, wait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = wait

	err := backoff.Retry(func() error {
		err := l.TryLock(ctx, ttl)
		if err != nil && !errors.Is(err, ErrLockHeld) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if errors.Is(err, ErrLockHeld) {
		return fmt.Errorf("%w: %s not acquired within %s", ErrLockHeld, l.key, wait)
	}
	return err
}

// Unlock releases the lock if this locker still holds it.
func (l *Locker) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return ErrLockNotHeld
	}
	return nil
}
