package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
)

// Janitor periodically removes idle sessions and hands each one to onExpire
// so its document can be destroyed. It takes the same per-session lock as
// request handling, so a session is never removed mid-request.
type Janitor struct {
	store    core.SessionStore
	locker   *Locker
	ttl      time.Duration
	interval time.Duration
	onExpire func(ctx context.Context, s models.Session)
	logger   *zap.Logger
}

func NewJanitor(store core.SessionStore, locker *Locker, ttl, interval time.Duration, onExpire func(context.Context, models.Session), logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocker()
	}
	return &Janitor{store: store, locker: locker, ttl: ttl, interval: interval, onExpire: onExpire, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session janitor shutting down")
			return nil
		case now := <-ticker.C:
			if _, err := j.Sweep(ctx, now); err != nil {
				j.logger.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep removes sessions idle since before now-ttl and returns how many.
// Each candidate is re-checked under its lock; one touched in the meantime
// survives.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-j.ttl)
	ids, err := j.store.Expired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, id := range ids {
		ok, err := j.expire(ctx, id, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed", zap.Int("count", removed))
	}
	return removed, errors.Join(errs...)
}

func (j *Janitor) expire(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	unlock := j.locker.Lock(id)
	defer unlock()

	s, err := j.store.DeleteIdle(ctx, id, cutoff)
	if err != nil || s == nil {
		return false, err
	}
	if j.onExpire != nil {
		j.onExpire(ctx, *s)
	}
	return true, nil
}
