package doctors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/locker"
	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

const maxSaveAttempts = 3

// Aggregates is the only write path to a doctor's calendar and queue. Every
// mutation runs under the doctor's lock and is saved with a version check, so
// precondition checks and the commit are never interleaved with another
// writer for the same doctor.
type Aggregates struct {
	store    Store
	locker   locker.Locker
	lockTTL  time.Duration
	lockWait time.Duration
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

func NewAggregates(store Store, l locker.Locker, logger *logging.Logger) *Aggregates {
	if store == nil {
		panic("doctors: store required")
	}
	if l == nil {
		l = locker.NewLocalLocker()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregates{
		store:    store,
		locker:   l,
		lockTTL:  10 * time.Second,
		lockWait: 5 * time.Second,
		logger:   logger,
	}
}

func (a *Aggregates) WithLockTiming(ttl, wait time.Duration) *Aggregates {
	if ttl > 0 {
		a.lockTTL = ttl
	}
	if wait > 0 {
		a.lockWait = wait
	}
	return a
}

func (a *Aggregates) WithMetrics(m *metrics.SchedulingMetrics) *Aggregates {
	a.metrics = m
	return a
}

// Store exposes the underlying store for read paths.
func (a *Aggregates) Store() Store {
	return a.store
}

// Get loads a snapshot without locking.
func (a *Aggregates) Get(ctx context.Context, doctorID string) (*Doctor, error) {
	return a.store.Get(ctx, doctorID)
}

// Mutate loads the doctor under its lock, applies fn to a private copy and
// saves it. When fn returns an error nothing is written and the error is
// returned unchanged.
func (a *Aggregates) Mutate(ctx context.Context, doctorID string, fn func(d *Doctor) error) (*Doctor, error) {
	return a.MutateAndCommit(ctx, doctorID, fn, nil, nil)
}

// MutateAndCommit is Mutate followed by commit, which runs after the save
// while the doctor's lock is still held. Writes to other stores that mirror
// the calendar belong in commit so no other mutation of the doctor can land
// between the two. When commit fails, undo is applied to a fresh copy and
// saved under the same lock, and the commit error is returned.
func (a *Aggregates) MutateAndCommit(ctx context.Context, doctorID string, fn func(d *Doctor) error,
	commit func(ctx context.Context, d *Doctor) error, undo func(d *Doctor)) (*Doctor, error) {
	start := time.Now()
	release, err := locker.Acquire(ctx, a.locker, lockKey(doctorID), a.lockTTL, a.lockWait)
	if err != nil {
		return nil, fmt.Errorf("doctors: lock %s: %w", doctorID, err)
	}
	defer release()
	a.metrics.ObserveLockWait(time.Since(start).Seconds())

	d, err := a.apply(ctx, doctorID, fn)
	if err != nil || commit == nil {
		return d, err
	}
	if err := commit(ctx, d); err != nil {
		if undo != nil {
			revert := func(d *Doctor) error {
				undo(d)
				return nil
			}
			if _, uerr := a.apply(context.WithoutCancel(ctx), doctorID, revert); uerr != nil {
				a.logger.Error("doctor undo failed", "doctor_id", doctorID, "error", uerr)
			}
		}
		return nil, err
	}
	return d, nil
}

// apply is the load, change, versioned save loop. The caller holds the lock.
func (a *Aggregates) apply(ctx context.Context, doctorID string, fn func(d *Doctor) error) (*Doctor, error) {
	for attempt := 1; ; attempt++ {
		d, err := a.store.Get(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		if err := fn(d); err != nil {
			return nil, err
		}
		err = a.store.Save(ctx, d)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}
		a.metrics.ObserveMutationConflict()
		a.logger.Warn("doctor version conflict, retrying", "doctor_id", doctorID, "attempt", attempt)
	}
}

func lockKey(doctorID string) string {
	return "doctor:" + doctorID
}
