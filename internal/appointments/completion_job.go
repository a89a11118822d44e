package appointments

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/clinic-booking-engine/internal/locker"
	"github.com/wolfman30/clinic-booking-engine/internal/slottime"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// completionLeaderKey makes sure only one instance runs the sweep at a time.
const completionLeaderKey = "appointments:completion:leader"

// CompletionJob periodically moves past Scheduled appointments to Completed.
type CompletionJob struct {
	repo   Repository
	locker locker.Locker
	logger *logging.Logger
	spec   string
	loc    *time.Location
	now    func() time.Time
	ttl    time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewCompletionJob(repo Repository, l locker.Locker, spec string, loc *time.Location, logger *logging.Logger) *CompletionJob {
	if l == nil {
		l = locker.NewLocalLocker()
	}
	if spec == "" {
		spec = "@hourly"
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CompletionJob{
		repo:   repo,
		locker: l,
		logger: logger.WithComponent("appointments.completion"),
		spec:   spec,
		loc:    loc,
		now:    time.Now,
		ttl:    2 * time.Minute,
	}
}

// Start schedules the sweep. An invalid spec falls back to @hourly.
func (j *CompletionJob) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	c := cron.New(cron.WithLocation(j.loc))
	if _, err := c.AddFunc(j.spec, func() { j.RunOnce(runCtx) }); err != nil {
		j.logger.Warn("invalid completion cron spec, falling back to @hourly", "spec", j.spec, "error", err)
		c = cron.New(cron.WithLocation(j.loc))
		_, _ = c.AddFunc("@hourly", func() { j.RunOnce(runCtx) })
	}
	c.Start()
	j.cron = c
}

// Stop cancels the run context and waits for an in-flight sweep.
func (j *CompletionJob) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// RunOnce performs one sweep if this instance wins the leader lock. It
// returns the number of appointments completed.
func (j *CompletionJob) RunOnce(ctx context.Context) int64 {
	acquired, token, err := j.locker.TryLock(ctx, completionLeaderKey, j.ttl)
	if err != nil {
		j.logger.Warn("leader lock attempt failed", "error", err)
		return 0
	}
	if !acquired {
		j.logger.Info("leader lock held elsewhere, skipping sweep")
		return 0
	}
	defer j.locker.Unlock(context.WithoutCancel(ctx), completionLeaderKey, token)

	if r, ok := j.locker.(locker.Refresher); ok {
		refreshCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			tick := time.NewTicker(j.ttl / 2)
			defer tick.Stop()
			for {
				select {
				case <-refreshCtx.Done():
					return
				case <-tick.C:
					if err := r.Refresh(refreshCtx, completionLeaderKey, token, j.ttl); err != nil {
						j.logger.Warn("leader lock refresh failed", "error", err)
					}
				}
			}
		}()
	}

	today := slottime.Day(j.now().In(j.loc)).Format(slottime.DateLayout)
	n, err := j.repo.MarkCompletedBefore(ctx, today)
	if err != nil {
		j.logger.Error("completion sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		j.logger.Info("appointments completed", "count", n, "before", today)
	}
	return n
}
