package cache

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher re-fetches every cached address on a fixed schedule so signing-key
// rotations are picked up ahead of entry expiry. A failed refresh is logged
// and leaves the existing entry in place; it never erases valid data.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	timeout  time.Duration
	logger   logrus.FieldLogger
	cron     *cron.Cron
}

// NewRefresher builds a refresher that sweeps every interval. Each address
// refresh gets its own timeout (defaults to 30s).
func NewRefresher(c *Cache, interval time.Duration, logger logrus.FieldLogger) *Refresher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Refresher{
		cache:    c,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start begins the background schedule. Call Stop to halt it.
func (r *Refresher) Start() {
	r.cron.Schedule(cron.Every(r.interval), cron.FuncJob(r.sweep))
	r.cron.Start()
}

// Stop halts the schedule; a sweep already in flight runs to completion.
func (r *Refresher) Stop() {
	r.cron.Stop()
}

func (r *Refresher) sweep() {
	for _, addr := range r.cache.Addresses() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		_, err := r.cache.Refresh(ctx, addr)
		cancel()
		if err != nil {
			r.logger.WithField("address", addr).WithError(err).Warn("scheduled metadata refresh failed")
			continue
		}
		r.logger.WithField("address", addr).Debug("metadata refreshed")
	}
}
