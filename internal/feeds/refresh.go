package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "cyclecal/internal/log"
)

// Refresher runs a job on a cron schedule until stopped.
type Refresher struct {
	c *cron.Cron
}

// StartRefresher schedules job with a standard five-field cron spec. The
// job receives ctx and should return promptly once ctx is done. A spec of
// "off" returns a nil Refresher, which is safe to Stop.
func StartRefresher(ctx context.Context, spec string, timeout time.Duration, job func(context.Context) error) (*Refresher, error) {
	if strings.EqualFold(strings.TrimSpace(spec), "off") {
		appLog.Info("feed refresh disabled")
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		if err := job(runCtx); err != nil {
			appLog.Error("feed refresh failed", err, "elapsed", time.Since(start).String())
			return
		}
		appLog.Info("feed refresh done", "elapsed", time.Since(start).String())
	})
	if err != nil {
		return nil, fmt.Errorf("feeds: refresh spec %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("feed refresh scheduled", "spec", spec)
	return &Refresher{c: c}, nil
}

// Stop halts scheduling and waits for a running job to finish.
func (r *Refresher) Stop() {
	if r == nil {
		return
	}
	<-r.c.Stop().Done()
}
