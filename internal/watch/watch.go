// Package watch re-runs a job on a cron schedule until its context ends.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "concordiacal/internal/log"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Run executes job once right away, then on every tick of spec (standard
// five-field cron syntax) until ctx is canceled. Job errors are logged and
// do not stop the schedule. Overlapping ticks are skipped.
func Run(ctx context.Context, spec string, job Job) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	run := func() {
		if err := job(ctx); err != nil {
			appLog.Error("watch job failed", err, "schedule", spec)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(run))

	run()
	c.Start()
	appLog.Info("watch started", "schedule", spec, "next", sched.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	appLog.Info("watch stopped")
	return nil
}
