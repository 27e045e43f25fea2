package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun returns the first fire time of schedule after from.
func NextRun(schedule string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("sweeper: parse schedule %q: %w", schedule, err)
	}
	return sched.Next(from), nil
}

// Start runs a sweep on every tick of schedule until ctx is cancelled.
// Ticks that fire while a sweep is still running are dropped.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("sweeper: parse schedule %q: %w", schedule, err)
	}

	timer := time.NewTimer(time.Until(sched.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			res, err := s.RunOnce(ctx)
			switch {
			case err != nil:
				log.Printf("sweeper: run: %v", err)
			case !res.Skipped:
				log.Printf("sweeper: resolved %d plan(s), %d error(s)", res.ResolvedCount, len(res.Errors))
			}
			timer.Reset(time.Until(sched.Next(time.Now())))
		}
	}
}
