package scheduler

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PassFunc runs one collection pass. Errors are logged by the loop and never
// stop it.
type PassFunc func(ctx context.Context) error

const clockLayout = "15:04"

// defaultPoll is the coarse resolution of the daily schedule; the configured
// wall-clock time is matched within one poll, not precisely.
const defaultPoll = time.Minute

// RunEvery triggers fn at the given interval until the context is canceled.
// When immediate is set the first pass runs right away. The ticker does not
// queue: if a pass outlives the interval the overdue tick is skipped and
// logged.
func RunEvery(ctx context.Context, interval time.Duration, immediate bool, fn PassFunc) {
	log := zap.S().Named("scheduler")

	run := func() {
		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Errorf("pass failed: %v", err)
		}
		if elapsed := time.Since(start); elapsed > interval {
			log.Warnf("pass took %s, longer than the %s interval; overdue ticks are skipped", elapsed, interval)
		}
	}

	if immediate {
		run()
	}

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: 100 * time.Millisecond})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		run()
	}
}

// Daily triggers fn once per day at a configured wall-clock time.
type Daily struct {
	// At is the local wall-clock trigger time in 24h "HH:MM" form.
	At string
	// RunNow additionally runs one pass at startup without altering the
	// next scheduled occurrence.
	RunNow bool

	// Poll overrides the schedule check interval; for tests.
	Poll time.Duration
}

// Run blocks until the context is canceled. It returns an error only when
// the configured trigger time cannot be parsed.
func (d Daily) Run(ctx context.Context, fn PassFunc) error {
	log := zap.S().Named("scheduler")

	next, err := NextOccurrence(time.Now(), d.At)
	if err != nil {
		return err
	}

	poll := d.Poll
	if poll <= 0 {
		poll = defaultPoll
	}

	if d.RunNow {
		log.Info("run-now requested, executing pass immediately")
		if err := fn(ctx); err != nil {
			log.Errorf("pass failed: %v", err)
		}
	}

	log.Infof("next scheduled run: %s", next.Format(time.RFC3339))

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if time.Now().Before(next) {
			continue
		}

		if err := fn(ctx); err != nil {
			log.Errorf("pass failed: %v", err)
		}

		next, _ = NextOccurrence(time.Now(), d.At)
		log.Infof("next scheduled run: %s", next.Format(time.RFC3339))
	}
}

// NextOccurrence computes the first occurrence of the "HH:MM" wall-clock
// time strictly after now.
func NextOccurrence(now time.Time, at string) (time.Time, error) {
	clock, err := time.Parse(clockLayout, at)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid schedule time %q, want HH:MM", at)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
