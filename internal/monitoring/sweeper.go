package monitoring

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweepable is a monitor whose expired groups can be removed.
type Sweepable interface {
	Name() string
	Sweep() int
}

// RetentionSweeper removes expired groups from every monitor on a cron schedule.
// Monitors also sweep opportunistically on record; this covers monitors that
// have gone quiet.
type RetentionSweeper struct {
	schedule string
	monitors []Sweepable
	cron     *cron.Cron
}

// NewRetentionSweeper creates a sweeper. schedule is a standard cron
// expression or a descriptor such as "@hourly".
func NewRetentionSweeper(schedule string, monitors []Sweepable) *RetentionSweeper {
	return &RetentionSweeper{
		schedule: schedule,
		monitors: monitors,
		cron:     cron.New(),
	}
}

// Start registers the sweep job and starts the cron ticker.
func (s *RetentionSweeper) Start() error {
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.SweepAll() }); err != nil {
		return err
	}
	log.Info().Str("schedule", s.schedule).Int("monitors", len(s.monitors)).Msg("Starting retention sweeper")
	s.cron.Start()
	return nil
}

// Stop halts the cron ticker and waits for a running sweep to finish, at most timeout.
func (s *RetentionSweeper) Stop(timeout time.Duration) {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		log.Warn().Msg("Retention sweep still running at shutdown")
	}
	log.Info().Msg("Stopping retention sweeper.")
}

// SweepAll sweeps every monitor and returns the number of groups removed.
func (s *RetentionSweeper) SweepAll() int {
	total := 0
	for _, m := range s.monitors {
		removed := s.sweepOne(m)
		if removed > 0 {
			log.Info().Str("monitor", m.Name()).Int("removed", removed).Msg("Swept expired groups")
		}
		total += removed
	}
	return total
}

// sweepOne isolates a failing monitor so the rest are still swept.
func (s *RetentionSweeper) sweepOne(m Sweepable) (removed int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("monitor", m.Name()).Msg("Retention sweep failed")
			removed = 0
		}
	}()
	return m.Sweep()
}
