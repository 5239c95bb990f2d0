package telemetry

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = time.Hour
	DefaultSampleSize    = 100
	DefaultTopN          = 10
	DefaultRateWindow    = time.Minute
	DefaultRecentLimit   = 1000
)

type options struct {
	clock         func() time.Time
	retention     time.Duration
	sweepInterval time.Duration
	sampleSize    int
	topN          int
	rateWindow    time.Duration
	recentLimit   int
	logger        *zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*options)

// WithClock replaces time.Now. Tests use it to pin timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRetention sets how long a group may go unseen before the sweep drops it. Default: 24h.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithSweepInterval sets how often Record sweeps opportunistically. Default: 1h.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// WithSampleSize bounds the per-group sample ring. Default: 100.
func WithSampleSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sampleSize = n
		}
	}
}

// WithTopN sets how many groups a snapshot lists. Default: 10.
func WithTopN(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.topN = n
		}
	}
}

// WithRateWindow sets the trailing window of the recent rate. Default: 60s.
func WithRateWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.rateWindow = d
		}
	}
}

// WithRecentLimit bounds how many raw events are kept for display. Default: 1000.
func WithRecentLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.recentLimit = n
		}
	}
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

func defaultOptions() options {
	return options{
		clock:         time.Now,
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		sampleSize:    DefaultSampleSize,
		topN:          DefaultTopN,
		rateWindow:    DefaultRateWindow,
		recentLimit:   DefaultRecentLimit,
	}
}

func (o options) log() zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}
	return log.Logger
}
