package lagcomp

import (
	"errors"
	"fmt"
	"time"
)

// Config bounds how much history is kept and how far queries may rewind.
type Config struct {
	// MaxSamples caps the number of samples kept per entity (and world
	// snapshots kept by WorldHistory).
	MaxSamples int
	// HistoryDuration drops samples older than now-HistoryDuration.
	HistoryDuration time.Duration
	// MaxRewind is the deepest a query may reach into the past.
	MaxRewind time.Duration
	// MaxExtrapolation caps forward prediction past the newest sample.
	MaxExtrapolation time.Duration
}

// DefaultConfig keeps one second of history at 60 Hz and rewinds at most 250 ms.
func DefaultConfig() Config {
	return Config{
		MaxSamples:       120,
		HistoryDuration:  time.Second,
		MaxRewind:        250 * time.Millisecond,
		MaxExtrapolation: 100 * time.Millisecond,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.MaxSamples < 2 {
		errs = append(errs, fmt.Errorf("lagcomp: MaxSamples must be >= 2, got %d", c.MaxSamples))
	}
	if c.HistoryDuration <= 0 {
		errs = append(errs, errors.New("lagcomp: HistoryDuration must be positive"))
	}
	if c.MaxRewind <= 0 || c.MaxRewind > c.HistoryDuration {
		errs = append(errs, fmt.Errorf("lagcomp: MaxRewind must be in (0, %s], got %s", c.HistoryDuration, c.MaxRewind))
	}
	if c.MaxExtrapolation < 0 {
		errs = append(errs, errors.New("lagcomp: MaxExtrapolation must not be negative"))
	}
	return errors.Join(errs...)
}
