package analysis

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("analysis: invalid config")

// Weights sets how much each distance component contributes to the score.
// Zero disables a component.
type Weights struct {
	Time     float64 `json:"time"`
	Envelope float64 `json:"envelope"`
	Spectral float64 `json:"spectral"`
	Decay    float64 `json:"decay"`
}

func (w Weights) sum() float64 {
	return w.Time + w.Envelope + w.Spectral + w.Decay
}

// Config controls Compare.
type Config struct {
	Weights Weights

	// MaxLagS bounds the alignment search in seconds.
	MaxLagS float64
	// SkipS drops this many seconds after the aligned onset, so that only
	// the reverberant part of a render is scored.
	SkipS float64
	// MaxSpanS caps the compared span. Zero compares everything.
	MaxSpanS float64

	FrameSize int
	Hop       int
	Bands     int
	MinHz     float64
}

// DefaultConfig balances waveform, level, timbre and decay.
func DefaultConfig() Config {
	return Config{
		Weights:   Weights{Time: 0.2, Envelope: 0.3, Spectral: 0.25, Decay: 0.25},
		MaxLagS:   0.5,
		MaxSpanS:  12,
		FrameSize: 1024,
		Hop:       256,
		Bands:     24,
		MinHz:     40,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	w := c.Weights
	switch {
	case w.Time < 0 || w.Envelope < 0 || w.Spectral < 0 || w.Decay < 0:
		return fmt.Errorf("%w: weights must be >= 0", ErrInvalidConfig)
	case w.sum() <= 0:
		return fmt.Errorf("%w: at least one weight must be > 0", ErrInvalidConfig)
	case c.MaxLagS < 0 || c.SkipS < 0 || c.MaxSpanS < 0:
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidConfig)
	case c.FrameSize < 64 || c.FrameSize&(c.FrameSize-1) != 0:
		return fmt.Errorf("%w: frame size must be a power of two >= 64, got %d", ErrInvalidConfig, c.FrameSize)
	case c.Hop < 1 || c.Hop > c.FrameSize:
		return fmt.Errorf("%w: hop must be in [1, %d], got %d", ErrInvalidConfig, c.FrameSize, c.Hop)
	case c.Bands < 1:
		return fmt.Errorf("%w: bands must be >= 1", ErrInvalidConfig)
	case c.MinHz <= 0:
		return fmt.Errorf("%w: min frequency must be > 0", ErrInvalidConfig)
	}
	return nil
}
