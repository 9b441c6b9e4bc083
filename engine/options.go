package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/irfile"
	"github.com/cwbudde/algo-dynconv/param"
)

// Decoder turns an IR file path into samples.
type Decoder func(path string) (*irfile.IR, error)

type config struct {
	channels  int
	logger    logrus.FieldLogger
	decoder   Decoder
	normalize bool
	params    param.Snapshot
}

func defaultConfig() config {
	return config{
		channels:  2,
		logger:    logrus.StandardLogger(),
		decoder:   irfile.Decode,
		normalize: true,
		params:    param.Defaults,
	}
}

// Option configures an Engine.
type Option func(*config)

// WithChannels sets the number of processed channels (1 or 2). Other values
// make Prepare fail with ErrInvalidChannels.
func WithChannels(n int) Option {
	return func(c *config) {
		c.channels = n
	}
}

// WithLogger sets the logger used for control-path events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDecoder replaces the file decoder used by LoadIRFile.
func WithDecoder(d Decoder) Option {
	return func(c *config) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithNormalization enables or disables peak normalization of loaded IRs.
// Enabled by default.
func WithNormalization(enabled bool) Option {
	return func(c *config) {
		c.normalize = enabled
	}
}

// WithInitialParams sets the parameter values of the new engine.
func WithInitialParams(s param.Snapshot) Option {
	return func(c *config) {
		c.params = s
	}
}
