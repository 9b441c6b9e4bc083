package engine

import "errors"

var (
	// ErrNotPrepared is returned by Process before the first successful Prepare.
	ErrNotPrepared = errors.New("engine: not prepared")
	// ErrGeometryMismatch is returned by Process when the block's channel
	// count or length differs from the prepared configuration. The block is
	// left untouched.
	ErrGeometryMismatch = errors.New("engine: block geometry mismatch")
	// ErrTransform is returned by Process if the spectral transform fails.
	ErrTransform = errors.New("engine: spectral transform failed")

	ErrInvalidBlockSize  = errors.New("engine: block size must be a power of two >= 2")
	ErrInvalidSampleRate = errors.New("engine: sample rate must be > 0")
	ErrInvalidChannels   = errors.New("engine: channel count must be 1 or 2")
)
