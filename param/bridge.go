// Package param carries the engine's control parameters from the control
// path to the render path without locks.
package param

import (
	"math"
	"sync/atomic"
)

// Value is a float32 in [0, 1] that can be written and read concurrently.
// The zero value holds 0.
type Value struct {
	bits atomic.Uint32
}

// NewValue returns a Value initialized to v (clamped).
func NewValue(v float32) *Value {
	p := &Value{}
	p.Store(v)
	return p
}

// Store clamps v to [0, 1] and publishes it. NaN is stored as 0.
func (p *Value) Store(v float32) {
	p.bits.Store(math.Float32bits(Clamp(v)))
}

// Load returns the most recently stored value.
func (p *Value) Load() float32 {
	return math.Float32frombits(p.bits.Load())
}

// Clamp limits v to [0, 1], mapping NaN to 0.
func Clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v >= 0:
		return v
	default:
		return 0
	}
}

// Snapshot is a consistent copy of the parameters for one block.
type Snapshot struct {
	FilePosition float32
	FileLength   float32
	DryWet       float32
}

// Defaults are the parameter values of a new engine: the whole IR active and
// an even dry/wet mix.
var Defaults = Snapshot{
	FilePosition: 0,
	FileLength:   1,
	DryWet:       0.5,
}

// Bridge groups the three control parameters.
type Bridge struct {
	FilePosition Value
	FileLength   Value
	DryWet       Value
}

// NewBridge returns a bridge initialized to s.
func NewBridge(s Snapshot) *Bridge {
	b := &Bridge{}
	b.Set(s)
	return b
}

// Set stores all three parameters. Each store is independent; a concurrent
// Snapshot may observe a mix of old and new values.
func (b *Bridge) Set(s Snapshot) {
	b.FilePosition.Store(s.FilePosition)
	b.FileLength.Store(s.FileLength)
	b.DryWet.Store(s.DryWet)
}

// Snapshot reads each parameter once.
func (b *Bridge) Snapshot() Snapshot {
	return Snapshot{
		FilePosition: b.FilePosition.Load(),
		FileLength:   b.FileLength.Load(),
		DryWet:       b.DryWet.Load(),
	}
}
