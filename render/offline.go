// Package render drives an engine over whole signals for offline tools.
package render

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-dynconv/engine"
)

var ErrNoInput = errors.New("render: empty input")

// Options controls an offline render.
type Options struct {
	// TailFrames of silence are appended so the IR can ring out.
	TailFrames int
	// Position, if set, is called once per block with the render progress in
	// [0, 1] and its result is applied as the file position.
	Position func(progress float64) float32
}

// MatchChannels adapts in to n channels. Mono input is shared by every
// output, a mono target gets the average of all inputs, and otherwise
// surplus input channels are dropped.
func MatchChannels(in [][]float32, n int) [][]float32 {
	switch {
	case len(in) == n:
		return in
	case len(in) == 1:
		out := make([][]float32, n)
		for ch := range out {
			out[ch] = in[0]
		}
		return out
	case n == 1:
		frames := len(in[0])
		mono := make([]float32, frames)
		for _, samples := range in {
			for i := 0; i < frames && i < len(samples); i++ {
				mono[i] += samples[i]
			}
		}
		g := 1 / float32(len(in))
		for i := range mono {
			mono[i] *= g
		}
		return [][]float32{mono}
	default:
		return in[:n]
	}
}

// Offline processes in through e block by block and returns the output,
// which is len(in[0]) + TailFrames frames long.
func Offline(e *engine.Engine, in [][]float32, opts Options) ([][]float32, error) {
	if len(in) == 0 || len(in[0]) == 0 {
		return nil, ErrNoInput
	}
	bs := e.BlockSize()
	if bs == 0 {
		return nil, engine.ErrNotPrepared
	}
	in = MatchChannels(in, e.Channels())

	frames := len(in[0]) + max(0, opts.TailFrames)
	out := make([][]float32, len(in))
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	block := make([][]float32, len(in))
	for ch := range block {
		block[ch] = make([]float32, bs)
	}

	for pos := 0; pos < frames; pos += bs {
		if opts.Position != nil {
			e.SetFilePosition(opts.Position(float64(pos) / float64(frames)))
		}
		for ch, samples := range in {
			clear(block[ch])
			if pos < len(samples) {
				copy(block[ch], samples[pos:])
			}
		}
		if err := e.Process(block); err != nil {
			return nil, fmt.Errorf("render: block at frame %d: %w", pos, err)
		}
		for ch := range out {
			copy(out[ch][pos:], block[ch])
		}
	}
	return out, nil
}
