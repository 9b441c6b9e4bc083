package convolver

import (
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Reconstruct performs the overlap-add step on an inverse-transformed
// accumulator. out[i] = acc[i] + tail[i] for the len(tail) output samples,
// then tail is replaced by acc[len(acc)/4 : len(acc)/4+len(tail)].
//
// For the engine layout len(acc) = 4*B and len(out) = len(tail) = B.
func Reconstruct(out, acc, tail []float32) {
	b := len(tail)
	out = out[:b]
	for i := range b {
		out[i] = acc[i] + tail[i]
	}
	off := len(acc) / 4
	next := acc[off : off+b]
	for i, v := range next {
		tail[i] = float32(dspcore.FlushDenormals(float64(v)))
	}
}

// Blend mixes the wet signal in out with dry: out = out*dryWet + dry*(1-dryWet).
func Blend(out, dry []float32, dryWet float32) {
	dry = dry[:len(out)]
	if dryWet == 1 {
		return
	}
	dryGain := 1 - dryWet
	for i, w := range out {
		out[i] = w*dryWet + dry[i]*dryGain
	}
}
