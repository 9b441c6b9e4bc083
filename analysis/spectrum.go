package analysis

import (
	"math"
	"math/bits"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

// crossCorrelate returns r[lag] = sum_i ref[i+lag]*cand[i] for every lag,
// negative lags stored at len(r)+lag.
func crossCorrelate(ref, cand []float64) ([]float64, error) {
	size := nextPow2(len(ref) + len(cand))
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return nil, err
	}

	a := make([]float64, size)
	b := make([]float64, size)
	copy(a, ref)
	copy(b, cand)

	fa := make([]complex128, size/2+1)
	fb := make([]complex128, size/2+1)
	if err := plan.Forward(fa, a); err != nil {
		return nil, err
	}
	if err := plan.Forward(fb, b); err != nil {
		return nil, err
	}
	for k := range fa {
		fa[k] *= complex(real(fb[k]), -imag(fb[k]))
	}
	if err := plan.Inverse(a, fa); err != nil {
		return nil, err
	}
	return a, nil
}

// bandEnergies splits x into Hann-windowed frames and returns the power in
// each of c.Bands log-spaced bands per frame.
func bandEnergies(x []float64, sampleRate int, c Config) ([][]float64, error) {
	if len(x) < c.FrameSize {
		return nil, nil
	}
	win, err := window.Hann(c.FrameSize, window.WithPeriodic())
	if err != nil {
		return nil, err
	}
	plan, err := algofft.NewPlanReal64(c.FrameSize)
	if err != nil {
		return nil, err
	}
	edges := bandEdges(c.FrameSize, sampleRate, c.Bands, c.MinHz)

	buf := make([]float64, c.FrameSize)
	spec := make([]complex128, c.FrameSize/2+1)
	frames := make([][]float64, 1+(len(x)-c.FrameSize)/c.Hop)
	for f := range frames {
		seg := x[f*c.Hop:]
		for i := range buf {
			buf[i] = seg[i] * win[i]
		}
		if err := plan.Forward(spec, buf); err != nil {
			return nil, err
		}
		bands := make([]float64, len(edges)-1)
		for b := range bands {
			for k := edges[b]; k < edges[b+1]; k++ {
				re, im := real(spec[k]), imag(spec[k])
				bands[b] += re*re + im*im
			}
		}
		frames[f] = bands
	}
	return frames, nil
}

// bandEdges returns ascending FFT bin boundaries of up to bands log-spaced
// bands from minHz to Nyquist. Every band holds at least one bin, so narrow
// low bands merge and fewer bands may come back.
func bandEdges(frameSize, sampleRate, bands int, minHz float64) []int {
	last := frameSize/2 + 1
	nyquist := float64(sampleRate) / 2
	lo := min(max(minHz, float64(sampleRate)/float64(frameSize)), nyquist)

	edges := []int{max(1, binOf(lo, frameSize, sampleRate))}
	for b := 1; b <= bands; b++ {
		hz := lo * math.Pow(nyquist/lo, float64(b)/float64(bands))
		k := min(last, binOf(hz, frameSize, sampleRate))
		if b == bands {
			k = last
		}
		if k > edges[len(edges)-1] {
			edges = append(edges, k)
		}
	}
	if len(edges) == 1 {
		edges = append(edges, last)
	}
	return edges
}

func binOf(hz float64, frameSize, sampleRate int) int {
	return int(math.Round(hz * float64(frameSize) / float64(sampleRate)))
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
