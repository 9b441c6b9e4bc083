// Package irsynth generates deterministic synthetic impulse responses for
// demos, tests and the ir-synth tool.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-approx"
)

// Config controls synthetic IR generation.
type Config struct {
	SampleRate int
	DurationS  float64
	Channels   int
	Seed       int64

	Modes       int
	Brightness  float64
	StereoWidth float64
	DirectLevel float64
	EarlyCount  int
	LateLevel   float64

	LowDecayS  float64
	HighDecayS float64

	// Markers places evenly spaced taps across the IR so that moving the
	// engine's file position is clearly audible. 0 disables them.
	Markers     int
	MarkerLevel float64

	FadeOutS      float64
	NormalizePeak float64
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		DurationS:     2.0,
		Channels:      2,
		Seed:          1,
		Modes:         96,
		Brightness:    1.0,
		StereoWidth:   0.6,
		DirectLevel:   0.6,
		EarlyCount:    16,
		LateLevel:     0.045,
		LowDecayS:     2.4,
		HighDecayS:    0.35,
		Markers:       0,
		MarkerLevel:   0.3,
		FadeOutS:      0.01,
		NormalizePeak: 0.9,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2")
	}
	if c.Modes < 0 {
		return fmt.Errorf("modes must be >= 0")
	}
	if c.Brightness <= 0 {
		return fmt.Errorf("brightness must be > 0")
	}
	if c.StereoWidth < 0 {
		return fmt.Errorf("stereo width must be >= 0")
	}
	if c.DirectLevel < 0 || c.LateLevel < 0 || c.MarkerLevel < 0 {
		return fmt.Errorf("levels must be >= 0")
	}
	if c.EarlyCount < 0 || c.Markers < 0 {
		return fmt.Errorf("counts must be >= 0")
	}
	if c.LowDecayS <= 0 || c.HighDecayS <= 0 {
		return fmt.Errorf("decay seconds must be > 0")
	}
	if c.FadeOutS < 0 {
		return fmt.Errorf("fade out must be >= 0")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// Length returns the IR length in samples.
func (c *Config) Length() int {
	return max(1, int(math.Round(c.DurationS*float64(c.SampleRate))))
}

// Generate synthesizes an IR with cfg.Channels channels.
func Generate(cfg Config) ([][]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.Length()
	left := make([]float64, n)
	right := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Direct path.
	left[0] += cfg.DirectLevel * (1.0 - 0.05*cfg.StereoWidth)
	right[0] += cfg.DirectLevel * (1.0 + 0.05*cfg.StereoWidth)

	maxF := max(500.0, 0.47*float64(cfg.SampleRate))
	minF := 35.0

	// Log-spaced damped modes; the RNG only jitters amplitude, phase and pan.
	for m := 0; m < cfg.Modes; m++ {
		fNorm := (float64(m) + 0.5) / float64(cfg.Modes)
		f := minF * math.Pow(maxF/minF, fNorm)

		amp := 0.9 / math.Pow(1.0+f/120.0, 0.7+0.9*cfg.Brightness)
		amp *= 0.7 + 0.6*rng.Float64()

		tau := lerp(cfg.LowDecayS, cfg.HighDecayS, math.Sqrt(f/maxF))
		decay := math.Exp(-1.0 / (tau * float64(cfg.SampleRate)))

		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		phi := rng.Float64() * 2.0 * math.Pi
		addModeRec(left, amp*(1.0-0.45*pan), f*(1.0-0.004*pan), phi, decay, cfg.SampleRate)
		addModeRec(right, amp*(1.0+0.45*pan), f*(1.0+0.004*pan), phi+0.01*pan, decay, cfg.SampleRate)
	}

	// Early reflections within the first 31 ms.
	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + 0.030*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		amp := (0.10 + 0.35*rng.Float64()) * math.Exp(-t*28.0)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}

	// Diffuse late tail.
	if cfg.LateLevel > 0 {
		var lpL, lpR float64
		rate := float32(-1.0 / (0.75 * cfg.LowDecayS * float64(cfg.SampleRate)))
		for i := 0; i < n; i++ {
			env := float64(approx.FastExp(rate * float32(i)))
			lpL = 0.985*lpL + 0.015*rng.NormFloat64()
			lpR = 0.985*lpR + 0.015*rng.NormFloat64()
			left[i] += cfg.LateLevel * env * lpL
			right[i] += cfg.LateLevel * env * lpR
		}
	}

	highpassDC(left, 0.995)
	highpassDC(right, 0.995)

	// Markers are added after the DC filter so they stay single-sample taps.
	for _, idx := range MarkerPositions(n, cfg.Markers) {
		left[idx] += cfg.MarkerLevel
		right[idx] += cfg.MarkerLevel
	}

	applyFadeOut(left, cfg.FadeOutS, cfg.SampleRate)
	applyFadeOut(right, cfg.FadeOutS, cfg.SampleRate)

	if cfg.Channels == 1 {
		for i := range left {
			left[i] = 0.5 * (left[i] + right[i])
		}
		right = nil
	}

	peak := max(maxAbs(left), maxAbs(right), 1e-12)
	s := cfg.NormalizePeak / peak

	out := [][]float32{toFloat32(left, s)}
	if right != nil {
		out = append(out, toFloat32(right, s))
	}
	return out, nil
}

// MarkerPositions returns count sample offsets evenly spread over [0, n),
// skipping offset 0 which holds the direct path.
func MarkerPositions(n, count int) []int {
	if count <= 0 || n < 2 {
		return nil
	}
	out := make([]int, 0, count)
	for k := 1; k <= count; k++ {
		idx := int(float64(k) * float64(n) / float64(count+1))
		if idx <= 0 || idx >= n {
			continue
		}
		out = append(out, idx)
	}
	return out
}

func toFloat32(x []float64, scale float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v * scale)
	}
	return out
}

func addModeRec(out []float64, amp float64, freq float64, phase float64, decay float64, sampleRate int) {
	if len(out) == 0 {
		return
	}
	w := 2.0 * math.Pi * freq / float64(sampleRate)
	cw := math.Cos(w)
	x0 := math.Cos(phase)
	x1 := math.Cos(phase + w)
	env := 1.0

	out[0] += amp * env * x0
	env *= decay
	if len(out) == 1 {
		return
	}
	out[1] += amp * env * x1
	env *= decay
	for i := 2; i < len(out); i++ {
		x2 := 2.0*cw*x1 - x0
		x0 = x1
		x1 = x2
		out[i] += amp * env * x2
		env *= decay
	}
}

func highpassDC(x []float64, r float64) {
	var prevIn, prevOut float64
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := min(len(buf), int(math.Round(fadeS*float64(sampleRate))))
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}

func lerp(a, b, t float64) float64 {
	t = min(1, max(0, t))
	return a + (b-a)*t
}
