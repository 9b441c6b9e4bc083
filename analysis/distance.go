// Package analysis scores how close a convolved render is to a reference
// recording. Both signals are aligned at their onsets, then compared by
// waveform, short-time level, band spectrum and energy decay curve.
package analysis

import (
	"math"

	irmeasure "github.com/cwbudde/algo-dsp/measure/ir"
)

// Metrics holds the components of one comparison. Decay times are 0 when
// the signal does not decay far enough to measure.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`
	EDCRMSEDB      float64 `json:"edc_rmse_db"`
	RefRT60S       float64 `json:"ref_rt60_s"`
	CandRT60S      float64 `json:"cand_rt60_s"`

	Dominant   string  `json:"dominant"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Full-scale values of each component before weighting.
const (
	timeScale     = 0.25
	envelopeScale = 30.0
	spectralScale = 30.0
	decayScale    = 20.0

	rmsTarget = 0.1
	edcFloor  = -60.0
)

// Compare scores candidate against reference with DefaultConfig.
func Compare(reference, candidate []float64, sampleRate int) Metrics {
	return DefaultConfig().Compare(reference, candidate, sampleRate)
}

// Compare returns the distance metrics and a weighted score in [0,1],
// where 0 is identical. Unusable input scores 1.
func (c Config) Compare(reference, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1,
	}
	if sampleRate <= 0 || c.Validate() != nil {
		return m
	}

	an := irmeasure.NewAnalyzer(float64(sampleRate))
	ref := scaleToRMS(fromOnset(an, reference), rmsTarget)
	cand := scaleToRMS(fromOnset(an, candidate), rmsTarget)
	if len(ref) < 2 || len(cand) < 2 {
		return m
	}

	maxLag := min(int(c.MaxLagS*float64(sampleRate)), len(ref)-1, len(cand)-1)
	m.LagSamples = estimateLag(ref, cand, max(0, maxLag))
	ref, cand = alignByLag(ref, cand, m.LagSamples)

	n := min(len(ref), len(cand))
	skip := int(c.SkipS * float64(sampleRate))
	if c.MaxSpanS > 0 {
		n = min(n, skip+int(c.MaxSpanS*float64(sampleRate)))
	}
	if n-skip < c.FrameSize {
		return m
	}
	ref, cand = ref[skip:n], cand[skip:n]
	m.AlignedFrames = len(ref)

	m.TimeRMSE = rmse(ref, cand)

	refBands, errR := bandEnergies(ref, sampleRate, c)
	candBands, errC := bandEnergies(cand, sampleRate, c)
	if errR == nil && errC == nil {
		m.EnvelopeRMSEDB = envelopeDistance(refBands, candBands)
		m.SpectralRMSEDB = spectralDistance(refBands, candBands)
	}

	refEDC, errR := an.SchroederIntegral(ref)
	candEDC, errC := an.SchroederIntegral(cand)
	if errR == nil && errC == nil {
		m.EDCRMSEDB = edcDistance(refEDC, candEDC)
	}
	if rt, err := an.RT60(ref); err == nil && isFinite(rt) {
		m.RefRT60S = rt
	}
	if rt, err := an.RT60(cand); err == nil && isFinite(rt) {
		m.CandRT60S = rt
	}

	c.score(&m)
	return m
}

func (c Config) score(m *Metrics) {
	w := c.Weights
	parts := []struct {
		name   string
		weight float64
		norm   float64
	}{
		{"time", w.Time, clamp01(m.TimeRMSE / timeScale)},
		{"envelope", w.Envelope, clamp01(m.EnvelopeRMSEDB / envelopeScale)},
		{"spectral", w.Spectral, clamp01(m.SpectralRMSEDB / spectralScale)},
		{"decay", w.Decay, clamp01(m.EDCRMSEDB / decayScale)},
	}
	var sum, top float64
	for _, p := range parts {
		contrib := p.weight * p.norm
		sum += contrib
		if p.weight > 0 && (m.Dominant == "" || contrib > top) {
			top = contrib
			m.Dominant = p.name
		}
	}
	m.Score = clamp01(sum / w.sum())
	m.Similarity = math.Exp(-4 * m.Score)
}

// fromOnset drops everything before the first sample within 20 dB of the
// peak. Silent input yields nil.
func fromOnset(an *irmeasure.Analyzer, x []float64) []float64 {
	if peakAbs(x) < 1e-9 {
		return nil
	}
	start, err := an.FindImpulseStart(x)
	if err != nil {
		return nil
	}
	return x[start:]
}

func scaleToRMS(x []float64, target float64) []float64 {
	r := rms(x)
	if r <= 1e-12 {
		return x
	}
	g := target / r
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * g
	}
	return out
}

// estimateLag returns the shift of cand against ref in [-maxLag, maxLag]
// with the largest cross-correlation. A positive lag means cand starts
// later in ref.
func estimateLag(ref, cand []float64, maxLag int) int {
	corr, err := crossCorrelate(ref, cand)
	if err != nil {
		return estimateLagExhaustive(ref, cand, maxLag)
	}
	size := len(corr)
	bestLag, best := 0, math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		idx := lag
		if idx < 0 {
			idx += size
		}
		if idx < 0 || idx >= size {
			continue
		}
		if corr[idx] > best {
			best, bestLag = corr[idx], lag
		}
	}
	return bestLag
}

// estimateLagExhaustive computes the same correlation directly in
// O(n*maxLag).
func estimateLagExhaustive(ref, cand []float64, maxLag int) int {
	bestLag, best := 0, math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		var s float64
		if lag >= 0 {
			for i := 0; i+lag < len(ref) && i < len(cand); i++ {
				s += ref[i+lag] * cand[i]
			}
		} else {
			o := -lag
			for i := 0; i < len(ref) && i+o < len(cand); i++ {
				s += ref[i] * cand[i+o]
			}
		}
		if s > best {
			best, bestLag = s, lag
		}
	}
	return bestLag
}

func alignByLag(ref, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		return ref[min(lag, len(ref)):], cand
	}
	return ref, cand[min(-lag, len(cand)):]
}

// envelopeDistance is the RMS difference of per-frame level in dB.
func envelopeDistance(ref, cand [][]float64) float64 {
	n := min(len(ref), len(cand))
	if n == 0 {
		return 0
	}
	var sum float64
	for f := 0; f < n; f++ {
		d := powToDB(total(ref[f])) - powToDB(total(cand[f]))
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// spectralDistance compares the band shape of each frame, ignoring its
// overall level. Frames more than 60 dB below the loudest reference frame
// are skipped.
func spectralDistance(ref, cand [][]float64) float64 {
	n := min(len(ref), len(cand))
	var loudest float64
	for f := 0; f < n; f++ {
		loudest = max(loudest, total(ref[f]))
	}
	gate := loudest * 1e-6

	var sum float64
	var count int
	for f := 0; f < n; f++ {
		rt, ct := total(ref[f]), total(cand[f])
		if rt <= gate || rt == 0 || ct == 0 {
			continue
		}
		for b := range ref[f] {
			d := (powToDB(ref[f][b]) - powToDB(rt)) - (powToDB(cand[f][b]) - powToDB(ct))
			sum += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// edcDistance is the RMS difference of two energy decay curves (in dB) over
// the span where the reference is above edcFloor.
func edcDistance(ref, cand []float64) float64 {
	n := min(len(ref), len(cand))
	var sum float64
	var count int
	for i := 0; i < n && ref[i] > edcFloor; i++ {
		d := ref[i] - max(cand[i], edcFloor)
		sum += d * d
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

func rmse(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func peakAbs(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = max(p, math.Abs(v))
	}
	return p
}

func total(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
}

func powToDB(p float64) float64 {
	return 10 * math.Log10(max(p, 1e-12))
}

func clamp01(x float64) float64 {
	return min(1, max(0, x))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
