package analysis

import "testing"

func benchmarkLagInputs() ([]float64, []float64) {
	ref := randomSignal(16000, 3)
	cand := make([]float64, len(ref))
	copy(cand, ref[311:])
	return ref, cand
}

func BenchmarkEstimateLagFFT(b *testing.B) {
	ref, cand := benchmarkLagInputs()
	b.ReportAllocs()
	for b.Loop() {
		_ = estimateLag(ref, cand, 800)
	}
}

func BenchmarkEstimateLagExhaustive(b *testing.B) {
	ref, cand := benchmarkLagInputs()
	b.ReportAllocs()
	for b.Loop() {
		_ = estimateLagExhaustive(ref, cand, 800)
	}
}

func BenchmarkBandEnergies(b *testing.B) {
	x := decayingNoise(1, 2, 0.4)
	cfg := DefaultConfig()
	b.ReportAllocs()
	for b.Loop() {
		_, _ = bandEnergies(x, testRate, cfg)
	}
}

func BenchmarkCompare(b *testing.B) {
	ref := decayingNoise(1, 3, 0.5)
	cand := decayingNoise(2, 3, 0.6)
	b.ReportAllocs()
	for b.Loop() {
		_ = Compare(ref, cand, testRate)
	}
}
