package irsynth

import (
	"math"
	"testing"
)

func TestGenerateStereoBasic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationS = 0.5
	cfg.Modes = 32
	cfg.Seed = 42
	cfg.NormalizePeak = 0.8

	ir, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ir) != 2 || len(ir[0]) != int(0.5*48000) || len(ir[1]) != len(ir[0]) {
		t.Fatalf("unexpected output shape: %d channels", len(ir))
	}

	maxAbs := 0.0
	energy := 0.0
	for _, ch := range ir {
		for i, v := range ch {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("non-finite sample at %d", i)
			}
			maxAbs = math.Max(maxAbs, math.Abs(float64(v)))
			energy += float64(v * v)
		}
	}
	if energy <= 1e-8 {
		t.Fatalf("expected non-zero energy")
	}
	if math.Abs(maxAbs-0.8) > 1e-3 {
		t.Fatalf("unexpected normalization peak: %.6f", maxAbs)
	}
}

func TestGenerateMono(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 1
	cfg.DurationS = 0.1
	cfg.Modes = 8

	ir, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ir) != 1 || len(ir[0]) != cfg.Length() {
		t.Fatalf("unexpected mono shape: %d channels", len(ir))
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 32000
	cfg.DurationS = 0.2
	cfg.Modes = 24
	cfg.Seed = 99

	a, err := Generate(cfg)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	b, err := Generate(cfg)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	for ch := range a {
		for i := range a[ch] {
			if a[ch][i] != b[ch][i] {
				t.Fatalf("channel %d sample %d differs: %f vs %f", ch, i, a[ch][i], b[ch][i])
			}
		}
	}
}

func TestMarkersAreAudible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 1
	cfg.DurationS = 0.4
	cfg.Modes = 0
	cfg.EarlyCount = 0
	cfg.LateLevel = 0
	cfg.DirectLevel = 0
	cfg.FadeOutS = 0
	cfg.Markers = 3
	cfg.MarkerLevel = 0.5
	cfg.NormalizePeak = 1

	ir, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pos := MarkerPositions(cfg.Length(), cfg.Markers)
	if len(pos) != 3 {
		t.Fatalf("marker count = %d, want 3", len(pos))
	}
	for _, idx := range pos {
		if math.Abs(float64(ir[0][idx]-1)) > 1e-6 {
			t.Fatalf("marker at %d = %f, want 1", idx, ir[0][idx])
		}
	}
	if ir[0][pos[0]+1] != 0 {
		t.Fatalf("marker should be a single tap, got %f after it", ir[0][pos[0]+1])
	}
}

func TestMarkerPositions(t *testing.T) {
	got := MarkerPositions(100, 4)
	want := []int{20, 40, 60, 80}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if MarkerPositions(100, 0) != nil || MarkerPositions(1, 3) != nil {
		t.Fatal("expected nil for empty marker configs")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	mutations := []func(*Config){
		func(c *Config) { c.SampleRate = 100 },
		func(c *Config) { c.DurationS = 0 },
		func(c *Config) { c.Channels = 3 },
		func(c *Config) { c.Brightness = 0 },
		func(c *Config) { c.Markers = -1 },
		func(c *Config) { c.LowDecayS = 0 },
		func(c *Config) { c.NormalizePeak = 0 },
	}
	for i, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("mutation %d: expected validation error", i)
		}
	}
}
