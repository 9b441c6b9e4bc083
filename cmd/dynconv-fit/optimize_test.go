package main

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/analysis"
	"github.com/cwbudde/algo-dynconv/param"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewMayflyConfigVariants(t *testing.T) {
	for _, v := range []string{"ma", "desma", "olce", "eobbma", "gsasma", "mpma", "aoblmoa"} {
		cfg, err := newMayflyConfig(v, 6, 3, 4)
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if cfg.ProblemSize != 3 || cfg.NPop != 6 || cfg.NC != 12 || cfg.NM != 1 {
			t.Fatalf("%s: unexpected config %+v", v, cfg)
		}
	}
	if _, err := newMayflyConfig("nope", 6, 3, 4); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestFromNormalizedClamps(t *testing.T) {
	got := fromNormalized([]float64{-1, 0.25, 2}, defaultKnobs)
	want := param.Snapshot{FilePosition: 0, FileLength: 0.25, DryWet: 1}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func impulseTrain(n, every int) []float32 {
	x := make([]float32, n)
	for i := 0; i < n; i += every {
		x[i] = 1
	}
	return x
}

func TestRunOptimizationImprovesOnInitial(t *testing.T) {
	const sr = 8000
	in := [][]float32{impulseTrain(2048, 500)}
	ir := make([]float32, 256)
	for i := range ir {
		ir[i] = float32(math.Exp(-float64(i) / 40))
	}

	// The reference is the dry signal itself: the best blend is fully dry.
	ref := make([]float64, len(in[0]))
	for i, v := range in[0] {
		ref[i] = float64(v)
	}

	cfg := &optimizationConfig{
		input:      in,
		reference:  ref,
		ir:         [][]float32{ir},
		sampleRate: sr,
		blockSize:  64,
		channels:   1,
		normalize:  true,
		metric:     analysis.DefaultConfig(),
		variant:    "ma",
		pop:        4,
		roundEvals: 16,
		maxEvals:   40,
		timeBudget: 30 * time.Second,
		workers:    1,
		seed:       7,
		log:        quietLogger(),
	}
	initial := param.Snapshot{FilePosition: 0, FileLength: 1, DryWet: 1}
	res, err := runOptimization(cfg, initial)
	if err != nil {
		t.Fatalf("runOptimization: %v", err)
	}
	if res.evals < 2 || res.evals > cfg.maxEvals {
		t.Fatalf("evals = %d, want in [2, %d]", res.evals, cfg.maxEvals)
	}

	ev, err := newEvaluator(cfg)
	if err != nil {
		t.Fatalf("newEvaluator: %v", err)
	}
	base, err := ev.evaluate(initial)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.metrics.Score > base.Score {
		t.Fatalf("best score %f worse than initial %f", res.metrics.Score, base.Score)
	}
}
