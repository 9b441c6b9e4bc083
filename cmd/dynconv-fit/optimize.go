package main

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/cwbudde/mayfly"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/analysis"
	"github.com/cwbudde/algo-dynconv/engine"
	"github.com/cwbudde/algo-dynconv/internal/wavio"
	"github.com/cwbudde/algo-dynconv/param"
	"github.com/cwbudde/algo-dynconv/render"
)

// knob is one searched parameter, normalized to [0,1] for mayfly.
type knob struct {
	name string
	min  float64
	max  float64
}

var defaultKnobs = []knob{
	{name: "file_position", min: 0, max: 1},
	{name: "file_length", min: 0, max: 1},
	{name: "dry_wet", min: 0, max: 1},
}

func fromNormalized(pos []float64, knobs []knob) param.Snapshot {
	vals := make([]float32, 3)
	for i, k := range knobs {
		if i >= len(pos) {
			break
		}
		x := math.Min(1, math.Max(0, pos[i]))
		vals[i] = float32(k.min + x*(k.max-k.min))
	}
	return param.Snapshot{FilePosition: vals[0], FileLength: vals[1], DryWet: vals[2]}
}

type optimizationConfig struct {
	input      [][]float32
	reference  []float64
	ir         [][]float32
	sampleRate int
	blockSize  int
	channels   int
	normalize  bool
	tailFrames int
	metric     analysis.Config

	variant    string
	pop        int
	roundEvals int
	maxEvals   int
	timeBudget time.Duration
	workers    int
	seed       int64
	log        logrus.FieldLogger
}

type optimizationResult struct {
	best    param.Snapshot
	metrics analysis.Metrics
	evals   int
	elapsed time.Duration
}

// evaluator renders candidates through a private engine.
type evaluator struct {
	cfg *optimizationConfig
	e   *engine.Engine
}

func newEvaluator(cfg *optimizationConfig) (*evaluator, error) {
	e := engine.New(
		engine.WithLogger(cfg.log),
		engine.WithChannels(cfg.channels),
		engine.WithNormalization(cfg.normalize),
	)
	if err := e.Prepare(cfg.blockSize, float64(cfg.sampleRate)); err != nil {
		return nil, err
	}
	if err := e.LoadIR(cfg.ir); err != nil {
		return nil, err
	}
	return &evaluator{cfg: cfg, e: e}, nil
}

func (ev *evaluator) evaluate(p param.Snapshot) (analysis.Metrics, error) {
	ev.e.Reset()
	ev.e.SetParams(p)
	out, err := render.Offline(ev.e, ev.cfg.input, render.Options{TailFrames: ev.cfg.tailFrames})
	if err != nil {
		return analysis.Metrics{}, err
	}
	return ev.cfg.metric.Compare(ev.cfg.reference, wavio.Mono64(out), ev.cfg.sampleRate), nil
}

type searchState struct {
	mu      sync.Mutex
	best    param.Snapshot
	metrics analysis.Metrics
	evals   int
}

func (s *searchState) reserve(maxEvals int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evals >= maxEvals {
		return s.evals, false
	}
	s.evals++
	return s.evals, true
}

func (s *searchState) bestScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics.Score
}

func (s *searchState) offer(p param.Snapshot, m analysis.Metrics) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Score < s.metrics.Score {
		s.best = p
		s.metrics = m
		return true
	}
	return false
}

func runOptimization(cfg *optimizationConfig, initial param.Snapshot) (*optimizationResult, error) {
	start := time.Now()
	deadline := start.Add(cfg.timeBudget)

	first, err := newEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	initMetrics, err := first.evaluate(initial)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation: %w", err)
	}
	state := &searchState{best: initial, metrics: initMetrics, evals: 1}
	cfg.log.WithFields(logrus.Fields{
		"score":      initMetrics.Score,
		"similarity": initMetrics.Similarity,
	}).Info("initial candidate")

	workers := cfg.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		ev := first
		if w > 0 {
			if ev, err = newEvaluator(cfg); err != nil {
				return nil, err
			}
		}
		wg.Add(1)
		go func(worker int, ev *evaluator) {
			defer wg.Done()
			for round := 0; ; round++ {
				state.mu.Lock()
				remaining := cfg.maxEvals - state.evals
				state.mu.Unlock()
				if remaining <= 0 || time.Now().After(deadline) {
					return
				}

				budget := min(cfg.roundEvals, remaining)
				iters := max(1, budget/(2*cfg.pop))
				mcfg, err := newMayflyConfig(cfg.variant, cfg.pop, len(defaultKnobs), iters)
				if err != nil {
					cfg.log.WithError(err).Error("mayfly setup failed")
					return
				}
				mcfg.Rand = rand.New(rand.NewSource(cfg.seed + int64(worker)*104729 + int64(round)*7919))
				mcfg.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return state.bestScore() + 1.0
					}
					evalNum, ok := state.reserve(cfg.maxEvals)
					if !ok {
						return state.bestScore() + 1.0
					}
					cand := fromNormalized(pos, defaultKnobs)
					m, err := ev.evaluate(cand)
					if err != nil {
						return state.bestScore() + 0.8
					}
					if state.offer(cand, m) {
						cfg.log.WithFields(logrus.Fields{
							"eval":          evalNum,
							"score":         m.Score,
							"file_position": cand.FilePosition,
							"file_length":   cand.FileLength,
							"dry_wet":       cand.DryWet,
						}).Info("improved")
					}
					return m.Score
				}

				if _, err := runMayfly(mcfg); err != nil {
					cfg.log.WithError(err).Warnf("mayfly round %d failed", round)
				}
			}
		}(w, ev)
	}
	wg.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()
	return &optimizationResult{
		best:    state.best,
		metrics: state.metrics,
		evals:   state.evals,
		elapsed: time.Since(start),
	}, nil
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
