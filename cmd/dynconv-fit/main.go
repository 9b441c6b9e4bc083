// Command dynconv-fit searches for the file position, file length and dry/wet
// setting that make a convolved input closest to a reference recording.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/analysis"
	"github.com/cwbudde/algo-dynconv/internal/wavio"
	"github.com/cwbudde/algo-dynconv/irfile"
	"github.com/cwbudde/algo-dynconv/preset"
)

type report struct {
	Reference    string           `json:"reference"`
	Input        string           `json:"input"`
	IR           string           `json:"ir"`
	Evaluations  int              `json:"evaluations"`
	ElapsedS     float64          `json:"elapsed_s"`
	FilePosition float32          `json:"file_position"`
	FileLength   float32          `json:"file_length"`
	DryWet       float32          `json:"dry_wet"`
	Weights      analysis.Weights `json:"weights"`
	Metrics      analysis.Metrics `json:"metrics"`
}

func main() {
	referencePath := flag.String("reference", "", "Reference WAV/AIFF path (required)")
	inputPath := flag.String("input", "", "Dry input WAV/AIFF path (required)")
	presetPath := flag.String("preset", "", "Base session preset JSON path (optional)")
	irPath := flag.String("ir", "", "IR WAV/AIFF path override")
	outputPreset := flag.String("output-preset", "fitted.json", "Path to write the fitted session preset")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	tail := flag.Float64("tail", 1.0, "Seconds of silence appended to each render")
	workers := flag.String("workers", "1", "Parallel workers running independent Mayfly rounds (number or 'auto')")
	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	verbose := flag.Bool("v", false, "Verbose logging")
	metric := analysis.DefaultConfig()
	flag.Float64Var(&metric.Weights.Time, "w-time", metric.Weights.Time, "Score weight of the waveform distance")
	flag.Float64Var(&metric.Weights.Envelope, "w-envelope", metric.Weights.Envelope, "Score weight of the level envelope distance")
	flag.Float64Var(&metric.Weights.Spectral, "w-spectral", metric.Weights.Spectral, "Score weight of the band spectrum distance")
	flag.Float64Var(&metric.Weights.Decay, "w-decay", metric.Weights.Decay, "Score weight of the energy decay curve distance")
	flag.Float64Var(&metric.SkipS, "skip", metric.SkipS, "Seconds after the aligned onset excluded from scoring")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *referencePath == "" || *inputPath == "" {
		die("-reference and -input are required")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if err := metric.Validate(); err != nil {
		die("%v", err)
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < 2*(*mayflyPop) {
		*mayflyRoundEvals = 2 * (*mayflyPop)
	}
	nWorkers, err := wavio.ParseWorkers(*workers)
	if err != nil {
		die("invalid --workers: %v", err)
	}

	session := preset.DefaultSession()
	if *presetPath != "" {
		s, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("loading preset %q: %v", *presetPath, err)
		}
		session = s
	}
	if *irPath != "" {
		session.IRPath = *irPath
	}
	if session.IRPath == "" {
		die("no IR given (use -ir or a preset with ir_path)")
	}

	ref, err := irfile.Decode(*referencePath)
	if err != nil {
		die("%v", err)
	}
	in, err := irfile.Decode(*inputPath)
	if err != nil {
		die("%v", err)
	}
	if ref.SampleRate != in.SampleRate {
		if err := ref.Resample(in.SampleRate); err != nil {
			die("resampling reference: %v", err)
		}
	}
	ir, err := irfile.Decode(session.IRPath)
	if err != nil {
		die("%v", err)
	}
	if ir.SampleRate != in.SampleRate {
		if err := ir.Resample(in.SampleRate); err != nil {
			die("resampling IR: %v", err)
		}
	}
	session.SampleRate = float64(in.SampleRate)

	cfg := &optimizationConfig{
		input:      in.Channels,
		reference:  wavio.Mono64(ref.Channels),
		ir:         ir.Channels,
		sampleRate: in.SampleRate,
		blockSize:  session.BlockSize,
		channels:   session.Channels,
		normalize:  session.Normalize,
		tailFrames: int(*tail * float64(in.SampleRate)),
		metric:     metric,
		variant:    *mayflyVariant,
		pop:        *mayflyPop,
		roundEvals: *mayflyRoundEvals,
		maxEvals:   *maxEvals,
		timeBudget: time.Duration(*timeBudget * float64(time.Second)),
		workers:    nWorkers,
		seed:       *seed,
		log:        log,
	}

	res, err := runOptimization(cfg, session.Params)
	if err != nil {
		die("optimization failed: %v", err)
	}

	session.Params = res.best
	session.Sweep = nil
	if err := preset.SaveJSON(*outputPreset, session); err != nil {
		die("writing preset %q: %v", *outputPreset, err)
	}

	rp := *reportPath
	if rp == "" {
		rp = *outputPreset + ".report.json"
	}
	rep := report{
		Reference:    *referencePath,
		Input:        *inputPath,
		IR:           session.IRPath,
		Evaluations:  res.evals,
		ElapsedS:     res.elapsed.Seconds(),
		FilePosition: res.best.FilePosition,
		FileLength:   res.best.FileLength,
		DryWet:       res.best.DryWet,
		Weights:      metric.Weights,
		Metrics:      res.metrics,
	}
	if err := writeReport(rp, &rep); err != nil {
		die("writing report %q: %v", rp, err)
	}

	fmt.Printf("Best score %.5f (similarity %.4f) after %d evals in %.1fs\n",
		res.metrics.Score, res.metrics.Similarity, res.evals, res.elapsed.Seconds())
	fmt.Printf("  file_position=%.4f file_length=%.4f dry_wet=%.4f\n",
		res.best.FilePosition, res.best.FileLength, res.best.DryWet)
	fmt.Printf("Wrote %s and %s\n", *outputPreset, rp)
}

func writeReport(path string, r *report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
