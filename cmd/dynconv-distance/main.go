// Command dynconv-distance scores a candidate recording against a reference.
// Without -candidate the candidate is rendered from -input through a session
// preset.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/analysis"
	"github.com/cwbudde/algo-dynconv/internal/wavio"
	"github.com/cwbudde/algo-dynconv/irfile"
	"github.com/cwbudde/algo-dynconv/preset"
	"github.com/cwbudde/algo-dynconv/render"
)

func main() {
	referencePath := flag.String("reference", "", "Reference WAV/AIFF path (required)")
	candidatePath := flag.String("candidate", "", "Candidate WAV/AIFF path; if empty, render -input through -preset")
	inputPath := flag.String("input", "", "Dry input rendered when -candidate is empty")
	presetPath := flag.String("preset", "", "Session preset JSON for the rendered candidate")
	tail := flag.Float64("tail", 1.0, "Seconds of silence appended to the rendered candidate")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write the rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	metric := analysis.DefaultConfig()
	flag.Float64Var(&metric.Weights.Time, "w-time", metric.Weights.Time, "Score weight of the waveform distance")
	flag.Float64Var(&metric.Weights.Envelope, "w-envelope", metric.Weights.Envelope, "Score weight of the level envelope distance")
	flag.Float64Var(&metric.Weights.Spectral, "w-spectral", metric.Weights.Spectral, "Score weight of the band spectrum distance")
	flag.Float64Var(&metric.Weights.Decay, "w-decay", metric.Weights.Decay, "Score weight of the energy decay curve distance")
	flag.Float64Var(&metric.SkipS, "skip", metric.SkipS, "Seconds after the aligned onset excluded from scoring")
	flag.Parse()

	if err := metric.Validate(); err != nil {
		die("%v", err)
	}

	if *referencePath == "" {
		die("-reference is required")
	}
	ref, err := irfile.Decode(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}

	var cand *irfile.IR
	if *candidatePath != "" {
		cand, err = irfile.Decode(*candidatePath)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
	} else {
		cand, err = renderCandidate(*inputPath, *presetPath, *tail)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		if *writeCandidate != "" {
			if err := wavio.Write(*writeCandidate, cand.Channels, cand.SampleRate); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	}
	if cand.SampleRate != ref.SampleRate {
		if err := cand.Resample(ref.SampleRate); err != nil {
			die("failed to resample candidate: %v", err)
		}
	}

	metrics := metric.Compare(wavio.Mono64(ref.Channels), wavio.Mono64(cand.Channels), ref.SampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Printf("Time RMSE:        %.6f\n", metrics.TimeRMSE)
	fmt.Printf("Envelope RMSE:    %.1f dB\n", metrics.EnvelopeRMSEDB)
	fmt.Printf("Spectral RMSE:    %.1f dB\n", metrics.SpectralRMSEDB)
	fmt.Printf("EDC RMSE:         %.1f dB\n", metrics.EDCRMSEDB)
	fmt.Printf("RT60:             ref=%.2f s  cand=%.2f s\n", metrics.RefRT60S, metrics.CandRT60S)
	fmt.Printf("Dominant:         %s\n", metrics.Dominant)
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
}

func renderCandidate(inputPath, presetPath string, tail float64) (*irfile.IR, error) {
	if inputPath == "" || presetPath == "" {
		return nil, fmt.Errorf("-input and -preset are required without -candidate")
	}
	session, err := preset.LoadJSON(presetPath)
	if err != nil {
		return nil, err
	}
	in, err := irfile.Decode(inputPath)
	if err != nil {
		return nil, err
	}
	session.SampleRate = float64(in.SampleRate)

	log := logrus.New()
	log.SetOutput(os.Stderr)
	e, err := session.Open(log)
	if err != nil {
		return nil, err
	}
	opts := render.Options{TailFrames: int(tail * float64(in.SampleRate))}
	if session.Sweep != nil {
		opts.Position = session.PositionAt
	}
	out, err := render.Offline(e, in.Channels, opts)
	if err != nil {
		return nil, err
	}
	return &irfile.IR{Channels: out, SampleRate: in.SampleRate}, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
