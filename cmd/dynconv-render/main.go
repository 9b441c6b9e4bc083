package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/internal/wavio"
	"github.com/cwbudde/algo-dynconv/irfile"
	"github.com/cwbudde/algo-dynconv/preset"
	"github.com/cwbudde/algo-dynconv/render"
)

func main() {
	input := flag.String("input", "", "Input WAV/AIFF path (required)")
	output := flag.String("output", "output.wav", "Output WAV path")
	presetPath := flag.String("preset", "", "Session preset JSON path (optional)")
	irPath := flag.String("ir", "", "IR WAV/AIFF path override")
	blockSize := flag.Int("block-size", 0, "Block size override (power of two)")
	position := flag.Float64("position", -1, "File position override in [0,1]")
	length := flag.Float64("length", -1, "File length override in [0,1]")
	dryWet := flag.Float64("dry-wet", -1, "Dry/wet override in [0,1]")
	sweepTo := flag.Float64("sweep-to", -1, "Sweep the file position from -position to this value over the render")
	tail := flag.Float64("tail", 1.0, "Seconds of silence appended so the IR rings out")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *input == "" {
		die("-input is required")
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
	if *blockSize > 0 {
		session.BlockSize = *blockSize
	}
	if *position >= 0 {
		session.Params.FilePosition = float32(*position)
	}
	if *length >= 0 {
		session.Params.FileLength = float32(*length)
	}
	if *dryWet >= 0 {
		session.Params.DryWet = float32(*dryWet)
	}
	if *sweepTo >= 0 {
		session.Sweep = &preset.Sweep{From: session.Params.FilePosition, To: float32(*sweepTo)}
	}

	src, err := irfile.Decode(*input)
	if err != nil {
		die("%v", err)
	}
	session.SampleRate = float64(src.SampleRate)

	e, err := session.Open(log)
	if err != nil {
		die("opening engine: %v", err)
	}

	opts := render.Options{TailFrames: int(*tail * float64(src.SampleRate))}
	if session.Sweep != nil {
		opts.Position = session.PositionAt
	}

	fmt.Printf("Rendering %s through %s (%d partitions of %d samples, %d Hz)...\n",
		*input, session.IRPath, e.NumPartitions(), e.BlockSize(), src.SampleRate)

	out, err := render.Offline(e, src.Channels, opts)
	if err != nil {
		die("render: %v", err)
	}
	if err := wavio.Write(*output, out, src.SampleRate); err != nil {
		die("writing %q: %v", *output, err)
	}

	start, end := e.ActiveRange()
	fmt.Printf("Wrote %s (%d frames, peak %.4f, final IR window [%d, %d) samples)\n",
		*output, len(out[0]), wavio.Peak(out), start, end)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
