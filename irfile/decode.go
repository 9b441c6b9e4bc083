// Package irfile decodes impulse-response audio files into per-channel
// float32 samples.
package irfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/aiff"
)

// Format identifies a supported container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatAIFF
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatAIFF:
		return "aiff"
	default:
		return "unknown"
	}
}

// FormatFromPath infers the container from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".aif", ".aiff":
		return FormatAIFF
	default:
		return FormatUnknown
	}
}

var (
	ErrUnsupportedFormat = errors.New("irfile: unsupported format")
	ErrInvalidFile       = errors.New("irfile: invalid file")
	ErrEmptyFile         = errors.New("irfile: no audio frames")
)

// DecodeError reports a file that could not be turned into samples.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "irfile: decode: " + e.Err.Error()
	}
	return fmt.Sprintf("irfile: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IR is a decoded impulse response.
type IR struct {
	Channels   [][]float32
	SampleRate int
}

// NumChannels returns the channel count.
func (ir *IR) NumChannels() int { return len(ir.Channels) }

// Frames returns the length of channel 0.
func (ir *IR) Frames() int {
	if len(ir.Channels) == 0 {
		return 0
	}
	return len(ir.Channels[0])
}

// Decode opens path and decodes it according to its extension.
func Decode(path string) (*IR, error) {
	format := FormatFromPath(path)
	if format == FormatUnknown {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	ir, err := DecodeReader(f, format)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
			return nil, de
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	return ir, nil
}

// DecodeReader decodes r as the given format.
func DecodeReader(r io.ReadSeeker, format Format) (*IR, error) {
	var (
		ir  *IR
		err error
	)
	switch format {
	case FormatWAV:
		ir, err = decodeWAV(r)
	case FormatAIFF:
		ir, err = decodeAIFF(r)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return ir, nil
}

func decodeWAV(r io.ReadSeeker) (*IR, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav stream", ErrInvalidFile)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing wav format", ErrInvalidFile)
	}
	return deinterleave(buf.Data, buf.Format.NumChannels, buf.Format.SampleRate)
}

func decodeAIFF(r io.ReadSeeker) (*IR, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an aiff stream", ErrInvalidFile)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing aiff format", ErrInvalidFile)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		return nil, fmt.Errorf("%w: unknown bit depth", ErrInvalidFile)
	}
	scale := float32(1 / math.Pow(2, float64(bitDepth-1)))

	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = float32(v) * scale
	}
	return deinterleave(data, buf.Format.NumChannels, buf.Format.SampleRate)
}

func deinterleave(data []float32, numCh, sampleRate int) (*IR, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidFile, sampleRate)
	}
	frames := len(data) / numCh
	if frames == 0 {
		return nil, ErrEmptyFile
	}

	ir := &IR{
		Channels:   make([][]float32, numCh),
		SampleRate: sampleRate,
	}
	for ch := range ir.Channels {
		samples := make([]float32, frames)
		for i := range frames {
			samples[i] = data[i*numCh+ch]
		}
		ir.Channels[ch] = samples
	}
	return ir, nil
}

// Resample converts every channel to rate in place. It is a no-op when the
// rates already match.
func (ir *IR) Resample(rate int) error {
	if rate <= 0 {
		return fmt.Errorf("irfile: invalid target sample rate %d", rate)
	}
	if ir.SampleRate == rate {
		return nil
	}
	if ir.SampleRate <= 0 {
		return fmt.Errorf("irfile: invalid source sample rate %d", ir.SampleRate)
	}

	for ch, samples := range ir.Channels {
		// The resampler carries filter state, so every channel needs its own.
		r, err := dspresample.NewForRates(
			float64(ir.SampleRate),
			float64(rate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return fmt.Errorf("irfile: resample %d -> %d: %w", ir.SampleRate, rate, err)
		}

		in64 := make([]float64, len(samples))
		for i, v := range samples {
			in64[i] = float64(v)
		}
		out64 := r.Process(in64)
		out := make([]float32, len(out64))
		for i, v := range out64 {
			out[i] = float32(v)
		}
		ir.Channels[ch] = out
	}
	ir.SampleRate = rate
	return nil
}
