// Package wavio writes rendered audio to 16-bit WAV files and holds small
// helpers shared by the command-line tools.
package wavio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

var ErrChannelLength = errors.New("wavio: channel length mismatch")

// Interleave packs equally long channels into frame order.
func Interleave(channels [][]float32) ([]float32, error) {
	if len(channels) == 0 {
		return nil, nil
	}
	frames := len(channels[0])
	for ch, samples := range channels {
		if len(samples) != frames {
			return nil, fmt.Errorf("%w: channel %d has %d frames, want %d", ErrChannelLength, ch, len(samples), frames)
		}
	}
	numCh := len(channels)
	data := make([]float32, frames*numCh)
	for ch, samples := range channels {
		for i, v := range samples {
			data[i*numCh+ch] = v
		}
	}
	return data, nil
}

// Write stores channels as a 16-bit PCM WAV file, creating parent
// directories as needed.
func Write(path string, channels [][]float32, sampleRate int) error {
	if len(channels) == 0 {
		return fmt.Errorf("wavio: no channels to write")
	}
	data, err := Interleave(channels)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, len(channels), 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: len(channels),
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// Mono64 averages the channels into one float64 signal.
func Mono64(channels [][]float32) []float64 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]float64, n)
	for _, samples := range channels {
		for i := 0; i < n && i < len(samples); i++ {
			out[i] += float64(samples[i])
		}
	}
	inv := 1 / float64(len(channels))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// RMS returns the root mean square over all channels.
func RMS(channels [][]float32) float64 {
	var (
		sum   float64
		count int
	)
	for _, samples := range channels {
		for _, s := range samples {
			v := float64(s)
			sum += v * v
		}
		count += len(samples)
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// Peak returns the largest absolute sample over all channels.
func Peak(channels [][]float32) float32 {
	var peak float32
	for _, samples := range channels {
		for _, s := range samples {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
	}
	return peak
}

// ParseWorkers parses a worker count flag: an integer >= 1 or "auto" (0).
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}
