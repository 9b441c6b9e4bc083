package irfile

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-dynconv/internal/wavio"
)

func writeTempIR(t *testing.T, channels [][]float32, sampleRate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ir.wav")
	if err := wavio.Write(path, channels, sampleRate); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"a.wav":     FormatWAV,
		"B.WAV":     FormatWAV,
		"room.aif":  FormatAIFF,
		"room.aiff": FormatAIFF,
		"x.mp3":     FormatUnknown,
		"noext":     FormatUnknown,
	}
	for path, want := range cases {
		if got := FormatFromPath(path); got != want {
			t.Fatalf("FormatFromPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDecodeStereoWAV(t *testing.T) {
	left := []float32{0.5, 0.25, 0, -0.25}
	right := []float32{-0.5, 0, 0.125, 0}
	path := writeTempIR(t, [][]float32{left, right}, 44100)

	ir, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ir.NumChannels() != 2 || ir.Frames() != 4 || ir.SampleRate != 44100 {
		t.Fatalf("got %d ch, %d frames @ %d Hz", ir.NumChannels(), ir.Frames(), ir.SampleRate)
	}
	for i := range left {
		if math.Abs(float64(ir.Channels[0][i]-left[i])) > 1e-3 {
			t.Fatalf("left[%d] = %f, want %f", i, ir.Channels[0][i], left[i])
		}
		if math.Abs(float64(ir.Channels[1][i]-right[i])) > 1e-3 {
			t.Fatalf("right[%d] = %f, want %f", i, ir.Channels[1][i], right[i])
		}
	}
}

func TestDecodeUnsupportedExtension(t *testing.T) {
	_, err := Decode("impulse.ogg")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T (%v)", err, err)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if de.Path != "impulse.ogg" {
		t.Fatalf("Path = %q", de.Path)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := Decode(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte("not audio "), 8)
	for _, format := range []Format{FormatWAV, FormatAIFF} {
		_, err := DecodeReader(bytes.NewReader(garbage), format)
		if !errors.Is(err, ErrInvalidFile) {
			t.Fatalf("%s: expected ErrInvalidFile, got %v", format, err)
		}
	}

	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Decode(path)
	var de *DecodeError
	if !errors.As(err, &de) || de.Path != path {
		t.Fatalf("expected DecodeError with path, got %v", err)
	}
}

func TestResample(t *testing.T) {
	ir := &IR{
		Channels:   [][]float32{make([]float32, 4410), make([]float32, 4410)},
		SampleRate: 44100,
	}
	ir.Channels[0][0] = 1
	ir.Channels[1][0] = 1

	if err := ir.Resample(44100); err != nil {
		t.Fatalf("same-rate Resample: %v", err)
	}
	if ir.Frames() != 4410 {
		t.Fatalf("same-rate resample changed length to %d", ir.Frames())
	}

	if err := ir.Resample(48000); err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if ir.SampleRate != 48000 {
		t.Fatalf("SampleRate = %d, want 48000", ir.SampleRate)
	}
	want := 4800
	for ch, samples := range ir.Channels {
		if d := len(samples) - want; d < -64 || d > 64 {
			t.Fatalf("channel %d length = %d, want about %d", ch, len(samples), want)
		}
	}

	if err := ir.Resample(0); err == nil {
		t.Fatal("expected error for zero target rate")
	}
}
