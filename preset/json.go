package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/engine"
	"github.com/cwbudde/algo-dynconv/param"
)

// Session is a complete engine configuration.
type Session struct {
	IRPath     string
	BlockSize  int
	SampleRate float64
	Channels   int
	Normalize  bool
	Params     param.Snapshot
	Sweep      *Sweep
}

// Sweep moves the file position linearly over a render.
type Sweep struct {
	From float32
	To   float32
}

// DefaultSession returns the settings used when no preset is given.
func DefaultSession() *Session {
	return &Session{
		BlockSize:  512,
		SampleRate: 48000,
		Channels:   2,
		Normalize:  true,
		Params:     param.Defaults,
	}
}

// File is the JSON schema for session presets. Absent fields keep their
// current value.
type File struct {
	IRPath       string       `json:"ir_path"`
	BlockSize    *int         `json:"block_size"`
	SampleRate   *float64     `json:"sample_rate"`
	Channels     *int         `json:"channels"`
	Normalize    *bool        `json:"normalize"`
	FilePosition *float32     `json:"file_position"`
	FileLength   *float32     `json:"file_length"`
	DryWet       *float32     `json:"dry_wet"`
	Sweep        *SweepConfig `json:"sweep"`
}

// SweepConfig is the JSON form of Sweep.
type SweepConfig struct {
	From *float32 `json:"from"`
	To   *float32 `json:"to"`
}

// LoadJSON loads a preset JSON file and applies it on top of the defaults.
// A relative ir_path is resolved against the preset's directory.
func LoadJSON(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	s := DefaultSession()
	if err := ApplyFile(s, &f); err != nil {
		return nil, err
	}

	if s.IRPath != "" && !filepath.IsAbs(s.IRPath) {
		base := filepath.Dir(path)
		s.IRPath = filepath.Clean(filepath.Join(base, s.IRPath))
	}
	return s, nil
}

// ApplyFile applies a parsed preset file onto an existing session.
func ApplyFile(dst *Session, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination session")
	}
	if f == nil {
		return nil
	}

	if f.IRPath != "" {
		dst.IRPath = strings.TrimSpace(f.IRPath)
	}
	if f.BlockSize != nil {
		bs := *f.BlockSize
		if bs < 2 || bs&(bs-1) != 0 {
			return fmt.Errorf("block_size must be a power of two >= 2")
		}
		dst.BlockSize = bs
	}
	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fmt.Errorf("sample_rate must be > 0")
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.Channels != nil {
		if *f.Channels != 1 && *f.Channels != 2 {
			return fmt.Errorf("channels must be 1 or 2")
		}
		dst.Channels = *f.Channels
	}
	if f.Normalize != nil {
		dst.Normalize = *f.Normalize
	}
	if f.FilePosition != nil {
		if err := checkUnit("file_position", *f.FilePosition); err != nil {
			return err
		}
		dst.Params.FilePosition = *f.FilePosition
	}
	if f.FileLength != nil {
		if err := checkUnit("file_length", *f.FileLength); err != nil {
			return err
		}
		dst.Params.FileLength = *f.FileLength
	}
	if f.DryWet != nil {
		if err := checkUnit("dry_wet", *f.DryWet); err != nil {
			return err
		}
		dst.Params.DryWet = *f.DryWet
	}

	if f.Sweep == nil {
		return nil
	}
	sw := Sweep{From: dst.Params.FilePosition, To: dst.Params.FilePosition}
	if dst.Sweep != nil {
		sw = *dst.Sweep
	}
	if f.Sweep.From != nil {
		if err := checkUnit("sweep.from", *f.Sweep.From); err != nil {
			return err
		}
		sw.From = *f.Sweep.From
	}
	if f.Sweep.To != nil {
		if err := checkUnit("sweep.to", *f.Sweep.To); err != nil {
			return err
		}
		sw.To = *f.Sweep.To
	}
	dst.Sweep = &sw
	return nil
}

func checkUnit(name string, v float32) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%s must be in [0,1]", name)
	}
	return nil
}

// Options converts the session into engine options.
func (s *Session) Options() []engine.Option {
	return []engine.Option{
		engine.WithChannels(s.Channels),
		engine.WithNormalization(s.Normalize),
		engine.WithInitialParams(s.Params),
	}
}

// Open creates, prepares and loads an engine for the session.
func (s *Session) Open(logger logrus.FieldLogger) (*engine.Engine, error) {
	opts := s.Options()
	if logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	e := engine.New(opts...)
	if err := e.Prepare(s.BlockSize, s.SampleRate); err != nil {
		return nil, err
	}
	if s.IRPath != "" {
		if err := e.LoadIRFile(s.IRPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// PositionAt returns the file position for progress in [0, 1].
func (s *Session) PositionAt(progress float64) float32 {
	if s.Sweep == nil {
		return s.Params.FilePosition
	}
	p := float32(min(1, max(0, progress)))
	return s.Sweep.From + (s.Sweep.To-s.Sweep.From)*p
}

// ToFile converts s into its JSON form with every field set.
func (s *Session) ToFile() *File {
	bs, sr, ch, norm := s.BlockSize, s.SampleRate, s.Channels, s.Normalize
	pos, length, dw := s.Params.FilePosition, s.Params.FileLength, s.Params.DryWet
	f := &File{
		IRPath:       s.IRPath,
		BlockSize:    &bs,
		SampleRate:   &sr,
		Channels:     &ch,
		Normalize:    &norm,
		FilePosition: &pos,
		FileLength:   &length,
		DryWet:       &dw,
	}
	if s.Sweep != nil {
		from, to := s.Sweep.From, s.Sweep.To
		f.Sweep = &SweepConfig{From: &from, To: &to}
	}
	return f
}

// SaveJSON writes s to path, creating parent directories as needed.
func SaveJSON(path string, s *Session) error {
	b, err := json.MarshalIndent(s.ToFile(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
