// Package engine runs dynamic partitioned convolution on fixed-size audio
// blocks.
//
// An Engine has two callers. The render path calls Process once per block
// and never blocks or allocates. The control path calls Prepare, LoadIR,
// LoadIRFile, Reset and the parameter setters from any goroutine. Control
// operations build a complete new state off the render path and publish it
// with a single atomic pointer swap, so Process always sees either the old or
// the new state in full.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-dynconv/convolver"
	"github.com/cwbudde/algo-dynconv/irfile"
	"github.com/cwbudde/algo-dynconv/param"
	"github.com/cwbudde/algo-dynconv/partition"
	"github.com/cwbudde/algo-dynconv/spectral"
)

// Engine is a stereo or mono convolution processor with a scrubbable IR
// window and a dry/wet blend.
type Engine struct {
	cfg    config
	log    logrus.FieldLogger
	params *param.Bridge

	cur     atomic.Pointer[snapshot]
	loading atomic.Int32

	// Guarded by mu; control path only.
	mu         sync.Mutex
	blockSize  int
	sampleRate float64
	renderTr   *spectral.RealFFT
	buildTr    *spectral.RealFFT
	source     *irfile.IR
}

// New creates an unprepared engine.
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		cfg:    cfg,
		log:    cfg.logger,
		params: param.NewBridge(cfg.params),
	}
}

// Prepare configures the block size and sample rate and resets all channel
// state. If an IR was loaded before, it is rebuilt for the new geometry.
// Process must not run concurrently with Prepare.
func (e *Engine) Prepare(blockSize int, sampleRate float64) error {
	if blockSize < 2 || blockSize&(blockSize-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBlockSize, blockSize)
	}
	if !(sampleRate > 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleRate, sampleRate)
	}
	if e.cfg.channels < 1 || e.cfg.channels > 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidChannels, e.cfg.channels)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if blockSize != e.blockSize || e.renderTr == nil {
		renderTr, err := spectral.NewRealFFT(2 * blockSize)
		if err != nil {
			return fmt.Errorf("engine: prepare: %w", err)
		}
		buildTr, err := spectral.NewRealFFT(2 * blockSize)
		if err != nil {
			return fmt.Errorf("engine: prepare: %w", err)
		}
		e.renderTr = renderTr
		e.buildTr = buildTr
	}
	e.blockSize = blockSize
	e.sampleRate = sampleRate

	e.log.WithFields(logrus.Fields{
		"block_size":  blockSize,
		"sample_rate": sampleRate,
		"channels":    e.cfg.channels,
	}).Debug("engine prepared")

	if e.source == nil {
		e.cur.Store(newSnapshot(blockSize, e.cfg.channels, nil, e.renderTr))
		return nil
	}

	e.loading.Add(1)
	defer e.loading.Add(-1)

	set, err := e.build(e.source)
	if err != nil {
		e.log.WithError(err).Warn("rebuilding impulse response failed")
		e.cur.Store(newSnapshot(blockSize, e.cfg.channels, nil, e.renderTr))
		return err
	}
	e.publish(set)
	return nil
}

// LoadIR replaces the impulse response with ir (one slice per channel, at
// the prepared sample rate). The samples are copied. On error the previous
// IR stays active.
//
// LoadIR may be called before Prepare; the IR is then validated, retained,
// and partitioned by the first Prepare.
func (e *Engine) LoadIR(ir [][]float32) error {
	src := &irfile.IR{Channels: make([][]float32, len(ir))}
	for ch, samples := range ir {
		src.Channels[ch] = append([]float32(nil), samples...)
	}
	return e.load(src)
}

// LoadIRFile decodes path with the configured decoder and loads it,
// resampling to the prepared rate. Decode failures are logged and leave the
// previous IR active.
func (e *Engine) LoadIRFile(path string) error {
	ir, err := e.cfg.decoder(path)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Warn("impulse response decode failed")
		return err
	}
	e.log.WithFields(logrus.Fields{
		"path":        path,
		"channels":    ir.NumChannels(),
		"frames":      ir.Frames(),
		"sample_rate": ir.SampleRate,
	}).Debug("impulse response decoded")
	return e.load(ir)
}

func (e *Engine) load(src *irfile.IR) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loading.Add(1)
	defer e.loading.Add(-1)

	if e.renderTr == nil {
		if err := validate(src.Channels); err != nil {
			return err
		}
		e.source = src
		e.log.Debug("impulse response retained until prepare")
		return nil
	}

	set, err := e.build(src)
	if err != nil {
		e.log.WithError(err).Warn("impulse response load failed")
		return err
	}
	e.source = src
	e.publish(set)
	return nil
}

// build resamples src if needed and partitions it. Caller holds mu.
func (e *Engine) build(src *irfile.IR) (*partition.Set, error) {
	channels := src.Channels
	rate := int(e.sampleRate)
	if src.SampleRate > 0 && src.SampleRate != rate {
		tmp := &irfile.IR{
			Channels:   append([][]float32(nil), src.Channels...),
			SampleRate: src.SampleRate,
		}
		if err := tmp.Resample(rate); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		channels = tmp.Channels
	}

	var opts []partition.BuildOption
	if !e.cfg.normalize {
		opts = append(opts, partition.WithoutNormalization())
	}
	set, err := partition.Build(channels, e.blockSize, e.cfg.channels, e.buildTr, opts...)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"ir_channels":    set.IRChannels(),
		"ir_samples":     set.IRSamples(),
		"partitions":     set.NumPartitions(),
		"partition_size": set.PartitionSize(),
		"peak":           set.Peak(),
	}).Info("impulse response loaded")
	return set, nil
}

// publish swaps in a fresh snapshot with zeroed channel state. Caller holds mu.
func (e *Engine) publish(set *partition.Set) {
	e.cur.Store(newSnapshot(e.blockSize, e.cfg.channels, set, e.renderTr))
}

func validate(ir [][]float32) error {
	if len(ir) == 0 || len(ir[0]) == 0 {
		return fmt.Errorf("%w: no samples", partition.ErrInvalidIR)
	}
	for ch, samples := range ir {
		if len(samples) == 0 {
			return fmt.Errorf("%w: channel %d is empty", partition.ErrInvalidIR, ch)
		}
	}
	return nil
}

// Process convolves block in place. block must hold one slice per channel,
// each exactly BlockSize() samples long.
//
// Without a loaded IR the block is left unchanged.
func (e *Engine) Process(block [][]float32) error {
	s := e.cur.Load()
	if s == nil {
		return ErrNotPrepared
	}
	if len(block) != s.outputs {
		return ErrGeometryMismatch
	}
	for _, ch := range block {
		if len(ch) != s.blockSize {
			return ErrGeometryMismatch
		}
	}
	if s.set == nil {
		return nil
	}

	p := e.params.Snapshot()
	n := s.set.NumPartitions()
	start, end := convolver.Window(p.FilePosition, p.FileLength, n)

	for c, st := range s.channels {
		in := block[c]
		copy(st.dry, in)

		copy(st.frame, in)
		clear(st.frame[s.blockSize:])
		if err := s.tr.Forward(st.frame); err != nil {
			return ErrTransform
		}
		st.hist.Submit(st.frame)

		convolver.Accumulate(st.acc, st.hist, s.set.Channel(c), start, end, n)
		if err := s.tr.Inverse(st.acc); err != nil {
			return ErrTransform
		}
		convolver.Reconstruct(in, st.acc, st.tail)
		convolver.Blend(in, st.dry, p.DryWet)
	}
	return nil
}

// Reset clears the input history and overlap tails of every channel.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.cur.Load()
	if s == nil {
		return
	}
	e.cur.Store(newSnapshot(s.blockSize, s.outputs, s.set, s.tr))
}

// SetFilePosition sets the start of the active IR window as a fraction of
// the IR length.
func (e *Engine) SetFilePosition(v float32) { e.params.FilePosition.Store(v) }

// SetFileLength sets the width of the active IR window as a fraction of the
// IR length.
func (e *Engine) SetFileLength(v float32) { e.params.FileLength.Store(v) }

// SetDryWet sets the wet share of the output.
func (e *Engine) SetDryWet(v float32) { e.params.DryWet.Store(v) }

// SetParams stores all three parameters.
func (e *Engine) SetParams(s param.Snapshot) { e.params.Set(s) }

// Params returns the current parameter values.
func (e *Engine) Params() param.Snapshot { return e.params.Snapshot() }

// State reports the IR lifecycle state.
func (e *Engine) State() State {
	if e.loading.Load() > 0 {
		return Loading
	}
	if s := e.cur.Load(); s != nil && s.set != nil {
		return Ready
	}
	return Unloaded
}

// Channels returns the configured channel count.
func (e *Engine) Channels() int { return e.cfg.channels }

// BlockSize returns the prepared block size, or 0.
func (e *Engine) BlockSize() int {
	if s := e.cur.Load(); s != nil {
		return s.blockSize
	}
	return 0
}

// NumPartitions returns the partition count of the active IR, or 0.
func (e *Engine) NumPartitions() int {
	if s := e.cur.Load(); s != nil && s.set != nil {
		return s.set.NumPartitions()
	}
	return 0
}

// Latency returns the processing latency in samples on top of the host's
// block buffering. Output block n already contains input block n convolved.
func (e *Engine) Latency() int { return 0 }

// ActiveRange returns the IR sample range [start, end) covered by the
// current window. Both are 0 when no IR is loaded.
func (e *Engine) ActiveRange() (start, end int) {
	s := e.cur.Load()
	if s == nil || s.set == nil {
		return 0, 0
	}
	p := e.params.Snapshot()
	first, last := convolver.Window(p.FilePosition, p.FileLength, s.set.NumPartitions())
	irLen := s.set.IRSamples()
	return min(first*s.blockSize, irLen), min(last*s.blockSize, irLen)
}
