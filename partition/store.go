// Package partition splits an impulse response into uniformly sized,
// frequency-domain partitions for block convolution.
package partition

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dynconv/spectral"
)

// MaxPartitions bounds the per-block multiply-accumulate cost.
const MaxPartitions = 400

var (
	ErrInvalidIR            = errors.New("partition: invalid impulse response")
	ErrInvalidPartitionSize = errors.New("partition: invalid partition size")
)

// Sequence is an immutable ordered list of spectral partitions for one IR
// channel. It holds Count()+1 spectra; the last one is an all-zero guard.
type Sequence struct {
	spectra [][]float32
}

// At returns spectral partition i. The returned slice must not be modified.
func (s *Sequence) At(i int) []float32 {
	return s.spectra[i]
}

// Len returns the number of stored spectra including the guard slot.
func (s *Sequence) Len() int {
	return len(s.spectra)
}

// Set is a fully built, immutable partition set ready to be published to the
// render path. Output channels that map to the same IR channel share one
// *Sequence.
type Set struct {
	partitionSize int
	numPartitions int
	irChannels    int
	irSamples     int
	peak          float32
	sequences     []*Sequence
}

// PartitionSize returns the frame length in samples (the engine block size).
func (s *Set) PartitionSize() int { return s.partitionSize }

// NumPartitions returns the number of active partitions (<= MaxPartitions).
func (s *Set) NumPartitions() int { return s.numPartitions }

// IRChannels returns the channel count of the source IR.
func (s *Set) IRChannels() int { return s.irChannels }

// IRSamples returns the length of the source IR in samples.
func (s *Set) IRSamples() int { return s.irSamples }

// Peak returns the channel-0 peak magnitude measured before normalization.
func (s *Set) Peak() float32 { return s.peak }

// Outputs returns the number of output channels the set was built for.
func (s *Set) Outputs() int { return len(s.sequences) }

// Channel returns the sequence feeding output channel ch.
func (s *Set) Channel(ch int) *Sequence { return s.sequences[ch] }

// Shared reports whether output channels a and b read the same sequence.
func (s *Set) Shared(a, b int) bool { return s.sequences[a] == s.sequences[b] }

type buildConfig struct {
	normalize bool
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithoutNormalization keeps the IR amplitude as given.
func WithoutNormalization() BuildOption {
	return func(c *buildConfig) {
		c.normalize = false
	}
}

// Count returns ceil(irSamples/partitionSize) capped at MaxPartitions.
func Count(irSamples, partitionSize int) int {
	if irSamples <= 0 || partitionSize <= 0 {
		return 0
	}
	return min(MaxPartitions, (irSamples+partitionSize-1)/partitionSize)
}

// Peak returns the largest absolute sample value of x.
func Peak(x []float32) float32 {
	var peak float32
	for _, v := range x {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	return peak
}

// Normalize scales every channel by 1/peak(channel 0) in place and returns
// the measured peak. Silent IRs are left untouched.
func Normalize(ir [][]float32) float32 {
	if len(ir) == 0 {
		return 0
	}
	peak := Peak(ir[0])
	if peak == 0 {
		return 0
	}
	g := 1 / peak
	for _, ch := range ir {
		for i := range ch {
			ch[i] *= g
		}
	}
	return peak
}

// Build partitions ir into spectra of length 2*tr.Size() for the given number
// of output channels. Output channel c reads IR channel min(c, len(ir)-1); a
// mono IR therefore yields one sequence shared by every output.
//
// The caller's slices are not modified. tr is used only for the duration of
// the call.
func Build(ir [][]float32, partitionSize, outputs int, tr spectral.Transform, opts ...BuildOption) (*Set, error) {
	cfg := buildConfig{normalize: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(ir) == 0 || len(ir[0]) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidIR)
	}
	for ch, samples := range ir {
		if len(samples) == 0 {
			return nil, fmt.Errorf("%w: channel %d is empty", ErrInvalidIR, ch)
		}
	}
	if outputs < 1 {
		return nil, fmt.Errorf("%w: outputs must be >= 1, got %d", ErrInvalidIR, outputs)
	}
	if partitionSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPartitionSize, partitionSize)
	}
	if tr == nil || tr.Size() != 2*partitionSize {
		return nil, fmt.Errorf("%w: transform size must be 2*%d", ErrInvalidPartitionSize, partitionSize)
	}

	used := min(len(ir), outputs)
	work := make([][]float32, used)
	for ch := range work {
		work[ch] = append([]float32(nil), ir[ch]...)
	}

	peak := Peak(ir[0])
	if cfg.normalize {
		Normalize(work)
	}

	numPartitions := Count(len(ir[0]), partitionSize)
	specLen := 2 * tr.Size()

	built := make([]*Sequence, used)
	for ch, samples := range work {
		seq, err := buildSequence(samples, partitionSize, numPartitions, specLen, tr)
		if err != nil {
			return nil, fmt.Errorf("partition: channel %d: %w", ch, err)
		}
		built[ch] = seq
	}

	sequences := make([]*Sequence, outputs)
	for out := range sequences {
		sequences[out] = built[min(out, used-1)]
	}

	return &Set{
		partitionSize: partitionSize,
		numPartitions: numPartitions,
		irChannels:    len(ir),
		irSamples:     len(ir[0]),
		peak:          peak,
		sequences:     sequences,
	}, nil
}

func buildSequence(samples []float32, partitionSize, numPartitions, specLen int, tr spectral.Transform) (*Sequence, error) {
	spectra := make([][]float32, numPartitions+1)
	for i := range spectra {
		spectra[i] = make([]float32, specLen)
	}

	for p := 0; p < numPartitions; p++ {
		start := p * partitionSize
		if start < len(samples) {
			end := min(start+partitionSize, len(samples))
			copy(spectra[p], samples[start:end])
		}
		if err := tr.Forward(spectra[p]); err != nil {
			return nil, fmt.Errorf("transform partition %d: %w", p, err)
		}
	}
	return &Sequence{spectra: spectra}, nil
}
