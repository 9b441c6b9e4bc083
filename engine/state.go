package engine

import (
	"github.com/cwbudde/algo-dynconv/history"
	"github.com/cwbudde/algo-dynconv/partition"
	"github.com/cwbudde/algo-dynconv/spectral"
)

// State is the IR lifecycle state reported by Engine.State.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// channelState is the render-owned working set of one output channel.
type channelState struct {
	hist  *history.Ring
	frame []float32 // 2W: zero-padded input, then its spectrum
	acc   []float32 // 2W: accumulated spectrum, then the wet time signal
	tail  []float32 // B: overlap carried into the next block
	dry   []float32 // B: copy of the input for the dry/wet blend
}

func newChannelState(blockSize, numPartitions int) *channelState {
	specLen := 4 * blockSize
	return &channelState{
		hist:  history.New(numPartitions+1, specLen),
		frame: make([]float32, specLen),
		acc:   make([]float32, specLen),
		tail:  make([]float32, blockSize),
		dry:   make([]float32, blockSize),
	}
}

// snapshot is everything one Process call needs. It is published whole and
// never mutated afterwards, except for the channel buffers, which only the
// render path touches.
type snapshot struct {
	blockSize int
	outputs   int
	set       *partition.Set // nil while no IR is loaded
	tr        spectral.Transform
	channels  []*channelState
}

func newSnapshot(blockSize, outputs int, set *partition.Set, tr spectral.Transform) *snapshot {
	s := &snapshot{
		blockSize: blockSize,
		outputs:   outputs,
		set:       set,
		tr:        tr,
	}
	if set != nil {
		s.channels = make([]*channelState, outputs)
		for ch := range s.channels {
			s.channels[ch] = newChannelState(blockSize, set.NumPartitions())
		}
	}
	return s
}
