package engine

import (
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-dynconv/param"
)

func benchmarkProcess(b *testing.B, blockSize, irSamples int) {
	e := newTestEngine(b, blockSize, WithInitialParams(param.Snapshot{FileLength: 1, DryWet: 0.5}))
	rng := rand.New(rand.NewSource(1))
	ir := make([]float32, irSamples)
	for i := range ir {
		ir[i] = float32(rng.Float64()*2 - 1)
	}
	if err := e.LoadIR([][]float32{ir, ir}); err != nil {
		b.Fatalf("LoadIR: %v", err)
	}
	block := randomBlock(rng, 2, blockSize)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Process(block); err != nil {
			b.Fatalf("Process: %v", err)
		}
	}
}

func BenchmarkProcess128Short(b *testing.B) { benchmarkProcess(b, 128, 4096) }
func BenchmarkProcess128Long(b *testing.B)  { benchmarkProcess(b, 128, 48000) }
func BenchmarkProcess512Max(b *testing.B)   { benchmarkProcess(b, 512, 400*512) }
