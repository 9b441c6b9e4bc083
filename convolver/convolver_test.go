package convolver

import (
	"math"
	"math/rand"
	"testing"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-dynconv/history"
	"github.com/cwbudde/algo-dynconv/partition"
	"github.com/cwbudde/algo-dynconv/spectral"
)

func TestWindow(t *testing.T) {
	cases := []struct {
		pos, length float32
		n           int
		start, end  int
	}{
		{0, 1, 10, 0, 10},
		{0, 0, 10, 0, 0},
		{0.5, 0, 10, 5, 5},
		{0.5, 1, 10, 5, 10},
		{0.25, 0.5, 8, 2, 6},
		{1, 1, 10, 10, 10},
		{-1, 2, 4, 0, 4},
		{0.75, 0.25, 400, 300, 400},
		{0, 0.9, 10, 0, 9},
		{0, 0.7, 10, 0, 7},
		{0.7, 0.3, 10, 7, 10},
		{0.9, 0.1, 10, 9, 10},
		{0.1, 0.2, 100, 10, 30},
		{0.3, 0.6, 400, 120, 360},
		{0.5, 0.5, 0, 0, 0},
		{float32(math.NaN()), 1, 4, 0, 4},
	}
	for _, c := range cases {
		start, end := Window(c.pos, c.length, c.n)
		if start != c.start || end != c.end {
			t.Fatalf("Window(%v, %v, %d) = [%d, %d), want [%d, %d)", c.pos, c.length, c.n, start, end, c.start, c.end)
		}
		if start < 0 || start > end || end > max(c.n, 0) {
			t.Fatalf("Window(%v, %v, %d) violates ordering: [%d, %d)", c.pos, c.length, c.n, start, end)
		}
	}
}

func TestMultiplyPacked(t *testing.T) {
	acc := []float32{1, 1, 0, 0, 0, 0}
	a := []float32{2, 3, 1, 2, 0, 1}
	b := []float32{4, 5, 3, 4, 0, 1}
	MultiplyPacked(acc, a, b, 0.5)

	// DC: 1 + 2*4*0.5, Nyquist: 1 + 3*5*0.5.
	// (1+2i)(3+4i) = -5+10i; (0+1i)(0+1i) = -1.
	want := []float32{5, 8.5, -2.5, 5, -0.5, 0}
	for i := range want {
		if acc[i] != want[i] {
			t.Fatalf("slot %d: got %f, want %f", i, acc[i], want[i])
		}
	}
}

// pipeline runs the per-block convolution path for one channel.
type pipeline struct {
	tr    *spectral.RealFFT
	set   *partition.Set
	hist  *history.Ring
	frame []float32
	acc   []float32
	tail  []float32
	block int
}

func newPipeline(t *testing.T, ir []float32, block int) *pipeline {
	t.Helper()
	tr, err := spectral.NewRealFFT(2 * block)
	if err != nil {
		t.Fatalf("NewRealFFT: %v", err)
	}
	set, err := partition.Build([][]float32{ir}, block, 1, tr, partition.WithoutNormalization())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	specLen := 4 * block
	return &pipeline{
		tr:    tr,
		set:   set,
		hist:  history.New(set.NumPartitions()+1, specLen),
		frame: make([]float32, specLen),
		acc:   make([]float32, specLen),
		tail:  make([]float32, block),
		block: block,
	}
}

func (p *pipeline) process(t *testing.T, in []float32, start, end int) []float32 {
	t.Helper()
	clear(p.frame)
	copy(p.frame, in)
	if err := p.tr.Forward(p.frame); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	p.hist.Submit(p.frame)
	Accumulate(p.acc, p.hist, p.set.Channel(0), start, end, p.set.NumPartitions())
	if err := p.tr.Inverse(p.acc); err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	out := make([]float32, p.block)
	Reconstruct(out, p.acc, p.tail)
	return out
}

func TestFullWindowMatchesLinearConvolution(t *testing.T) {
	const block = 16
	const blocks = 8
	rng := rand.New(rand.NewSource(7))

	ir := make([]float32, 3*block)
	for i := range ir {
		ir[i] = float32(rng.Float64()*2-1) * float32(math.Exp(-float64(i)/12))
	}
	in := make([]float32, blocks*block)
	for i := range in {
		in[i] = float32(rng.Float64()*2 - 1)
	}

	p := newPipeline(t, ir, block)
	n := p.set.NumPartitions()
	got := make([]float32, 0, len(in))
	for b := 0; b < blocks; b++ {
		got = append(got, p.process(t, in[b*block:(b+1)*block], 0, n)...)
	}

	ref := make([]float32, len(in)+len(ir)-1)
	if err := algofft.ConvolveReal(ref, in, ir); err != nil {
		t.Fatalf("ConvolveReal: %v", err)
	}
	scale := 1 / float32(n)
	for i := range got {
		want := ref[i] * scale
		if math.Abs(float64(got[i]-want)) > 1e-3 {
			t.Fatalf("sample %d: got %f, want %f", i, got[i], want)
		}
	}
}

func TestEmptyWindowIsSilent(t *testing.T) {
	const block = 8
	ir := make([]float32, 2*block)
	ir[0], ir[block] = 1, 0.5
	p := newPipeline(t, ir, block)

	in := make([]float32, block)
	for i := range in {
		in[i] = 1
	}
	for b := 0; b < 4; b++ {
		out := p.process(t, in, 1, 1)
		for i, v := range out {
			if v != 0 {
				t.Fatalf("block %d sample %d: got %f, want 0", b, i, v)
			}
		}
	}
}

// The per-partition scale is 1/numPartitions even when only part of the IR
// is active, so a single-partition window of a two-partition IR halves the
// gain.
func TestPartialWindowKeepsFullScale(t *testing.T) {
	const block = 8
	ir := make([]float32, 2*block)
	ir[block] = 1 // impulse at the start of partition 1
	p := newPipeline(t, ir, block)

	in := make([]float32, block)
	in[0] = 1
	out := p.process(t, in, 1, 2)
	if math.Abs(float64(out[0]-0.5)) > 1e-5 {
		t.Fatalf("out[0] = %f, want 0.5", out[0])
	}
	for i := 1; i < block; i++ {
		if math.Abs(float64(out[i])) > 1e-5 {
			t.Fatalf("out[%d] = %f, want 0", i, out[i])
		}
	}
}

func TestReconstructCarriesTail(t *testing.T) {
	acc := make([]float32, 16)
	for i := range acc {
		acc[i] = float32(i)
	}
	tail := []float32{10, 20, 30, 40}
	out := make([]float32, 4)
	Reconstruct(out, acc, tail)

	wantOut := []float32{10, 21, 32, 43}
	wantTail := []float32{4, 5, 6, 7}
	for i := range out {
		if out[i] != wantOut[i] || tail[i] != wantTail[i] {
			t.Fatalf("index %d: out=%f tail=%f, want out=%f tail=%f", i, out[i], tail[i], wantOut[i], wantTail[i])
		}
	}
}

func TestReconstructFlushesDenormalTail(t *testing.T) {
	acc := make([]float32, 8)
	acc[2] = 1e-35
	tail := make([]float32, 2)
	Reconstruct(make([]float32, 2), acc, tail)
	if tail[0] != 0 {
		t.Fatalf("tail[0] = %g, want 0", tail[0])
	}
}

func TestBlend(t *testing.T) {
	cases := []struct {
		dryWet float32
		want   float32
	}{
		{0, 1},
		{1, 3},
		{0.5, 2},
		{0.25, 1.5},
	}
	for _, c := range cases {
		out := []float32{3, 3}
		Blend(out, []float32{1, 1}, c.dryWet)
		for i, v := range out {
			if math.Abs(float64(v-c.want)) > 1e-6 {
				t.Fatalf("dryWet=%v sample %d: got %f, want %f", c.dryWet, i, v, c.want)
			}
		}
	}
}

func TestKernelsDoNotAllocate(t *testing.T) {
	const block = 32
	ir := make([]float32, 4*block)
	ir[0] = 1
	p := newPipeline(t, ir, block)
	out := make([]float32, block)
	dry := make([]float32, block)
	seq := p.set.Channel(0)
	n := p.set.NumPartitions()

	allocs := testing.AllocsPerRun(50, func() {
		Accumulate(p.acc, p.hist, seq, 0, n, n)
		Reconstruct(out, p.acc, p.tail)
		Blend(out, dry, 0.5)
	})
	if allocs != 0 {
		t.Fatalf("kernels allocated %.1f times per run", allocs)
	}
}
