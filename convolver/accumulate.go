// Package convolver holds the per-block kernels of uniformly partitioned
// overlap-add convolution: the spectral multiply-accumulate over a window of
// partitions and the time-domain reconstruction.
//
// All functions operate on caller-owned buffers and never allocate.
package convolver

import (
	"github.com/cwbudde/algo-dynconv/history"
	"github.com/cwbudde/algo-dynconv/param"
	"github.com/cwbudde/algo-dynconv/partition"
)

// Window converts the normalized file position and length into the active
// partition range [start, end) of a set with numPartitions partitions.
// Inputs outside [0, 1] are clamped.
//
// The products are formed in float32 so that knob values such as 0.7 or 0.9
// land on whole partitions. Both factors are non-negative, so truncation is
// floor.
func Window(filePosition, fileLength float32, numPartitions int) (start, end int) {
	if numPartitions <= 0 {
		return 0, 0
	}
	n := float32(numPartitions)
	start = min(numPartitions, int(param.Clamp(filePosition)*n))
	end = min(numPartitions, start+int(param.Clamp(fileLength)*n))
	return start, end
}

// MultiplyPacked adds scale*(a*b) into acc for packed real spectra. Slots 0
// and 1 (DC and Nyquist) are real; the remaining pairs are complex. All three
// slices must have the same length.
func MultiplyPacked(acc, a, b []float32, scale float32) {
	n := len(acc)
	a = a[:n]
	b = b[:n]

	acc[0] += a[0] * b[0] * scale
	acc[1] += a[1] * b[1] * scale
	for k := 2; k+1 < n; k += 2 {
		ar, ai := a[k], a[k+1]
		br, bi := b[k], b[k+1]
		acc[k] += (ar*br - ai*bi) * scale
		acc[k+1] += (ar*bi + ai*br) * scale
	}
}

// Accumulate clears acc and sums the products of partitions [start, end) of
// seq with the history entries aged 0..end-start-1. Every product is scaled by
// 1/numPartitions regardless of the window width.
func Accumulate(acc []float32, hist *history.Ring, seq *partition.Sequence, start, end, numPartitions int) {
	clear(acc)
	if numPartitions <= 0 || start >= end {
		return
	}
	scale := 1 / float32(numPartitions)
	for i := start; i < end; i++ {
		MultiplyPacked(acc, hist.At(i-start), seq.At(i), scale)
	}
}
