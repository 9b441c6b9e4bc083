// Package spectral provides the real-input FFT used by the convolution engine.
//
// Spectra are stored packed in a float32 buffer twice the transform size:
//
//	buf[0]              DC bin (real)
//	buf[1]              Nyquist bin (real)
//	buf[2k], buf[2k+1]  real and imaginary part of bin k, 1 <= k < size/2
//	buf[size:]          zero
//
// The same buffer holds the time-domain signal in buf[:size] before Forward
// and after Inverse, so every call works in place.
package spectral

import (
	"errors"
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
)

var (
	ErrInvalidSize  = errors.New("spectral: transform size must be a power of two >= 4")
	ErrBufferLength = errors.New("spectral: buffer length must be twice the transform size")
	ErrUncalibrated = errors.New("spectral: inverse transform returned no energy")
)

// Transform is a real-input FFT of a fixed size operating on packed buffers.
type Transform interface {
	// Size returns the transform size W. Buffers passed to Forward and
	// Inverse must have length 2*W.
	Size() int
	// Forward transforms buf[:W] in place into the packed spectrum layout.
	Forward(buf []float32) error
	// Inverse transforms a packed spectrum in place back to buf[:W].
	Inverse(buf []float32) error
}

// realPlan is the subset of an algo-fft real plan used here.
type realPlan interface {
	Forward(dst []complex128, src []float64) error
	Inverse(dst []float64, src []complex128) error
}

// RealFFT implements Transform on top of an algo-fft real plan.
// It keeps its own scratch buffers, so a single instance must not be used
// from two goroutines at once.
type RealFFT struct {
	size     int
	plan     realPlan
	time     []float64
	spec     []complex128
	invScale float64
}

// NewRealFFT creates a transform of the given size.
func NewRealFFT(size int) (*RealFFT, error) {
	if size < 4 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return nil, fmt.Errorf("spectral: create real plan (size=%d): %w", size, err)
	}

	t := &RealFFT{
		size:     size,
		plan:     plan,
		time:     make([]float64, size),
		spec:     make([]complex128, size/2+1),
		invScale: 1,
	}
	if err := t.calibrate(); err != nil {
		return nil, err
	}
	return t, nil
}

// calibrate measures the plan's inverse gain once so that Forward followed
// by Inverse is the identity regardless of the plan's scaling convention.
func (t *RealFFT) calibrate() error {
	clear(t.time)
	t.time[0] = 1
	if err := t.plan.Forward(t.spec, t.time); err != nil {
		return fmt.Errorf("spectral: calibrate forward: %w", err)
	}
	if err := t.plan.Inverse(t.time, t.spec); err != nil {
		return fmt.Errorf("spectral: calibrate inverse: %w", err)
	}
	if t.time[0] == 0 {
		return ErrUncalibrated
	}
	t.invScale = 1 / t.time[0]
	clear(t.time)
	clear(t.spec)
	return nil
}

// Size returns the transform size.
func (t *RealFFT) Size() int {
	return t.size
}

// Forward transforms buf[:Size()] into the packed spectrum.
func (t *RealFFT) Forward(buf []float32) error {
	if len(buf) != 2*t.size {
		return ErrBufferLength
	}

	for i := range t.size {
		t.time[i] = float64(buf[i])
	}
	if err := t.plan.Forward(t.spec, t.time); err != nil {
		return err
	}

	half := t.size / 2
	buf[0] = float32(real(t.spec[0]))
	buf[1] = float32(real(t.spec[half]))
	for k := 1; k < half; k++ {
		buf[2*k] = float32(real(t.spec[k]))
		buf[2*k+1] = float32(imag(t.spec[k]))
	}
	clear(buf[t.size:])
	return nil
}

// Inverse transforms a packed spectrum back to buf[:Size()] and zeroes the
// upper half of buf.
func (t *RealFFT) Inverse(buf []float32) error {
	if len(buf) != 2*t.size {
		return ErrBufferLength
	}

	half := t.size / 2
	t.spec[0] = complex(float64(buf[0]), 0)
	t.spec[half] = complex(float64(buf[1]), 0)
	for k := 1; k < half; k++ {
		t.spec[k] = complex(float64(buf[2*k]), float64(buf[2*k+1]))
	}
	if err := t.plan.Inverse(t.time, t.spec); err != nil {
		return err
	}

	for i := range t.size {
		buf[i] = float32(t.time[i] * t.invScale)
	}
	clear(buf[t.size:])
	return nil
}
