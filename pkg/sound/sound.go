package sound

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Waveform holds audio samples split by channel.
// Every channel has the same number of samples.
type Waveform struct {
	Channels [][]float64
	Rate     int
}

var (
	ErrSilent    = errors.New("sound: waveform is silent")
	ErrNonFinite = errors.New("sound: waveform has non finite samples")
	ErrEmpty     = errors.New("sound: waveform is empty")
)

// NewMono returns a single channel waveform.
func NewMono(samples []float64, rate int) *Waveform {
	return &Waveform{Channels: [][]float64{samples}, Rate: rate}
}

func (w *Waveform) NumChannels() int {
	return len(w.Channels)
}

// Len returns the number of samples per channel.
func (w *Waveform) Len() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

func (w *Waveform) Duration() time.Duration {
	if w.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(w.Len()) / float64(w.Rate) * float64(time.Second))
}

// Peak returns the maximum absolute sample value.
func (w *Waveform) Peak() float64 {
	var peak float64
	for _, ch := range w.Channels {
		for _, v := range ch {
			if math.IsNaN(v) {
				return math.NaN()
			}
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// RMS returns the root mean square over all channels.
func (w *Waveform) RMS() float64 {
	var sum float64
	var n int
	for _, ch := range w.Channels {
		for _, v := range ch {
			sum += v * v
		}
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Mono mixes all channels down to one.
func (w *Waveform) Mono() []float64 {
	if len(w.Channels) == 1 {
		return w.Channels[0]
	}
	mono := make([]float64, w.Len())
	for _, ch := range w.Channels {
		for i, v := range ch {
			mono[i] += v
		}
	}
	n := float64(len(w.Channels))
	for i := range mono {
		mono[i] /= n
	}
	return mono
}

func (w *Waveform) Clone() *Waveform {
	channels := make([][]float64, len(w.Channels))
	for i, ch := range w.Channels {
		channels[i] = append([]float64(nil), ch...)
	}
	return &Waveform{Channels: channels, Rate: w.Rate}
}

func (w *Waveform) scale(gain float64) {
	for _, ch := range w.Channels {
		for i := range ch {
			ch[i] *= gain
		}
	}
}

func (w *Waveform) apply(fn func(float64) float64) {
	for _, ch := range w.Channels {
		for i := range ch {
			ch[i] = fn(ch[i])
		}
	}
}

// Squeeze drops the batch dimension of a model output, keeping the first
// item, and checks that its channels are consistent.
func Squeeze(batch []*Waveform) (*Waveform, error) {
	if len(batch) == 0 || batch[0] == nil {
		return nil, ErrEmpty
	}
	w := batch[0]
	var channels [][]float64
	for _, ch := range w.Channels {
		if len(ch) == 0 {
			continue
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return nil, ErrEmpty
	}
	for i, ch := range channels {
		if len(ch) != len(channels[0]) {
			return nil, fmt.Errorf("sound: channel %d has %d samples, want %d", i, len(ch), len(channels[0]))
		}
	}
	if w.Rate <= 0 {
		return nil, fmt.Errorf("sound: invalid sample rate %d", w.Rate)
	}
	return &Waveform{Channels: channels, Rate: w.Rate}, nil
}

// Normalize scales the waveform in place so its peak equals the given level.
// A silent waveform cannot be normalized and returns ErrSilent.
func Normalize(w *Waveform, level float64) error {
	if w.Len() == 0 {
		return ErrEmpty
	}
	peak := w.Peak()
	if math.IsNaN(peak) || math.IsInf(peak, 0) {
		return ErrNonFinite
	}
	if peak == 0 {
		return ErrSilent
	}
	w.scale(level / peak)
	return nil
}
