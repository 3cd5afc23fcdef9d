package sound

import (
	"math"
	"time"
)

const (
	gateDuration  = 400 * time.Millisecond
	gateOverlap   = 0.75
	absoluteGate  = -70.0
	relativeGate  = -10.0
	loudnessShift = -0.691
)

// MeasureLoudness returns the integrated loudness of the waveform in LUFS following
// ITU-R BS.1770-4. It returns -Inf when every block is below the absolute
// gate. Waveforms shorter than one gating block are measured as one block.
func MeasureLoudness(w *Waveform) float64 {
	if w.Len() == 0 || w.Rate <= 0 {
		return math.Inf(-1)
	}

	// K-weighting: high shelf followed by a high-pass filter.
	weighted := make([][]float64, len(w.Channels))
	shelf := trebleBiquad(w.Rate, 4.0, 1500.0, 1/math.Sqrt2)
	highpass := highpassBiquad(w.Rate, 38.0, 0.5)
	for i, ch := range w.Channels {
		weighted[i] = highpass.filter(shelf.filter(ch))
	}

	size := int(gateDuration.Seconds() * float64(w.Rate))
	step := int(float64(size) * (1 - gateOverlap))
	n := w.Len()
	if size > n {
		size = n
	}
	if step < 1 {
		step = 1
	}

	// Mean square energy per block and channel.
	var blocks [][]float64
	for start := 0; start+size <= n; start += step {
		energy := make([]float64, len(weighted))
		for c, ch := range weighted {
			var sum float64
			for _, v := range ch[start : start+size] {
				sum += v * v
			}
			energy[c] = sum / float64(size)
		}
		blocks = append(blocks, energy)
	}

	blockLoudness := func(energy []float64) float64 {
		var sum float64
		for c, e := range energy {
			sum += channelWeight(c) * e
		}
		return loudnessShift + 10*math.Log10(sum)
	}

	gated := func(threshold float64) [][]float64 {
		var out [][]float64
		for _, b := range blocks {
			if blockLoudness(b) > threshold {
				out = append(out, b)
			}
		}
		return out
	}

	abs := gated(absoluteGate)
	if len(abs) == 0 {
		return math.Inf(-1)
	}
	rel := gated(blockLoudness(meanEnergy(abs)) + relativeGate)
	if len(rel) == 0 {
		return math.Inf(-1)
	}
	return blockLoudness(meanEnergy(rel))
}

func meanEnergy(blocks [][]float64) []float64 {
	mean := make([]float64, len(blocks[0]))
	for _, b := range blocks {
		for c, e := range b {
			mean[c] += e
		}
	}
	for c := range mean {
		mean[c] /= float64(len(blocks))
	}
	return mean
}

// channelWeight follows the BS.1770 layout: L, R, C weigh 1 and surround
// channels 1.41.
func channelWeight(c int) float64 {
	if c == 3 || c == 4 {
		return 1.41
	}
	return 1.0
}

type biquad struct {
	b0, b1, b2, a1, a2 float64
}

func newBiquad(b0, b1, b2, a0, a1, a2 float64) biquad {
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func trebleBiquad(rate int, gain, freq, q float64) biquad {
	w0 := 2 * math.Pi * freq / float64(rate)
	alpha := math.Sin(w0) / 2 / q
	a := math.Exp(gain / 40 * math.Log(10))
	t1 := 2 * math.Sqrt(a) * alpha
	t2 := (a - 1) * math.Cos(w0)
	t3 := (a + 1) * math.Cos(w0)
	return newBiquad(
		a*((a+1)+t2+t1),
		-2*a*((a-1)+t3),
		a*((a+1)+t2-t1),
		(a+1)-t2+t1,
		2*((a-1)-t3),
		(a+1)-t2-t1,
	)
}

func highpassBiquad(rate int, cutoff, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / float64(rate)
	alpha := math.Sin(w0) / 2 / q
	cos := math.Cos(w0)
	return newBiquad((1+cos)/2, -1-cos, (1+cos)/2, 1+alpha, -2*cos, 1-alpha)
}

func (f biquad) filter(in []float64) []float64 {
	out := make([]float64, len(in))
	var x1, x2, y1, y2 float64
	for i, x := range in {
		y := f.b0*x + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		out[i] = y
	}
	return out
}
