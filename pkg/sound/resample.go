package sound

import "fmt"

// Resample converts the waveform to the given rate using linear
// interpolation. The same waveform is returned if the rate already matches.
func Resample(w *Waveform, rate int) (*Waveform, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sound: invalid sample rate %d", rate)
	}
	if w.Rate == rate {
		return w, nil
	}
	if w.Rate <= 0 {
		return nil, fmt.Errorf("sound: invalid source sample rate %d", w.Rate)
	}
	n := w.Len()
	if n == 0 {
		return nil, ErrEmpty
	}
	m := int(int64(n) * int64(rate) / int64(w.Rate))
	if m < 1 {
		m = 1
	}
	ratio := float64(w.Rate) / float64(rate)
	channels := make([][]float64, len(w.Channels))
	for c, ch := range w.Channels {
		out := make([]float64, m)
		for i := range out {
			pos := float64(i) * ratio
			j := int(pos)
			if j >= n-1 {
				out[i] = ch[n-1]
				continue
			}
			frac := pos - float64(j)
			out[i] = ch[j]*(1-frac) + ch[j+1]*frac
		}
		channels[c] = out
	}
	return &Waveform{Channels: channels, Rate: rate}, nil
}
