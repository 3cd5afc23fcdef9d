package sound

import (
	"fmt"
	"math"
	"strings"
)

// Strategy defines how a waveform is scaled before being encoded.
type Strategy string

const (
	Clip     Strategy = "clip"
	Peak     Strategy = "peak"
	RMS      Strategy = "rms"
	Loudness Strategy = "loudness"
)

var strategies = []Strategy{Clip, Peak, RMS, Loudness}

func ParseStrategy(s string) (Strategy, error) {
	for _, st := range strategies {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("sound: unknown strategy %q", s)
}

// energyFloor is the RMS below which loudness normalization is skipped.
const energyFloor = 2e-3

type WriteOptions struct {
	Strategy   Strategy
	Compressor bool

	PeakHeadroomDB     float64
	RMSHeadroomDB      float64
	LoudnessHeadroomDB float64
}

// DefaultWriteOptions returns the loudness strategy with the compressor
// enabled, targeting -14 LUFS.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Strategy:           Loudness,
		Compressor:         true,
		PeakHeadroomDB:     1,
		RMSHeadroomDB:      18,
		LoudnessHeadroomDB: 14,
	}
}

// Prepare returns a copy of the waveform scaled according to the strategy and
// clipped to [-1, 1].
func Prepare(w *Waveform, opts WriteOptions) (*Waveform, error) {
	if w.Len() == 0 {
		return nil, ErrEmpty
	}
	out := w.Clone()
	switch opts.Strategy {
	case Clip, "":
	case Peak:
		peak := out.Peak()
		if peak == 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
			return nil, ErrSilent
		}
		out.scale(dbToGain(-opts.PeakHeadroomDB) / peak)
	case RMS:
		rms := out.RMS()
		if rms == 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
			return nil, ErrSilent
		}
		out.scale(dbToGain(-opts.RMSHeadroomDB) / rms)
	case Loudness:
		if out.RMS() >= energyFloor {
			if lufs := MeasureLoudness(out); !math.IsInf(lufs, 0) && !math.IsNaN(lufs) {
				out.scale(dbToGain(-opts.LoudnessHeadroomDB - lufs))
			}
		}
		if opts.Compressor {
			out.apply(math.Tanh)
		}
	default:
		return nil, fmt.Errorf("sound: unknown strategy %q", opts.Strategy)
	}
	out.apply(clamp)
	return out, nil
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
