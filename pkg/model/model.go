// Package model defines the contract between the generator and the
// text-to-music backends.
package model

import (
	"context"
	"time"

	"github.com/igolaizola/musikgen/pkg/sound"
)

// DefaultModel is the pretrained model used when none is given.
const DefaultModel = "facebook/musicgen-small"

// FrameRate is the number of tokens MusicGen generates per second of audio.
const FrameRate = 50

// Params are the sampling parameters applied to a loaded model.
type Params struct {
	UseSampling bool
	Temperature float64
	TopK        int
	TopP        float64
	CFGCoef     float64
}

// DefaultParams returns the fixed generation parameters.
func DefaultParams() Params {
	return Params{
		UseSampling: true,
		Temperature: 1.0,
		TopK:        250,
		TopP:        0.0,
		CFGCoef:     3.0,
	}
}

// Model is a loaded text-to-music model.
type Model interface {
	SetParams(Params)
	// Generate synthesizes one waveform per prompt.
	Generate(ctx context.Context, prompts []string, duration time.Duration) ([]*sound.Waveform, error)
}

// Loader fetches and instantiates pretrained models.
type Loader interface {
	Load(ctx context.Context, name string, device Device) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, name string, device Device) (Model, error)

func (f LoaderFunc) Load(ctx context.Context, name string, device Device) (Model, error) {
	return f(ctx, name, device)
}
