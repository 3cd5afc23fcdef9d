// Package generator turns prompts into normalized audio files using a
// pretrained text-to-music model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/igolaizola/musikgen/pkg/model"
	"github.com/igolaizola/musikgen/pkg/sound"
	"github.com/igolaizola/musikgen/pkg/style"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// TargetPeak is the peak level of the normalized waveform.
const TargetPeak = 0.95

// State of the model handle.
type State int

const (
	Unloaded State = iota
	Loaded
)

func (s State) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

type Config struct {
	// Model is the pretrained model identifier.
	Model  string
	Loader model.Loader
	// Device forces the compute device, it is detected when empty or auto.
	Device model.Device
	// Params overrides the default sampling parameters.
	Params *model.Params
	// Write overrides the default loudness write strategy.
	Write *sound.WriteOptions
	// OutputDir is where generated file names are placed.
	OutputDir string
	Logger    zerolog.Logger
}

// Generator owns one lazily loaded model. It isn't safe for concurrent use.
type Generator struct {
	name      string
	loader    model.Loader
	device    model.Device
	params    model.Params
	write     sound.WriteOptions
	outputDir string
	log       zerolog.Logger

	state State
	model model.Model
}

// New stores the configuration and selects the compute device. No model is
// loaded until it is needed.
func New(ctx context.Context, cfg *Config) *Generator {
	name := cfg.Model
	if name == "" {
		name = model.DefaultModel
	}
	device := cfg.Device
	if device == "" || device == model.Auto {
		device = model.DetectDevice(ctx)
	}
	params := model.DefaultParams()
	if cfg.Params != nil {
		params = *cfg.Params
	}
	write := sound.DefaultWriteOptions()
	if cfg.Write != nil {
		write = *cfg.Write
	}
	logger := cfg.Logger.With().Str("model", name).Logger()
	logger.Info().Str("device", string(device)).Msg("generator: configured")

	return &Generator{
		name:      name,
		loader:    cfg.Loader,
		device:    device,
		params:    params,
		write:     write,
		outputDir: cfg.OutputDir,
		log:       logger,
	}
}

func (g *Generator) Model() string {
	return g.name
}

func (g *Generator) Device() model.Device {
	return g.device
}

func (g *Generator) State() State {
	return g.state
}

// EnsureLoaded loads the model on first use. Later calls are no-ops.
func (g *Generator) EnsureLoaded(ctx context.Context) error {
	if g.state == Loaded {
		return nil
	}
	if g.loader == nil {
		return &ModelLoadError{Model: g.name, Err: errors.New("no model loader configured")}
	}
	g.log.Info().Str("device", string(g.device)).Msg("generator: loading model")
	start := time.Now()
	m, err := g.loader.Load(ctx, g.name, g.device)
	if err != nil {
		loadErr := &ModelLoadError{Model: g.name, Err: err}
		g.log.Error().Err(err).Msg("generator: couldn't load model")
		return loadErr
	}
	m.SetParams(g.params)
	g.model = m
	g.state = Loaded
	g.log.Info().Dur("elapsed", time.Since(start)).Msg("generator: model loaded")
	return nil
}

// GenerateWithStyle appends the style descriptor to the prompt and generates.
func (g *Generator) GenerateWithStyle(ctx context.Context, req Request) *Result {
	req.Prompt = style.Enhance(req.Prompt, req.Style)
	return g.Generate(ctx, req)
}

// Generate synthesizes the prompt and writes the audio file. Failures are
// logged and reported in the result, never returned.
func (g *Generator) Generate(ctx context.Context, req Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			err := &GenerationFailure{Stage: StageSynthesize, Err: fmt.Errorf("panic: %v", r)}
			g.log.Error().Err(err).Str("prompt", req.Prompt).Msg("generator: generation failed")
			res = failure(req.Prompt, req.Duration, err)
		}
	}()

	res, err := g.generate(ctx, req)
	if err != nil {
		g.log.Error().Err(err).Str("prompt", req.Prompt).Int("duration", req.Duration).Msg("generator: generation failed")
		return failure(req.Prompt, req.Duration, err)
	}
	g.log.Info().Str("output", res.OutputPath).Int64("size", res.FileSize).Msg("generator: generation finished")
	return res
}

func (g *Generator) generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := g.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	g.log.Info().Str("prompt", req.Prompt).Int("duration", req.Duration).Msg("generator: generating")
	duration := time.Duration(req.Duration) * time.Second
	batch, err := g.model.Generate(ctx, []string{req.Prompt}, duration)
	if err != nil {
		return nil, &GenerationFailure{Stage: StageSynthesize, Err: err}
	}

	wav, err := sound.Squeeze(batch)
	if err != nil {
		return nil, &GenerationFailure{Stage: StageSynthesize, Err: err}
	}
	if wav.Rate != req.SampleRate {
		g.log.Debug().Int("from", wav.Rate).Int("to", req.SampleRate).Msg("generator: resampling")
		wav, err = sound.Resample(wav, req.SampleRate)
		if err != nil {
			return nil, &GenerationFailure{Stage: StageNormalize, Err: err}
		}
	}
	if err := sound.Normalize(wav, TargetPeak); err != nil {
		return nil, &GenerationFailure{Stage: StageNormalize, Err: err}
	}

	output, err := g.resolveOutput(req.Output)
	if err != nil {
		return nil, &GenerationFailure{Stage: StageOutput, Err: err}
	}
	if err := sound.Write(ctx, output, wav, g.write); err != nil {
		return nil, &GenerationFailure{Stage: StageWrite, Err: err}
	}
	info, err := os.Stat(output)
	if err != nil {
		return nil, &GenerationFailure{Stage: StageWrite, Err: err}
	}

	return &Result{
		Prompt:     req.Prompt,
		Duration:   req.Duration,
		SampleRate: req.SampleRate,
		Model:      g.name,
		OutputPath: output,
		FileSize:   info.Size(),
		Success:    true,
	}, nil
}

// resolveOutput returns the destination path, creating its directory.
// An empty path gets a unique name and a path without extension gets ".wav".
func (g *Generator) resolveOutput(output string) (string, error) {
	if output == "" {
		output = filepath.Join(g.outputDir, UniqueName())
	}
	if filepath.Ext(output) == "" {
		output += ".wav"
	}
	if err := sound.CheckFormat(output); err != nil {
		return "", err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("generator: couldn't create output folder: %w", err)
		}
	}
	return output, nil
}

// UniqueName returns a wav file name based on a ULID, which sorts by time
// and doesn't collide between calls.
func UniqueName() string {
	return fmt.Sprintf("generation_%s.wav", ulid.Make().String())
}
