package musikgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/igolaizola/musikgen/pkg/audiocraft"
	"github.com/igolaizola/musikgen/pkg/filestore"
	"github.com/igolaizola/musikgen/pkg/generator"
	"github.com/igolaizola/musikgen/pkg/huggingface"
	"github.com/igolaizola/musikgen/pkg/model"
	"github.com/igolaizola/musikgen/pkg/sound"
	"github.com/igolaizola/musikgen/pkg/sound/ffmpeg"
	"github.com/rs/zerolog"
)

// ErrFailed is returned by commands when at least one generation failed.
var ErrFailed = errors.New("musikgen: generation failed")

const (
	BackendHuggingFace = "huggingface"
	BackendAudiocraft  = "audiocraft"
)

type Config struct {
	Debug     bool
	Backend   string
	Model     string
	Device    string
	Strategy  string
	OutputDir string
	Proxy     string

	HFToken    string
	HFEndpoint string
	HFHub      string
	Bin        string

	Plot   bool
	FSType string
	FSConn string
}

// Validate checks the flags that don't depend on a request.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendHuggingFace, BackendAudiocraft:
	default:
		return &generator.ConfigError{Field: "backend", Reason: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if _, err := model.ParseDevice(c.Device); err != nil {
		return &generator.ConfigError{Field: "device", Reason: err.Error()}
	}
	if _, err := c.writeOptions(); err != nil {
		return &generator.ConfigError{Field: "strategy", Reason: err.Error()}
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return &generator.ConfigError{Field: "proxy", Reason: err.Error()}
		}
	}
	if c.FSType != "" && c.FSConn == "" {
		return &generator.ConfigError{Field: "fs-conn", Reason: "file storage connection is empty"}
	}
	return nil
}

func (c *Config) writeOptions() (sound.WriteOptions, error) {
	opts := sound.DefaultWriteOptions()
	if c.Strategy == "" {
		return opts, nil
	}
	strategy, err := sound.ParseStrategy(c.Strategy)
	if err != nil {
		return opts, err
	}
	opts.Strategy = strategy
	return opts, nil
}

// NewLogger returns a console logger, debug messages are enabled on demand.
func NewLogger(debug bool, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
}

// Runner generates songs and handles the optional plot and upload steps.
type Runner struct {
	gen   *generator.Generator
	store *filestore.Store
	plot  bool
	log   zerolog.Logger
}

// New wires the backend, the generator and the file store.
func New(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loader, err := newLoader(cfg, logger)
	if err != nil {
		return nil, err
	}
	device, _ := model.ParseDevice(cfg.Device)
	write, _ := cfg.writeOptions()

	r := &Runner{
		gen: generator.New(ctx, &generator.Config{
			Model:     cfg.Model,
			Loader:    loader,
			Device:    device,
			Write:     &write,
			OutputDir: cfg.OutputDir,
			Logger:    logger,
		}),
		plot: cfg.Plot,
		log:  logger,
	}
	if cfg.FSType != "" {
		store, err := filestore.New(ctx, cfg.FSType, cfg.FSConn, logger)
		if err != nil {
			return nil, &generator.ConfigError{Field: "fs-type", Reason: err.Error()}
		}
		r.store = store
	}
	return r, nil
}

func newLoader(cfg *Config, logger zerolog.Logger) (model.Loader, error) {
	switch cfg.Backend {
	case BackendAudiocraft:
		return audiocraft.New(&audiocraft.Config{
			Bin:    cfg.Bin,
			Logger: logger,
		}), nil
	default:
		httpClient := &http.Client{
			Timeout: 5 * time.Minute,
		}
		if cfg.Proxy != "" {
			u, err := url.Parse(cfg.Proxy)
			if err != nil {
				return nil, &generator.ConfigError{Field: "proxy", Reason: err.Error()}
			}
			httpClient.Transport = &http.Transport{
				Proxy: http.ProxyURL(u),
			}
		}
		token := cfg.HFToken
		if token == "" {
			token = os.Getenv("HF_TOKEN")
		}
		return huggingface.New(&huggingface.Config{
			Token:     token,
			Hub:       cfg.HFHub,
			Inference: cfg.HFEndpoint,
			Client:    httpClient,
			Logger:    logger,
		}), nil
	}
}

// Generator returns the underlying generation service.
func (r *Runner) Generator() *generator.Generator {
	return r.gen
}

// Check validates the request and the tools needed to write its output.
func (r *Runner) Check(ctx context.Context, req generator.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	// Outputs without extension are written as wav
	if filepath.Ext(req.Output) == "" {
		return nil
	}
	if err := sound.CheckFormat(req.Output); err != nil {
		return &generator.ConfigError{Field: "output", Reason: err.Error()}
	}
	if sound.NeedsEncoder(req.Output) {
		if _, err := ffmpeg.Version(ctx); err != nil {
			return &generator.ConfigError{Field: "output", Reason: fmt.Sprintf("%s output needs ffmpeg: %v", filepath.Ext(req.Output), err)}
		}
	}
	return nil
}

// Run generates one song and runs the optional post steps.
func (r *Runner) Run(ctx context.Context, req generator.Request) *generator.Result {
	res := r.gen.GenerateWithStyle(ctx, req)
	if !res.Success {
		return res
	}
	if r.plot {
		plotPath, err := writePlot(ctx, res.OutputPath)
		if err != nil {
			r.log.Warn().Err(err).Str("output", res.OutputPath).Msg("musikgen: couldn't plot waveform")
		} else {
			res.PlotPath = plotPath
		}
	}
	if r.store != nil {
		remote, err := r.store.Upload(ctx, res.OutputPath)
		if err != nil {
			res.Fail(&generator.GenerationFailure{Stage: generator.StageUpload, Err: err})
			r.log.Error().Err(err).Msg("musikgen: upload failed")
			return res
		}
		res.Remote = remote
		r.log.Info().Str("remote", remote).Msg("musikgen: uploaded")
	}
	return res
}

// writePlot draws the written file next to it as <stem>-wave.jpg.
func writePlot(ctx context.Context, path string) (string, error) {
	w, err := sound.DecodeFile(ctx, path)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	b, err := sound.PlotWave(w, stem)
	if err != nil {
		return "", err
	}
	plotPath := filepath.Join(filepath.Dir(path), stem+"-wave.jpg")
	if err := os.WriteFile(plotPath, b, 0644); err != nil {
		return "", fmt.Errorf("musikgen: couldn't write plot: %w", err)
	}
	return plotPath, nil
}
