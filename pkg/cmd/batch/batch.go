package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/musikgen"
	"github.com/igolaizola/musikgen/pkg/cmd/generate"
	"github.com/igolaizola/musikgen/pkg/generator"
	"gopkg.in/yaml.v3"
)

type Config struct {
	musikgen.Config

	Input string
	Limit int

	// Defaults for rows that don't set them
	Duration   int
	Style      string
	SampleRate int
}

type entry struct {
	Prompt   string `json:"prompt" yaml:"prompt" csv:"prompt"`
	Style    string `json:"style" yaml:"style" csv:"style"`
	Duration int    `json:"duration" yaml:"duration" csv:"duration"`
	Output   string `json:"output" yaml:"output" csv:"output"`
}

// Run generates one song per input row, sharing the loaded model, and prints
// the result records as a JSON array.
func Run(ctx context.Context, cfg *Config, out io.Writer) error {
	logger := musikgen.NewLogger(cfg.Debug, os.Stderr)
	entries, err := readEntries(cfg.Input)
	if err != nil {
		return &generator.ConfigError{Field: "input", Reason: err.Error()}
	}
	if cfg.Limit > 0 && len(entries) > cfg.Limit {
		entries = entries[:cfg.Limit]
	}
	runner, err := musikgen.New(ctx, &cfg.Config, logger)
	if err != nil {
		return err
	}

	logger.Info().Int("rows", len(entries)).Msg("batch: process started")
	var failed int
	results := []*generator.Result{}
	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		res := cfg.run(ctx, runner, i, e)
		if !res.Success {
			failed++
			logger.Warn().Int("row", i+1).Str("error", res.Error).Msg("batch: row failed")
		}
		results = append(results, res)
	}
	logger.Info().Int("rows", len(results)).Int("failed", failed).Msg("batch: process ended")

	if err := generate.Print(out, results); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return musikgen.ErrFailed
	}
	return nil
}

func (c *Config) run(ctx context.Context, runner *musikgen.Runner, i int, e *entry) *generator.Result {
	// JSON nulls and empty yaml items decode to nil rows
	if e == nil {
		res := &generator.Result{}
		res.Fail(&generator.ConfigError{Field: "input", Reason: fmt.Sprintf("row %d is empty", i+1)})
		return res
	}
	req := c.request(e)
	if err := runner.Check(ctx, req); err != nil {
		res := &generator.Result{Prompt: req.Prompt, Duration: req.Duration}
		res.Fail(err)
		return res
	}
	return runner.Run(ctx, req)
}

func (c *Config) request(e *entry) generator.Request {
	req := generator.Request{
		Prompt:     e.Prompt,
		Duration:   e.Duration,
		Style:      e.Style,
		Output:     e.Output,
		SampleRate: c.SampleRate,
	}
	if req.Duration == 0 {
		req.Duration = c.Duration
	}
	if req.Style == "" {
		req.Style = c.Style
	}
	return req
}

func readEntries(path string) ([]*entry, error) {
	if path == "" {
		return nil, fmt.Errorf("batch: input file not set")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batch: couldn't read input file: %w", err)
	}

	var es []*entry
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(b, &es)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &es)
	case ".csv":
		err = gocsv.UnmarshalBytes(b, &es)
	default:
		return nil, fmt.Errorf("batch: unsupported input format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("batch: couldn't unmarshal input: %w", err)
	}
	return es, nil
}
