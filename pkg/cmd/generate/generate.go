package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/igolaizola/musikgen"
	"github.com/igolaizola/musikgen/pkg/generator"
)

type Config struct {
	musikgen.Config

	Prompt     string
	Duration   int
	Style      string
	Output     string
	SampleRate int
}

func (c *Config) request() generator.Request {
	return generator.Request{
		Prompt:     c.Prompt,
		Duration:   c.Duration,
		Style:      c.Style,
		Output:     c.Output,
		SampleRate: c.SampleRate,
	}
}

// Run generates one song and prints its result record to out.
func Run(ctx context.Context, cfg *Config, out io.Writer) error {
	logger := musikgen.NewLogger(cfg.Debug, os.Stderr)
	req := cfg.request()
	if err := req.Validate(); err != nil {
		return err
	}
	runner, err := musikgen.New(ctx, &cfg.Config, logger)
	if err != nil {
		return err
	}
	if err := runner.Check(ctx, req); err != nil {
		return err
	}
	res := runner.Run(ctx, req)
	if err := Print(out, res); err != nil {
		return err
	}
	if !res.Success {
		return musikgen.ErrFailed
	}
	return nil
}

// Print writes v as indented JSON.
func Print(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("generate: couldn't encode result: %w", err)
	}
	return nil
}
