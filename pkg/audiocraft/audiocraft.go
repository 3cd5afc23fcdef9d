// Package audiocraft runs MusicGen locally through a bridge binary that wraps
// the audiocraft library.
//
// The bridge is invoked once with --check to fetch and validate the model and
// once per prompt to generate a 16-bit PCM wav file.
package audiocraft

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/igolaizola/musikgen/pkg/model"
	"github.com/igolaizola/musikgen/pkg/sound"
	"github.com/rs/zerolog"
)

// BinPath is the path to the musicgen bridge binary
var BinPath = "musicgen"

type Config struct {
	Bin     string
	TempDir string
	Logger  zerolog.Logger
}

type Bridge struct {
	bin     string
	tempDir string
	log     zerolog.Logger
}

func New(cfg *Config) *Bridge {
	bin := BinPath
	if cfg.Bin != "" {
		bin = cfg.Bin
	}
	return &Bridge{
		bin:     bin,
		tempDir: cfg.TempDir,
		log:     cfg.Logger,
	}
}

// Load asks the bridge to fetch and instantiate the model.
func (b *Bridge) Load(ctx context.Context, name string, device model.Device) (model.Model, error) {
	args := []string{"--model", name, "--device", string(device), "--check"}
	if err := b.run(ctx, args); err != nil {
		return nil, fmt.Errorf("audiocraft: couldn't load model %q: %w", name, err)
	}
	return &musicgen{
		bridge: b,
		name:   name,
		device: device,
		params: model.DefaultParams(),
	}, nil
}

func (b *Bridge) run(ctx context.Context, args []string) error {
	b.log.Debug().Str("bin", b.bin).Strs("args", args).Msg("audiocraft: run")
	cmd := exec.CommandContext(ctx, b.bin, args...)
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(data))
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

type musicgen struct {
	bridge *Bridge
	name   string
	device model.Device
	params model.Params
}

func (m *musicgen) SetParams(p model.Params) {
	m.params = p
}

func (m *musicgen) Generate(ctx context.Context, prompts []string, duration time.Duration) ([]*sound.Waveform, error) {
	var waves []*sound.Waveform
	for _, prompt := range prompts {
		w, err := m.generate(ctx, prompt, duration)
		if err != nil {
			return nil, err
		}
		waves = append(waves, w)
	}
	return waves, nil
}

func (m *musicgen) generate(ctx context.Context, prompt string, duration time.Duration) (*sound.Waveform, error) {
	dir, err := os.MkdirTemp(m.bridge.tempDir, "musikgen-")
	if err != nil {
		return nil, fmt.Errorf("audiocraft: couldn't create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	output := filepath.Join(dir, "out.wav")
	if err := m.bridge.run(ctx, generateArgs(m.name, m.device, m.params, prompt, duration, output)); err != nil {
		return nil, fmt.Errorf("audiocraft: couldn't generate: %w", err)
	}

	// Check output .wav file
	if stat, err := os.Stat(output); err != nil || stat.Size() == 0 {
		return nil, fmt.Errorf("audiocraft: output file not found: %s", output)
	}
	w, err := sound.DecodeFile(ctx, output)
	if err != nil {
		return nil, fmt.Errorf("audiocraft: %w", err)
	}
	return w, nil
}

func generateArgs(name string, device model.Device, p model.Params, prompt string, duration time.Duration, output string) []string {
	args := []string{
		"--model", name,
		"--device", string(device),
		"--description", prompt,
		"--duration", strconv.FormatFloat(duration.Seconds(), 'f', -1, 64),
		"--temperature", formatFloat(p.Temperature),
		"--top-k", strconv.Itoa(p.TopK),
		"--top-p", formatFloat(p.TopP),
		"--cfg-coef", formatFloat(p.CFGCoef),
		"--output", output,
	}
	if !p.UseSampling {
		args = append(args, "--no-sampling")
	}
	return args
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
