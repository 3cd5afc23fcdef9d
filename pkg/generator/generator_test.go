package generator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/igolaizola/musikgen/pkg/model"
	"github.com/igolaizola/musikgen/pkg/sound"
	"github.com/rs/zerolog"
)

type fakeModel struct {
	params   model.Params
	prompts  []string
	duration time.Duration
	rate     int
	silent   bool
	err      error
}

func (m *fakeModel) SetParams(p model.Params) {
	m.params = p
}

func (m *fakeModel) Generate(ctx context.Context, prompts []string, duration time.Duration) ([]*sound.Waveform, error) {
	m.prompts = append(m.prompts, prompts...)
	m.duration = duration
	if m.err != nil {
		return nil, m.err
	}
	rate := m.rate
	if rate == 0 {
		rate = 32000
	}
	n := int(duration.Seconds() * float64(rate))
	samples := make([]float64, n)
	if !m.silent {
		for i := range samples {
			samples[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
		}
	}
	return []*sound.Waveform{sound.NewMono(samples, rate)}, nil
}

type fakeLoader struct {
	model *fakeModel
	err   error
	calls int
	names []string
}

func (l *fakeLoader) Load(ctx context.Context, name string, device model.Device) (model.Model, error) {
	l.calls++
	l.names = append(l.names, name)
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

func newTestGenerator(t *testing.T, l *fakeLoader) *Generator {
	t.Helper()
	return New(context.Background(), &Config{
		Loader:    l,
		Device:    model.CPU,
		OutputDir: t.TempDir(),
		Logger:    zerolog.Nop(),
	})
}

func TestGenerateWithStyle(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{}}
	g := newTestGenerator(t, l)
	output := filepath.Join(t.TempDir(), "out", "piano.wav")

	req := NewRequest("calm piano melody")
	req.Duration = 10
	req.Style = "classical"
	req.Output = output
	res := g.GenerateWithStyle(context.Background(), req)
	if !res.Success {
		t.Fatalf("GenerateWithStyle() failed: %s", res.Error)
	}
	want := "calm piano melody, classical music, orchestral, elegant"
	if res.Prompt != want {
		t.Fatalf("Prompt = %q; want %q", res.Prompt, want)
	}
	if res.Duration != 10 || res.SampleRate != DefaultSampleRate || res.Model != model.DefaultModel {
		t.Fatalf("Result = %+v; want duration 10, sample rate %d, model %s", res, DefaultSampleRate, model.DefaultModel)
	}
	if res.OutputPath != output {
		t.Fatalf("OutputPath = %q; want %q", res.OutputPath, output)
	}
	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output file err = %v; want nil", err)
	}
	if info.Size() != res.FileSize || res.FileSize == 0 {
		t.Fatalf("FileSize = %d; want %d", res.FileSize, info.Size())
	}

	m := l.model
	if m.duration != 10*time.Second {
		t.Fatalf("model duration = %s; want 10s", m.duration)
	}
	if m.params != model.DefaultParams() {
		t.Fatalf("model params = %+v; want %+v", m.params, model.DefaultParams())
	}
	if len(m.prompts) != 1 || m.prompts[0] != want {
		t.Fatalf("model prompts = %q; want [%q]", m.prompts, want)
	}
}

func TestGenerateEchoesRequest(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{rate: 16000}}
	g := newTestGenerator(t, l)

	for _, d := range []int{1, 2, 3} {
		req := Request{Prompt: "lofi beat", Duration: d, SampleRate: 24000}
		res := g.Generate(context.Background(), req)
		if !res.Success {
			t.Fatalf("Generate() failed: %s", res.Error)
		}
		if res.Prompt != req.Prompt || res.Duration != d || res.SampleRate != 24000 {
			t.Fatalf("Result = %+v; want prompt %q duration %d sample rate 24000", res, req.Prompt, d)
		}
		w, err := sound.DecodeFile(context.Background(), res.OutputPath)
		if err != nil {
			t.Fatalf("DecodeFile() err = %v; want nil", err)
		}
		if w.Rate != 24000 || w.Len() != d*24000 {
			t.Fatalf("written file = %d Hz %d samples; want 24000 Hz %d samples", w.Rate, w.Len(), d*24000)
		}
	}
	if l.calls != 1 {
		t.Fatalf("loader calls = %d; want 1", l.calls)
	}
}

func TestGenerateUniqueOutput(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{}}
	g := newTestGenerator(t, l)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		res := g.Generate(context.Background(), Request{Prompt: "drums", Duration: 1, SampleRate: 32000})
		if !res.Success {
			t.Fatalf("Generate() failed: %s", res.Error)
		}
		if seen[res.OutputPath] {
			t.Fatalf("OutputPath %q was already used", res.OutputPath)
		}
		seen[res.OutputPath] = true
		if !strings.HasPrefix(filepath.Base(res.OutputPath), "generation_") {
			t.Fatalf("OutputPath = %q; want generation_ prefix", res.OutputPath)
		}
		if _, err := os.Stat(res.OutputPath); err != nil {
			t.Fatalf("output file err = %v; want nil", err)
		}
	}
}

func TestGenerateAddsExtension(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{}}
	g := newTestGenerator(t, l)
	output := filepath.Join(t.TempDir(), "song")

	res := g.Generate(context.Background(), Request{Prompt: "drums", Duration: 1, SampleRate: 32000, Output: output})
	if !res.Success {
		t.Fatalf("Generate() failed: %s", res.Error)
	}
	if res.OutputPath != output+".wav" {
		t.Fatalf("OutputPath = %q; want %q", res.OutputPath, output+".wav")
	}
}

func TestGenerateSilent(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{silent: true}}
	g := newTestGenerator(t, l)

	res := g.Generate(context.Background(), Request{Prompt: "silence", Duration: 1, SampleRate: 32000})
	if res.Success {
		t.Fatal("Generate() succeeded; want failure")
	}
	var failure *GenerationFailure
	if !errors.As(res.Err, &failure) || failure.Stage != StageNormalize {
		t.Fatalf("Err = %v; want normalize failure", res.Err)
	}
	if !errors.Is(res.Err, sound.ErrSilent) {
		t.Fatalf("Err = %v; want %v", res.Err, sound.ErrSilent)
	}
	if res.Prompt != "silence" || res.Duration != 1 || res.Error == "" {
		t.Fatalf("Result = %+v; want prompt, duration and error", res)
	}
}

func TestGenerateModelError(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{err: errors.New("out of memory")}}
	g := newTestGenerator(t, l)

	res := g.Generate(context.Background(), Request{Prompt: "a", Duration: 1, SampleRate: 32000})
	var failure *GenerationFailure
	if res.Success || !errors.As(res.Err, &failure) || failure.Stage != StageSynthesize {
		t.Fatalf("Result = %+v; want synthesize failure", res)
	}
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{}}
	g := newTestGenerator(t, l)

	res := g.Generate(context.Background(), Request{Prompt: "a", Duration: 1, SampleRate: 32000, Output: filepath.Join(t.TempDir(), "a.aiff")})
	var failure *GenerationFailure
	if res.Success || !errors.As(res.Err, &failure) || failure.Stage != StageOutput {
		t.Fatalf("Result = %+v; want output failure", res)
	}
}

func TestEnsureLoaded(t *testing.T) {
	l := &fakeLoader{err: errors.New("repository not found")}
	g := New(context.Background(), &Config{Model: "facebook/musicgen-nope", Loader: l, Device: model.CPU, Logger: zerolog.Nop()})

	err := g.EnsureLoaded(context.Background())
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("EnsureLoaded() err = %v; want ModelLoadError", err)
	}
	if loadErr.Model != "facebook/musicgen-nope" {
		t.Fatalf("ModelLoadError.Model = %q; want facebook/musicgen-nope", loadErr.Model)
	}
	if g.State() != Unloaded {
		t.Fatalf("State() = %s; want %s", g.State(), Unloaded)
	}

	res := g.Generate(context.Background(), Request{Prompt: "a", Duration: 1, SampleRate: 32000})
	if res.Success || !errors.As(res.Err, &loadErr) {
		t.Fatalf("Generate() = %+v; want model load failure", res)
	}

	l.err = nil
	l.model = &fakeModel{}
	l.calls = 0
	for i := 0; i < 3; i++ {
		if err := g.EnsureLoaded(context.Background()); err != nil {
			t.Fatalf("EnsureLoaded() err = %v; want nil", err)
		}
	}
	if l.calls != 1 {
		t.Fatalf("loader calls = %d; want 1", l.calls)
	}
	if g.State() != Loaded {
		t.Fatalf("State() = %s; want %s", g.State(), Loaded)
	}
}

func TestGenerateInvalidRequest(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{}}
	g := newTestGenerator(t, l)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty prompt", Request{Prompt: " ", Duration: 1, SampleRate: 32000}},
		{"zero duration", Request{Prompt: "a", Duration: 0, SampleRate: 32000}},
		{"negative duration", Request{Prompt: "a", Duration: -5, SampleRate: 32000}},
		{"zero sample rate", Request{Prompt: "a", Duration: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Generate(context.Background(), tt.req)
			var cfgErr *ConfigError
			if res.Success || !errors.As(res.Err, &cfgErr) {
				t.Fatalf("Generate() = %+v; want config error", res)
			}
		})
	}
	if l.calls != 0 {
		t.Fatalf("loader calls = %d; want 0", l.calls)
	}
}

func TestGenerateUnknownStyle(t *testing.T) {
	l := &fakeLoader{model: &fakeModel{}}
	g := newTestGenerator(t, l)

	req := NewRequest("grand hall")
	req.Duration = 1
	req.Style = "opera"
	res := g.GenerateWithStyle(context.Background(), req)
	if !res.Success {
		t.Fatalf("GenerateWithStyle() failed: %s", res.Error)
	}
	if !strings.Contains(res.Prompt, ", opera") {
		t.Fatalf("Prompt = %q; want it to contain %q", res.Prompt, ", opera")
	}
}

type panicModel struct{ fakeModel }

func (m *panicModel) Generate(context.Context, []string, time.Duration) ([]*sound.Waveform, error) {
	panic("boom")
}

func TestGenerateRecovers(t *testing.T) {
	pm := &panicModel{}
	g := New(context.Background(), &Config{
		Loader: model.LoaderFunc(func(context.Context, string, model.Device) (model.Model, error) {
			return pm, nil
		}),
		Device:    model.CPU,
		OutputDir: t.TempDir(),
		Logger:    zerolog.Nop(),
	})
	res := g.Generate(context.Background(), Request{Prompt: "a", Duration: 1, SampleRate: 32000})
	if res.Success || res.Err == nil {
		t.Fatalf("Generate() = %+v; want failure", res)
	}
}

func TestResultJSON(t *testing.T) {
	ok := Result{Prompt: "a", Duration: 5, SampleRate: 32000, Model: "m", OutputPath: "o.wav", FileSize: 10, Success: true}
	b, err := json.Marshal(ok)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"prompt":"a","duration":5,"sample_rate":32000,"model":"m","output_path":"o.wav","file_size":10,"success":true}`
	if string(b) != want {
		t.Errorf("json = %s; want %s", b, want)
	}

	failed := failure("a", 5, errors.New("boom"))
	b, err = json.Marshal(failed)
	if err != nil {
		t.Fatal(err)
	}
	want = `{"success":false,"error":"boom","prompt":"a","duration":5}`
	if string(b) != want {
		t.Errorf("json = %s; want %s", b, want)
	}
}

func TestNewDetectsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Detection can't run on a cancelled context and falls back to the cpu
	g := New(ctx, &Config{Device: model.Auto, Logger: zerolog.Nop()})
	if g.Device() != model.CPU {
		t.Fatalf("Device() = %q; want %q", g.Device(), model.CPU)
	}
	if g.State() != Unloaded {
		t.Fatalf("State() = %v; want unloaded", g.State())
	}
}
