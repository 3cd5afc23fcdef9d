package musikgen

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/igolaizola/musikgen/pkg/generator"
	"github.com/igolaizola/musikgen/pkg/sound"
	"github.com/rs/zerolog"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{}, true},
		{"audiocraft", Config{Backend: "audiocraft", Device: "cuda", Strategy: "peak"}, true},
		{"backend", Config{Backend: "onnx"}, false},
		{"device", Config{Device: "tpu"}, false},
		{"strategy", Config{Strategy: "limiter"}, false},
		{"fs", Config{FSType: "local"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() err = %v; want nil", err)
			}
			var cfgErr *generator.ConfigError
			if !tt.ok && !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() err = %v; want config error", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(false, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) || !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("log output = %q; want only info messages", buf.String())
	}
}

func fakeHub(t *testing.T) *httptest.Server {
	t.Helper()
	samples := make([]float64, 32000)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/32000)
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := sound.WriteWAV(path, sound.NewMono(samples, 32000)); err != nil {
		t.Fatal(err)
	}
	wav, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models/facebook/musicgen-small":
			_, _ = w.Write([]byte(`{"id":"facebook/musicgen-small","pipeline_tag":"text-to-audio"}`))
		case "/models/facebook/musicgen-small":
			w.Header().Set("content-type", "audio/wav")
			_, _ = w.Write(wav)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunner(t *testing.T) {
	ctx := context.Background()
	srv := fakeHub(t)
	dir := t.TempDir()
	remote := filepath.Join(t.TempDir(), "remote")
	r, err := New(ctx, &Config{
		Device:     "cpu",
		HFHub:      srv.URL + "/api/models",
		HFEndpoint: srv.URL + "/models",
		OutputDir:  dir,
		Plot:       true,
		FSType:     "local",
		FSConn:     remote,
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	req := generator.NewRequest("calm piano")
	req.Duration = 1
	if err := r.Check(ctx, req); err != nil {
		t.Fatalf("Check() err = %v; want nil", err)
	}
	res := r.Run(ctx, req)
	if !res.Success {
		t.Fatalf("Run() failed: %s", res.Error)
	}
	if filepath.Dir(res.OutputPath) != dir || filepath.Ext(res.OutputPath) != ".wav" {
		t.Errorf("output = %q; want a wav file in %q", res.OutputPath, dir)
	}
	if _, err := os.Stat(res.PlotPath); err != nil {
		t.Errorf("plot %q not written: %v", res.PlotPath, err)
	}
	if res.Remote != filepath.Join(remote, filepath.Base(res.OutputPath)) {
		t.Errorf("remote = %q; want file under %q", res.Remote, remote)
	}
	if r.Generator().State() != generator.Loaded {
		t.Errorf("state = %v; want loaded", r.Generator().State())
	}
}

func TestRunnerCheck(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, &Config{Device: "cpu"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	req := generator.NewRequest("calm piano")
	req.Output = "song.aiff"
	var cfgErr *generator.ConfigError
	if err := r.Check(ctx, req); !errors.As(err, &cfgErr) {
		t.Fatalf("Check() err = %v; want config error", err)
	}
	req = generator.NewRequest(" ")
	if err := r.Check(ctx, req); !errors.As(err, &cfgErr) {
		t.Fatalf("Check() err = %v; want config error", err)
	}
	if r.Generator().State() != generator.Unloaded {
		t.Errorf("state = %v; want unloaded", r.Generator().State())
	}
}
