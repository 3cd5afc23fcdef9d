package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/igolaizola/musikgen/pkg/model"
	"github.com/igolaizola/musikgen/pkg/sound"
)

var supportedTasks = []string{"text-to-audio", "text-to-speech"}

type modelInfo struct {
	ID          string `json:"id"`
	PipelineTag string `json:"pipeline_tag"`
	Disabled    bool   `json:"disabled"`
}

// Load checks that the model exists on the hub and serves text-to-audio.
// Inference runs remotely so the device is only informative.
func (c *Client) Load(ctx context.Context, name string, device model.Device) (model.Model, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("huggingface: model name is empty")
	}
	resp, err := c.do(ctx, http.MethodGet, modelPath(c.hub, name), nil, "application/json")
	if err != nil {
		switch StatusCode(err) {
		case http.StatusNotFound, http.StatusUnauthorized:
			return nil, fmt.Errorf("huggingface: model %q not found: %w", name, err)
		}
		return nil, err
	}
	var info modelInfo
	if err := unmarshal(resp.body, &info); err != nil {
		return nil, err
	}
	if info.Disabled {
		return nil, fmt.Errorf("huggingface: model %q is disabled", name)
	}
	if !supported(info.PipelineTag) {
		return nil, fmt.Errorf("huggingface: model %q has unsupported task %q", name, info.PipelineTag)
	}
	c.log.Debug().Str("model", name).Str("task", info.PipelineTag).Str("device", string(device)).Msg("huggingface: model found")
	return &musicgen{client: c, name: name, params: model.DefaultParams()}, nil
}

func supported(task string) bool {
	// Some repositories don't declare their task
	if task == "" {
		return true
	}
	for _, t := range supportedTasks {
		if t == task {
			return true
		}
	}
	return false
}

type musicgen struct {
	client *Client
	name   string
	params model.Params
}

type parameters struct {
	DoSample      bool    `json:"do_sample"`
	Temperature   float64 `json:"temperature"`
	TopK          int     `json:"top_k"`
	TopP          float64 `json:"top_p"`
	GuidanceScale float64 `json:"guidance_scale"`
	MaxNewTokens  int     `json:"max_new_tokens"`
}

type options struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
	Options    options    `json:"options"`
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
	in := &request{
		Inputs:     prompt,
		Parameters: m.parameters(duration),
		// Sampling makes every request different
		Options: options{WaitForModel: true, UseCache: false},
	}
	resp, err := m.client.do(ctx, http.MethodPost, modelPath(m.client.inference, m.name), in, "audio/wav")
	if err != nil {
		return nil, err
	}
	w, err := sound.Decode(ctx, resp.body, resp.contentType)
	if err != nil {
		return nil, fmt.Errorf("huggingface: couldn't decode audio: %w", err)
	}
	return w, nil
}

func (m *musicgen) parameters(duration time.Duration) parameters {
	return parameters{
		DoSample:      m.params.UseSampling,
		Temperature:   m.params.Temperature,
		TopK:          m.params.TopK,
		TopP:          m.params.TopP,
		GuidanceScale: m.params.CFGCoef,
		MaxNewTokens:  int(duration.Seconds() * model.FrameRate),
	}
}
