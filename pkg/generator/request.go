package generator

import (
	"encoding/json"
	"strings"

	"github.com/igolaizola/musikgen/pkg/style"
)

const (
	DefaultDuration   = 30
	DefaultSampleRate = 32000
)

// Request describes one generation.
type Request struct {
	Prompt string
	// Duration in seconds.
	Duration int
	Style    string
	// Output is the destination path, a unique name is generated if empty.
	Output     string
	SampleRate int
}

// NewRequest returns a request with the default duration, style and sample
// rate.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:     prompt,
		Duration:   DefaultDuration,
		Style:      style.Default,
		SampleRate: DefaultSampleRate,
	}
}

// Validate checks the request preconditions.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &ConfigError{Field: "prompt", Reason: "prompt is empty"}
	}
	if r.Duration <= 0 {
		return &ConfigError{Field: "duration", Reason: "duration must be a positive number of seconds"}
	}
	if r.SampleRate <= 0 {
		return &ConfigError{Field: "sample rate", Reason: "sample rate must be positive"}
	}
	return nil
}

// Result is the record reported for every generation.
type Result struct {
	Prompt     string `json:"prompt"`
	Duration   int    `json:"duration"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Model      string `json:"model,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	FileSize   int64  `json:"file_size,omitempty"`
	Success    bool   `json:"success"`
	PlotPath   string `json:"plot_path,omitempty"`
	Remote     string `json:"remote,omitempty"`
	Error      string `json:"error,omitempty"`

	// Err is the typed cause of a failure.
	Err error `json:"-"`
}

// MarshalJSON keeps the success record as declared and reports failures
// as success, error, prompt and duration.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success  bool   `json:"success"`
			Error    string `json:"error"`
			Prompt   string `json:"prompt"`
			Duration int    `json:"duration"`
		}{r.Success, r.Error, r.Prompt, r.Duration})
	}
	type result Result
	return json.Marshal(result(r))
}

// Fail turns the result into a failure record.
func (r *Result) Fail(err error) {
	*r = Result{
		Prompt:   r.Prompt,
		Duration: r.Duration,
		Success:  false,
		Error:    err.Error(),
		Err:      err,
	}
}

func failure(prompt string, duration int, err error) *Result {
	r := &Result{Prompt: prompt, Duration: duration}
	r.Fail(err)
	return r
}
