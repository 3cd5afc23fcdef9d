package generator

import (
	"fmt"
)

// ConfigError is returned for invalid requests before any model work begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("generator: invalid %s: %s", e.Field, e.Reason)
}

// ModelLoadError is returned when the named model can't be fetched or
// instantiated.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("generator: couldn't load model %q: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// Stage identifies the step of a generation that failed.
type Stage string

const (
	StageSynthesize Stage = "synthesize"
	StageNormalize  Stage = "normalize"
	StageOutput     Stage = "output"
	StageWrite      Stage = "write"
	StageUpload     Stage = "upload"
)

// GenerationFailure wraps any error raised once the model is loaded.
type GenerationFailure struct {
	Stage Stage
	Err   error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generator: couldn't %s: %v", e.Stage, e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}
