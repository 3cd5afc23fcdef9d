package model

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Device is the compute device a model runs on.
type Device string

const (
	Auto Device = "auto"
	CUDA Device = "cuda"
	CPU  Device = "cpu"
)

func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "", Auto:
		return Auto, nil
	case CUDA, CPU:
		return d, nil
	default:
		return "", fmt.Errorf("model: unknown device %q", s)
	}
}

// NvidiaSMIPath is the path to the nvidia-smi binary
var NvidiaSMIPath = "nvidia-smi"

// DetectDevice returns CUDA if nvidia-smi lists at least one GPU, CPU
// otherwise.
func DetectDevice(ctx context.Context) Device {
	if _, err := exec.LookPath(NvidiaSMIPath); err != nil {
		return CPU
	}
	cmd := exec.CommandContext(ctx, NvidiaSMIPath, "-L")
	data, err := cmd.Output()
	if err != nil {
		return CPU
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			return CUDA
		}
	}
	return CPU
}
