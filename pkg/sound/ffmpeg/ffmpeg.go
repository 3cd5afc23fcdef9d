package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BinPath is the path to the ffmpeg binary
var BinPath = "ffmpeg"

// Version returns the ffmpeg version.
func Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, BinPath, "-version")
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return "", fmt.Errorf("ffmpeg: couldn't get version: %w: %s", err, msg)
	}
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if !strings.HasPrefix(line, "ffmpeg version") {
		return "", fmt.Errorf("ffmpeg: invalid version: %s", line)
	}
	fields := strings.Fields(strings.TrimPrefix(line, "ffmpeg version "))
	if len(fields) == 0 {
		return "", fmt.Errorf("ffmpeg: invalid version: %s", line)
	}
	return fields[0], nil
}

// Codec returns the encoder arguments for the output extension.
func Codec(ext string) ([]string, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return []string{"-codec:a", "libmp3lame", "-b:a", "320k"}, nil
	case ".flac":
		return []string{"-codec:a", "flac"}, nil
	case ".ogg":
		return []string{"-codec:a", "libvorbis", "-q:a", "6"}, nil
	default:
		return nil, fmt.Errorf("ffmpeg: unsupported output format %q", ext)
	}
}

// Encode converts a wav file to the format given by the output extension.
func Encode(ctx context.Context, input, output string) error {
	if ext := filepath.Ext(input); ext != ".wav" {
		return fmt.Errorf("ffmpeg: input file must be a wav file: %s", ext)
	}
	codec, err := Codec(filepath.Ext(output))
	if err != nil {
		return err
	}

	args := append([]string{"-y", "-i", input}, codec...)
	args = append(args, output)
	cmd := exec.CommandContext(ctx, BinPath, args...)
	data, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(output)
		msg := string(data)
		return fmt.Errorf("ffmpeg: couldn't encode: %w: %s", err, msg)
	}
	return nil
}

// Decode converts any audio file ffmpeg can read to a 16-bit PCM wav file.
func Decode(ctx context.Context, input, output string) error {
	if ext := filepath.Ext(output); ext != ".wav" {
		return fmt.Errorf("ffmpeg: output file must be a wav file: %s", ext)
	}
	cmd := exec.CommandContext(ctx, BinPath, "-y", "-i", input, "-codec:a", "pcm_s16le", output)
	data, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(output)
		msg := string(data)
		return fmt.Errorf("ffmpeg: couldn't decode: %w: %s", err, msg)
	}
	return nil
}
