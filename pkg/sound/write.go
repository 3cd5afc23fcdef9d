package sound

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/igolaizola/musikgen/pkg/sound/ffmpeg"
)

// Formats lists the supported output extensions. Anything other than wav is
// encoded with ffmpeg.
var Formats = []string{".wav", ".mp3", ".flac", ".ogg"}

// NeedsEncoder reports whether writing to the path requires ffmpeg.
func NeedsEncoder(path string) bool {
	return strings.ToLower(filepath.Ext(path)) != ".wav"
}

// CheckFormat validates the output extension.
func CheckFormat(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		if ext == f {
			return nil
		}
	}
	return fmt.Errorf("sound: unsupported output format %q", ext)
}

// Write scales the waveform with the given strategy and writes it to path.
func Write(ctx context.Context, path string, w *Waveform, opts WriteOptions) error {
	if err := CheckFormat(path); err != nil {
		return err
	}
	prepared, err := Prepare(w, opts)
	if err != nil {
		return err
	}
	if !NeedsEncoder(path) {
		return WriteWAV(path, prepared)
	}

	tmp := fmt.Sprintf("%s.tmp.wav", path)
	defer func() { _ = os.Remove(tmp) }()
	if err := WriteWAV(tmp, prepared); err != nil {
		return err
	}
	if err := ffmpeg.Encode(ctx, tmp, path); err != nil {
		return fmt.Errorf("sound: %w", err)
	}
	return nil
}
