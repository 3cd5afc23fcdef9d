package sound

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/igolaizola/musikgen/pkg/sound/ffmpeg"
)

// Decode decodes wav, mp3, flac or ogg data. The content type is used when
// present, otherwise the format is sniffed from the data.
// Flac and ogg are converted with ffmpeg.
func Decode(ctx context.Context, b []byte, contentType string) (*Waveform, error) {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			contentType = mt
		}
	}
	switch strings.ToLower(contentType) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return decodeWAV(b)
	case "audio/mpeg", "audio/mp3":
		return decodeMP3(b)
	case "audio/flac", "audio/x-flac":
		return decodeFFmpeg(ctx, b, ".flac")
	case "audio/ogg", "audio/vorbis":
		return decodeFFmpeg(ctx, b, ".ogg")
	case "", "application/octet-stream":
	default:
		return nil, fmt.Errorf("sound: unsupported content type %q", contentType)
	}
	switch {
	case bytes.HasPrefix(b, []byte("RIFF")):
		return decodeWAV(b)
	case bytes.HasPrefix(b, []byte("fLaC")):
		return decodeFFmpeg(ctx, b, ".flac")
	case bytes.HasPrefix(b, []byte("OggS")):
		return decodeFFmpeg(ctx, b, ".ogg")
	case bytes.HasPrefix(b, []byte("ID3")), len(b) > 1 && b[0] == 0xff && b[1]&0xe0 == 0xe0:
		return decodeMP3(b)
	}
	return nil, fmt.Errorf("sound: unknown audio format")
}

// DecodeFile decodes a file in any of the output formats.
func DecodeFile(ctx context.Context, path string) (*Waveform, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read file: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return decodeWAV(b)
	case ".mp3":
		return decodeMP3(b)
	case ".flac", ".ogg":
		return decodeFFmpeg(ctx, b, ext)
	default:
		return nil, fmt.Errorf("sound: can't decode %s files", ext)
	}
}

func decodeFFmpeg(ctx context.Context, b []byte, ext string) (*Waveform, error) {
	dir, err := os.MkdirTemp("", "musikgen-decode-")
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "in"+ext)
	if err := os.WriteFile(input, b, 0644); err != nil {
		return nil, fmt.Errorf("sound: couldn't write temp file: %w", err)
	}
	output := filepath.Join(dir, "out.wav")
	if err := ffmpeg.Decode(ctx, input, output); err != nil {
		return nil, fmt.Errorf("sound: %w", err)
	}
	wav, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read decoded file: %w", err)
	}
	return decodeWAV(wav)
}

func decodeMP3(b []byte) (*Waveform, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read mp3 samples: %w", err)
	}

	// The decoder always outputs 16-bit little endian stereo
	var stereo [2][]float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		stereo[(i/2)%2] = append(stereo[(i/2)%2], float64(sample)/32768.0)
	}
	if len(stereo[1]) < len(stereo[0]) {
		stereo[0] = stereo[0][:len(stereo[1])]
	}
	return &Waveform{
		Channels: [][]float64{stereo[0], stereo[1]},
		Rate:     decoder.SampleRate(),
	}, nil
}
