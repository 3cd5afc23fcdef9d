package sound

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WriteWAV encodes the waveform as 16-bit PCM. Samples are expected in
// [-1, 1] and are clipped otherwise.
func WriteWAV(path string, w *Waveform) error {
	if w.Len() == 0 {
		return ErrEmpty
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sound: couldn't create wav file: %w", err)
	}
	defer f.Close()

	if err := EncodeWAV(f, w); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sound: couldn't close wav file: %w", err)
	}
	return nil
}

// EncodeWAV writes the waveform as 16-bit PCM to the given writer.
func EncodeWAV(out io.WriteSeeker, w *Waveform) error {
	n := w.NumChannels()
	maxValue := float64(int(1)<<(wavBitDepth-1) - 1)
	data := make([]int, 0, w.Len()*n)
	for i := 0; i < w.Len(); i++ {
		for _, ch := range w.Channels {
			data = append(data, int(math.Round(clamp(ch[i])*maxValue)))
		}
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: n,
			SampleRate:  w.Rate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	enc := wav.NewEncoder(out, w.Rate, wavBitDepth, n, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("sound: couldn't encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("sound: couldn't finish wav: %w", err)
	}
	return nil
}

func decodeWAV(b []byte) (*Waveform, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("sound: invalid wav data")
	}
	// Only integer PCM is supported by the decoder.
	if dec.WavAudioFormat == 3 {
		return nil, fmt.Errorf("sound: unsupported float wav data")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode wav: %w", err)
	}
	n := int(dec.NumChans)
	if n == 0 {
		return nil, fmt.Errorf("sound: wav has no channels")
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = wavBitDepth
	}
	fullScale := float64(int64(1) << (depth - 1))

	data := buf.Data[:len(buf.Data)-len(buf.Data)%n]
	channels := make([][]float64, n)
	for i := range channels {
		channels[i] = make([]float64, 0, len(data)/n)
	}
	for i, v := range data {
		var sample float64
		if depth == 8 {
			// 8-bit wav samples are unsigned.
			sample = (float64(v) - 128) / 128
		} else {
			sample = float64(v) / fullScale
		}
		channels[i%n] = append(channels[i%n], sample)
	}
	return &Waveform{Channels: channels, Rate: int(dec.SampleRate)}, nil
}
