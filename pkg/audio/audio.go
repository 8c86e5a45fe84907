// Package audio holds the WAV primitives used by the synthesis pipeline:
// decoding provider output, duration read-back, and the normalize /
// resample / concatenate steps behind full-audio assembly.
package audio

import (
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// TargetSampleRate is the canonical rate every chunk is normalized to
// before concatenation. Backends are free to emit whatever rate they want.
const TargetSampleRate = 24000

const targetBitDepth = 16

// Clip is mono float32 PCM at a known sample rate.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Load decodes a WAV file into a mono float32 clip. Multi-channel input is
// downmixed by averaging the channels of each frame.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav file: %w", err)
	}

	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, fmt.Errorf("wav file has no format info")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth == 0 {
		bitDepth = targetBitDepth
	}

	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)

	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// FileDuration returns the playback length of a WAV file in seconds.
func FileDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)

	dur, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("read wav duration: %w", err)
	}

	return dur.Seconds(), nil
}

// Seconds returns the playback length of the clip.
func (c *Clip) Seconds() float64 {
	if c.SampleRate == 0 {
		return 0
	}

	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Resampled returns the clip converted to the given sample rate using
// linear interpolation. The receiver is returned unchanged if it already
// matches.
func (c *Clip) Resampled(rate int) *Clip {
	if c.SampleRate == rate || len(c.Samples) == 0 {
		return &Clip{Samples: c.Samples, SampleRate: rate}
	}

	ratio := float64(rate) / float64(c.SampleRate)

	n := int(math.Round(float64(len(c.Samples)) * ratio))
	if n < 1 {
		n = 1
	}

	out := make([]float32, n)
	for i := range out {
		pos := float64(i) / ratio

		j := int(pos)
		if j >= len(c.Samples)-1 {
			out[i] = c.Samples[len(c.Samples)-1]
			continue
		}

		frac := float32(pos - float64(j))
		out[i] = c.Samples[j]*(1-frac) + c.Samples[j+1]*frac
	}

	return &Clip{Samples: out, SampleRate: rate}
}

// Concat joins clips in order. All clips must share one sample rate.
func Concat(clips ...*Clip) (*Clip, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("no clips to concatenate")
	}

	rate := clips[0].SampleRate
	total := 0

	for _, clip := range clips {
		if clip.SampleRate != rate {
			return nil, fmt.Errorf("sample rate mismatch: %d != %d", clip.SampleRate, rate)
		}
		total += len(clip.Samples)
	}

	samples := make([]float32, 0, total)
	for _, clip := range clips {
		samples = append(samples, clip.Samples...)
	}

	return &Clip{Samples: samples, SampleRate: rate}, nil
}

// WriteWav encodes the clip as a mono 16-bit PCM WAV file.
func WriteWav(path string, c *Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: 1,
			SampleRate:  c.SampleRate,
		},
		Data:           make([]int, len(c.Samples)),
		SourceBitDepth: targetBitDepth,
	}

	for i, s := range c.Samples {
		v := int(math.Round(float64(s) * (1 << (targetBitDepth - 1))))
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		buf.Data[i] = v
	}

	enc := wav.NewEncoder(f, c.SampleRate, targetBitDepth, 1, 1)

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()

		return fmt.Errorf("write wav data: %w", err)
	}

	if err := enc.Close(); err != nil {
		f.Close()

		return fmt.Errorf("close wav encoder: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close wav file: %w", err)
	}

	return nil
}
