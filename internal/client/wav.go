package client

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/voicelink/remote-audio/internal/audio"
)

// WAVSource replays a RIFF/WAV recording as a ChunkSource, standing in for a
// live microphone. Multi-channel recordings are downmixed to the first
// channel.
type WAVSource struct {
	samples    []float32
	sampleRate int
	chunkSize  int
	pos        int
}

// NewWAVSource decodes the whole recording up front and serves it in
// chunkSize pieces. Samples are normalized to [-1, 1].
func NewWAVSource(r io.ReadSeeker, chunkSize int) (*WAVSource, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("WAV file reports %d channels", channels)
	}

	var samples []float32
	if decoder.BitDepth == 16 {
		pcm := make([]int16, 0, len(buf.Data)/channels)
		for i := 0; i < len(buf.Data); i += channels {
			pcm = append(pcm, int16(buf.Data[i]))
		}
		samples = audio.PCM16ToFloat32(pcm)
	} else {
		scale := float32(int(1) << (decoder.BitDepth - 1))
		samples = make([]float32, 0, len(buf.Data)/channels)
		for i := 0; i < len(buf.Data); i += channels {
			samples = append(samples, float32(buf.Data[i])/scale)
		}
	}

	return &WAVSource{
		samples:    samples,
		sampleRate: buf.Format.SampleRate,
		chunkSize:  chunkSize,
	}, nil
}

// SampleRate returns the recording's sample rate.
func (s *WAVSource) SampleRate() int {
	return s.sampleRate
}

// ResampleTo converts the recording to the given rate with linear
// interpolation and rewinds it. No-op when the rates already match.
func (s *WAVSource) ResampleTo(rate int) {
	if rate <= 0 || rate == s.sampleRate {
		return
	}
	s.samples = audio.Resample(s.samples, s.sampleRate, rate)
	s.sampleRate = rate
	s.pos = 0
}

// Len returns the total number of mono samples in the recording.
func (s *WAVSource) Len() int {
	return len(s.samples)
}

// NextChunk returns the next chunk, short on the final piece, then io.EOF.
func (s *WAVSource) NextChunk() ([]float32, error) {
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}

	end := s.pos + s.chunkSize
	if end > len(s.samples) {
		end = len(s.samples)
	}
	chunk := s.samples[s.pos:end]
	s.pos = end
	return chunk, nil
}

// EncodeWAV writes float32 samples as a 16-bit mono RIFF/WAV stream.
func EncodeWAV(ws io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm := audio.Float32ToPCM16(samples)
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}

	encoder := wav.NewEncoder(ws, sampleRate, 16, 1, 1)
	if err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("encode WAV: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}
