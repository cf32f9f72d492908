package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types exchanged on the wire. Every message is a single JSON object
// carrying a "type" discriminator plus kind-specific fields.
const (
	TypeConfig        = "config"
	TypeAudio         = "audio"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeAudioPlayback = "audio_playback"
	TypeStopPlayback  = "stop_playback"
	TypeError         = "error"
)

// ErrUnknownType is returned by Decode for a message whose "type" field does
// not name one of the seven known kinds.
var ErrUnknownType = errors.New("unknown message type")

// ErrMalformed is returned by Decode when the payload is not valid JSON or
// its fields do not match the declared type.
var ErrMalformed = errors.New("malformed message")

// Frame is one decoded wire message.
type Frame interface {
	FrameType() string
}

// Config is sent by the server exactly once, immediately after a client is
// admitted.
type Config struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate"`
	ChunkSize  int    `json:"chunk_size"`
	Format     string `json:"format"`
}

func (Config) FrameType() string { return TypeConfig }

// Audio carries one chunk of float32 samples from a client.
type Audio struct {
	Type string    `json:"type"`
	Data []float32 `json:"data"`
}

func (Audio) FrameType() string { return TypeAudio }

// Ping is a client-initiated connection-health probe.
type Ping struct {
	Type string `json:"type"`
}

func (Ping) FrameType() string { return TypePing }

// Pong is the server's reply to a Ping.
type Pong struct {
	Type string `json:"type"`
}

func (Pong) FrameType() string { return TypePong }

// AudioPlayback instructs clients to play synthesized audio.
type AudioPlayback struct {
	Type       string    `json:"type"`
	Data       []float32 `json:"data"`
	SampleRate int       `json:"sample_rate"`
	Text       string    `json:"text"`
}

func (AudioPlayback) FrameType() string { return TypeAudioPlayback }

// StopPlayback instructs clients to stop any in-progress playback.
type StopPlayback struct {
	Type string `json:"type"`
}

func (StopPlayback) FrameType() string { return TypeStopPlayback }

// Error reports a server-side failure to a client.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (Error) FrameType() string { return TypeError }

// Constructors fill in the type discriminator so callers never hand-write it.

func NewConfig(sampleRate, chunkSize int, format string) Config {
	return Config{Type: TypeConfig, SampleRate: sampleRate, ChunkSize: chunkSize, Format: format}
}

func NewAudio(data []float32) Audio {
	return Audio{Type: TypeAudio, Data: data}
}

func NewPing() Ping { return Ping{Type: TypePing} }

func NewPong() Pong { return Pong{Type: TypePong} }

func NewAudioPlayback(data []float32, sampleRate int, text string) AudioPlayback {
	return AudioPlayback{Type: TypeAudioPlayback, Data: data, SampleRate: sampleRate, Text: text}
}

func NewStopPlayback() StopPlayback { return StopPlayback{Type: TypeStopPlayback} }

func NewError(message string) Error { return Error{Type: TypeError, Message: message} }

// Encode serializes a frame to its wire form.
func Encode(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.FrameType(), err)
	}
	return b, nil
}

// envelope is used to peek at the discriminator before the full decode.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses one wire message into its concrete frame type. Unknown types
// yield ErrUnknownType and invalid payloads yield ErrMalformed; both are
// per-message failures and must not terminate the connection.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeConfig:
		var f Config
		return decodeInto(data, &f)
	case TypeAudio:
		var f Audio
		return decodeInto(data, &f)
	case TypePing:
		var f Ping
		return decodeInto(data, &f)
	case TypePong:
		var f Pong
		return decodeInto(data, &f)
	case TypeAudioPlayback:
		var f AudioPlayback
		return decodeInto(data, &f)
	case TypeStopPlayback:
		var f StopPlayback
		return decodeInto(data, &f)
	case TypeError:
		var f Error
		return decodeInto(data, &f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeInto[T Frame](data []byte, f *T) (Frame, error) {
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return *f, nil
}
