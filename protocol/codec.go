package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame types, numerically equal to the RFC 6455 opcodes used by gorilla/websocket
const (
	TextFrame   = 1
	BinaryFrame = 2
)

var ErrUnknownCodec = errors.New("unknown codec")

// Codec encodes and decodes event envelopes
type Codec interface {
	Name() string
	FrameType() int
	Encode(kind Kind, payload any) ([]byte, error)
	Decode(frame []byte) (Kind, []byte, error)
	Unmarshal(data []byte, v any) error
}

// CodecByName returns the codec for a client's ?encoding= value.
// An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

type jsonCodec struct{}

type jsonEnvelope struct {
	Event Kind `json:"event"`
	Data  any  `json:"data"`
}

type jsonInbound struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return TextFrame }

func (jsonCodec) Encode(kind Kind, payload any) ([]byte, error) {
	return json.Marshal(jsonEnvelope{Event: kind, Data: payload})
}

func (jsonCodec) Decode(frame []byte) (Kind, []byte, error) {
	var in jsonInbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if in.Event == "" {
		return "", nil, malformed("event name is required")
	}
	return in.Event, in.Data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// msgpackCodec reuses the json struct tags so both encodings share field names
type msgpackCodec struct{}

type msgpackEnvelope struct {
	Event Kind `json:"event"`
	Data  any  `json:"data"`
}

type msgpackInbound struct {
	Event Kind               `json:"event"`
	Data  msgpack.RawMessage `json:"data"`
}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return BinaryFrame }

func (msgpackCodec) Encode(kind Kind, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msgpackEnvelope{Event: kind, Data: payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Decode(frame []byte) (Kind, []byte, error) {
	var in msgpackInbound
	if err := c.Unmarshal(frame, &in); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if in.Event == "" {
		return "", nil, malformed("event name is required")
	}
	return in.Event, in.Data, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty msgpack payload")
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
