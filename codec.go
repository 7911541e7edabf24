package xqueue

import (
	"context"
	"encoding/json"
	"errors"
)

// Codec is the Strategy for encoding/decoding payload frames.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// JSONCodec is the default JSON implementation.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
func (JSONCodec) Name() string                    { return "json" }

var errNoPayload = errors.New("xqueue: message has no payload frame to decode")

// EncodeMessage builds a message whose single payload frame is v encoded with c.
func EncodeMessage(c Codec, id string, v any) (*Message, error) {
	data, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(id, data), nil
}

// DecodeCodec unmarshals the first payload frame of msg into T using c.
func DecodeCodec[T any](c Codec, msg *Message) (T, error) {
	var v T
	if len(msg.payload) == 0 {
		return v, errNoPayload
	}
	if err := c.Unmarshal(msg.payload[0], &v); err != nil {
		return v, err
	}
	return v, nil
}

// Decode unmarshals the first payload frame into T using a Codec found in ctx.
// Falls back to the default "json" codec if none was injected.
func Decode[T any](ctx context.Context, msg *Message) (T, error) {
	c, ok := CodecFromContext(ctx)
	if !ok {
		c = JSONCodec{}
	}
	return DecodeCodec[T](c, msg)
}
