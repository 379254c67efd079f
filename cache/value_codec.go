package cache

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ValueCodec encodes cached payloads. The encoded form must decode back into
// a value equivalent to the one that was encoded.
type ValueCodec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

type jsonCodec struct{}

// JSONCodec stores payloads as JSON, readable with redis-cli.
func JSONCodec() ValueCodec { return jsonCodec{} }

func (jsonCodec) Name() string                          { return CodecJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)         { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, dest any) error { return json.Unmarshal(data, dest) }

type msgpackCodec struct{}

// MsgpackCodec stores payloads as msgpack. Field names follow json tags so
// the same structs work with either codec.
func MsgpackCodec() ValueCodec { return msgpackCodec{} }

func (msgpackCodec) Name() string { return CodecMsgpack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, dest any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(dest)
}

// CodecByName resolves a configured codec name.
func CodecByName(name string) (ValueCodec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec(), nil
	case CodecMsgpack:
		return MsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("unknown cache codec %q", name)
	}
}
