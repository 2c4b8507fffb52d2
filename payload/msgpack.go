package payload

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack encodes values as MessagePack using the msgpack struct tags.
// Integers and floats take the smallest encoding that holds their value.
type MsgPack struct{}

func (MsgPack) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPack) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (MsgPack) ContentType() string {
	return "application/msgpack"
}

var _ Codec = MsgPack{}

func init() {
	Register(MsgPack{})
}
