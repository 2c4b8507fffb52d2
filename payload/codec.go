// Package payload provides the codecs used to serialize monitor data.
//
// Codecs are looked up by MIME type, so HTTP handlers can honor the
// Accept header of a request:
//
//	codec, ok := payload.Get("application/msgpack")
//	if !ok {
//	    codec = payload.Default()
//	}
//	data, err := codec.Encode(page)
package payload

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes v to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes into v, which must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type (e.g., "application/json").
	ContentType() string
}

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}
