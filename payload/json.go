package payload

import (
	"bytes"
	"encoding/json"
)

// JSON encodes values as JSON without HTML escaping, so error messages and
// event descriptions read the same as in logs. It is the fallback of
// Negotiate.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSON) ContentType() string {
	return "application/json"
}

var _ Codec = JSON{}
