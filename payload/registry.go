package payload

import (
	"mime"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{
		"application/json": JSON{},
	}
)

// Register makes codec available under its ContentType, replacing any codec
// registered for the same type.
func Register(codec Codec) {
	mu.Lock()
	codecs[codec.ContentType()] = codec
	mu.Unlock()
}

// Get returns the codec registered for contentType.
func Get(contentType string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := codecs[contentType]
	return c, ok
}

// Negotiate picks the codec answering an Accept header: the first listed
// media type with a registered codec, in header order. Quality values are
// not ranked. Without a match it returns Default.
func Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if c, ok := Get(mediaType); ok {
			return c
		}
	}
	return Default()
}
