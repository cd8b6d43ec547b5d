package handler

import (
	"net/http"
	"slices"
	"strings"
)

// RawResponse is a response as received from the transport.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Normalize converts a raw response into the canonical representation:
// the status, headers keyed by both lower-cased and original names, and
// the body as received. On a key collision the lower-cased view wins.
func Normalize(raw RawResponse) (status int, headers map[string][]string, body []byte) {
	headers = make(map[string][]string, 2*len(raw.Header))
	for name, values := range raw.Header {
		headers[name] = slices.Clone(values)
	}
	for name, values := range raw.Header {
		lower := strings.ToLower(name)
		if lower != name {
			if _, exact := raw.Header[lower]; exact {
				continue
			}
		}
		headers[lower] = slices.Clone(values)
	}
	return raw.Status, headers, raw.Body
}
