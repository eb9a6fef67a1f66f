// Package wire holds the small pieces of the DETRAN-SP HTTP contract that
// are shared by every client in this module: error-body decoding and
// outbound request correlation.
package wire

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDHeader is attached to every outbound request so a failing call
// can be matched against backend logs.
const RequestIDHeader = "X-Request-ID"

// NewRequestID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps correlated log lines
// in issue order.
func NewRequestID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Tag sets the correlation header on req. ID generation is best-effort:
// a request without an ID is still a valid request.
func Tag(req *http.Request) string {
	id, err := NewRequestID(time.Time{})
	if err != nil {
		return ""
	}
	req.Header.Set(RequestIDHeader, id)
	return id
}

// errorBody mirrors the FastAPI error envelope. The detail field is either
// a plain string or an object whose "error" key names the failure.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// Detail extracts the human-readable message from a backend error body.
// Anything that does not match the contract collapses to "".
func Detail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(eb.Detail, &obj); err == nil {
		if v, ok := obj["error"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ErrorMessage builds the message surfaced to callers for a non-2xx
// response: the extracted detail when present, otherwise a generic line
// carrying the status code.
func ErrorMessage(status int, body []byte) string {
	if d := Detail(body); d != "" {
		return d
	}
	return fmt.Sprintf("request failed with status %d", status)
}
