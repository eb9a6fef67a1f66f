package ticket

import (
	"errors"
	"fmt"
	"net/http"

	"renova/cmd/internal/wire"
)

// ErrUnauthenticated is matched (errors.Is) by any APIError with status
// 401, i.e. after the single refresh-and-retry has been exhausted.
var ErrUnauthenticated = errors.New("unauthenticated")

// APIError carries the backend's rejection of a request. Detail is the
// human-readable message extracted from the response body.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticket api: %s (status %d)", e.Detail, e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{Status: status, Detail: wire.ErrorMessage(status, body)}
}
