package remote

import "fmt"

// AuthError indicates missing or invalid credentials. Never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Reason)
}

// NetworkError wraps a connection-level failure (DNS, dial, reset). Always
// retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Code carries the API's machine-readable
// error code when the body includes one.
type HTTPError struct {
	Status int
	Code   string
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// UploadChunkError indicates a chunk PUT that came back with a status the
// upload protocol does not recognize.
type UploadChunkError struct {
	Status int
	Offset int64
}

func (e *UploadChunkError) Error() string {
	return fmt.Sprintf("upload chunk at offset %d failed with http %d", e.Offset, e.Status)
}

// UploadIncompleteError indicates the server never signalled completion even
// though every byte was sent.
type UploadIncompleteError struct {
	Sent  int64
	Total int64
}

func (e *UploadIncompleteError) Error() string {
	return fmt.Sprintf("upload incomplete: sent %d of %d bytes without a completion status", e.Sent, e.Total)
}
