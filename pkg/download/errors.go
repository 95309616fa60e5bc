package download

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ErrChecksumMismatch is wrapped by a FetchError when the fetched bytes
// match none of the artifact's checksums.
var ErrChecksumMismatch = errors.New("checksum verification failed")

// FetchError reports that an artifact could not be obtained from its source.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether fetching again later may succeed: the source
// was unreachable, answered with a server-side status, or cut the body
// short. A checksum mismatch or a missing artifact is not transient.
func (e *FetchError) Transient() bool {
	var status *StatusError
	if errors.As(e.Err, &status) {
		return status.Transient()
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	return errors.Is(e.Err, io.ErrUnexpectedEOF)
}

// StatusError is a non-2xx answer from an artifact source
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Transient is true for 5xx, 429 and 408
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}
