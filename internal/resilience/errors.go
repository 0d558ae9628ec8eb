package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a failure worth one more attempt before the
// affected feed, repository, or API call is skipped. Call sites that see
// the HTTP response wrap non-2xx statuses so the retry layer can tell
// rate limiting from permanent rejection.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientErrnos = []syscall.Errno{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
}

// transientMessages catches wrapped network failures the HTTP client
// surfaces only as text: flaky DNS lookups against reddit.com, and
// handshake or read timeouts on the Algolia and GitHub APIs.
var transientMessages = []string{
	"connection reset by peer",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
}

// IsTransient reports whether the error chain contains a TransientError
// or matches a known transient network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}

// transientStatuses: request timeout, rate limiting, and upstream 5xx.
var transientStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsTransientHTTPStatus reports whether the HTTP status code is worth a
// retry before skipping the unit of work.
func IsTransientHTTPStatus(statusCode int) bool {
	return transientStatuses[statusCode]
}
