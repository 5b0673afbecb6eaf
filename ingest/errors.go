package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies an ingestion failure.
type ErrorKind string

const (
	// KindNetwork covers connection resets, refused connections, and DNS
	// failures.
	KindNetwork ErrorKind = "network"
	// KindTimeout covers request and dial timeouts.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimit covers HTTP 429 responses.
	KindRateLimit ErrorKind = "rate_limit"
	// KindServer covers HTTP 5xx responses.
	KindServer ErrorKind = "server"
	// KindValidation covers HTTP 4xx responses other than 429 and any
	// request the downstream service rejects as malformed.
	KindValidation ErrorKind = "validation"
	// KindUnknown covers everything else.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified ingestion failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ingest %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ingest %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified ingestion error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// StatusError builds an ingestion error classified from an HTTP status code.
func StatusError(statusCode int, message string) *Error {
	return &Error{Kind: ClassifyStatus(statusCode), StatusCode: statusCode, Message: message}
}

// ClassifyStatus maps an HTTP status code to an error kind.
func ClassifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == 429:
		return KindRateLimit
	case statusCode >= 500:
		return KindServer
	case statusCode >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

// Retryable reports whether an error class is transient: network resets,
// timeouts, DNS failures, HTTP 429, and HTTP 5xx. This is independent of any
// remaining attempt budget. Context cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		switch ingestErr.Kind {
		case KindNetwork, KindTimeout, KindRateLimit, KindServer:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Unwrapped transport errors surfaced as plain strings.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection reset", "connection refused", "broken pipe", "no such host", "timeout", "timed out"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
