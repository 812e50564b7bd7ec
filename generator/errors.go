package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorClass buckets provider failures for retry strategy selection.
type ErrorClass int

const (
	ClassOther ErrorClass = iota
	ClassTimeout
	ClassRateLimited
	ClassServerError
	ClassNetworkError
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTimeout:
		return "timeout"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerError:
		return "server_error"
	case ClassNetworkError:
		return "network_error"
	default:
		return "other"
	}
}

// ProviderError is a non-2xx response from a media provider.
type ProviderError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider returned %d: %s", e.Service, e.StatusCode, e.Message)
}

// Classify decides which retry strategy applies to an error. Typed errors
// are checked first; message matching is the fallback for providers that
// only surface opaque strings.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.StatusCode == 429:
			return ClassRateLimited
		case pe.StatusCode == 408:
			return ClassTimeout
		case pe.StatusCode >= 500:
			return ClassServerError
		}
		return ClassOther
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ClassTimeout
		}
		return ClassNetworkError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ClassTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return ClassRateLimited
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "server error"):
		return ClassServerError
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "dns"):
		return ClassNetworkError
	}
	return ClassOther
}
