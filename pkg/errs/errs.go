// Package errs defines the error markers shared by the matcher, merger,
// cache and sync layers, and the helpers that classify them.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrMissingCredential   = errors.New("provider not linked")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedPayload    = errors.New("malformed upstream payload")
	ErrNoConfidentMatch    = errors.New("no confident match")
	ErrNoSearchResults     = errors.New("no search results")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrDataIntegrity       = errors.New("data integrity error")
	ErrPersistence         = errors.New("persistence error")
)

// Wrap tags err with marker and prefixes the operation and message so the
// error string carries enough context for a per-item error report.
func Wrap(marker error, op, message string, err error) error {
	if marker == nil {
		marker = ErrUpstreamUnavailable
	}
	detail := buildDetail(op, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort the whole request instead of
// being recorded against a single item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrMissingCredential)
}

// Reason returns the short, human-readable reason used in batch error lists.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return "not authenticated"
	case errors.Is(err, ErrMissingCredential):
		return "provider not linked"
	case errors.Is(err, ErrDataIntegrity):
		return "data integrity"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed provider response"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "provider unavailable"
	case errors.Is(err, ErrUnsupportedPlatform):
		return "unsupported platform"
	case errors.Is(err, ErrNoSearchResults):
		return "no search results"
	case errors.Is(err, ErrNoConfidentMatch):
		return "no confident match"
	case errors.Is(err, ErrPersistence):
		return "persistence failure"
	default:
		return "unexpected error"
	}
}

// Rank orders errors by how informative they are in a truncated report.
// Lower ranks are reported first.
func Rank(err error) int {
	switch {
	case errors.Is(err, ErrDataIntegrity):
		return 0
	case errors.Is(err, ErrMalformedPayload):
		return 1
	case errors.Is(err, ErrUpstreamUnavailable):
		return 2
	case errors.Is(err, ErrPersistence):
		return 3
	case errors.Is(err, ErrUnsupportedPlatform):
		return 4
	default:
		return 5
	}
}

func buildDetail(op, message string) string {
	parts := make([]string, 0, 2)
	if op = strings.TrimSpace(op); op != "" {
		parts = append(parts, op)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
