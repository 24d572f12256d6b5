// Package providers contains the read-only content sources that enrich
// calendar events. Each provider exposes a single request/response call.
package providers

import (
	"errors"
	"fmt"

	"calflow/internal/outbound"
)

var (
	// ErrNoResult means the provider answered but had nothing to offer.
	ErrNoResult = errors.New("no result")
	// ErrUpstream means the provider call itself failed.
	ErrUpstream = errors.New("upstream provider failed")
)

func upstream(service string, err error) error {
	var se *outbound.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, service, se.Code)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, service, err)
}

func noResult(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNoResult, fmt.Sprintf(format, args...))
}
