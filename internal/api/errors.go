package api

import (
	"errors"
	"net/http"

	"calflow/internal/composer"
	"calflow/internal/config"
	"calflow/internal/flows"
	"calflow/internal/google"
)

type Error struct {
	Message string   `json:"message,omitempty"`
	Err     []string `json:"err,omitempty"`
}

func NewError(message string, errs ...error) *Error {
	return &Error{
		Message: message,
		Err: func() []string {
			var msgs []string

			for _, err := range errs {
				if err != nil {
					msgs = append(msgs, err.Error())
				}
			}

			return msgs
		}(),
	}
}

var clientErrors = []error{
	flows.ErrInvalidPeriod,
	flows.ErrInvalidGenre,
	flows.ErrInvalidRequest,
	composer.ErrInvalidTimeSpan,
	composer.ErrInvalidSummary,
	composer.ErrInvalidReminder,
	composer.ErrInvalidRecurrence,
}

// statusOf maps a flow error to its HTTP status. ErrNotAuthenticated is
// checked before ErrCalendarUnavailable since it wraps it.
func statusOf(err error) int {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	switch {
	case errors.Is(err, google.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, google.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, google.ErrCalendarUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, config.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "request validation failed"
	case http.StatusNotFound:
		return "event not found"
	case http.StatusUnauthorized:
		return "google calendar is not authenticated, visit /authenticate"
	case http.StatusBadGateway:
		return "google calendar is unavailable"
	case http.StatusServiceUnavailable:
		return "a required setting is missing"
	default:
		return "internal error"
	}
}
