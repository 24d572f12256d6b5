// Package composer turns content payloads and scheduling parameters into
// validated event drafts. It performs no I/O.
package composer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"calflow/internal/models"
)

var (
	ErrInvalidTimeSpan   = errors.New("invalid time span")
	ErrInvalidSummary    = errors.New("invalid summary")
	ErrInvalidReminder   = errors.New("invalid reminder")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
)

// Request is everything needed to build a draft.
type Request struct {
	Summary         string
	Description     string
	Location        string
	AllDay          bool
	Start           string
	End             string
	ReminderMinutes *int
	Recurrence      []string
	TimeZone        string
	// Enrichments are appended to Description, each separated by a blank line.
	Enrichments []string
}

// Compose validates req and returns the resulting draft.
func Compose(req Request) (models.Draft, error) {
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return models.Draft{}, fmt.Errorf("%w: summary is required", ErrInvalidSummary)
	}

	if req.ReminderMinutes != nil && *req.ReminderMinutes < 0 {
		return models.Draft{}, fmt.Errorf("%w: reminder minutes must not be negative", ErrInvalidReminder)
	}

	span, err := ParseSpan(req.AllDay, req.Start, req.End)
	if err != nil {
		return models.Draft{}, err
	}

	recurrence, err := normalizeRecurrence(req.Recurrence)
	if err != nil {
		return models.Draft{}, err
	}

	var reminder *int
	if req.ReminderMinutes != nil {
		n := *req.ReminderMinutes
		reminder = &n
	}

	return models.Draft{
		Summary:         summary,
		Description:     Enrich(req.Description, req.Enrichments...),
		Location:        req.Location,
		Span:            span,
		ReminderMinutes: reminder,
		Recurrence:      recurrence,
		TimeZone:        req.TimeZone,
	}, nil
}

// Enrich appends each non-empty block to base, separated by a blank line.
func Enrich(base string, blocks ...string) string {
	out := strings.TrimRight(base, "\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if out == "" {
			out = block
			continue
		}
		out += "\n\n" + block
	}
	return out
}

// ParseSpan checks that start and end match the declared mode: calendar
// dates when allDay is set, zoned timestamps otherwise.
func ParseSpan(allDay bool, start, end string) (models.TimeSpan, error) {
	if allDay {
		from, err := time.Parse(models.DateLayout, start)
		if err != nil {
			return models.TimeSpan{}, fmt.Errorf("%w: all-day start %q is not a YYYY-MM-DD date", ErrInvalidTimeSpan, start)
		}
		to, err := time.Parse(models.DateLayout, end)
		if err != nil {
			return models.TimeSpan{}, fmt.Errorf("%w: all-day end %q is not a YYYY-MM-DD date", ErrInvalidTimeSpan, end)
		}
		if to.Before(from) {
			return models.TimeSpan{}, fmt.Errorf("%w: end date is before start date", ErrInvalidTimeSpan)
		}
		return models.NewAllDaySpan(start, end), nil
	}

	from, err := ParseTimestamp(start)
	if err != nil {
		return models.TimeSpan{}, fmt.Errorf("%w: start: %w", ErrInvalidTimeSpan, err)
	}
	to, err := ParseTimestamp(end)
	if err != nil {
		return models.TimeSpan{}, fmt.Errorf("%w: end: %w", ErrInvalidTimeSpan, err)
	}
	if to.Before(from) {
		return models.TimeSpan{}, fmt.Errorf("%w: end time is before start time", ErrInvalidTimeSpan)
	}
	return models.NewTimedSpan(from, to), nil
}

// zonedLayouts are the accepted timestamp forms; both carry a UTC offset.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

// ParseTimestamp parses a timestamp that must carry a UTC offset.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a zoned ISO-8601 timestamp", v)
}

// normalizeRecurrence validates RRULE lines and prefixes bare rules. EXDATE,
// RDATE and EXRULE lines are kept as stored by the calendar.
func normalizeRecurrence(rules []string) ([]string, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}

		name, body, found := strings.Cut(rule, ":")
		if !found {
			name, body = "RRULE", rule
		}
		base, _, _ := strings.Cut(name, ";")

		switch strings.ToUpper(base) {
		case "RRULE":
			if _, err := rrule.StrToRRule(body); err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidRecurrence, rule, err)
			}
			out = append(out, "RRULE:"+body)
		case "EXDATE", "RDATE", "EXRULE":
			if body == "" {
				return nil, fmt.Errorf("%w: %q has no value", ErrInvalidRecurrence, rule)
			}
			out = append(out, rule)
		default:
			return nil, fmt.Errorf("%w: %q is not a recurrence property", ErrInvalidRecurrence, rule)
		}
	}
	return out, nil
}

// Merge applies the non-nil fields of p to d and re-validates the result.
// The time span is only rebuilt when a time or mode field is present.
func Merge(d models.Draft, p models.Patch) (models.Draft, error) {
	req := Request{
		Summary:         d.Summary,
		Description:     d.Description,
		Location:        d.Location,
		AllDay:          d.Span.AllDay(),
		ReminderMinutes: d.ReminderMinutes,
		Recurrence:      d.Recurrence,
		TimeZone:        d.TimeZone,
	}
	if d.Span.AllDay() {
		req.Start, req.End = d.Span.StartDate(), d.Span.EndDate()
	} else {
		req.Start, req.End = d.Span.Start().Format(time.RFC3339), d.Span.End().Format(time.RFC3339)
	}

	if p.Summary != nil {
		req.Summary = *p.Summary
	}
	if p.Description != nil {
		req.Description = *p.Description
	}
	if p.Location != nil {
		req.Location = *p.Location
	}
	if p.ReminderMinutes != nil {
		req.ReminderMinutes = p.ReminderMinutes
	}

	spanChanged := p.StartTime != nil || p.EndTime != nil || p.AllDay != nil
	if p.AllDay != nil {
		req.AllDay = *p.AllDay
	}
	if p.StartTime != nil {
		req.Start = *p.StartTime
	}
	if p.EndTime != nil {
		req.End = *p.EndTime
	}

	merged, err := Compose(req)
	if err != nil {
		return models.Draft{}, err
	}
	if !spanChanged {
		// keep the stored instants exactly, including their zone
		merged.Span = d.Span
	}
	return merged, nil
}
