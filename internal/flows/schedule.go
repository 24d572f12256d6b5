package flows

import (
	"fmt"
	"time"

	"calflow/internal/composer"
	"calflow/internal/models"
)

const defaultReminderMinutes = 10

// Schedule carries the scheduling parameters shared by every flow. Empty
// start and end times fall back to per-flow defaults relative to now.
type Schedule struct {
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	AllDay          bool     `json:"all_day,omitempty"`
	ReminderMinutes *int     `json:"reminder_minutes,omitempty"`
	Location        string   `json:"location,omitempty"`
	Recurrence      []string `json:"recurrence,omitempty"`
	Notify          []Target `json:"notify,omitempty"`
}

// timing is the default lead before start and the default duration of a
// flow's event.
type timing struct {
	lead     time.Duration
	duration time.Duration
}

var (
	plainTiming = timing{lead: 30 * time.Minute, duration: 60 * time.Minute}
	mangaTiming = timing{lead: 30 * time.Minute, duration: 30 * time.Minute}
	movieTiming = timing{lead: 10 * time.Hour, duration: 2 * time.Hour}
	animeLength = time.Hour
)

// validate checks everything that can be checked before a provider call.
func (s Schedule) validate() error {
	if s.ReminderMinutes != nil && *s.ReminderMinutes < 0 {
		return fmt.Errorf("%w: reminder minutes must not be negative", composer.ErrInvalidReminder)
	}
	if err := s.checkBound("start", s.StartTime); err != nil {
		return err
	}
	if err := s.checkBound("end", s.EndTime); err != nil {
		return err
	}
	if s.StartTime != "" && s.EndTime != "" {
		if _, err := composer.ParseSpan(s.AllDay, s.StartTime, s.EndTime); err != nil {
			return err
		}
	}
	for i, t := range s.Notify {
		if err := t.validate(); err != nil {
			return fmt.Errorf("%w: notify[%d]: %w", ErrInvalidRequest, i, err)
		}
	}
	return nil
}

// validateAt also checks the span the flow would schedule once the missing
// bound is filled from the flow's timing.
func (s Schedule) validateAt(now time.Time, t timing) error {
	if err := s.validate(); err != nil {
		return err
	}
	d := s.withDefaults(now, t)
	_, err := composer.ParseSpan(d.AllDay, d.StartTime, d.EndTime)
	return err
}

func (s Schedule) checkBound(which, v string) error {
	if v == "" {
		return nil
	}
	if s.AllDay {
		if _, err := time.Parse(models.DateLayout, v); err != nil {
			return fmt.Errorf("%w: all-day %s %q is not a YYYY-MM-DD date", composer.ErrInvalidTimeSpan, which, v)
		}
		return nil
	}
	if _, err := composer.ParseTimestamp(v); err != nil {
		return fmt.Errorf("%w: %s: %w", composer.ErrInvalidTimeSpan, which, err)
	}
	return nil
}

// withDefaults fills the missing bounds and the reminder.
func (s Schedule) withDefaults(now time.Time, t timing) Schedule {
	if s.ReminderMinutes == nil {
		r := defaultReminderMinutes
		s.ReminderMinutes = &r
	}

	if s.AllDay {
		if s.StartTime == "" {
			s.StartTime = now.Add(t.lead).Format(models.DateLayout)
		}
		if s.EndTime == "" {
			if start, err := time.Parse(models.DateLayout, s.StartTime); err == nil {
				s.EndTime = start.AddDate(0, 0, 1).Format(models.DateLayout)
			}
		}
		return s
	}

	if s.StartTime == "" {
		s.StartTime = now.Add(t.lead).Format(time.RFC3339)
	}
	if s.EndTime == "" {
		if start, err := composer.ParseTimestamp(s.StartTime); err == nil {
			s.EndTime = start.Add(t.duration).Format(time.RFC3339)
		}
	}
	return s
}

// request turns the schedule and the flow's content into a composer request.
func (s Schedule) request(summary, description, timeZone string, enrichments ...string) composer.Request {
	return composer.Request{
		Summary:         summary,
		Description:     description,
		Location:        s.Location,
		AllDay:          s.AllDay,
		Start:           s.StartTime,
		End:             s.EndTime,
		ReminderMinutes: s.ReminderMinutes,
		Recurrence:      s.Recurrence,
		TimeZone:        timeZone,
		Enrichments:     enrichments,
	}
}

func (s Schedule) reminder() int {
	if s.ReminderMinutes == nil {
		return defaultReminderMinutes
	}
	return *s.ReminderMinutes
}
