package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format of all-day dates.
const DateLayout = "2006-01-02"

// TimeSpan is either a timed interval or an all-day interval, never both.
// Values are only built through NewTimedSpan and NewAllDaySpan.
type TimeSpan struct {
	allDay    bool
	start     time.Time
	end       time.Time
	startDate string
	endDate   string
}

// NewTimedSpan returns a span bounded by two zoned timestamps.
func NewTimedSpan(start, end time.Time) TimeSpan {
	return TimeSpan{start: start, end: end}
}

// NewAllDaySpan returns a span bounded by two calendar dates (YYYY-MM-DD).
func NewAllDaySpan(startDate, endDate string) TimeSpan {
	return TimeSpan{allDay: true, startDate: startDate, endDate: endDate}
}

func (s TimeSpan) AllDay() bool      { return s.allDay }
func (s TimeSpan) Start() time.Time  { return s.start }
func (s TimeSpan) End() time.Time    { return s.end }
func (s TimeSpan) StartDate() string { return s.startDate }
func (s TimeSpan) EndDate() string   { return s.endDate }

// IsZero reports whether neither representation has been set.
func (s TimeSpan) IsZero() bool {
	return !s.allDay && s.start.IsZero() && s.end.IsZero()
}

// Bounds returns the span as instants. All-day dates resolve to local
// midnight in loc.
func (s TimeSpan) Bounds(loc *time.Location) (time.Time, time.Time) {
	if !s.allDay {
		return s.start, s.end
	}
	if loc == nil {
		loc = time.Local
	}
	start, _ := time.ParseInLocation(DateLayout, s.startDate, loc)
	end, _ := time.ParseInLocation(DateLayout, s.endDate, loc)
	return start, end
}

type timeSpanJSON struct {
	AllDay    bool       `json:"all_day"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	StartDate string     `json:"start_date,omitempty"`
	EndDate   string     `json:"end_date,omitempty"`
}

func (s TimeSpan) MarshalJSON() ([]byte, error) {
	out := timeSpanJSON{AllDay: s.allDay}
	if s.allDay {
		out.StartDate, out.EndDate = s.startDate, s.endDate
	} else {
		start, end := s.start, s.end
		out.Start, out.End = &start, &end
	}
	return json.Marshal(out)
}

// Draft is a calendar event before (or independent of) submission.
type Draft struct {
	Summary         string   `json:"summary"`
	Description     string   `json:"description,omitempty"`
	Location        string   `json:"location,omitempty"`
	Span            TimeSpan `json:"time_span"`
	ReminderMinutes *int     `json:"reminder_minutes,omitempty"`
	Recurrence      []string `json:"recurrence,omitempty"`
	TimeZone        string   `json:"time_zone,omitempty"`
}

// Event is a draft as stored by the upstream calendar.
type Event struct {
	ID       string `json:"id"`
	UID      string `json:"uid,omitempty"`      // iCalendar UID
	HTMLLink string `json:"html_link,omitempty"` // link to the event in the calendar UI
	Status   string `json:"status,omitempty"`
	Draft
}

// Patch carries the fields of an update request. Nil fields are left untouched.
type Patch struct {
	Summary         *string `json:"summary,omitempty"`
	Description     *string `json:"description,omitempty"`
	Location        *string `json:"location,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	AllDay          *bool   `json:"all_day,omitempty"`
	ReminderMinutes *int    `json:"reminder_minutes,omitempty"`
}
