// Package ics renders events as iCalendar data for export and for the
// CalDAV mirror.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"calflow/internal/models"
)

const productID = "-//calflow//EN"

// UID returns the iCalendar UID of ev, generating one when the upstream
// calendar did not provide it.
func UID(ev models.Event) string {
	if ev.UID != "" {
		return ev.UID
	}
	if ev.ID != "" {
		return ev.ID + "@calflow"
	}
	return uuid.New().String()
}

// Calendar wraps events into a VCALENDAR stamped at now.
func Calendar(now time.Time, events ...models.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, ev := range events {
		cal.Children = append(cal.Children, Component(ev, now))
	}
	return cal
}

// Encode writes events to w as a single VCALENDAR.
func Encode(w io.Writer, now time.Time, events ...models.Event) error {
	if err := ical.NewEncoder(w).Encode(Calendar(now, events...)); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// Component converts ev into a VEVENT.
func Component(ev models.Event, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(ev))
	ve.Props.SetText(ical.PropSummary, ev.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	span := ev.Span
	if span.AllDay() {
		start, end := span.Bounds(time.UTC)
		ve.Props.SetDate(ical.PropDateTimeStart, start)
		ve.Props.SetDate(ical.PropDateTimeEnd, end)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, span.Start().UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, span.End().UTC())
	}

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.HTMLLink != "" {
		p := ical.NewProp(ical.PropURL)
		p.SetValueType(ical.ValueURI)
		p.Value = ev.HTMLLink
		ve.Props.Set(p)
	}

	for _, line := range ev.Recurrence {
		name, value, ok := strings.Cut(line, ":")
		if !ok || value == "" {
			continue
		}
		// EXDATE;TZID=Europe/Amsterdam:20241017T120000 carries parameters
		name, params, _ := strings.Cut(name, ";")
		p := ical.NewProp(strings.ToUpper(name))
		for _, param := range strings.Split(params, ";") {
			if k, v, ok := strings.Cut(param, "="); ok {
				p.Params.Set(strings.ToUpper(k), v)
			}
		}
		p.Value = value
		ve.Props.Add(p)
	}

	if ev.ReminderMinutes != nil {
		ve.Children = append(ve.Children, alarm(ev.Summary, *ev.ReminderMinutes))
	}
	return ve
}

func alarm(summary string, minutes int) *ical.Component {
	va := ical.NewComponent(ical.CompAlarm)
	va.Props.SetText(ical.PropAction, "DISPLAY")
	va.Props.SetText(ical.PropDescription, summary)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", minutes)
	va.Props.Set(trigger)
	return va
}
