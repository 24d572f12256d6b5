package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calflow/internal/models"
)

const (
	ChannelSMS      = "sms"
	ChannelChat     = "chat"
	ChannelPlayback = "playback"

	TriggerNow         = "now"
	TriggerStart       = "start"
	TriggerBeforeStart = "before_start"
	TriggerAfterEnd    = "after_end"

	StatusSent      = "sent"
	StatusScheduled = "scheduled"
	StatusFailed    = "failed"
)

// Target is one notification to fire for an event. Recipient is a phone
// number, a chat id or a track URI depending on the channel; empty means the
// configured default.
type Target struct {
	Channel       string `json:"channel"`
	Recipient     string `json:"recipient,omitempty"`
	Trigger       string `json:"trigger,omitempty"`
	OffsetMinutes int    `json:"offset_minutes,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (t Target) validate() error {
	switch t.Channel {
	case ChannelSMS, ChannelChat:
	case ChannelPlayback:
		if t.Recipient == "" {
			return errors.New("playback needs a track uri")
		}
	default:
		return fmt.Errorf("unknown channel '%s'", t.Channel)
	}

	switch t.Trigger {
	case "", TriggerNow, TriggerStart, TriggerBeforeStart, TriggerAfterEnd:
	default:
		return fmt.Errorf("unknown trigger '%s'", t.Trigger)
	}

	if t.OffsetMinutes < 0 {
		return errors.New("offset minutes must not be negative")
	}
	return nil
}

// when resolves the trigger against the event bounds.
func (t Target) when(now time.Time, span models.TimeSpan, loc *time.Location) time.Time {
	start, end := span.Bounds(loc)
	offset := time.Duration(t.OffsetMinutes) * time.Minute

	switch t.Trigger {
	case TriggerStart:
		return start
	case TriggerBeforeStart:
		return start.Add(-offset)
	case TriggerAfterEnd:
		return end.Add(offset)
	default:
		return now
	}
}

// Delivery reports the outcome of one target.
type Delivery struct {
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient,omitempty"`
	At        time.Time `json:"at"`
	Status    string    `json:"status"`
	TaskID    string    `json:"task_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// dispatch fires every target. Failures are logged and reported, never
// returned: the calendar write has already happened.
func (o *Orchestrator) dispatch(ctx context.Context, ev models.Event, targets []Target, text string) []Delivery {
	if len(targets) == 0 {
		return nil
	}

	now := o.now().In(o.loc)
	deliveries := make([]Delivery, 0, len(targets))
	for _, t := range targets {
		d := o.deliver(ctx, now, ev, t, text)
		if d.Status == StatusFailed {
			o.log(ctx).Warn().Str("channel", d.Channel).Str("event", ev.ID).Str("error", d.Error).Msg("notification failed")
		}
		deliveries = append(deliveries, d)
	}
	return deliveries
}

func (o *Orchestrator) deliver(ctx context.Context, now time.Time, ev models.Event, t Target, text string) Delivery {
	at := t.when(now, ev.Span, o.loc)
	d := Delivery{Channel: t.Channel, Recipient: t.Recipient, At: at, Status: StatusSent}

	fail := func(err error) Delivery {
		d.Status = StatusFailed
		d.Error = err.Error()
		return d
	}

	if err := t.validate(); err != nil {
		return fail(err)
	}
	if t.Message != "" {
		text = t.Message
	}

	if t.Channel == ChannelPlayback {
		if o.Playback == nil {
			return fail(errors.New("playback is not wired"))
		}
		// the playback service keeps its own clock
		if err := o.Playback.Schedule(ctx, t.Recipient, at); err != nil {
			return fail(err)
		}
		return d
	}

	sender := o.SMS
	if t.Channel == ChannelChat {
		sender = o.Chat
	}
	if sender == nil {
		return fail(fmt.Errorf("%s is not wired", t.Channel))
	}

	if !at.After(now) || o.Tasks == nil {
		if err := sender.Send(ctx, t.Recipient, text); err != nil {
			return fail(err)
		}
		return d
	}

	name := fmt.Sprintf("%s %s", t.Channel, ev.Summary)
	recipient := t.Recipient
	id, err := o.Tasks.At(at, name, func(ctx context.Context) error {
		return sender.Send(ctx, recipient, text)
	})
	if err != nil {
		return fail(err)
	}
	d.Status = StatusScheduled
	d.TaskID = id
	return d
}
