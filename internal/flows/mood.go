package flows

import (
	"context"
	"fmt"
)

// Mood selects the quote source and wording of a mood event.
type Mood string

const (
	Mindfulness  Mood = "mindfulness"
	Motivational Mood = "motivational"
)

type moodProfile struct {
	summary  string
	label    string
	fallback string
}

var moods = map[Mood]moodProfile{
	Mindfulness: {
		summary:  "Mindfulness Reminder",
		label:    "Mindfulness Quote of the Day",
		fallback: "Take a slow breath. Notice where you are and let this moment be enough.",
	},
	Motivational: {
		summary:  "Motivational Reminder",
		label:    "Motivational Quote of the Day",
		fallback: "Keep going. Small steps taken today still move you forward.",
	},
}

// MoodRequest creates a quote event with optional playback around it.
type MoodRequest struct {
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`

	PreEventTrackURI    string `json:"pre_event_track_uri,omitempty"`
	PreEventOffset      *int   `json:"pre_event_offset,omitempty"`
	DuringEventTrackURI string `json:"during_event_track_uri,omitempty"`
	PostEventTrackURI   string `json:"post_event_track_uri,omitempty"`
	PostEventOffset     *int   `json:"post_event_offset,omitempty"`
	Schedule
}

// MoodEvent never fails on the quote: a provider failure falls back to a
// fixed encouragement.
func (o *Orchestrator) MoodEvent(ctx context.Context, mood Mood, req MoodRequest) (Result, error) {
	profile, ok := moods[mood]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown mood '%s'", ErrInvalidRequest, mood)
	}
	if err := req.validateAt(o.now().In(o.loc), plainTiming); err != nil {
		return Result{}, err
	}
	for _, off := range []*int{req.PreEventOffset, req.PostEventOffset} {
		if off != nil && *off < 0 {
			return Result{}, fmt.Errorf("%w: track offsets must not be negative", ErrInvalidRequest)
		}
	}

	quote := profile.fallback
	source := o.Mindfulness
	if mood == Motivational {
		source = o.Motivational
	}
	if source != nil {
		q, err := source.Quote(ctx)
		if err != nil {
			o.log(ctx).Warn().Err(err).Str("mood", string(mood)).Msg("quote unavailable, using fallback")
		} else {
			quote = q.String()
		}
	}

	summary := req.Summary
	if summary == "" {
		summary = profile.summary
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("%s: %s", profile.label, quote)
	}

	res, err := o.publish(ctx, req.Schedule, content{
		name:        string(mood),
		summary:     summary,
		description: description,
		timing:      plainTiming,
		extra:       req.tracks(),
	})
	if err != nil {
		return Result{}, err
	}

	res.Message = fmt.Sprintf("%s event created", profile.summary)
	res.Quote = quote
	return res, nil
}

func (r MoodRequest) tracks() []Target {
	var out []Target
	if r.PreEventTrackURI != "" {
		offset := r.reminder()
		if r.PreEventOffset != nil {
			offset = *r.PreEventOffset
		}
		out = append(out, Target{Channel: ChannelPlayback, Recipient: r.PreEventTrackURI, Trigger: TriggerBeforeStart, OffsetMinutes: offset})
	}
	if r.DuringEventTrackURI != "" {
		out = append(out, Target{Channel: ChannelPlayback, Recipient: r.DuringEventTrackURI, Trigger: TriggerStart})
	}
	if r.PostEventTrackURI != "" {
		offset := defaultReminderMinutes
		if r.PostEventOffset != nil {
			offset = *r.PostEventOffset
		}
		out = append(out, Target{Channel: ChannelPlayback, Recipient: r.PostEventTrackURI, Trigger: TriggerAfterEnd, OffsetMinutes: offset})
	}
	return out
}
