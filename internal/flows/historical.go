package flows

import (
	"context"
	"fmt"
)

// HistoricalRequest creates an event around an "on this day" fact.
type HistoricalRequest struct {
	// RandomDay picks a random month and day instead of today.
	RandomDay bool `json:"random_day,omitempty"`
	// RandomFact picks a random entry instead of the first one.
	RandomFact bool `json:"random_fact,omitempty"`
	// Elaborate appends an AI written paragraph about the fact.
	Elaborate        bool   `json:"elaborate,omitempty"`
	ReminderTrackURI string `json:"reminder_track_uri,omitempty"`
	Schedule
}

func (o *Orchestrator) HistoricalEvent(ctx context.Context, req HistoricalRequest) (Result, error) {
	if err := req.validateAt(o.now().In(o.loc), plainTiming); err != nil {
		return Result{}, err
	}

	today := o.now().In(o.loc)
	month, day := int(today.Month()), today.Day()
	if req.RandomDay {
		month, day = o.intn(12)+1, o.intn(28)+1
	}

	facts, err := o.History.OnThisDay(ctx, month, day)
	if err != nil {
		return Result{}, lookup(err, "historical lookup", "No historical events found.")
	}

	fact := facts[0]
	if req.RandomFact {
		fact = facts[o.intn(len(facts))]
	}

	var elaboration string
	if req.Elaborate {
		elaboration = o.insight(ctx, fmt.Sprintf(
			"In two or three sentences, explain the historical significance of this event from %s: %s", fact.Year, fact.Text))
	}

	var extra []Target
	if req.ReminderTrackURI != "" {
		extra = append(extra, Target{
			Channel:       ChannelPlayback,
			Recipient:     req.ReminderTrackURI,
			Trigger:       TriggerBeforeStart,
			OffsetMinutes: req.reminder(),
		})
	}

	res, err := o.publish(ctx, req.Schedule, content{
		name:        "historical",
		summary:     fmt.Sprintf("Historical Event on %s: %s (%s)", fact.Date, fact.Text, fact.Year),
		description: fmt.Sprintf("This event happened on %s in %s: %s", fact.Date, fact.Year, fact.Text),
		enrichments: []string{elaboration},
		timing:      plainTiming,
		extra:       extra,
	})
	if err != nil {
		return Result{}, err
	}

	res.Message = "Historical event added"
	res.Fact = &fact
	res.Insight = elaboration
	return res, nil
}
