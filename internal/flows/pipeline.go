package flows

import (
	"context"
	"errors"
	"fmt"

	"calflow/internal/composer"
	"calflow/internal/models"
	"calflow/internal/providers"
)

// content is what a flow derived from its providers.
type content struct {
	name        string
	summary     string
	description string
	enrichments []string
	timing      timing
	// alert is the default text for sms and chat targets
	alert string
	extra []Target
}

// publish composes the draft, writes it and fans out notifications.
func (o *Orchestrator) publish(ctx context.Context, s Schedule, c content) (Result, error) {
	s = s.withDefaults(o.now().In(o.loc), c.timing)

	draft, err := composer.Compose(s.request(c.summary, c.description, o.loc.String(), c.enrichments...))
	if err != nil {
		return Result{}, err
	}

	ev, err := o.Calendar.Create(ctx, draft)
	if err != nil {
		return Result{}, err
	}
	o.log(ctx).Info().Str("flow", c.name).Str("event", ev.ID).Msg("event created")

	o.mirror(ctx, ev)

	alert := c.alert
	if alert == "" {
		alert = defaultAlert(ev)
	}
	targets := append(append([]Target{}, c.extra...), s.Notify...)
	deliveries := o.dispatch(ctx, ev, targets, alert)

	return Result{Event: &ev, Notifications: deliveries}, nil
}

func (o *Orchestrator) mirror(ctx context.Context, ev models.Event) {
	if o.Mirror == nil {
		return
	}
	if err := o.Mirror.Mirror(ctx, ev); err != nil {
		o.log(ctx).Warn().Err(err).Str("event", ev.ID).Msg("caldav mirror failed")
	}
}

func defaultAlert(ev models.Event) string {
	if ev.Span.AllDay() {
		return fmt.Sprintf("Reminder: %s on %s.", ev.Summary, ev.Span.StartDate())
	}
	return fmt.Sprintf("Reminder: %s at %s.", ev.Summary, ev.Span.Start().Format("2006-01-02 15:04"))
}

// lookup converts a provider's "nothing found" into a NoContentError with
// the given caller-facing message and wraps any other failure.
func lookup(err error, what, message string) error {
	if errors.Is(err, providers.ErrNoResult) {
		return noContent(message)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// insight asks the text generator for an optional enrichment block. Failures
// are logged and yield an empty block.
func (o *Orchestrator) insight(ctx context.Context, prompt string) string {
	if o.AI == nil {
		return ""
	}
	text, err := o.AI.Generate(ctx, prompt)
	if err != nil {
		o.log(ctx).Warn().Err(err).Msg("ai enrichment skipped")
		return ""
	}
	return text
}
