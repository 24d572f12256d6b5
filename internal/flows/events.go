package flows

import (
	"context"
	"fmt"
	"strings"

	"calflow/internal/composer"
	"calflow/internal/ics"
	"calflow/internal/models"
)

const maxListLimit = 250

// PlainRequest creates an event from scheduling parameters alone.
type PlainRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Schedule
}

func (o *Orchestrator) CreateEvent(ctx context.Context, req PlainRequest) (Result, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return Result{}, fmt.Errorf("%w: summary is required", composer.ErrInvalidSummary)
	}
	if err := req.validateAt(o.now().In(o.loc), plainTiming); err != nil {
		return Result{}, err
	}

	res, err := o.publish(ctx, req.Schedule, content{
		name:        "plain",
		summary:     req.Summary,
		description: req.Description,
		timing:      plainTiming,
	})
	if err != nil {
		return Result{}, err
	}
	res.Message = "Event created"
	return res, nil
}

// UpdateEvent merges patch into the stored event. Fields missing from the
// patch keep their stored values.
func (o *Orchestrator) UpdateEvent(ctx context.Context, eventID string, patch models.Patch) (Result, error) {
	if eventID == "" {
		return Result{}, fmt.Errorf("%w: event id is required", ErrInvalidRequest)
	}

	stored, err := o.Calendar.Get(ctx, eventID)
	if err != nil {
		return Result{}, err
	}

	merged, err := composer.Merge(stored.Draft, patch)
	if err != nil {
		return Result{}, err
	}
	if !merged.Span.AllDay() && merged.TimeZone == "" {
		merged.TimeZone = o.loc.String()
	}

	updated, err := o.Calendar.Update(ctx, eventID, merged)
	if err != nil {
		return Result{}, err
	}
	o.log(ctx).Info().Str("event", eventID).Msg("event updated")
	o.mirror(ctx, updated)

	return Result{Message: "Event updated", Event: &updated}, nil
}

func (o *Orchestrator) DeleteEvent(ctx context.Context, eventID string) (Result, error) {
	if eventID == "" {
		return Result{}, fmt.Errorf("%w: event id is required", ErrInvalidRequest)
	}

	var uid string
	if o.Mirror != nil {
		stored, err := o.Calendar.Get(ctx, eventID)
		if err != nil {
			return Result{}, err
		}
		uid = ics.UID(stored)
	}

	if err := o.Calendar.Delete(ctx, eventID); err != nil {
		return Result{}, err
	}
	o.log(ctx).Info().Str("event", eventID).Msg("event deleted")

	if uid != "" {
		if err := o.Mirror.Remove(ctx, uid); err != nil {
			o.log(ctx).Warn().Err(err).Str("event", eventID).Msg("caldav mirror removal failed")
		}
	}
	return Result{Message: fmt.Sprintf("Event %s deleted", eventID)}, nil
}

func (o *Orchestrator) ListEvents(ctx context.Context, limit int, orderBy string) (Result, error) {
	if limit < 0 || limit > maxListLimit {
		return Result{}, fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidRequest, maxListLimit)
	}
	switch orderBy {
	case "", "startTime", "updated":
	default:
		return Result{}, fmt.Errorf("%w: unsupported ordering '%s'", ErrInvalidRequest, orderBy)
	}

	events, err := o.Calendar.ListUpcoming(ctx, limit, orderBy)
	if err != nil {
		return Result{}, err
	}
	if len(events) == 0 {
		return Result{Message: "No upcoming events found"}, nil
	}
	return Result{Message: fmt.Sprintf("%d upcoming events", len(events)), Events: events}, nil
}

// GetEvent returns one stored event.
func (o *Orchestrator) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	if eventID == "" {
		return models.Event{}, fmt.Errorf("%w: event id is required", ErrInvalidRequest)
	}
	return o.Calendar.Get(ctx, eventID)
}
