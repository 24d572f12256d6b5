package flows

import (
	"context"
	"fmt"
	"time"

	"calflow/internal/config"
)

// Flows that can run as routines.
const (
	RoutineMindfulness  = "mindfulness"
	RoutineMotivational = "motivational"
	RoutineHistorical   = "historical"
)

// ValidateRoutine reports routines that name an unknown flow.
func ValidateRoutine(r config.Routine) error {
	switch r.Flow {
	case RoutineMindfulness, RoutineMotivational, RoutineHistorical:
		return nil
	default:
		return fmt.Errorf("%w: routine %s runs unknown flow '%s'", ErrInvalidRequest, r.Name, r.Flow)
	}
}

// RunRoutine creates the routine's event starting LeadMinutes from now.
func (o *Orchestrator) RunRoutine(ctx context.Context, r config.Routine) (Result, error) {
	if err := ValidateRoutine(r); err != nil {
		return Result{}, err
	}

	duration := r.DurationMinutes
	if duration <= 0 {
		duration = 30
	}
	start := o.now().In(o.loc).Add(time.Duration(r.LeadMinutes) * time.Minute)
	s := Schedule{
		StartTime: start.Format(time.RFC3339),
		EndTime:   start.Add(time.Duration(duration) * time.Minute).Format(time.RFC3339),
	}

	switch r.Flow {
	case RoutineMindfulness:
		return o.MoodEvent(ctx, Mindfulness, MoodRequest{Schedule: s})
	case RoutineMotivational:
		return o.MoodEvent(ctx, Motivational, MoodRequest{Schedule: s})
	default:
		return o.HistoricalEvent(ctx, HistoricalRequest{Schedule: s})
	}
}
