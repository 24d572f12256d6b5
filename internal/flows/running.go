package flows

import (
	"context"
	"fmt"
	"strings"
)

// RunningRequest schedules a run with the current weather of City in the
// description.
type RunningRequest struct {
	City        string `json:"city"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	// Tip appends an AI written running tip for the conditions.
	Tip bool `json:"ai_tip,omitempty"`
	Schedule
}

// RunningEvent fails when the weather cannot be fetched.
func (o *Orchestrator) RunningEvent(ctx context.Context, req RunningRequest) (Result, error) {
	city := strings.TrimSpace(req.City)
	if city == "" {
		return Result{}, fmt.Errorf("%w: city is required", ErrInvalidRequest)
	}
	if err := req.validateAt(o.now().In(o.loc), plainTiming); err != nil {
		return Result{}, err
	}

	weather, err := o.Weather.Current(ctx, city)
	if err != nil {
		return Result{}, lookup(err, "weather lookup", fmt.Sprintf("No weather data available for %s.", city))
	}

	var tip string
	if req.Tip {
		tip = o.insight(ctx, fmt.Sprintf(
			"Give one short practical running tip for %.0f°C, %s, %d%% humidity and wind of %.1f m/s.",
			weather.Temperature, weather.Condition, weather.Humidity, weather.WindSpeed))
	}
	tipBlock := ""
	if tip != "" {
		tipBlock = "Running tip: " + tip
	}

	summary := req.Summary
	if summary == "" {
		summary = fmt.Sprintf("Running Session in %s", weather.City)
	}
	description := req.Description
	if description == "" {
		description = "Time to get moving!"
	}

	res, err := o.publish(ctx, req.Schedule, content{
		name:        "running",
		summary:     summary,
		description: description,
		enrichments: []string{weather.Block(), tipBlock},
		timing:      plainTiming,
	})
	if err != nil {
		return Result{}, err
	}

	res.Message = "Running event created"
	res.Weather = &weather
	res.Insight = tip
	return res, nil
}
