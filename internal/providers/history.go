package providers

import (
	"context"
	"fmt"
	"strings"

	"calflow/internal/outbound"
)

// HistoricalFact is one "on this day" entry.
type HistoricalFact struct {
	Date string `json:"date"` // MM/DD
	Year string `json:"year"`
	Text string `json:"text"`
}

// History queries the muffinlabs "today in history" service.
type History struct {
	client  *outbound.Client
	baseURL string
}

func NewHistory(client *outbound.Client, baseURL string) *History {
	return &History{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// OnThisDay returns the events recorded for the given month and day.
func (h *History) OnThisDay(ctx context.Context, month, day int) ([]HistoricalFact, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, fmt.Errorf("invalid day %02d/%02d", month, day)
	}

	var payload struct {
		Data struct {
			Events []struct {
				Year string `json:"year"`
				Text string `json:"text"`
			} `json:"Events"`
		} `json:"data"`
	}
	err := h.client.Do(ctx, outbound.Call{
		Service: "history",
		Op:      "on_this_day",
		URL:     fmt.Sprintf("%s/date/%d/%d", h.baseURL, month, day),
	}, &payload)
	if err != nil {
		return nil, upstream("history", err)
	}

	date := fmt.Sprintf("%02d/%02d", month, day)
	facts := make([]HistoricalFact, 0, len(payload.Data.Events))
	for _, ev := range payload.Data.Events {
		if strings.TrimSpace(ev.Text) == "" {
			continue
		}
		facts = append(facts, HistoricalFact{Date: date, Year: ev.Year, Text: ev.Text})
	}
	if len(facts) == 0 {
		return nil, noResult("no historical events found for %s", date)
	}
	return facts, nil
}
