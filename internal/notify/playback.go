package notify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"calflow/internal/outbound"
)

// Playback schedules a track on the local playback service.
type Playback struct {
	client  *outbound.Client
	baseURL string
	loc     *time.Location
}

func NewPlayback(client *outbound.Client, baseURL string, loc *time.Location) *Playback {
	if loc == nil {
		loc = time.UTC
	}
	return &Playback{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), loc: loc}
}

// Schedule asks the playback service to play track at the wall-clock time
// of at. The service only understands HH:MM, so the date is dropped.
func (p *Playback) Schedule(ctx context.Context, track string, at time.Time) error {
	err := p.client.Do(ctx, outbound.Call{
		Service: "playback",
		Op:      "schedule",
		URL:     p.baseURL + "/schedule-playlist",
		Query: url.Values{
			"playlist_uri": {track},
			"play_time":    {at.In(p.loc).Format("15:04")},
		},
	}, nil)
	if err != nil {
		return failed("playback", err)
	}
	return nil
}
