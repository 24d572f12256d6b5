package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"calflow/internal/outbound"
)

const nextEpisodeQuery = `query ($search: String) {
  Media (search: $search, type: ANIME) {
    id
    title { romaji english }
    nextAiringEpisode { airingAt episode }
  }
}`

// Episode is the next scheduled airing of an anime series.
type Episode struct {
	MediaID  int       `json:"media_id"`
	Title    string    `json:"title"`
	Number   int       `json:"episode"`
	AiringAt time.Time `json:"airing_at"`
}

// PageURL links the series page on AniList.
func (e Episode) PageURL() string {
	if e.MediaID == 0 {
		return ""
	}
	return fmt.Sprintf("https://anilist.co/anime/%d", e.MediaID)
}

type AniList struct {
	client *outbound.Client
	url    string
}

func NewAniList(client *outbound.Client, graphqlURL string) *AniList {
	return &AniList{client: client, url: graphqlURL}
}

// NextAiringEpisode looks up title and returns its next airing episode.
// The returned time is in UTC.
func (a *AniList) NextAiringEpisode(ctx context.Context, title string) (Episode, error) {
	body := map[string]any{
		"query":     nextEpisodeQuery,
		"variables": map[string]string{"search": title},
	}

	var payload struct {
		Data struct {
			Media *struct {
				ID    int `json:"id"`
				Title struct {
					Romaji  string `json:"romaji"`
					English string `json:"english"`
				} `json:"title"`
				NextAiringEpisode *struct {
					AiringAt int64 `json:"airingAt"`
					Episode  int   `json:"episode"`
				} `json:"nextAiringEpisode"`
			} `json:"Media"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
			Status  int    `json:"status"`
		} `json:"errors"`
	}
	err := a.client.Do(ctx, outbound.Call{
		Service: "anilist",
		Op:      "next_airing_episode",
		Method:  http.MethodPost,
		URL:     a.url,
		Body:    body,
	}, &payload)
	if err != nil {
		// AniList answers an unknown title with 404 and a GraphQL error body.
		var se *outbound.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return Episode{}, noResult("no anime found for %q", title)
		}
		return Episode{}, upstream("anilist", err)
	}

	media := payload.Data.Media
	if media == nil {
		return Episode{}, noResult("no anime found for %q", title)
	}
	if media.NextAiringEpisode == nil {
		return Episode{}, noResult("no upcoming episode for %q", title)
	}

	name := media.Title.English
	if name == "" {
		name = media.Title.Romaji
	}
	return Episode{
		MediaID:  media.ID,
		Title:    name,
		Number:   media.NextAiringEpisode.Episode,
		AiringAt: time.Unix(media.NextAiringEpisode.AiringAt, 0).UTC(),
	}, nil
}
