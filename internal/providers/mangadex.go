package providers

import (
	"context"
	"net/url"
	"strings"

	"calflow/internal/outbound"
)

const mangaDexReaderURL = "https://mangadex.org/chapter/"

// Manga is a MangaDex series match.
type Manga struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Chapter is the most recently published English chapter of a series.
type Chapter struct {
	ID          string `json:"id"`
	Number      string `json:"chapter,omitempty"`
	Title       string `json:"title,omitempty"`
	PublishedAt string `json:"publish_at,omitempty"`
	URL         string `json:"url"`
}

type MangaDex struct {
	client  *outbound.Client
	baseURL string
}

func NewMangaDex(client *outbound.Client, baseURL string) *MangaDex {
	return &MangaDex{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Search returns the best match for title.
func (m *MangaDex) Search(ctx context.Context, title string) (Manga, error) {
	var payload struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Title map[string]string `json:"title"`
			} `json:"attributes"`
		} `json:"data"`
	}
	err := m.client.Do(ctx, outbound.Call{
		Service: "mangadex",
		Op:      "search",
		URL:     m.baseURL + "/manga",
		Query:   url.Values{"title": {title}, "limit": {"1"}},
	}, &payload)
	if err != nil {
		return Manga{}, upstream("mangadex", err)
	}
	if len(payload.Data) == 0 {
		return Manga{}, noResult("no manga found for %q", title)
	}

	found := payload.Data[0]
	name := found.Attributes.Title["en"]
	if name == "" {
		for _, v := range found.Attributes.Title {
			name = v
			break
		}
	}
	if name == "" {
		name = title
	}
	return Manga{ID: found.ID, Title: name}, nil
}

// LatestChapter returns the newest English chapter of the series.
func (m *MangaDex) LatestChapter(ctx context.Context, mangaID string) (Chapter, error) {
	var payload struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Chapter   string `json:"chapter"`
				Title     string `json:"title"`
				PublishAt string `json:"publishAt"`
			} `json:"attributes"`
		} `json:"data"`
	}
	err := m.client.Do(ctx, outbound.Call{
		Service: "mangadex",
		Op:      "latest_chapter",
		URL:     m.baseURL + "/chapter",
		Query: url.Values{
			"manga":                {mangaID},
			"limit":                {"1"},
			"translatedLanguage[]": {"en"},
			"order[publishAt]":     {"desc"},
		},
	}, &payload)
	if err != nil {
		return Chapter{}, upstream("mangadex", err)
	}
	if len(payload.Data) == 0 {
		return Chapter{}, noResult("no chapters found for manga %s", mangaID)
	}

	c := payload.Data[0]
	return Chapter{
		ID:          c.ID,
		Number:      c.Attributes.Chapter,
		Title:       c.Attributes.Title,
		PublishedAt: c.Attributes.PublishAt,
		URL:         mangaDexReaderURL + c.ID,
	}, nil
}
