package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"calflow/internal/config"
	"calflow/internal/outbound"
)

// minVoteCount filters out titles with too few votes for the rating to mean anything.
const minVoteCount = 50

// DiscoverQuery selects movies by genre, minimum rating and release window.
// Dates are YYYY-MM-DD.
type DiscoverQuery struct {
	GenreID     int
	MinRating   float64
	ReleaseFrom string
	ReleaseTo   string
}

// Movie is one TMDB discover result.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	Rating      float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// Year returns the release year, or an empty string when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

type TMDB struct {
	client  *outbound.Client
	baseURL string
	apiKey  string
}

func NewTMDB(client *outbound.Client, baseURL, apiKey string) *TMDB {
	return &TMDB{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

// Discover returns the first page of matches, best rated first.
func (t *TMDB) Discover(ctx context.Context, q DiscoverQuery) ([]Movie, error) {
	if t.apiKey == "" {
		return nil, config.Missing("TMDB_API_KEY")
	}

	query := url.Values{
		"api_key":                  {t.apiKey},
		"language":                 {"en-US"},
		"sort_by":                  {"vote_average.desc"},
		"vote_count.gte":           {strconv.Itoa(minVoteCount)},
		"vote_average.gte":         {strconv.FormatFloat(q.MinRating, 'f', -1, 64)},
		"primary_release_date.gte": {q.ReleaseFrom},
		"primary_release_date.lte": {q.ReleaseTo},
		"with_genres":              {strconv.Itoa(q.GenreID)},
		"page":                     {"1"},
	}

	var payload struct {
		Results []Movie `json:"results"`
	}
	err := t.client.Do(ctx, outbound.Call{
		Service: "tmdb",
		Op:      "discover",
		URL:     t.baseURL + "/discover/movie",
		Query:   query,
	}, &payload)
	if err != nil {
		return nil, upstream("tmdb", err)
	}
	if len(payload.Results) == 0 {
		return nil, noResult("no movies found for genre %d rated %g+ between %s and %s",
			q.GenreID, q.MinRating, q.ReleaseFrom, q.ReleaseTo)
	}
	return payload.Results, nil
}
