package flows

import (
	"context"
	"fmt"
	"strings"

	"calflow/internal/providers"
)

const (
	defaultGenre  = "Action"
	defaultRating = 7.0
	defaultPeriod = "1990s"
)

// MovieRequest schedules a movie session picked from the best rated titles
// of a genre and decade.
type MovieRequest struct {
	Genre    string  `json:"genre,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Period   string  `json:"period,omitempty"`
	TrackURI string  `json:"track_uri,omitempty"`
	Schedule
}

// MovieInfo is the movie picked for a session.
type MovieInfo struct {
	Title    string  `json:"title"`
	Year     string  `json:"year"`
	Rating   float64 `json:"rating"`
	Genre    string  `json:"genre"`
	Overview string  `json:"overview,omitempty"`
}

func (o *Orchestrator) MovieSession(ctx context.Context, req MovieRequest) (Result, error) {
	genre := strings.TrimSpace(req.Genre)
	if genre == "" {
		genre = defaultGenre
	}
	period := strings.TrimSpace(req.Period)
	if period == "" {
		period = defaultPeriod
	}
	rating := req.Rating
	if rating <= 0 {
		rating = defaultRating
	}

	window, ok := o.Catalog.Period(period)
	if !ok {
		return Result{}, fmt.Errorf("%w: '%s', use one of %s", ErrInvalidPeriod, period, strings.Join(o.Catalog.PeriodNames(), ", "))
	}
	genreID, ok := o.Catalog.Genre(genre)
	if !ok {
		return Result{}, fmt.Errorf("%w: '%s'", ErrInvalidGenre, genre)
	}
	if rating > 10 {
		return Result{}, fmt.Errorf("%w: rating must not exceed 10", ErrInvalidRequest)
	}
	if err := req.validateAt(o.now().In(o.loc), movieTiming); err != nil {
		return Result{}, err
	}

	movies, err := o.Movies.Discover(ctx, providers.DiscoverQuery{
		GenreID:     genreID,
		MinRating:   rating,
		ReleaseFrom: window.From,
		ReleaseTo:   window.To,
	})
	if err != nil {
		return Result{}, lookup(err, "movie discovery", "No movie recommendation found. Try adjusting your filters!")
	}
	movie := movies[o.intn(len(movies))]

	extra := []Target{{
		Channel: ChannelSMS,
		Trigger: TriggerNow,
		Message: fmt.Sprintf("Movie Recommendation: %s - Check your calendar for details!", movie.Title),
	}}
	if req.TrackURI != "" {
		extra = append(extra, Target{
			Channel:       ChannelPlayback,
			Recipient:     req.TrackURI,
			Trigger:       TriggerBeforeStart,
			OffsetMinutes: req.reminder(),
		})
	}

	res, err := o.publish(ctx, req.Schedule, content{
		name:        "movie",
		summary:     fmt.Sprintf("%s (%s) - %s", movie.Title, movie.Year(), genre),
		description: fmt.Sprintf("Today's movie: %s - Rating: %.1f | Enjoy some 'Brain' time!", movie.Title, movie.Rating),
		enrichments: []string{movie.Overview},
		timing:      movieTiming,
		extra:       extra,
	})
	if err != nil {
		return Result{}, err
	}

	res.Message = "Movie session scheduled successfully!"
	res.Movie = &MovieInfo{
		Title:    movie.Title,
		Year:     movie.Year(),
		Rating:   movie.Rating,
		Genre:    genre,
		Overview: movie.Overview,
	}
	return res, nil
}
