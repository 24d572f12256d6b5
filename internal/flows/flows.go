// Package flows holds the orchestration pipelines behind every HTTP route:
// validate input, query content providers in sequence, compose a draft,
// write it to the calendar and fan out best-effort notifications.
package flows

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"calflow/internal/catalog"
	"calflow/internal/models"
	"calflow/internal/providers"
	"calflow/internal/scheduler"
)

var (
	// ErrNoContentFound is matched by *NoContentError.
	ErrNoContentFound = errors.New("no content found")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrInvalidGenre   = errors.New("invalid genre")
	ErrInvalidRequest = errors.New("invalid request")
)

// NoContentError ends a flow early when a provider had nothing to offer.
// Message is meant for the caller.
type NoContentError struct {
	Message string
}

func (e *NoContentError) Error() string { return e.Message }

func (e *NoContentError) Is(target error) bool { return target == ErrNoContentFound }

func noContent(message string) error {
	return &NoContentError{Message: message}
}

type Calendar interface {
	ListUpcoming(ctx context.Context, limit int, orderBy string) ([]models.Event, error)
	Create(ctx context.Context, draft models.Draft) (models.Event, error)
	Get(ctx context.Context, eventID string) (models.Event, error)
	Update(ctx context.Context, eventID string, draft models.Draft) (models.Event, error)
	Delete(ctx context.Context, eventID string) error
}

type Mirror interface {
	Mirror(ctx context.Context, ev models.Event) error
	Remove(ctx context.Context, uid string) error
}

type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

type Player interface {
	Schedule(ctx context.Context, track string, at time.Time) error
}

type Deferrer interface {
	At(when time.Time, name string, fn scheduler.TaskFunc) (string, error)
}

type QuoteSource interface {
	Quote(ctx context.Context) (providers.Quote, error)
}

type HistorySource interface {
	OnThisDay(ctx context.Context, month, day int) ([]providers.HistoricalFact, error)
}

type MangaSource interface {
	Search(ctx context.Context, title string) (providers.Manga, error)
	LatestChapter(ctx context.Context, mangaID string) (providers.Chapter, error)
}

type AnimeSource interface {
	NextAiringEpisode(ctx context.Context, title string) (providers.Episode, error)
}

type MovieSource interface {
	Discover(ctx context.Context, q providers.DiscoverQuery) ([]providers.Movie, error)
}

type WeatherSource interface {
	Current(ctx context.Context, city string) (providers.Weather, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Deps are the clients a flow may use. Mirror and AI are optional.
type Deps struct {
	Calendar Calendar
	Mirror   Mirror

	SMS      Messenger
	Chat     Messenger
	Playback Player
	Tasks    Deferrer

	Motivational QuoteSource
	Mindfulness  QuoteSource
	History      HistorySource
	Manga        MangaSource
	Anime        AnimeSource
	Movies       MovieSource
	Weather      WeatherSource
	AI           TextGenerator

	Catalog *catalog.Catalog
}

type Orchestrator struct {
	Deps

	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
	intn   func(n int) int
}

func New(deps Deps, loc *time.Location, logger zerolog.Logger) *Orchestrator {
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{
		Deps:   deps,
		loc:    loc,
		logger: logger,
		now:    time.Now,
		intn:   rand.IntN,
	}
}

// log prefers the request-scoped logger carried by ctx.
func (o *Orchestrator) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &o.logger
}

// Result is what every flow reports back to the caller.
type Result struct {
	Message       string                    `json:"message"`
	Event         *models.Event             `json:"event,omitempty"`
	Events        []models.Event            `json:"events,omitempty"`
	Quote         string                    `json:"quote,omitempty"`
	Fact          *providers.HistoricalFact `json:"fact,omitempty"`
	Movie         *MovieInfo                `json:"movie,omitempty"`
	Episode       *providers.Episode        `json:"episode,omitempty"`
	ChapterURL    string                    `json:"chapter_url,omitempty"`
	Weather       *providers.Weather        `json:"weather,omitempty"`
	Insight       string                    `json:"insight,omitempty"`
	Notifications []Delivery                `json:"notifications,omitempty"`
}
