package flows

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calflow/internal/catalog"
	"calflow/internal/composer"
	"calflow/internal/config"
	"calflow/internal/models"
	"calflow/internal/providers"
	"calflow/internal/scheduler"
)

type calendarMock struct{ mock.Mock }

func (m *calendarMock) ListUpcoming(_ context.Context, limit int, orderBy string) ([]models.Event, error) {
	args := m.Called(limit, orderBy)
	events, _ := args.Get(0).([]models.Event)
	return events, args.Error(1)
}

func (m *calendarMock) Create(_ context.Context, draft models.Draft) (models.Event, error) {
	args := m.Called(draft)
	return models.Event{ID: "evt-1", UID: "evt-1@google.com", Draft: draft}, args.Error(0)
}

func (m *calendarMock) Get(_ context.Context, eventID string) (models.Event, error) {
	args := m.Called(eventID)
	return args.Get(0).(models.Event), args.Error(1)
}

func (m *calendarMock) Update(_ context.Context, eventID string, draft models.Draft) (models.Event, error) {
	args := m.Called(eventID, draft)
	return models.Event{ID: eventID, Draft: draft}, args.Error(0)
}

func (m *calendarMock) Delete(_ context.Context, eventID string) error {
	return m.Called(eventID).Error(0)
}

type mirrorMock struct{ mock.Mock }

func (m *mirrorMock) Mirror(_ context.Context, ev models.Event) error {
	return m.Called(ev.ID).Error(0)
}

func (m *mirrorMock) Remove(_ context.Context, uid string) error {
	return m.Called(uid).Error(0)
}

type messengerMock struct{ mock.Mock }

func (m *messengerMock) Send(_ context.Context, to, text string) error {
	return m.Called(to, text).Error(0)
}

type playerMock struct{ mock.Mock }

func (m *playerMock) Schedule(_ context.Context, track string, at time.Time) error {
	return m.Called(track, at).Error(0)
}

type deferrerMock struct{ mock.Mock }

func (m *deferrerMock) At(when time.Time, name string, fn scheduler.TaskFunc) (string, error) {
	args := m.Called(when, name, fn)
	return args.String(0), args.Error(1)
}

type quoteMock struct{ mock.Mock }

func (m *quoteMock) Quote(context.Context) (providers.Quote, error) {
	args := m.Called()
	return args.Get(0).(providers.Quote), args.Error(1)
}

type historyMock struct{ mock.Mock }

func (m *historyMock) OnThisDay(_ context.Context, month, day int) ([]providers.HistoricalFact, error) {
	args := m.Called(month, day)
	facts, _ := args.Get(0).([]providers.HistoricalFact)
	return facts, args.Error(1)
}

type mangaMock struct{ mock.Mock }

func (m *mangaMock) Search(_ context.Context, title string) (providers.Manga, error) {
	args := m.Called(title)
	return args.Get(0).(providers.Manga), args.Error(1)
}

func (m *mangaMock) LatestChapter(_ context.Context, mangaID string) (providers.Chapter, error) {
	args := m.Called(mangaID)
	return args.Get(0).(providers.Chapter), args.Error(1)
}

type animeMock struct{ mock.Mock }

func (m *animeMock) NextAiringEpisode(_ context.Context, title string) (providers.Episode, error) {
	args := m.Called(title)
	return args.Get(0).(providers.Episode), args.Error(1)
}

type moviesMock struct{ mock.Mock }

func (m *moviesMock) Discover(_ context.Context, q providers.DiscoverQuery) ([]providers.Movie, error) {
	args := m.Called(q)
	movies, _ := args.Get(0).([]providers.Movie)
	return movies, args.Error(1)
}

type weatherMock struct{ mock.Mock }

func (m *weatherMock) Current(_ context.Context, city string) (providers.Weather, error) {
	args := m.Called(city)
	return args.Get(0).(providers.Weather), args.Error(1)
}

type aiMock struct{ mock.Mock }

func (m *aiMock) Generate(_ context.Context, prompt string) (string, error) {
	args := m.Called(prompt)
	return args.String(0), args.Error(1)
}

var fixedNow = time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()

	if deps.Catalog == nil {
		cat, err := catalog.Default()
		require.NoError(t, err)
		deps.Catalog = cat
	}
	o := New(deps, time.UTC, zerolog.Nop())
	o.now = func() time.Time { return fixedNow }
	o.intn = func(int) int { return 0 }
	return o
}

func nothing(what string) error {
	return fmt.Errorf("%w: no %s", providers.ErrNoResult, what)
}

func ptr[T any](v T) *T { return &v }

func TestMovieSession(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	movies := &moviesMock{}
	movies.On("Discover", providers.DiscoverQuery{
		GenreID:     35,
		MinRating:   7.5,
		ReleaseFrom: "1990-01-01",
		ReleaseTo:   "1999-12-31",
	}).Return([]providers.Movie{
		{ID: 137, Title: "Groundhog Day", ReleaseDate: "1993-02-12", Rating: 7.6, Overview: "A weatherman relives the same day."},
	}, nil)

	sms := &messengerMock{}
	sms.On("Send", "", "Movie Recommendation: Groundhog Day - Check your calendar for details!").Return(nil).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal, Movies: movies, SMS: sms})
	res, err := o.MovieSession(context.Background(), MovieRequest{
		Genre:  "Comedy",
		Rating: 7.5,
		Period: "1990s",
		Schedule: Schedule{
			StartTime: "2024-10-10T10:00:00+02:00",
			EndTime:   "2024-10-10T12:00:00+02:00",
		},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Event)
	assert.Equal(t, "Groundhog Day (1993) - Comedy", res.Event.Summary)
	assert.Contains(t, res.Event.Description, "Today's movie: Groundhog Day - Rating: 7.6")
	assert.Contains(t, res.Event.Description, "A weatherman relives the same day.")
	require.NotNil(t, res.Event.ReminderMinutes)
	assert.Equal(t, 10, *res.Event.ReminderMinutes)
	assert.True(t, res.Event.Span.Start().Equal(time.Date(2024, 10, 10, 8, 0, 0, 0, time.UTC)))
	assert.True(t, res.Event.Span.End().Equal(time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)))

	require.NotNil(t, res.Movie)
	assert.Equal(t, "1993", res.Movie.Year)
	assert.Equal(t, "Comedy", res.Movie.Genre)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, StatusSent, res.Notifications[0].Status)

	cal.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestMovieSession_Defaults(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	movies := &moviesMock{}
	movies.On("Discover", providers.DiscoverQuery{
		GenreID:     28,
		MinRating:   7.0,
		ReleaseFrom: "1990-01-01",
		ReleaseTo:   "1999-12-31",
	}).Return([]providers.Movie{{Title: "Heat", ReleaseDate: "1995-12-15", Rating: 7.9}}, nil)

	o := newTestOrchestrator(t, Deps{Calendar: cal, Movies: movies})
	res, err := o.MovieSession(context.Background(), MovieRequest{})
	require.NoError(t, err)

	// default start is ten hours out, two hours long
	assert.True(t, res.Event.Span.Start().Equal(fixedNow.Add(10*time.Hour)))
	assert.True(t, res.Event.Span.End().Equal(fixedNow.Add(12*time.Hour)))
	assert.Equal(t, "Heat (1995) - Action", res.Event.Summary)

	// sms is not wired, the event still stands
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, StatusFailed, res.Notifications[0].Status)
}

func TestMovieSession_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     MovieRequest
		wantErr error
	}{
		{name: "unknown period", req: MovieRequest{Period: "1950s"}, wantErr: ErrInvalidPeriod},
		{name: "unknown genre", req: MovieRequest{Genre: "Opera"}, wantErr: ErrInvalidGenre},
		{name: "rating too high", req: MovieRequest{Rating: 11}, wantErr: ErrInvalidRequest},
		{
			name:    "bad time span",
			req:     MovieRequest{Schedule: Schedule{StartTime: "2024-10-10T12:00:00Z", EndTime: "2024-10-10T10:00:00Z"}},
			wantErr: composer.ErrInvalidTimeSpan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cal := &calendarMock{}
			movies := &moviesMock{}
			o := newTestOrchestrator(t, Deps{Calendar: cal, Movies: movies})

			_, err := o.MovieSession(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			movies.AssertNotCalled(t, "Discover", mock.Anything)
			cal.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestNoContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		run     func(o *Orchestrator) (Result, error)
		deps    func() Deps
		message string
	}{
		{
			name: "historical",
			deps: func() Deps {
				h := &historyMock{}
				h.On("OnThisDay", 10, 1).Return(nil, nothing("facts"))
				return Deps{History: h}
			},
			run: func(o *Orchestrator) (Result, error) {
				return o.HistoricalEvent(context.Background(), HistoricalRequest{})
			},
			message: "No historical events found.",
		},
		{
			name: "movie",
			deps: func() Deps {
				m := &moviesMock{}
				m.On("Discover", mock.Anything).Return(nil, nothing("movies"))
				return Deps{Movies: m}
			},
			run: func(o *Orchestrator) (Result, error) {
				return o.MovieSession(context.Background(), MovieRequest{})
			},
			message: "No movie recommendation found. Try adjusting your filters!",
		},
		{
			name: "manga search",
			deps: func() Deps {
				m := &mangaMock{}
				m.On("Search", "Berserk").Return(providers.Manga{}, nothing("manga"))
				return Deps{Manga: m}
			},
			run: func(o *Orchestrator) (Result, error) {
				return o.MangaChapter(context.Background(), MangaRequest{Title: "Berserk"})
			},
			message: "No manga found with title 'Berserk'.",
		},
		{
			name: "manga chapter",
			deps: func() Deps {
				m := &mangaMock{}
				m.On("Search", "Berserk").Return(providers.Manga{ID: "m-1", Title: "Berserk"}, nil)
				m.On("LatestChapter", "m-1").Return(providers.Chapter{}, nothing("chapters"))
				return Deps{Manga: m}
			},
			run: func(o *Orchestrator) (Result, error) {
				return o.MangaChapter(context.Background(), MangaRequest{Title: "Berserk"})
			},
			message: "No chapters available for 'Berserk'.",
		},
		{
			name: "anime",
			deps: func() Deps {
				a := &animeMock{}
				a.On("NextAiringEpisode", "Frieren").Return(providers.Episode{}, nothing("episode"))
				return Deps{Anime: a}
			},
			run: func(o *Orchestrator) (Result, error) {
				return o.AnimeEpisode(context.Background(), AnimeRequest{Title: "Frieren"})
			},
			message: "No upcoming episodes found for Frieren.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cal := &calendarMock{}
			deps := tt.deps()
			deps.Calendar = cal
			o := newTestOrchestrator(t, deps)

			_, err := tt.run(o)
			require.ErrorIs(t, err, ErrNoContentFound)
			var nc *NoContentError
			require.ErrorAs(t, err, &nc)
			assert.Equal(t, tt.message, nc.Message)
			cal.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestUpstreamFailureIsNotNoContent(t *testing.T) {
	t.Parallel()

	h := &historyMock{}
	h.On("OnThisDay", 10, 1).Return(nil, fmt.Errorf("%w: history: status 503", providers.ErrUpstream))

	o := newTestOrchestrator(t, Deps{Calendar: &calendarMock{}, History: h})
	_, err := o.HistoricalEvent(context.Background(), HistoricalRequest{})
	assert.ErrorIs(t, err, providers.ErrUpstream)
	assert.NotErrorIs(t, err, ErrNoContentFound)
}

func TestMoodEvent_Fallback(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	quotes := &quoteMock{}
	quotes.On("Quote").Return(providers.Quote{}, errors.New("connection refused"))

	o := newTestOrchestrator(t, Deps{Calendar: cal, Mindfulness: quotes})
	res, err := o.MoodEvent(context.Background(), Mindfulness, MoodRequest{})
	require.NoError(t, err)

	assert.Equal(t, moods[Mindfulness].fallback, res.Quote)
	assert.Equal(t, "Mindfulness Reminder", res.Event.Summary)
	assert.Equal(t, "Mindfulness Quote of the Day: "+moods[Mindfulness].fallback, res.Event.Description)
	cal.AssertNumberOfCalls(t, "Create", 1)
}

func TestMoodEvent_Tracks(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	quotes := &quoteMock{}
	quotes.On("Quote").Return(providers.Quote{Text: "Act.", Author: "Someone"}, nil)

	at := func(hh, mm int) any {
		want := time.Date(2024, 10, 10, hh, mm, 0, 0, time.UTC)
		return mock.MatchedBy(func(got time.Time) bool { return got.Equal(want) })
	}
	player := &playerMock{}
	player.On("Schedule", "spotify:pre", at(9, 45)).Return(nil).Once()
	player.On("Schedule", "spotify:during", at(10, 0)).Return(nil).Once()
	player.On("Schedule", "spotify:post", at(10, 40)).Return(nil).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal, Motivational: quotes, Playback: player})
	res, err := o.MoodEvent(context.Background(), Motivational, MoodRequest{
		PreEventTrackURI:    "spotify:pre",
		DuringEventTrackURI: "spotify:during",
		PostEventTrackURI:   "spotify:post",
		Schedule: Schedule{
			StartTime:       "2024-10-10T10:00:00Z",
			EndTime:         "2024-10-10T10:30:00Z",
			ReminderMinutes: ptr(15),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Act. - Someone", res.Quote)
	assert.Equal(t, "Motivational Quote of the Day: Act. - Someone", res.Event.Description)
	assert.Len(t, res.Notifications, 3)
	player.AssertExpectations(t)
}

func TestMoodEvent_Invalid(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	o := newTestOrchestrator(t, Deps{Calendar: cal})

	_, err := o.MoodEvent(context.Background(), Mood("grumpy"), MoodRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = o.MoodEvent(context.Background(), Mindfulness, MoodRequest{PostEventOffset: ptr(-5)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = o.MoodEvent(context.Background(), Mindfulness, MoodRequest{Schedule: Schedule{ReminderMinutes: ptr(-1)}})
	assert.ErrorIs(t, err, composer.ErrInvalidReminder)

	cal.AssertNotCalled(t, "Create", mock.Anything)
}

func TestNotificationFailureKeepsEvent(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	anime := &animeMock{}
	anime.On("NextAiringEpisode", "Frieren").Return(providers.Episode{
		MediaID:  154587,
		Title:    "Frieren: Beyond Journey's End",
		Number:   12,
		AiringAt: time.Date(2024, 10, 12, 15, 0, 0, 0, time.UTC),
	}, nil)

	sms := &messengerMock{}
	sms.On("Send", "", mock.MatchedBy(func(text string) bool {
		return text == "New Episode Alert: New Episode of Frieren: Beyond Journey's End (Episode 12) on 2024-10-12T15:00:00Z. Check your calendar for details."
	})).Return(errors.New("sms gateway down")).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal, Anime: anime, SMS: sms})
	res, err := o.AnimeEpisode(context.Background(), AnimeRequest{Title: "Frieren"})
	require.NoError(t, err)

	assert.Equal(t, "New Episode of Frieren: Beyond Journey's End (Episode 12)", res.Event.Summary)
	assert.Equal(t, "The next episode of Frieren: Beyond Journey's End airs at 2024-10-12T15:00:00Z.\nMore info: https://anilist.co/anime/154587", res.Event.Description)
	assert.True(t, res.Event.Span.Start().Equal(time.Date(2024, 10, 12, 15, 0, 0, 0, time.UTC)))
	assert.True(t, res.Event.Span.End().Equal(time.Date(2024, 10, 12, 16, 0, 0, 0, time.UTC)))
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, StatusFailed, res.Notifications[0].Status)
	assert.Equal(t, "sms gateway down", res.Notifications[0].Error)
	cal.AssertNumberOfCalls(t, "Create", 1)
	sms.AssertExpectations(t)
}

func TestMangaChapter_DefersChat(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	manga := &mangaMock{}
	manga.On("Search", "Berserk").Return(providers.Manga{ID: "m-1", Title: "Berserk"}, nil)
	manga.On("LatestChapter", "m-1").Return(providers.Chapter{ID: "c-9", Number: "375", URL: "https://mangadex.org/chapter/c-9"}, nil)

	start := fixedNow.Add(30 * time.Minute)
	var task scheduler.TaskFunc
	tasks := &deferrerMock{}
	tasks.On("At", mock.MatchedBy(func(when time.Time) bool { return when.Equal(start) }), "chat New Chapter 375 of Berserk Available!", mock.Anything).
		Run(func(args mock.Arguments) { task = args.Get(2).(scheduler.TaskFunc) }).
		Return("task-1", nil).Once()

	chat := &messengerMock{}
	chat.On("Send", "", "Time to read Berserk: https://mangadex.org/chapter/c-9").Return(nil).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal, Manga: manga, Chat: chat, Tasks: tasks})
	res, err := o.MangaChapter(context.Background(), MangaRequest{Title: "Berserk"})
	require.NoError(t, err)

	assert.Equal(t, "New Chapter 375 of Berserk Available!", res.Event.Summary)
	assert.Equal(t, "Read the latest chapter here: https://mangadex.org/chapter/c-9", res.Event.Description)
	assert.True(t, res.Event.Span.End().Equal(start.Add(30*time.Minute)))
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, StatusScheduled, res.Notifications[0].Status)
	assert.Equal(t, "task-1", res.Notifications[0].TaskID)

	chat.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	require.NotNil(t, task)
	require.NoError(t, task(context.Background()))
	chat.AssertExpectations(t)
}

func TestMangaChapter_GivenURL(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()
	manga := &mangaMock{}

	o := newTestOrchestrator(t, Deps{Calendar: cal, Manga: manga})
	res, err := o.MangaChapter(context.Background(), MangaRequest{
		Title:       "Berserk",
		ChapterURL:  "https://example.com/ch/1",
		OpenChapter: ptr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, "Reading Chapter of Berserk", res.Event.Summary)
	assert.Equal(t, "https://example.com/ch/1", res.ChapterURL)
	assert.Empty(t, res.Notifications)
	manga.AssertNotCalled(t, "Search", mock.Anything)
}

func TestHistoricalEvent(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()

	history := &historyMock{}
	history.On("OnThisDay", 10, 1).Return([]providers.HistoricalFact{
		{Date: "10/01", Year: "1949", Text: "The People's Republic of China is proclaimed"},
	}, nil)

	ai := &aiMock{}
	ai.On("Generate", mock.Anything).Return("", errors.New("quota exceeded"))

	o := newTestOrchestrator(t, Deps{Calendar: cal, History: history, AI: ai})
	res, err := o.HistoricalEvent(context.Background(), HistoricalRequest{Elaborate: true})
	require.NoError(t, err)

	assert.Equal(t, "Historical Event on 10/01: The People's Republic of China is proclaimed (1949)", res.Event.Summary)
	assert.Equal(t, "This event happened on 10/01 in 1949: The People's Republic of China is proclaimed", res.Event.Description)
	assert.Empty(t, res.Insight)
	require.NotNil(t, res.Fact)
	assert.Equal(t, "1949", res.Fact.Year)
}

func TestRunningEvent(t *testing.T) {
	t.Parallel()

	weather := providers.Weather{City: "Lisbon", Temperature: 18.4, Condition: "clear sky", Humidity: 60, WindSpeed: 3.2}

	t.Run("with tip", func(t *testing.T) {
		t.Parallel()

		cal := &calendarMock{}
		cal.On("Create", mock.Anything).Return(nil).Once()
		w := &weatherMock{}
		w.On("Current", "Lisbon").Return(weather, nil)
		ai := &aiMock{}
		ai.On("Generate", mock.Anything).Return("Start slow.", nil)

		o := newTestOrchestrator(t, Deps{Calendar: cal, Weather: w, AI: ai})
		res, err := o.RunningEvent(context.Background(), RunningRequest{City: "Lisbon", Tip: true})
		require.NoError(t, err)

		assert.Equal(t, "Running Session in Lisbon", res.Event.Summary)
		assert.Equal(t, "Time to get moving!\n\n"+weather.Block()+"\n\nRunning tip: Start slow.", res.Event.Description)
		assert.Equal(t, "Start slow.", res.Insight)
	})

	t.Run("weather unavailable", func(t *testing.T) {
		t.Parallel()

		cal := &calendarMock{}
		w := &weatherMock{}
		w.On("Current", "Atlantis").Return(providers.Weather{}, nothing("weather"))

		o := newTestOrchestrator(t, Deps{Calendar: cal, Weather: w})
		_, err := o.RunningEvent(context.Background(), RunningRequest{City: "Atlantis"})
		assert.ErrorIs(t, err, ErrNoContentFound)
		cal.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("missing city", func(t *testing.T) {
		t.Parallel()

		o := newTestOrchestrator(t, Deps{Calendar: &calendarMock{}, Weather: &weatherMock{}})
		_, err := o.RunningEvent(context.Background(), RunningRequest{})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()
	mirror := &mirrorMock{}
	mirror.On("Mirror", "evt-1").Return(errors.New("caldav down")).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal, Mirror: mirror})
	res, err := o.CreateEvent(context.Background(), PlainRequest{
		Summary: "Dentist",
		Schedule: Schedule{
			AllDay:    true,
			StartTime: "2024-10-10",
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Event.Span.AllDay())
	assert.Equal(t, "2024-10-10", res.Event.Span.StartDate())
	assert.Equal(t, "2024-10-11", res.Event.Span.EndDate())
	mirror.AssertExpectations(t)

	_, err = o.CreateEvent(context.Background(), PlainRequest{Summary: "  "})
	assert.ErrorIs(t, err, composer.ErrInvalidSummary)
}

func TestUpdateEvent_SummaryOnly(t *testing.T) {
	t.Parallel()

	stored := models.Event{
		ID: "evt-7",
		Draft: models.Draft{
			Summary:         "Old",
			Description:     "Keep me",
			Span:            models.NewTimedSpan(time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC), time.Date(2024, 10, 10, 11, 0, 0, 0, time.UTC)),
			ReminderMinutes: ptr(5),
			TimeZone:        "UTC",
		},
	}

	cal := &calendarMock{}
	cal.On("Get", "evt-7").Return(stored, nil)
	cal.On("Update", "evt-7", mock.MatchedBy(func(d models.Draft) bool {
		return d.Summary == "New" &&
			d.Description == "Keep me" &&
			d.Span == stored.Span &&
			d.ReminderMinutes != nil && *d.ReminderMinutes == 5
	})).Return(nil).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal})
	res, err := o.UpdateEvent(context.Background(), "evt-7", models.Patch{Summary: ptr("New")})
	require.NoError(t, err)
	assert.Equal(t, "New", res.Event.Summary)
	cal.AssertExpectations(t)
}

func TestUpdateEvent_RecurringWithExceptions(t *testing.T) {
	t.Parallel()

	recurrence := []string{"RRULE:FREQ=WEEKLY;BYDAY=TH", "EXDATE;TZID=Europe/Amsterdam:20241017T120000"}
	stored := models.Event{
		ID: "evt-8",
		Draft: models.Draft{
			Summary:    "Standup",
			Span:       models.NewTimedSpan(time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC), time.Date(2024, 10, 10, 10, 15, 0, 0, time.UTC)),
			Recurrence: recurrence,
			TimeZone:   "Europe/Amsterdam",
		},
	}

	cal := &calendarMock{}
	cal.On("Get", "evt-8").Return(stored, nil)
	cal.On("Update", "evt-8", mock.MatchedBy(func(d models.Draft) bool {
		return d.Summary == "Team standup" && assert.ObjectsAreEqual(recurrence, d.Recurrence)
	})).Return(nil).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal})
	res, err := o.UpdateEvent(context.Background(), "evt-8", models.Patch{Summary: ptr("Team standup")})
	require.NoError(t, err)
	assert.Equal(t, recurrence, res.Event.Recurrence)
	cal.AssertNumberOfCalls(t, "Update", 1)
}

func TestSchedule_RejectedBeforeLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule Schedule
	}{
		{name: "malformed start only", schedule: Schedule{StartTime: "tomorrow"}},
		{name: "malformed end only", schedule: Schedule{EndTime: "2024-13-45T99:00:00Z"}},
		{name: "zone-less end", schedule: Schedule{EndTime: "2024-10-10T10:00:00"}},
		{name: "end before defaulted start", schedule: Schedule{EndTime: "2024-09-30T10:00:00Z"}},
		{name: "all-day start not a date", schedule: Schedule{AllDay: true, StartTime: "2024-10-10T10:00:00Z"}},
		{name: "all-day end before defaulted start", schedule: Schedule{AllDay: true, EndTime: "2024-09-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cal := &calendarMock{}
			movies := &moviesMock{}
			w := &weatherMock{}
			manga := &mangaMock{}
			history := &historyMock{}
			o := newTestOrchestrator(t, Deps{Calendar: cal, Movies: movies, Weather: w, Manga: manga, History: history})
			ctx := context.Background()

			_, err := o.MovieSession(ctx, MovieRequest{Schedule: tt.schedule})
			assert.ErrorIs(t, err, composer.ErrInvalidTimeSpan)
			_, err = o.RunningEvent(ctx, RunningRequest{City: "Lisbon", Schedule: tt.schedule})
			assert.ErrorIs(t, err, composer.ErrInvalidTimeSpan)
			_, err = o.MangaChapter(ctx, MangaRequest{Title: "Berserk", Schedule: tt.schedule})
			assert.ErrorIs(t, err, composer.ErrInvalidTimeSpan)
			_, err = o.HistoricalEvent(ctx, HistoricalRequest{Schedule: tt.schedule})
			assert.ErrorIs(t, err, composer.ErrInvalidTimeSpan)
			_, err = o.CreateEvent(ctx, PlainRequest{Summary: "Dentist", Schedule: tt.schedule})
			assert.ErrorIs(t, err, composer.ErrInvalidTimeSpan)

			movies.AssertNotCalled(t, "Discover", mock.Anything)
			w.AssertNotCalled(t, "Current", mock.Anything)
			manga.AssertNotCalled(t, "Search", mock.Anything)
			history.AssertNotCalled(t, "OnThisDay", mock.Anything, mock.Anything)
			cal.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestAnimeEpisode_MalformedBound(t *testing.T) {
	t.Parallel()

	anime := &animeMock{}
	o := newTestOrchestrator(t, Deps{Calendar: &calendarMock{}, Anime: anime})

	_, err := o.AnimeEpisode(context.Background(), AnimeRequest{Title: "Frieren", Schedule: Schedule{EndTime: "soon"}})
	assert.ErrorIs(t, err, composer.ErrInvalidTimeSpan)
	anime.AssertNotCalled(t, "NextAiringEpisode", mock.Anything)
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Get", "evt-1").Return(models.Event{ID: "evt-1", UID: "abc@google.com"}, nil)
	cal.On("Delete", "evt-1").Return(nil).Once()
	mirror := &mirrorMock{}
	mirror.On("Remove", "abc@google.com").Return(nil).Once()

	o := newTestOrchestrator(t, Deps{Calendar: cal, Mirror: mirror})
	res, err := o.DeleteEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Event evt-1 deleted", res.Message)
	cal.AssertExpectations(t)
	mirror.AssertExpectations(t)
}

func TestListEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		limit   int
		orderBy string
		wantErr error
		wantMsg string
	}{
		{name: "defaults", limit: 10, wantMsg: "2 upcoming events"},
		{name: "by update", limit: 10, orderBy: "updated", wantMsg: "2 upcoming events"},
		{name: "limit too high", limit: 251, wantErr: ErrInvalidRequest},
		{name: "negative limit", limit: -1, wantErr: ErrInvalidRequest},
		{name: "unknown ordering", limit: 10, orderBy: "summary", wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cal := &calendarMock{}
			cal.On("ListUpcoming", tt.limit, tt.orderBy).Return([]models.Event{{ID: "a"}, {ID: "b"}}, nil)

			o := newTestOrchestrator(t, Deps{Calendar: cal})
			res, err := o.ListEvents(context.Background(), tt.limit, tt.orderBy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				cal.AssertNotCalled(t, "ListUpcoming", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Len(t, res.Events, 2)
		})
	}
}

func TestRunRoutine(t *testing.T) {
	t.Parallel()

	cal := &calendarMock{}
	cal.On("Create", mock.Anything).Return(nil).Once()
	quotes := &quoteMock{}
	quotes.On("Quote").Return(providers.Quote{Text: "Breathe.", Author: "Someone"}, nil)

	o := newTestOrchestrator(t, Deps{Calendar: cal, Mindfulness: quotes})
	res, err := o.RunRoutine(context.Background(), config.Routine{
		Name:            "morning",
		Flow:            RoutineMindfulness,
		LeadMinutes:     15,
		DurationMinutes: 20,
	})
	require.NoError(t, err)

	assert.True(t, res.Event.Span.Start().Equal(fixedNow.Add(15*time.Minute)))
	assert.True(t, res.Event.Span.End().Equal(fixedNow.Add(35*time.Minute)))

	_, err = o.RunRoutine(context.Background(), config.Routine{Name: "bad", Flow: "laundry"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTarget_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{name: "sms now", target: Target{Channel: ChannelSMS}},
		{name: "chat at start", target: Target{Channel: ChannelChat, Trigger: TriggerStart}},
		{name: "playback", target: Target{Channel: ChannelPlayback, Recipient: "spotify:x", Trigger: TriggerAfterEnd, OffsetMinutes: 5}},
		{name: "playback without track", target: Target{Channel: ChannelPlayback}, wantErr: true},
		{name: "unknown channel", target: Target{Channel: "pigeon"}, wantErr: true},
		{name: "unknown trigger", target: Target{Channel: ChannelSMS, Trigger: "later"}, wantErr: true},
		{name: "negative offset", target: Target{Channel: ChannelSMS, OffsetMinutes: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.target.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
