// Package google is the Calendar Gateway: create, read, update, delete and
// list events in a Google Calendar, plus the OAuth credential handling it
// depends on.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calflow/internal/config"
	"calflow/internal/models"
	"calflow/internal/telemetry"
)

var (
	// ErrCalendarUnavailable covers every upstream failure except an unknown
	// event id, which is ErrEventNotFound.
	ErrCalendarUnavailable = errors.New("calendar unavailable")

	// ErrNotAuthenticated means no usable credential exists. It is also an
	// ErrCalendarUnavailable.
	ErrNotAuthenticated = fmt.Errorf("%w: not authenticated", ErrCalendarUnavailable)

	ErrEventNotFound = errors.New("event not found")
)

const (
	OrderByStartTime = "startTime"
	OrderByUpdated   = "updated"

	defaultListLimit = 10
)

// Gateway talks to one Google calendar. The API service is built on first
// use so the process can start before the user has authenticated.
type Gateway struct {
	calendarID      string
	defaultLocation string
	logger          zerolog.Logger
	metrics         *telemetry.CallMetrics
	now             func() time.Time
	newService      func(ctx context.Context) (*calendar.Service, error)

	mu      sync.Mutex
	service *calendar.Service
}

func NewGateway(creds *Credentials, cfg config.GoogleConfig, logger zerolog.Logger) *Gateway {
	g := newGateway(cfg, logger)
	g.newService = func(ctx context.Context) (*calendar.Service, error) {
		client, err := creds.HTTPClient(ctx)
		if err != nil {
			return nil, err
		}
		return calendar.NewService(ctx, option.WithHTTPClient(client))
	}
	return g
}

// NewGatewayWithService wraps an already configured service.
func NewGatewayWithService(service *calendar.Service, cfg config.GoogleConfig, logger zerolog.Logger) *Gateway {
	g := newGateway(cfg, logger)
	g.service = service
	return g
}

func newGateway(cfg config.GoogleConfig, logger zerolog.Logger) *Gateway {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Gateway{
		calendarID:      calendarID,
		defaultLocation: cfg.DefaultLocation,
		logger:          logger,
		metrics:         telemetry.NewCallMetrics("calflow/google"),
		now:             time.Now,
	}
}

func (g *Gateway) api(ctx context.Context) (*calendar.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.service != nil {
		return g.service, nil
	}
	if g.newService == nil {
		return nil, ErrNotAuthenticated
	}

	service, err := g.newService(ctx)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to create calendar service: %w", ErrCalendarUnavailable, err)
	}
	g.service = service
	return service, nil
}

// Reset drops the cached service so the next call picks up a new token.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.newService != nil {
		g.service = nil
	}
}

// ListUpcoming returns up to limit events starting from now.
func (g *Gateway) ListUpcoming(ctx context.Context, limit int, orderBy string) (items []models.Event, err error) {
	start := time.Now()
	defer func() { g.metrics.Observe(ctx, "google", "list", start, err) }()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if orderBy == "" {
		orderBy = OrderByStartTime
	}
	if orderBy != OrderByStartTime && orderBy != OrderByUpdated {
		return nil, fmt.Errorf("unsupported ordering '%s'", orderBy)
	}

	svc, err := g.api(ctx)
	if err != nil {
		return nil, err
	}

	list, err := svc.Events.List(g.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(g.now().UTC().Format(time.RFC3339)).
		MaxResults(int64(limit)).
		OrderBy(orderBy).
		Context(ctx).
		Do()
	if err != nil {
		return nil, upstream("list events", err)
	}

	items = make([]models.Event, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, fromGoogle(item))
	}
	g.logger.Debug().Int("count", len(items)).Str("calendar", g.calendarID).Msg("fetched upcoming events")
	return items, nil
}

// Create inserts draft and returns the stored event.
func (g *Gateway) Create(ctx context.Context, draft models.Draft) (ev models.Event, err error) {
	start := time.Now()
	defer func() { g.metrics.Observe(ctx, "google", "insert", start, err) }()

	svc, err := g.api(ctx)
	if err != nil {
		return models.Event{}, err
	}

	created, err := svc.Events.Insert(g.calendarID, g.toGoogle(draft, false)).Context(ctx).Do()
	if err != nil {
		return models.Event{}, upstream("create event", err)
	}
	g.logger.Info().Str("id", created.Id).Str("summary", created.Summary).Msg("event created")
	return fromGoogle(created), nil
}

// Get returns the stored event.
func (g *Gateway) Get(ctx context.Context, eventID string) (ev models.Event, err error) {
	start := time.Now()
	defer func() { g.metrics.Observe(ctx, "google", "get", start, err) }()

	svc, err := g.api(ctx)
	if err != nil {
		return models.Event{}, err
	}

	item, err := svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return models.Event{}, upstream("get event", err)
	}
	return fromGoogle(item), nil
}

// Update patches the stored event with the full merged draft.
func (g *Gateway) Update(ctx context.Context, eventID string, draft models.Draft) (ev models.Event, err error) {
	start := time.Now()
	defer func() { g.metrics.Observe(ctx, "google", "patch", start, err) }()

	svc, err := g.api(ctx)
	if err != nil {
		return models.Event{}, err
	}

	updated, err := svc.Events.Patch(g.calendarID, eventID, g.toGoogle(draft, true)).Context(ctx).Do()
	if err != nil {
		return models.Event{}, upstream("update event", err)
	}
	g.logger.Info().Str("id", updated.Id).Msg("event updated")
	return fromGoogle(updated), nil
}

// Delete removes the event.
func (g *Gateway) Delete(ctx context.Context, eventID string) (err error) {
	start := time.Now()
	defer func() { g.metrics.Observe(ctx, "google", "delete", start, err) }()

	svc, err := g.api(ctx)
	if err != nil {
		return err
	}

	if err = svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return upstream("delete event", err)
	}
	g.logger.Info().Str("id", eventID).Msg("event deleted")
	return nil
}

// Calendars lists the ids of every calendar the account can see.
func (g *Gateway) Calendars(ctx context.Context) ([]string, error) {
	svc, err := g.api(ctx)
	if err != nil {
		return nil, err
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, upstream("list calendars", err)
	}

	ids := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		ids = append(ids, item.Id)
	}
	return ids, nil
}

func upstream(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s: %w", ErrNotAuthenticated, op, err)
	}
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s: %w", ErrEventNotFound, op, err)
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrCalendarUnavailable, op, err)
}

// toGoogle converts a draft into the API representation. For patches the
// unused half of each EventDateTime is sent as null so an event can switch
// between timed and all-day. The default location only fills new events.
func (g *Gateway) toGoogle(d models.Draft, patch bool) *calendar.Event {
	location := d.Location
	if location == "" && !patch {
		location = g.defaultLocation
	}

	ev := &calendar.Event{
		Summary:     d.Summary,
		Description: d.Description,
		Location:    location,
		Recurrence:  d.Recurrence,
	}

	span := d.Span
	if span.AllDay() {
		ev.Start = &calendar.EventDateTime{Date: span.StartDate()}
		ev.End = &calendar.EventDateTime{Date: span.EndDate()}
		if patch {
			ev.Start.NullFields = []string{"DateTime", "TimeZone"}
			ev.End.NullFields = []string{"DateTime", "TimeZone"}
		}
	} else {
		ev.Start = &calendar.EventDateTime{DateTime: span.Start().Format(time.RFC3339), TimeZone: d.TimeZone}
		ev.End = &calendar.EventDateTime{DateTime: span.End().Format(time.RFC3339), TimeZone: d.TimeZone}
		if patch {
			ev.Start.NullFields = []string{"Date"}
			ev.End.NullFields = []string{"Date"}
		}
	}

	if d.ReminderMinutes != nil {
		ev.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: int64(*d.ReminderMinutes), ForceSendFields: []string{"Minutes"}},
			},
		}
	}
	return ev
}

func fromGoogle(item *calendar.Event) models.Event {
	ev := models.Event{
		ID:       item.Id,
		UID:      item.ICalUID,
		HTMLLink: item.HtmlLink,
		Status:   item.Status,
		Draft: models.Draft{
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Recurrence:  item.Recurrence,
		},
	}

	if item.Start != nil && item.End != nil {
		if item.Start.Date != "" {
			ev.Span = models.NewAllDaySpan(item.Start.Date, item.End.Date)
		} else {
			start, _ := time.Parse(time.RFC3339, item.Start.DateTime)
			end, _ := time.Parse(time.RFC3339, item.End.DateTime)
			ev.Span = models.NewTimedSpan(start, end)
			ev.TimeZone = item.Start.TimeZone
		}
	}

	if r := item.Reminders; r != nil && !r.UseDefault && len(r.Overrides) > 0 {
		minutes := int(r.Overrides[0].Minutes)
		ev.ReminderMinutes = &minutes
	}
	return ev
}
