// Package caldav mirrors created events into a CalDAV calendar such as
// iCloud. Calendar discovery happens on first use.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog"

	"calflow/internal/config"
	"calflow/internal/ics"
	"calflow/internal/models"
	"calflow/internal/notify"
	"calflow/internal/telemetry"
)

// basicAuthTransport adds Basic Auth and the user agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "calflow/1.0")
	return t.Transport.RoundTrip(req)
}

// Mirror copies events into the configured CalDAV calendar.
type Mirror struct {
	cfg     config.CalDAVConfig
	logger  zerolog.Logger
	metrics *telemetry.CallMetrics
	now     func() time.Time

	caldavClient *caldav.Client
	webdavClient *webdav.Client

	mu           sync.Mutex
	calendarPath string
}

// New builds a mirror. It returns nil when the CalDAV settings are incomplete;
// a nil *Mirror is a valid no-op mirror.
func New(cfg config.CalDAVConfig, timeout time.Duration, logger zerolog.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &basicAuthTransport{
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: http.DefaultTransport,
		},
	}

	caldavClient, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &Mirror{
		cfg:          cfg,
		logger:       logger,
		metrics:      telemetry.NewCallMetrics("calflow/caldav"),
		now:          time.Now,
		caldavClient: caldavClient,
		webdavClient: webdavClient,
	}, nil
}

// Enabled reports whether m mirrors anything.
func (m *Mirror) Enabled() bool {
	return m != nil
}

// Mirror creates or replaces ev in the CalDAV calendar.
func (m *Mirror) Mirror(ctx context.Context, ev models.Event) (err error) {
	if m == nil {
		return nil
	}
	start := time.Now()
	defer func() { m.metrics.Observe(ctx, "caldav", "put", start, err) }()

	eventPath, err := m.eventPath(ctx, ics.UID(ev))
	if err != nil {
		return err
	}

	m.logger.Debug().Str("summary", ev.Summary).Str("path", eventPath).Msg("mirroring event to caldav")

	writer, err := m.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("%w: failed to create event on caldav server: %w", notify.ErrNotificationFailed, err)
	}
	if err = ical.NewEncoder(writer).Encode(ics.Calendar(m.now(), ev)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: failed to encode event to ical: %w", notify.ErrNotificationFailed, err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("%w: caldav server rejected event: %w", notify.ErrNotificationFailed, err)
	}

	m.logger.Info().Str("summary", ev.Summary).Msg("event mirrored to caldav")
	return nil
}

// Remove deletes the mirrored copy of the event with the given UID.
func (m *Mirror) Remove(ctx context.Context, uid string) (err error) {
	if m == nil {
		return nil
	}
	start := time.Now()
	defer func() { m.metrics.Observe(ctx, "caldav", "delete", start, err) }()

	eventPath, err := m.eventPath(ctx, uid)
	if err != nil {
		return err
	}
	if err = m.webdavClient.RemoveAll(ctx, eventPath); err != nil {
		return fmt.Errorf("%w: failed to remove event from caldav server: %w", notify.ErrNotificationFailed, err)
	}
	return nil
}

func (m *Mirror) eventPath(ctx context.Context, uid string) (string, error) {
	calendarPath, err := m.calendar(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", notify.ErrNotificationFailed, err)
	}
	return path.Join(calendarPath, uid+".ics"), nil
}

func (m *Mirror) calendar(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.calendarPath != "" {
		return m.calendarPath, nil
	}

	m.logger.Info().Str("calendar", m.cfg.CalendarName).Msg("discovering caldav calendar")
	calendarPath, err := m.findCalendar(ctx, m.cfg.CalendarName)
	if err != nil {
		return "", fmt.Errorf("could not find calendar '%s': %w", m.cfg.CalendarName, err)
	}
	m.calendarPath = calendarPath
	m.logger.Info().Str("path", calendarPath).Msg("caldav calendar found")
	return calendarPath, nil
}

// findCalendar walks principal -> home set -> calendars and returns the path
// of the calendar called name.
func (m *Mirror) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := m.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := m.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := m.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	return pickCalendar(calendars, name)
}

func pickCalendar(calendars []caldav.Calendar, name string) (string, error) {
	for _, cal := range calendars {
		if strings.EqualFold(cal.Name, name) {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
