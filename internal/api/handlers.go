// Package api exposes the flows over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"calflow/internal/flows"
	"calflow/internal/google"
	"calflow/internal/ics"
	"calflow/internal/models"
	"calflow/internal/scheduler"
)

const (
	defaultListLimit = 10
	oauthState       = "calflow"
)

// Service is the set of flows served over HTTP.
type Service interface {
	ListEvents(ctx context.Context, limit int, orderBy string) (flows.Result, error)
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	CreateEvent(ctx context.Context, req flows.PlainRequest) (flows.Result, error)
	UpdateEvent(ctx context.Context, eventID string, patch models.Patch) (flows.Result, error)
	DeleteEvent(ctx context.Context, eventID string) (flows.Result, error)

	HistoricalEvent(ctx context.Context, req flows.HistoricalRequest) (flows.Result, error)
	MangaChapter(ctx context.Context, req flows.MangaRequest) (flows.Result, error)
	AnimeEpisode(ctx context.Context, req flows.AnimeRequest) (flows.Result, error)
	MoodEvent(ctx context.Context, mood flows.Mood, req flows.MoodRequest) (flows.Result, error)
	MovieSession(ctx context.Context, req flows.MovieRequest) (flows.Result, error)
	RunningEvent(ctx context.Context, req flows.RunningRequest) (flows.Result, error)
}

// Authenticator drives the Google OAuth consent flow.
type Authenticator interface {
	Status() google.AuthStatus
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) error
}

// TaskQueue exposes the deferred deliveries.
type TaskQueue interface {
	Pending() []scheduler.Task
	Cancel(id string) bool
}

type Handlers struct {
	service Service
	auth    Authenticator
	tasks   TaskQueue
	// authenticated runs after a successful token exchange.
	authenticated func()
	now           func() time.Time
}

func NewHandlers(service Service, auth Authenticator, tasks TaskQueue, authenticated func()) *Handlers {
	if authenticated == nil {
		authenticated = func() {}
	}
	return &Handlers{
		service:       service,
		auth:          auth,
		tasks:         tasks,
		authenticated: authenticated,
		now:           time.Now,
	}
}

func (h *Handlers) Health(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"calendar": h.auth.Status(),
	})
}

func (h *Handlers) Authenticate(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	status := h.auth.Status()
	if status.Authenticated {
		gctx.JSON(http.StatusOK, gin.H{"message": "Already authenticated", "calendar": status})
		return
	}

	url, err := h.auth.AuthCodeURL(oauthState)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("oauth client is not configured")
		gctx.AbortWithStatusJSON(http.StatusUnauthorized, NewError("oauth client is not configured", err))
		return
	}

	// the caller has to complete consent in a browser
	gctx.JSON(http.StatusUnauthorized, gin.H{
		"message":  "Authentication required, open auth_url to grant calendar access",
		"auth_url": url,
		"reason":   status.Reason,
	})
}

func (h *Handlers) OAuthCallback(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	if state := gctx.Query("state"); state != "" && state != oauthState {
		log.Ctx(ctx).Warn().Str("state", state).Msg("unexpected oauth state")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("unexpected oauth state"))
		return
	}

	code := gctx.Query("code")
	if code == "" {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'code' is required"))
		return
	}

	if err := h.auth.Exchange(ctx, code); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("token exchange failed")
		gctx.AbortWithStatusJSON(http.StatusUnauthorized, NewError("token exchange failed", err))
		return
	}
	h.authenticated()

	log.Ctx(ctx).Info().Msg("google calendar authenticated")
	gctx.JSON(http.StatusOK, gin.H{"message": "Authentication successful"})
}

func (h *Handlers) ListEvents(gctx *gin.Context) {
	limit := defaultListLimit
	if raw := gctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'limit' must be a number", err))
			return
		}
		limit = n
	}

	res, err := h.service.ListEvents(gctx.Request.Context(), limit, gctx.Query("order_by"))
	h.respond(gctx, http.StatusOK, res, err)
}

func (h *Handlers) ExportEvent(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	id := gctx.Param("event_id")

	ev, err := h.service.GetEvent(ctx, id)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, h.now(), ev); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("event", id).Msg("ics export failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, NewError("ics export failed", err))
		return
	}

	gctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".ics"))
	gctx.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (h *Handlers) CreateEvent(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, h.service.CreateEvent)
}

func (h *Handlers) UpdateEvent(gctx *gin.Context) {
	id := gctx.Param("event_id")
	handle(h, gctx, http.StatusOK, func(ctx context.Context, patch models.Patch) (flows.Result, error) {
		return h.service.UpdateEvent(ctx, id, patch)
	})
}

func (h *Handlers) DeleteEvent(gctx *gin.Context) {
	res, err := h.service.DeleteEvent(gctx.Request.Context(), gctx.Param("event_id"))
	h.respond(gctx, http.StatusOK, res, err)
}

func (h *Handlers) HistoricalEvent(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, h.service.HistoricalEvent)
}

func (h *Handlers) MangaChapter(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, h.service.MangaChapter)
}

func (h *Handlers) AnimeEpisode(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, h.service.AnimeEpisode)
}

func (h *Handlers) MindfulnessEvent(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, func(ctx context.Context, req flows.MoodRequest) (flows.Result, error) {
		return h.service.MoodEvent(ctx, flows.Mindfulness, req)
	})
}

func (h *Handlers) MotivationalEvent(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, func(ctx context.Context, req flows.MoodRequest) (flows.Result, error) {
		return h.service.MoodEvent(ctx, flows.Motivational, req)
	})
}

func (h *Handlers) MovieSession(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, h.service.MovieSession)
}

func (h *Handlers) RunningEvent(gctx *gin.Context) {
	handle(h, gctx, http.StatusCreated, h.service.RunningEvent)
}

func (h *Handlers) ListTasks(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, gin.H{"tasks": h.tasks.Pending()})
}

func (h *Handlers) CancelTask(gctx *gin.Context) {
	id := gctx.Param("task_id")
	if !h.tasks.Cancel(id) {
		gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("task not found"))
		return
	}
	gctx.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Task %s cancelled", id)})
}

// handle binds the JSON body into T and runs the flow. An empty body binds
// the zero value.
func handle[T any](h *Handlers, gctx *gin.Context, status int, run func(context.Context, T) (flows.Result, error)) {
	ctx := gctx.Request.Context()

	var req T
	if err := gctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))
		return
	}

	res, err := run(ctx, req)
	h.respond(gctx, status, res, err)
}

func (h *Handlers) respond(gctx *gin.Context, status int, res flows.Result, err error) {
	if err != nil {
		h.fail(gctx, err)
		return
	}
	gctx.JSON(status, res)
}

// fail writes err. A flow that found nothing to schedule is not an error for
// the caller and answers 200 with the reason.
func (h *Handlers) fail(gctx *gin.Context, err error) {
	ctx := gctx.Request.Context()

	var nc *flows.NoContentError
	if errors.As(err, &nc) {
		log.Ctx(ctx).Info().Str("reason", nc.Message).Msg("no content found")
		gctx.JSON(http.StatusOK, gin.H{"message": nc.Message})
		return
	}

	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(ctx).Error().Err(err).Int("status", status).Msg("flow failed")
	} else {
		log.Ctx(ctx).Warn().Err(err).Int("status", status).Msg("flow rejected")
	}
	gctx.AbortWithStatusJSON(status, NewError(messageOf(status), err))
}
