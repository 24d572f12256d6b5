package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"calflow/internal/telemetry"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(name string, h *Handlers, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(name))
	router.Use(telemetry.NewFlowMetrics(name).Middleware())
	router.Use(RequestLogger(logger))

	router.GET("/health", h.Health)
	router.GET("/authenticate", h.Authenticate)
	router.GET("/oauth/callback", h.OAuthCallback)

	router.GET("/events", h.ListEvents)
	router.GET("/events/:event_id/ics", h.ExportEvent)
	router.POST("/create-event", h.CreateEvent)
	router.PUT("/update-event/:event_id", h.UpdateEvent)
	router.DELETE("/delete-event/:event_id", h.DeleteEvent)

	router.POST("/add-historical-event", h.HistoricalEvent)
	router.POST("/add-mangadex-chapter", h.MangaChapter)
	router.POST("/add-anime-episode", h.AnimeEpisode)
	router.POST("/schedule-mindfulness-event", h.MindfulnessEvent)
	router.POST("/schedule-motivational-event", h.MotivationalEvent)
	router.POST("/schedule-movie-session", h.MovieSession)
	router.POST("/schedule-running-event", h.RunningEvent)

	router.GET("/tasks", h.ListTasks)
	router.DELETE("/tasks/:task_id", h.CancelTask)

	return router
}
