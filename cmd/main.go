package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"calflow/internal/api"
	"calflow/internal/caldav"
	"calflow/internal/catalog"
	"calflow/internal/config"
	"calflow/internal/flows"
	"calflow/internal/google"
	"calflow/internal/notify"
	"calflow/internal/outbound"
	"calflow/internal/providers"
	"calflow/internal/scheduler"
	"calflow/internal/servers"
	"calflow/internal/telemetry"
)

const (
	name    = "calflow"
	version = "1.0"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    name,
		Version: version,
		Usage:   "Compose Google Calendar events from content APIs and send reminders.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"CALFLOW_CONFIG"}, Usage: "Path to a YAML config file."},
		},
		Commands: []*cli.Command{
			authCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("application failed")
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and store the API token.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			logger.Info().Msg("starting google authentication flow")

			creds := google.NewCredentials(cfg.Google, logger)
			authURL, err := creds.AuthCodeURL("state-token")
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			if err := creds.Exchange(c.Context, authCode); err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}
			logger.Info().Str("file", cfg.Google.TokenFile).Msg("authenticated and saved token")

			calendars, err := google.NewGateway(creds, cfg.Google, logger).Calendars(c.Context)
			if err != nil {
				return fmt.Errorf("token saved but listing calendars failed: %w", err)
			}
			for _, cal := range calendars {
				fmt.Println(cal)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and run deferred tasks and routines.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Address to listen on. Overrides the config."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("listen") {
				cfg.Listen = c.String("listen")
			}

			logger := setupLogger(cfg.LogLevel)
			startupLogger := logger.With().Str("stage", "startup").Str("component", "main").Logger()
			shutdownLogger := logger.With().Str("stage", "shut down").Str("component", "main").Logger()

			startupLogger.Info().Msg("application starting up")
			defer shutdownLogger.Info().Msg("application stopped")

			ctx := logger.WithContext(c.Context)
			stopTelemetry, err := telemetry.Setup(ctx)
			if err != nil {
				return fmt.Errorf("unable to setup otel telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := stopTelemetry(shutdownCtx); err != nil {
					shutdownLogger.Error().Err(err).Msg("telemetry shutdown failed")
				}
			}()

			loc := cfg.Location()
			tasks := scheduler.New(loc, logger.With().Str("component", "scheduler").Logger())

			creds := google.NewCredentials(cfg.Google, logger)
			gateway := google.NewGateway(creds, cfg.Google, logger.With().Str("component", "google").Logger())

			orchestrator, err := buildOrchestrator(cfg, gateway, tasks, logger)
			if err != nil {
				return err
			}

			for _, r := range cfg.Routines {
				if err := flows.ValidateRoutine(r); err != nil {
					return err
				}
				if err := tasks.Every(r.Cron, r.Name, func(ctx context.Context) error {
					_, err := orchestrator.RunRoutine(ctx, r)
					return err
				}); err != nil {
					return err
				}
			}

			gin.SetMode(gin.ReleaseMode)
			handlers := api.NewHandlers(orchestrator, creds, tasks, gateway.Reset)
			router := api.NewRouter(name, handlers, logger)

			app := lifecycle.NewApp(
				lifecycle.WithName(name),
				lifecycle.WithVersion(version),
			)
			app.Attach("rest-server", servers.NewHTTPServer("rest-server", cfg.Listen, router))
			app.Attach("scheduler", tasks)

			startupLogger.Info().Str("addr", cfg.Listen).Str("timezone", loc.String()).Msg("application running")
			return app.Run()
		},
	}
}

// buildOrchestrator wires every provider and dispatcher client into the flows.
func buildOrchestrator(cfg *config.Config, gateway *google.Gateway, tasks *scheduler.Scheduler, logger zerolog.Logger) (*flows.Orchestrator, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout()
	client := outbound.New(timeout, logger.With().Str("component", "outbound").Logger())
	p := cfg.Providers

	deps := flows.Deps{
		Calendar: gateway,
		SMS:      notify.NewVonage(client, cfg.Notify),
		Chat:     notify.NewTelegram(cfg.Notify, timeout),
		Playback: notify.NewPlayback(client, cfg.Notify.PlaybackURL, cfg.Location()),
		Tasks:    tasks,

		Motivational: providers.NewZenQuotes(client, p.ZenQuotesURL),
		Mindfulness:  providers.NewNinjaQuotes(client, p.NinjasURL, p.NinjasAPIKey, cat.MindfulnessCategories),
		History:      providers.NewHistory(client, p.HistoryURL),
		Manga:        providers.NewMangaDex(client, p.MangaDexURL),
		Anime:        providers.NewAniList(client, p.AniListURL),
		Movies:       providers.NewTMDB(client, p.TMDBURL, p.TMDBAPIKey),
		Weather:      providers.NewOpenWeather(client, p.WeatherURL, p.WeatherAPIKey),
		Catalog:      cat,
	}
	if p.AIAPIKey != "" {
		deps.AI = providers.NewAI(p.AIAPIKey, p.AIBaseURL, p.AIModel, timeout)
	}

	mirror, err := caldav.New(cfg.Notify.CalDAV, timeout, logger.With().Str("component", "caldav").Logger())
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		deps.Mirror = mirror
	}

	return flows.New(deps, cfg.Location(), logger.With().Str("component", "flows").Logger()), nil
}

func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Str("service", name).Str("version", version).
		Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}
