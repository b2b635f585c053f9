package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/climatempo-relay/internal/api/http"
	"github.com/i474232898/climatempo-relay/internal/config"
	"github.com/i474232898/climatempo-relay/internal/logger"
	"github.com/i474232898/climatempo-relay/internal/relay"
	"github.com/i474232898/climatempo-relay/internal/scheduler"
	"github.com/i474232898/climatempo-relay/internal/store"
	"github.com/i474232898/climatempo-relay/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Process-wide log buffer, shared by every named logger.
	buffer := logger.NewBuffer(cfg.LogBufferLimit)
	root := logger.New("index", buffer)
	root.SetClock(func() time.Time { return time.Now().In(cfg.Location) })

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	client := weather.NewClient(httpClient, cfg.APIBaseURL, cfg.APIToken, weather.BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         2 * time.Minute,
	})
	channel := relay.NewChannel(cfg.RelayHost, cfg.SenderID, cfg.ConnectTimeout, root.Named("relay"))
	reports := store.NewReportStore(cfg.ReportDir)

	job := scheduler.NewJob(cfg.Subjects, scheduler.Deps{
		Fetcher: client,
		Reports: reports,
		Logs:    store.NewLogWriter(cfg.LogDir),
		Connect: scheduler.RelayConnector(channel),
		Log:     root.Named("job"),
	})

	job.SetLocation(cfg.Location)

	sched := scheduler.New(cfg.CronExpr, cfg.Location, job, root)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Optional read-only status server.
	var app *fiber.App
	if cfg.StatusPort != "" {
		app = httpapi.NewApp()
		app.Use(fiberlogger.New())
		app.Use(recover.New())
		httpapi.RegisterRoutes(app, job, reports)

		go func() {
			if err := app.Listen(":" + cfg.StatusPort); err != nil {
				root.Error(err, "status server stopped")
			}
		}()
	}

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	root.Log("Shutting down")

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			root.Error(err, "error during shutdown")
		}
	}
}
