package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/climatempo-relay/internal/common"
	"github.com/i474232898/climatempo-relay/internal/scheduler"
	"github.com/i474232898/climatempo-relay/internal/store"
)

var validate = validator.New()

// RunSource exposes the job state.
type RunSource interface {
	LastRun() (scheduler.RunStatus, bool)
	Skipped() int64
	Running() bool
}

// ReportReader reads a day's report.
type ReportReader interface {
	Read(t time.Time) (string, error)
}

// RegisterRoutes wires the read-only status handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, runs RunSource, reports ReportReader) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "climatempo-relay",
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/runs/last", func(c *fiber.Ctx) error {
		status, ok := runs.LastRun()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no run completed yet")
		}
		return c.JSON(fiber.Map{
			"run":     status,
			"running": runs.Running(),
			"skipped": runs.Skipped(),
		})
	})

	v1.Get("/reports", func(c *fiber.Ctx) error {
		q := reportQuery{Date: c.Query("date")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}

		day, err := time.ParseInLocation(common.DayLayout, q.Date, time.Local)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		content, err := reports.Read(day)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no report for requested date")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read report")
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(content)
	})
}

// reportQuery holds query parameters for the report endpoint.
type reportQuery struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

// NewApp builds the Fiber app with the centralized JSON error handler.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "climatempo-relay",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
}
