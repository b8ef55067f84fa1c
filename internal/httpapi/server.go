// Package httpapi exposes the panel actions over HTTP for bar widgets,
// scripts and editors.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lyrics-panel/internal/panel"
	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/romanize"
)

var logger = log.With().Str("component", "http").Logger()

// Panel is the subset of *panel.Panel the handlers drive.
type Panel interface {
	Render() panel.Frame
	SetSynced(ctx context.Context, synced bool) error
	SetShowSecondLine(show bool)
	SetLayout(layout panel.Layout)
	Refetch(ctx context.Context) error
	Edit(ctx context.Context, text string) error
	Search(ctx context.Context, artist, title string) ([]music.Track, error)
	Pick(ctx context.Context, trackID int) error
	SetTranslation(ctx context.Context, enabled bool, target string) error
	SetRomanization(ctx context.Context, mode romanize.Mode) error
	Locate(ids []string) int
}

// Server HTTP 服务
type Server struct {
	app  *fiber.App
	addr string
}

func New(addr string, p Panel) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		AppName:               "lyrics-panel",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
	})
	app.Use(requestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	RegisterRoutes(app, NewHandler(p))

	return &Server{app: app, addr: addr}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	logger.Info().Str("addr", s.addr).Msg("HTTP API listening")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// requestLogger tags each request with an id and logs it.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)

		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		logger.Debug().
			Str("request_id", id).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
		return err
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &ve):
		code = fiber.StatusBadRequest
	case errors.Is(err, panel.ErrNoSong), errors.Is(err, panel.ErrPlainView):
		code = fiber.StatusConflict
	case errors.Is(err, panel.ErrUnknownTrack):
		code = fiber.StatusNotFound
	case errors.Is(err, context.Canceled):
		code = fiber.StatusServiceUnavailable
	}
	if code == fiber.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Path()).Msg("Internal Server Error")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
