package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"posemaster/pkg/metrics"
	"posemaster/pkg/middleware"
)

// MaxBodySize bounds request bodies; uploads arrive as base64 data URLs.
const MaxBodySize = "25M"

// NewServer builds the echo instance with middleware and every route mounted.
func NewServer(store ImageStore, reg *metrics.Registry) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Use(echomw.Recover())
	server.Use(middleware.RequestLogger(reg))
	server.Use(echomw.BodyLimit(MaxBodySize))

	server.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	server.GET("/metrics", reg.EchoHandlerText)
	server.GET("/metrics.json", reg.EchoHandlerJSON)

	NewHandlers(store).Register(server.Group("/api/v1"))
	return server
}
