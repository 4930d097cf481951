package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"posemaster/pkg/metrics"
)

const (
	// SessionHeader carries the browser session ID in both directions.
	SessionHeader = "X-Session-ID"
	// SessionCookie is read when the header is absent.
	SessionCookie = "posemaster_session"

	sessionContextKey = "session_id"
)

// SessionID returns the session resolved by RequestLogger.
func SessionID(c echo.Context) string {
	id, _ := c.Get(sessionContextKey).(string)
	return id
}

// resolveSession picks the session ID from the header or cookie, minting a
// new one when neither holds a valid UUID.
func resolveSession(c echo.Context) string {
	req := c.Request()
	id := req.Header.Get(SessionHeader)
	if id == "" {
		if cookie, err := req.Cookie(SessionCookie); err == nil {
			id = cookie.Value
		}
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}

	id = uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// RequestLogger returns middleware that resolves the session, logs requests
// using zerolog and updates OpenTelemetry-backed counters.
func RequestLogger(reg *metrics.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			sid := resolveSession(c)
			c.Set(sessionContextKey, sid)
			c.Response().Header().Set(SessionHeader, sid)

			// Attach request-scoped logger
			logger := log.With().
				Str("request_id", rid).
				Str("session_id", sid).
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("remote_ip", c.RealIP()).
				Logger()

			ctx := logger.WithContext(req.Context())
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let echo write the response so the status is known below.
				c.Error(err)
			}

			status := c.Response().Status
			duration := time.Since(start)
			labels := map[string]string{
				"method": req.Method,
				"path":   c.Path(),
				"status": intToClass(status),
			}
			reg.Inc(ctx, metrics.HTTPRequests, labels, 1)

			if status >= 500 {
				logger.Error().
					Err(err).
					Int("status", status).
					Dur("duration", duration).
					Msg("http request failed")
				reg.Inc(ctx, metrics.HTTPRequestsErrored, labels, 1)
			} else {
				logger.Info().
					Int("status", status).
					Dur("duration", duration).
					Msg("http request served")
			}

			return nil
		}
	}
}

// intToClass buckets a status code into its class label, "0" when the
// response never got a valid status.
func intToClass(code int) string {
	if code < 100 || code > 599 {
		return "0"
	}
	return strconv.Itoa(code/100) + "xx"
}
