package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mailru/easyjson"

	"posemaster/pkg/imagestore"
	"posemaster/pkg/middleware"
	"posemaster/pkg/models"
)

// ImageStore is the storage surface the pages use.
type ImageStore interface {
	SaveImage(ctx context.Context, scope, key, dataURL string) error
	GetImage(ctx context.Context, scope, key string) (string, bool)
	SaveData(ctx context.Context, scope, key, value string)
	GetData(ctx context.Context, scope, key string) (string, bool)
	EndSession(ctx context.Context, scope string)
}

// Handlers serves the image store over HTTP.
type Handlers struct {
	store ImageStore
}

// NewHandlers constructs Handlers over store.
func NewHandlers(store ImageStore) *Handlers {
	return &Handlers{store: store}
}

// Register mounts the routes on g, normally the /api/v1 group.
func (h *Handlers) Register(g *echo.Group) {
	g.PUT("/images/:key", h.SaveImage)
	g.GET("/images/:key", h.GetImage)
	g.PUT("/data/:key", h.SaveData)
	g.GET("/data/:key", h.GetData)
	g.PUT("/reproduction-type", h.SaveReproductionType)
	g.DELETE("/session", h.EndSession)
}

// SaveImage handles PUT /api/v1/images/:key
func (h *Handlers) SaveImage(c echo.Context) error {
	key, err := slotKey(c)
	if err != nil {
		return err
	}
	var body models.ImagePayload
	if err := bind(c, &body); err != nil {
		return err
	}

	err = h.store.SaveImage(c.Request().Context(), middleware.SessionID(c), key, body.DataURL)
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, imagestore.ErrDecode):
		return echo.NewHTTPError(http.StatusBadRequest, "data_url is not a readable image").SetInternal(err)
	case errors.Is(err, imagestore.ErrTierUnavailable), errors.Is(err, imagestore.ErrMarker):
		return echo.NewHTTPError(http.StatusInsufficientStorage, "image could not be stored, try again").SetInternal(err)
	default:
		return err
	}
}

// GetImage handles GET /api/v1/images/:key
func (h *Handlers) GetImage(c echo.Context) error {
	key, err := slotKey(c)
	if err != nil {
		return err
	}
	dataURL, ok := h.store.GetImage(c.Request().Context(), middleware.SessionID(c), key)
	if !ok {
		return writeJSON(c, http.StatusNotFound, models.ErrorPayload{Message: "no image stored for " + key})
	}
	return writeJSON(c, http.StatusOK, models.ImagePayload{Key: key, DataURL: dataURL})
}

// SaveData handles PUT /api/v1/data/:key
func (h *Handlers) SaveData(c echo.Context) error {
	key, err := slotKey(c)
	if err != nil {
		return err
	}
	var body models.DataPayload
	if err := bind(c, &body); err != nil {
		return err
	}
	h.store.SaveData(c.Request().Context(), middleware.SessionID(c), key, body.Value)
	return c.NoContent(http.StatusNoContent)
}

// GetData handles GET /api/v1/data/:key
func (h *Handlers) GetData(c echo.Context) error {
	key, err := slotKey(c)
	if err != nil {
		return err
	}
	value, ok := h.store.GetData(c.Request().Context(), middleware.SessionID(c), key)
	if !ok {
		return writeJSON(c, http.StatusNotFound, models.ErrorPayload{Message: "no value stored for " + key})
	}
	return writeJSON(c, http.StatusOK, models.DataPayload{Key: key, Value: value})
}

// SaveReproductionType handles PUT /api/v1/reproduction-type
func (h *Handlers) SaveReproductionType(c echo.Context) error {
	var body models.DataPayload
	if err := bind(c, &body); err != nil {
		return err
	}
	t, err := models.ParseReproductionType(body.Value)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.store.SaveData(c.Request().Context(), middleware.SessionID(c), models.KeyReproductionType, string(t))
	return c.NoContent(http.StatusNoContent)
}

// EndSession handles DELETE /api/v1/session
func (h *Handlers) EndSession(c echo.Context) error {
	h.store.EndSession(c.Request().Context(), middleware.SessionID(c))
	return c.NoContent(http.StatusNoContent)
}

// slotKey reads the :key path parameter. Marker keys are reserved for the store.
func slotKey(c echo.Context) (string, error) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}
	if strings.HasSuffix(key, imagestore.MarkerSuffix) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "key is reserved")
	}
	return key, nil
}

func bind(c echo.Context, v easyjson.Unmarshaler) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body").SetInternal(err)
	}
	if err := easyjson.Unmarshal(body, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body").SetInternal(err)
	}
	return nil
}

func writeJSON(c echo.Context, status int, v easyjson.Marshaler) error {
	body, err := easyjson.Marshal(v)
	if err != nil {
		return err
	}
	return c.JSONBlob(status, body)
}
