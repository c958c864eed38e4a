package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatmesh/connectors/internal/connector"
)

// HealthHandler serves the unauthenticated liveness endpoint.
type HealthHandler struct {
	manifest connector.Manifest
}

// NewHealthHandler builds a handler from the connector manifest.
func NewHealthHandler(m connector.Manifest) *HealthHandler {
	return &HealthHandler{manifest: m}
}

// Register binds the health route to the Echo instance.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET(h.manifest.HealthPath, h.HandleHealth)
}

type healthBody struct {
	Status       string   `json:"status"`
	Connector    string   `json:"connector"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// HandleHealth reports the connector identity and its active capabilities.
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthBody{
		Status:       "ok",
		Connector:    h.manifest.ID,
		Version:      h.manifest.Version,
		Capabilities: h.manifest.ActiveCapabilities(),
	})
}
