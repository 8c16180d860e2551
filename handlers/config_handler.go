package handlers

import (
	"net/http"

	"vau-explorer/middleware"
)

// ConfigHandler exposes public client configuration.
type ConfigHandler struct {
	mapToken string
}

func NewConfigHandler(mapToken string) *ConfigHandler {
	return &ConfigHandler{mapToken: mapToken}
}

// MapToken returns the public map token. A missing token is reported in the
// body with status 200 so the client can fall back to a static view.
func (h *ConfigHandler) MapToken(w http.ResponseWriter, r *http.Request) {
	if h.mapToken == "" {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"error": "Mapbox token not configured",
			"token": nil,
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"token":   h.mapToken,
		"success": true,
	})
}
