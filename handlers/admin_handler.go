package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"vau-explorer/middleware"
	"vau-explorer/models"
	"vau-explorer/services"
	"vau-explorer/utils/errors"
)

type poiAdmin interface {
	AdminList(ctx context.Context) ([]models.POI, error)
	Create(ctx context.Context, in services.POIInput) (models.POI, error)
	Update(ctx context.Context, id string, in services.POIInput) (models.POI, error)
	Delete(ctx context.Context, id string) error
}

// AdminHandler manages POIs. Routes are expected behind AdminAuthMiddleware.
type AdminHandler struct {
	pois poiAdmin
}

func NewAdminHandler(pois poiAdmin) *AdminHandler {
	return &AdminHandler{pois: pois}
}

func (h *AdminHandler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	pois, err := h.pois.AdminList(r.Context())
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to fetch POIs", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"pois": pois})
}

func (h *AdminHandler) CreatePOI(w http.ResponseWriter, r *http.Request) {
	var in services.POIInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	poi, err := h.pois.Create(r.Context(), in)
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to create POI", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": poi.ID})
}

func (h *AdminHandler) UpdatePOI(w http.ResponseWriter, r *http.Request) {
	var in services.POIInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	id := poiID(r, in.ID)
	if id == "" {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("Missing id"))
		return
	}
	poi, err := h.pois.Update(r.Context(), id, in)
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to update POI", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "poi": poi})
}

func (h *AdminHandler) DeletePOI(w http.ResponseWriter, r *http.Request) {
	id := poiID(r, nil)
	if id == "" && r.ContentLength != 0 {
		var in services.POIInput
		if err := json.NewDecoder(r.Body).Decode(&in); err == nil {
			id = poiID(r, in.ID)
		}
	}
	if id == "" {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("Missing id"))
		return
	}
	if err := h.pois.Delete(r.Context(), id); err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to delete POI", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// poiID takes the id from the route, then the query string, then the body.
func poiID(r *http.Request, bodyID *string) string {
	if id := mux.Vars(r)["id"]; id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		return id
	}
	if bodyID != nil {
		return strings.TrimSpace(*bodyID)
	}
	return ""
}
