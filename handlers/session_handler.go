package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"vau-explorer/geo"
	"vau-explorer/geofence"
	"vau-explorer/middleware"
	"vau-explorer/models"
	"vau-explorer/services"
	"vau-explorer/utils/errors"
)

type SessionHandler struct {
	sessions *services.SessionService
}

// EnteredPOI is one first-time radius entry reported to the client.
type EnteredPOI struct {
	POI   models.POI `json:"poi"`
	DistM int        `json:"dist_m"`
}

type SelectionResponse struct {
	POI   models.POI `json:"poi"`
	DistM *int       `json:"dist_m,omitempty"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type poiRequest struct {
	POIID string `json:"poi_id"`
}

type locationErrorRequest struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// StartSession opens a tracking session. It is the only session route that
// does not need a bearer token.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req services.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	if req.Lang == "" {
		req.Lang = r.Header.Get("Accept-Language")
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	req.IP = ClientIP(r)

	started, err := h.sessions.Start(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "SESSION_ERROR", "Failed to start session", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, started)
}

func (h *SessionHandler) PingLocation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFrom(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Lat == nil || req.Lng == nil {
		middleware.WriteError(w, errors.ErrInvalidCoordinate.WithDetails("lat and lng are required"))
		return
	}

	events, err := h.sessions.Ping(sessionID, geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	entered := make([]EnteredPOI, 0, len(events))
	for _, ev := range events {
		entered = append(entered, EnteredPOI{POI: ev.POI, DistM: ev.DistanceM()})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"entered": entered})
}

// ReportLocationError accepts a device geolocation failure. The session keeps
// its state and waits for the next fix.
func (h *SessionHandler) ReportLocationError(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFrom(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	var req locationErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code <= 0 {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("code must be a positive geolocation error code"))
		return
	}
	if err := h.sessions.ReportError(sessionID, geofence.LocationErrorCode(req.Code), req.Message); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *SessionHandler) SelectPOI(w http.ResponseWriter, r *http.Request) {
	h.choose(w, r, h.sessions.Select)
}

func (h *SessionHandler) OpenPOI(w http.ResponseWriter, r *http.Request) {
	h.choose(w, r, h.sessions.Open)
}

func (h *SessionHandler) choose(w http.ResponseWriter, r *http.Request, pick func(sessionID, poiID string) (geofence.Selection, error)) {
	sessionID, ok := middleware.SessionIDFrom(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	var req poiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.POIID == "" {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("poi_id is required"))
		return
	}

	sel, err := pick(sessionID, req.POIID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	resp := SelectionResponse{POI: sel.POI}
	if sel.Distance != nil {
		m := geo.Round(*sel.Distance)
		resp.DistM = &m
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFrom(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	if err := h.sessions.Reset(sessionID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (h *SessionHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFrom(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	if err := h.sessions.Stop(sessionID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
