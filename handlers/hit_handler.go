package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"vau-explorer/geo"
	"vau-explorer/middleware"
	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

type hitRecorder interface {
	Record(ctx context.Context, hit models.Hit) (string, error)
}

type HitHandler struct {
	hits hitRecorder
}

type hitRequest struct {
	POIID     string   `json:"poi_id"`
	Kind      string   `json:"kind"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	DistM     *float64 `json:"dist_m"`
	Timezone  string   `json:"tz"`
	UserAgent string   `json:"ua"`
}

type HitResponse struct {
	Success bool   `json:"success"`
	HitID   string `json:"hit_id"`
	Message string `json:"message"`
}

func NewHitHandler(hits hitRecorder) *HitHandler {
	return &HitHandler{hits: hits}
}

// LogHit records a POI interaction reported by a client.
func (h *HitHandler) LogHit(w http.ResponseWriter, r *http.Request) {
	var req hitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}

	hit := models.Hit{
		POIID:     strings.TrimSpace(req.POIID),
		Kind:      models.HitKind(req.Kind),
		Lat:       req.Lat,
		Lng:       req.Lng,
		Timezone:  req.Timezone,
		UserAgent: req.UserAgent,
		IP:        ClientIP(r),
	}
	if req.DistM != nil {
		m := geo.Round(*req.DistM)
		hit.DistM = &m
	}
	if hit.UserAgent == "" {
		hit.UserAgent = r.UserAgent()
	}

	id, err := h.hits.Record(r.Context(), hit)
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to log hit", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, HitResponse{Success: true, HitID: id, Message: "Hit logged successfully"})
}

// ClientIP prefers the first X-Forwarded-For entry, then X-Real-IP, then the
// connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
