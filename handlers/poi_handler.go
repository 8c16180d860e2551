package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"vau-explorer/geo"
	"vau-explorer/middleware"
	"vau-explorer/models"
	"vau-explorer/services"
	"vau-explorer/utils/errors"
)

const maxNearbyRadiusM = 50000

type poiStore interface {
	ListPOIs(ctx context.Context, lang string) ([]models.POI, error)
	FindNearbyPOIs(ctx context.Context, c geo.Coordinate, radiusM float64, lang string) ([]services.NearbyPOI, error)
}

type POIHandler struct {
	pois poiStore
}

type POIListResponse struct {
	POIs  []models.POI `json:"pois"`
	Count int          `json:"count"`
	Lang  string       `json:"lang"`
}

type NearbyPOIResponse struct {
	NearbyPOIs []services.NearbyPOI `json:"nearby_pois"`
	Count      int                  `json:"count"`
	Lat        float64              `json:"lat"`
	Lng        float64              `json:"lng"`
	Radius     float64              `json:"radius"`
}

func NewPOIHandler(pois poiStore) *POIHandler {
	return &POIHandler{pois: pois}
}

func requestLanguage(r *http.Request) string {
	return services.ResolveLanguage(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
}

// GetPOIs lists the published POIs in the requested language.
func (h *POIHandler) GetPOIs(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)
	pois, err := h.pois.ListPOIs(r.Context(), lang)
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to fetch POIs", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, POIListResponse{POIs: pois, Count: len(pois), Lang: lang})
}

// GetPOIsGeoJSON serves the published POIs as a FeatureCollection for the map.
func (h *POIHandler) GetPOIsGeoJSON(w http.ResponseWriter, r *http.Request) {
	pois, err := h.pois.ListPOIs(r.Context(), requestLanguage(r))
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "DB_ERROR", "Failed to fetch POIs", http.StatusInternalServerError))
		return
	}
	data, err := FeatureCollection(pois).MarshalJSON()
	if err != nil {
		middleware.WriteError(w, errors.ErrInternal)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// FeatureCollection converts POIs to GeoJSON point features keyed by POI id.
func FeatureCollection(pois []models.POI) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, poi := range pois {
		f := geojson.NewFeature(poi.Coordinate().Point())
		f.ID = poi.ID
		f.Properties["title"] = poi.Title
		f.Properties["radius_m"] = poi.RadiusM
		f.Properties["tags"] = poi.Tags
		if poi.Text != "" {
			f.Properties["text"] = poi.Text
		}
		if poi.ImageURL != "" {
			f.Properties["image_url"] = poi.ImageURL
		}
		if poi.AudioURL != "" {
			f.Properties["audio_url"] = poi.AudioURL
		}
		fc.Append(f)
	}
	return fc
}

func (h *POIHandler) GetNearbyPOIs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("lat is required"))
		return
	}
	lngParam := q.Get("lng")
	if lngParam == "" {
		lngParam = q.Get("lon")
	}
	lng, err := strconv.ParseFloat(lngParam, 64)
	if err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("lng is required"))
		return
	}
	radius, err := strconv.ParseFloat(q.Get("radius"), 64)
	if err != nil || radius <= 0 || radius > maxNearbyRadiusM {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("radius must be between 0 and 50000 meters"))
		return
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		middleware.WriteError(w, errors.ErrInvalidCoordinate)
		return
	}

	pois, err := h.pois.FindNearbyPOIs(r.Context(), c, radius, requestLanguage(r))
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "CACHE_ERROR", "Failed to query nearby POIs", http.StatusInternalServerError))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, NearbyPOIResponse{
		NearbyPOIs: pois,
		Count:      len(pois),
		Lat:        lat,
		Lng:        lng,
		Radius:     radius,
	})
}
