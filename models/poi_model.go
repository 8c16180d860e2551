package models

import (
	"sort"
	"strings"
	"time"

	"vau-explorer/geo"
)

// DefaultLanguage is the language of a POI's base title, text and tags.
const DefaultLanguage = "pt"

type POI struct {
	ID           string                 `json:"id" bson:"_id"`
	Slug         string                 `json:"slug,omitempty" bson:"slug,omitempty"`
	Title        string                 `json:"title" bson:"title"`
	Location     GeoPoint               `json:"location" bson:"location"`
	RadiusM      float64                `json:"radius_m" bson:"radius_m"`
	Text         string                 `json:"text,omitempty" bson:"text,omitempty"`
	ImageURL     string                 `json:"image_url,omitempty" bson:"image_url,omitempty"`
	AudioURL     string                 `json:"audio_url,omitempty" bson:"audio_url,omitempty"`
	Tags         []string               `json:"tags" bson:"tags"`
	Published    bool                   `json:"published" bson:"published"`
	Translations map[string]Translation `json:"translations,omitempty" bson:"translations,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at" bson:"updated_at"`
}

// Translation overrides the base content for one language. Empty fields fall back.
type Translation struct {
	Title string   `json:"title,omitempty" bson:"title,omitempty"`
	Text  string   `json:"text,omitempty" bson:"text,omitempty"`
	Tags  []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a coordinate.
func NewGeoPoint(c geo.Coordinate) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{c.Lng, c.Lat}}
}

// Coordinate returns the point as lat/lng. A malformed point yields the zero coordinate.
func (p GeoPoint) Coordinate() geo.Coordinate {
	if len(p.Coordinates) < 2 {
		return geo.Coordinate{}
	}
	return geo.Coordinate{Lat: p.Coordinates[1], Lng: p.Coordinates[0]}
}

func (p POI) Coordinate() geo.Coordinate {
	return p.Location.Coordinate()
}

// Localize returns a copy of the POI with title, text and tags resolved for lang.
// The translations map is dropped from the copy.
func (p POI) Localize(lang string) POI {
	out := p
	out.Translations = nil
	out.Tags = append([]string(nil), p.Tags...)
	if lang == "" || lang == DefaultLanguage {
		return out
	}
	tr, ok := p.Translations[lang]
	if !ok {
		return out
	}
	if tr.Title != "" {
		out.Title = tr.Title
	}
	if tr.Text != "" {
		out.Text = tr.Text
	}
	if len(tr.Tags) > 0 {
		out.Tags = NormalizeTags(tr.Tags)
	}
	return out
}

// NormalizeTags trims, drops empties and deduplicates tags. The result is sorted
// since tag order carries no meaning.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
