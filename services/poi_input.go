package services

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"vau-explorer/geo"
	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

const (
	DefaultRadiusM = 60.0
	MinRadiusM     = 10.0
	MaxRadiusM     = 500.0

	maxSlugLength = 60
)

// POIInput is the admin payload for creating or patching a POI. Nil fields
// are absent from the request.
type POIInput struct {
	ID           *string                       `json:"id,omitempty"`
	Title        *string                       `json:"title,omitempty"`
	Lat          *float64                      `json:"lat,omitempty"`
	Lng          *float64                      `json:"lng,omitempty"`
	RadiusM      *float64                      `json:"radius_m,omitempty"`
	Text         *string                       `json:"text,omitempty"`
	ImageURL     *string                       `json:"image_url,omitempty"`
	AudioURL     *string                       `json:"audio_url,omitempty"`
	Tags         *[]string                     `json:"tags,omitempty"`
	Published    *bool                         `json:"published,omitempty"`
	Translations map[string]models.Translation `json:"translations,omitempty"`
}

// NewPOI validates a create payload. Title, lat and lng are required; the
// radius defaults to 60 m and is clamped to [10, 500]; the id defaults to the
// slug of the title.
func (in POIInput) NewPOI(now time.Time) (models.POI, error) {
	if in.Title == nil {
		return models.POI{}, errors.ErrInvalidInput.WithDetails("title is required")
	}
	if in.Lat == nil || in.Lng == nil {
		return models.POI{}, errors.ErrInvalidCoordinate.WithDetails("lat and lng are required")
	}
	poi := models.POI{
		RadiusM:   DefaultRadiusM,
		Tags:      []string{},
		Published: true,
	}
	if err := in.Apply(&poi, now); err != nil {
		return models.POI{}, err
	}

	if in.ID != nil && strings.TrimSpace(*in.ID) != "" {
		poi.ID = strings.TrimSpace(*in.ID)
	} else {
		poi.ID = Slugify(poi.Title)
	}
	if poi.ID == "" {
		poi.ID = uuid.NewString()
	}
	if poi.Slug == "" {
		poi.Slug = Slugify(poi.Title)
	}
	return poi, nil
}

// Apply validates the present fields and copies them onto poi. The id is
// never changed.
func (in POIInput) Apply(poi *models.POI, now time.Time) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if len([]rune(title)) < 2 {
			return errors.ErrInvalidInput.WithDetails("title must have at least 2 characters")
		}
		poi.Title = title
	}

	c := poi.Coordinate()
	if in.Lat != nil {
		c.Lat = *in.Lat
	}
	if in.Lng != nil {
		c.Lng = *in.Lng
	}
	if in.Lat != nil || in.Lng != nil {
		if !c.Valid() {
			return errors.ErrInvalidCoordinate
		}
		poi.Location = models.NewGeoPoint(c)
	}

	if in.RadiusM != nil {
		poi.RadiusM = ClampRadius(*in.RadiusM)
	}
	if in.Text != nil {
		poi.Text = *in.Text
	}
	if in.ImageURL != nil {
		poi.ImageURL = *in.ImageURL
	}
	if in.AudioURL != nil {
		poi.AudioURL = *in.AudioURL
	}
	if in.Tags != nil {
		poi.Tags = models.NormalizeTags(*in.Tags)
	}
	if in.Published != nil {
		poi.Published = *in.Published
	}
	if in.Translations != nil {
		translations := make(map[string]models.Translation, len(in.Translations))
		for lang, tr := range in.Translations {
			if lang == models.DefaultLanguage {
				continue
			}
			if tr.Tags != nil {
				tr.Tags = models.NormalizeTags(tr.Tags)
			}
			translations[lang] = tr
		}
		poi.Translations = translations
	}
	poi.UpdatedAt = now.UTC()
	return nil
}

// ClampRadius bounds a trigger radius to [MinRadiusM, MaxRadiusM].
func ClampRadius(r float64) float64 {
	switch {
	case r < MinRadiusM:
		return MinRadiusM
	case r > MaxRadiusM:
		return MaxRadiusM
	}
	return r
}

// Slugify lowercases the title, strips diacritics and joins the remaining
// ASCII letters and digits with dashes, up to 60 characters.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(title))
	if err != nil {
		folded = strings.ToLower(title)
	}

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return strings.Trim(slug, "-")
}

// coordinateOf reports the POI location and whether it is usable.
func coordinateOf(poi models.POI) (geo.Coordinate, bool) {
	if len(poi.Location.Coordinates) < 2 {
		return geo.Coordinate{}, false
	}
	c := poi.Coordinate()
	return c, c.Valid()
}
