// Package track provides location sources that replay recorded tracks.
package track

import (
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"vau-explorer/geo"
	"vau-explorer/geofence"
)

// LoadGeoJSON reads a FeatureCollection and returns its positions as samples,
// in document order. Point features may carry a "time" property; LineString
// and MultiPoint features may carry a parallel "coordTimes" array. Times must
// be RFC3339; missing times are left zero.
func LoadGeoJSON(r io.Reader) ([]geofence.Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}

	var samples []geofence.Sample
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			at, err := parseTime(f.Properties, "time")
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			samples = append(samples, geofence.Sample{Coordinate: geo.FromPoint(g), At: at})
		case orb.LineString:
			s, err := pointSamples([]orb.Point(g), f.Properties)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			samples = append(samples, s...)
		case orb.MultiPoint:
			s, err := pointSamples([]orb.Point(g), f.Properties)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			samples = append(samples, s...)
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %s", i, f.Geometry.GeoJSONType())
		}
	}
	return samples, nil
}

func pointSamples(points []orb.Point, props geojson.Properties) ([]geofence.Sample, error) {
	var times []any
	if raw, ok := props["coordTimes"]; ok {
		times, ok = raw.([]any)
		if !ok {
			return nil, fmt.Errorf("coordTimes is not an array")
		}
		if len(times) != len(points) {
			return nil, fmt.Errorf("coordTimes has %d entries for %d points", len(times), len(points))
		}
	}

	samples := make([]geofence.Sample, 0, len(points))
	for i, p := range points {
		s := geofence.Sample{Coordinate: geo.FromPoint(p)}
		if times != nil {
			str, ok := times[i].(string)
			if !ok {
				return nil, fmt.Errorf("coordTimes[%d] is not a string", i)
			}
			at, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return nil, fmt.Errorf("coordTimes[%d]: %w", i, err)
			}
			s.At = at
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func parseTime(props geojson.Properties, key string) (time.Time, error) {
	raw, ok := props[key]
	if !ok {
		return time.Time{}, nil
	}
	str, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%s is not a string", key)
	}
	at, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return at, nil
}
