package geofence

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"vau-explorer/geo"
	"vau-explorer/models"
)

var metersPerDegreeLat = geo.EarthRadiusMeters * math.Pi / 180

func north(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat + meters/metersPerDegreeLat, Lng: c.Lng}
}

func sampleAt(c geo.Coordinate) Sample {
	return NewSample(c)
}

func testPOI(id string, c geo.Coordinate, radius float64) models.POI {
	return models.POI{
		ID:        id,
		Title:     id,
		Location:  models.NewGeoPoint(c),
		RadiusM:   radius,
		Published: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu       sync.Mutex
	entered  []Event
	selected []Selection
	failures []error
}

func (n *recordingNotifier) Entered(_ string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entered = append(n.entered, ev)
}

func (n *recordingNotifier) Selected(_ string, sel Selection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selected = append(n.selected, sel)
}

func (n *recordingNotifier) LocationFailed(_ string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, err)
}

type recordingHitLogger struct {
	mu   sync.Mutex
	hits []models.Hit
	err  error
}

func (l *recordingHitLogger) LogHit(_ context.Context, hit models.Hit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = append(l.hits, hit)
	return l.err
}

func (l *recordingHitLogger) all() []models.Hit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Hit(nil), l.hits...)
}
