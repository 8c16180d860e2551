// Package geofence decides, as location samples arrive, which points of
// interest a user enters for the first time in a tracking session.
package geofence

import (
	"time"

	"vau-explorer/geo"
	"vau-explorer/models"
)

// DemoLocation sits on the Covão dos Mezaranhos POI and is used to exercise
// the evaluator without a device location.
var DemoLocation = geo.Coordinate{Lat: 39.4087, Lng: -9.2256}

// Sample is one location fix.
type Sample struct {
	geo.Coordinate
	At time.Time `json:"at"`
}

// NewSample stamps the coordinate with the current time.
func NewSample(c geo.Coordinate) Sample {
	return Sample{Coordinate: c, At: time.Now()}
}

// Event reports that a sample fell inside a POI's radius for the first time.
type Event struct {
	POI      models.POI `json:"poi"`
	Distance float64    `json:"distance"`
}

// DistanceM is the event distance rounded to whole meters.
func (e Event) DistanceM() int {
	return geo.Round(e.Distance)
}

// Evaluate checks every Idle POI against the sample and moves the ones within
// radius (inclusive) to Triggered. Events follow the order of pois.
func Evaluate(set *TriggeredSet, pois []models.POI, sample Sample) []Event {
	var events []Event
	for _, poi := range pois {
		if set.Has(poi.ID) {
			continue
		}
		d := geo.Distance(sample.Coordinate, poi.Coordinate())
		if d > poi.RadiusM {
			continue
		}
		if set.Trigger(poi.ID) {
			events = append(events, Event{POI: poi, Distance: d})
		}
	}
	return events
}
