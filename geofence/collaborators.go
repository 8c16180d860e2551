package geofence

import (
	"context"
	"errors"
	"fmt"

	"vau-explorer/models"
)

// ErrLocationUnavailable matches every LocationError via errors.Is.
var ErrLocationUnavailable = errors.New("location unavailable")

// ErrUnknownPOI is returned by manual selection of an id outside the snapshot.
var ErrUnknownPOI = errors.New("unknown poi")

// LocationErrorCode mirrors the codes reported by device geolocation APIs.
type LocationErrorCode int

const (
	PermissionDenied    LocationErrorCode = 1
	PositionUnavailable LocationErrorCode = 2
	Timeout             LocationErrorCode = 3
)

func (c LocationErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("code_%d", int(c))
}

// LocationError is a failure reported by a LocationSource.
type LocationError struct {
	Code    LocationErrorCode
	Message string
}

func (e *LocationError) Error() string {
	if e.Message == "" {
		return "location unavailable: " + e.Code.String()
	}
	return fmt.Sprintf("location unavailable: %s: %s", e.Code, e.Message)
}

func (e *LocationError) Unwrap() error {
	return ErrLocationUnavailable
}

// Update is one item of a location stream: a sample or a failure.
type Update struct {
	Sample Sample
	Err    error
}

// LocationSource produces location updates until stopped. It can be started
// again after Stop.
type LocationSource interface {
	Start(ctx context.Context) (<-chan Update, error)
	Stop()
}

// POIProvider returns the POIs for a language. Callers treat the result as a snapshot.
type POIProvider interface {
	ListPOIs(ctx context.Context, lang string) ([]models.POI, error)
}

// HitLogger persists interaction records.
type HitLogger interface {
	LogHit(ctx context.Context, hit models.Hit) error
}

// Notifier presents session outcomes to the user. Calls are made while the
// session is locked, so implementations must not call back into the session.
type Notifier interface {
	Entered(sessionID string, ev Event)
	Selected(sessionID string, sel Selection)
	LocationFailed(sessionID string, err error)
}

type nopNotifier struct{}

func (nopNotifier) Entered(string, Event) {}
func (nopNotifier) Selected(string, Selection) {}
func (nopNotifier) LocationFailed(string, error) {}

type nopHitLogger struct{}

func (nopHitLogger) LogHit(context.Context, models.Hit) error { return nil }
