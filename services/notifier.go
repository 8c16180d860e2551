package services

import (
	stderrors "errors"
	"log/slog"

	"vau-explorer/geofence"
	"vau-explorer/metrics"
)

// sessionNotifier reports session events to the log and to Prometheus. It
// runs under the session lock and must not call back into the session.
type sessionNotifier struct {
	log *slog.Logger
}

func (n sessionNotifier) Entered(sessionID string, ev geofence.Event) {
	metrics.GeofenceEntersTotal.Inc()
	n.log.Debug("Geofence entered", "session", sessionID, "poi", ev.POI.ID, "dist_m", ev.DistanceM())
}

func (n sessionNotifier) Selected(sessionID string, sel geofence.Selection) {
	n.log.Debug("POI selected", "session", sessionID, "poi", sel.POI.ID)
}

func (n sessionNotifier) LocationFailed(sessionID string, err error) {
	code := "unknown"
	var locErr *geofence.LocationError
	if stderrors.As(err, &locErr) {
		code = locErr.Code.String()
	}
	metrics.LocationErrorsTotal.WithLabelValues(code).Inc()
}
