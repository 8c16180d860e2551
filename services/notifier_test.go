package services

import (
	stderrors "errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"vau-explorer/geofence"
	"vau-explorer/metrics"
)

func TestSessionNotifierCounts(t *testing.T) {
	n := sessionNotifier{log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	enters := testutil.ToFloat64(metrics.GeofenceEntersTotal)
	n.Entered("s1", geofence.Event{POI: poiAt("covao", geofence.DemoLocation, 60)})
	if got := testutil.ToFloat64(metrics.GeofenceEntersTotal); got != enters+1 {
		t.Fatalf("expected enter counter %v, got %v", enters+1, got)
	}

	denied := testutil.ToFloat64(metrics.LocationErrorsTotal.WithLabelValues("permission_denied"))
	n.LocationFailed("s1", &geofence.LocationError{Code: geofence.PermissionDenied})
	if got := testutil.ToFloat64(metrics.LocationErrorsTotal.WithLabelValues("permission_denied")); got != denied+1 {
		t.Fatalf("expected permission_denied counter %v, got %v", denied+1, got)
	}

	unknown := testutil.ToFloat64(metrics.LocationErrorsTotal.WithLabelValues("unknown"))
	n.LocationFailed("s1", stderrors.New("gps off"))
	if got := testutil.ToFloat64(metrics.LocationErrorsTotal.WithLabelValues("unknown")); got != unknown+1 {
		t.Fatalf("expected unknown counter %v, got %v", unknown+1, got)
	}
}
