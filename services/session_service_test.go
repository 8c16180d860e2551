package services

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vau-explorer/geo"
	"vau-explorer/geofence"
	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

const testSecret = "test-secret"

type fakeProvider struct {
	pois []models.POI
	err  error
	lang string
}

func (p *fakeProvider) ListPOIs(_ context.Context, lang string) ([]models.POI, error) {
	p.lang = lang
	return p.pois, p.err
}

type memHitLogger struct {
	mu   sync.Mutex
	hits []models.Hit
}

func (l *memHitLogger) LogHit(_ context.Context, hit models.Hit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = append(l.hits, hit)
	return nil
}

func (l *memHitLogger) all() []models.Hit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Hit(nil), l.hits...)
}

func poiAt(id string, c geo.Coordinate, radius float64) models.POI {
	return models.POI{ID: id, Title: id, Location: models.NewGeoPoint(c), RadiusM: radius, Published: true}
}

// offset moves c north by meters.
func offset(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat + meters/geo.EarthRadiusMeters*180/math.Pi, Lng: c.Lng}
}

func newTestService(pois ...models.POI) (*SessionService, *memHitLogger) {
	hits := &memHitLogger{}
	return NewSessionService(&fakeProvider{pois: pois}, hits, testSecret, time.Minute, time.Second), hits
}

func TestSessionServiceStartIssuesToken(t *testing.T) {
	provider := &fakeProvider{pois: []models.POI{poiAt("covao", geofence.DemoLocation, 60)}}
	svc := NewSessionService(provider, &memHitLogger{}, testSecret, time.Minute, time.Second)

	started, err := svc.Start(context.Background(), SessionRequest{Lang: "en-US", Timezone: "Europe/Lisbon"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.POICount != 1 || started.Lang != "en" || provider.lang != "en" {
		t.Fatalf("unexpected start result %+v (provider lang %q)", started, provider.lang)
	}

	token, err := jwt.Parse(started.Token, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
	if err != nil || !token.Valid {
		t.Fatalf("expected a valid token, got %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sessionID"] != started.SessionID {
		t.Fatalf("expected sessionID claim %q, got %v", started.SessionID, claims["sessionID"])
	}
	if svc.Len() != 1 {
		t.Fatalf("expected one live session, got %d", svc.Len())
	}
}

func TestSessionServiceStartProviderFailure(t *testing.T) {
	svc := NewSessionService(&fakeProvider{err: stderrors.New("mongo down")}, &memHitLogger{}, testSecret, time.Minute, time.Second)
	if _, err := svc.Start(context.Background(), SessionRequest{}); err == nil {
		t.Fatal("expected provider error")
	}
	if svc.Len() != 0 {
		t.Fatal("expected no session after failure")
	}
}

func TestSessionServicePingFiresOnce(t *testing.T) {
	svc, hits := newTestService(poiAt("covao", geofence.DemoLocation, 60))
	started, _ := svc.Start(context.Background(), SessionRequest{Timezone: "Europe/Lisbon", UserAgent: "test"})

	far := offset(geofence.DemoLocation, 500)
	events, err := svc.Ping(started.SessionID, far)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events far away, got %v %v", events, err)
	}
	events, err = svc.Ping(started.SessionID, offset(geofence.DemoLocation, 10))
	if err != nil || len(events) != 1 || events[0].POI.ID != "covao" {
		t.Fatalf("expected covao to fire, got %v %v", events, err)
	}
	events, _ = svc.Ping(started.SessionID, geofence.DemoLocation)
	if len(events) != 0 {
		t.Fatalf("expected no second event, got %v", events)
	}

	session, _ := svc.Get(started.SessionID)
	session.Wait()
	logged := hits.all()
	if len(logged) != 1 || logged[0].Kind != models.HitEnterRadius || *logged[0].DistM != 10 {
		t.Fatalf("expected one enter_radius hit at 10 m, got %+v", logged)
	}
	if logged[0].Timezone != "Europe/Lisbon" || logged[0].UserAgent != "test" {
		t.Fatalf("expected client metadata on hit, got %+v", logged[0])
	}

	if err := svc.Reset(started.SessionID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	events, _ = svc.Ping(started.SessionID, geofence.DemoLocation)
	if len(events) != 1 {
		t.Fatalf("expected covao to fire again after reset, got %v", events)
	}
}

func TestSessionServicePingValidation(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Ping("missing", geo.Coordinate{Lat: 100}); err != errors.ErrInvalidCoordinate {
		t.Fatalf("expected invalid coordinate, got %v", err)
	}
	if _, err := svc.Ping("missing", geofence.DemoLocation); err != errors.ErrSessionNotFound {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestSessionServiceReportErrorKeepsState(t *testing.T) {
	svc, _ := newTestService(poiAt("covao", geofence.DemoLocation, 60))
	started, _ := svc.Start(context.Background(), SessionRequest{})
	svc.Ping(started.SessionID, geofence.DemoLocation)

	if err := svc.ReportError(started.SessionID, geofence.PermissionDenied, "denied"); err != nil {
		t.Fatalf("report error: %v", err)
	}
	session, _ := svc.Get(started.SessionID)
	if got := session.Triggered(); len(got) != 1 || got[0] != "covao" {
		t.Fatalf("expected triggered set untouched, got %v", got)
	}
}

func TestSessionServiceSelectAndOpen(t *testing.T) {
	svc, hits := newTestService(poiAt("covao", geofence.DemoLocation, 60), poiAt("vau", offset(geofence.DemoLocation, 2000), 60))
	started, _ := svc.Start(context.Background(), SessionRequest{})

	sel, err := svc.Select(started.SessionID, "vau")
	if err != nil || sel.Distance != nil {
		t.Fatalf("expected selection without distance, got %+v %v", sel, err)
	}
	svc.Ping(started.SessionID, geofence.DemoLocation)
	sel, err = svc.Open(started.SessionID, "vau")
	if err != nil || sel.Distance == nil || geo.Round(*sel.Distance) != 2000 {
		t.Fatalf("expected open with 2000 m distance, got %+v %v", sel, err)
	}
	if _, err := svc.Select(started.SessionID, "nowhere"); err != errors.ErrUnknownPOI {
		t.Fatalf("expected unknown poi, got %v", err)
	}

	session, _ := svc.Get(started.SessionID)
	if session.State("vau") != geofence.Idle {
		t.Fatal("expected manual selection to leave vau idle")
	}
	session.Wait()
	kinds := map[models.HitKind]int{}
	for _, h := range hits.all() {
		kinds[h.Kind]++
	}
	if kinds[models.HitManualClick] != 1 || kinds[models.HitOpenCard] != 1 || kinds[models.HitEnterRadius] != 1 {
		t.Fatalf("unexpected hit kinds %v", kinds)
	}
}

func TestSessionServiceStopAndExpire(t *testing.T) {
	svc, _ := newTestService(poiAt("covao", geofence.DemoLocation, 60))
	a, _ := svc.Start(context.Background(), SessionRequest{})
	b, _ := svc.Start(context.Background(), SessionRequest{})

	if err := svc.Stop(a.SessionID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := svc.Stop(a.SessionID); err != errors.ErrSessionNotFound {
		t.Fatalf("expected second stop to fail, got %v", err)
	}

	if n := svc.Expire(time.Now()); n != 0 {
		t.Fatalf("expected nothing to expire yet, got %d", n)
	}
	if n := svc.Expire(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if _, err := svc.Get(b.SessionID); err != errors.ErrSessionNotFound {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestSessionServiceShutdown(t *testing.T) {
	svc, _ := newTestService()
	svc.Start(context.Background(), SessionRequest{})
	svc.Start(context.Background(), SessionRequest{})
	svc.Shutdown()
	if svc.Len() != 0 {
		t.Fatalf("expected no sessions after shutdown, got %d", svc.Len())
	}
}

func TestSessionServiceMaxSessions(t *testing.T) {
	svc := NewSessionService(&fakeProvider{}, &memHitLogger{}, testSecret, time.Minute, time.Second, WithMaxSessions(2))
	for i := 0; i < 2; i++ {
		if _, err := svc.Start(context.Background(), SessionRequest{}); err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
	}
	if _, err := svc.Start(context.Background(), SessionRequest{}); err != errors.ErrTooManySessions {
		t.Fatalf("expected session cap, got %v", err)
	}
	if svc.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", svc.Len())
	}

	svc.Shutdown()
	if _, err := svc.Start(context.Background(), SessionRequest{}); err != nil {
		t.Fatalf("expected a start after sessions ended, got %v", err)
	}
}

func TestSessionServiceStartLimit(t *testing.T) {
	counter := &memCounter{}
	svc := NewSessionService(&fakeProvider{}, &memHitLogger{}, testSecret, time.Minute, time.Second, WithStartLimit(counter, 2))
	req := SessionRequest{IP: "203.0.113.7"}
	for i := 0; i < 2; i++ {
		if _, err := svc.Start(context.Background(), req); err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
	}
	if _, err := svc.Start(context.Background(), req); err != errors.ErrRateLimited {
		t.Fatalf("expected start limit, got %v", err)
	}
	if _, err := svc.Start(context.Background(), SessionRequest{IP: "198.51.100.4"}); err != nil {
		t.Fatalf("expected another ip to pass, got %v", err)
	}

	counter.err = stderrors.New("redis down")
	if _, err := svc.Start(context.Background(), req); err != nil {
		t.Fatalf("expected a failing counter not to block, got %v", err)
	}
}
