package services

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

func TestValidateHit(t *testing.T) {
	tests := []struct {
		name string
		hit  models.Hit
		want *errors.APIError
	}{
		{"valid minimal", models.Hit{POIID: "vau", Kind: models.HitOpenCard}, nil},
		{"valid full", models.Hit{POIID: "vau", Kind: models.HitEnterRadius, Lat: ptr(39.4), Lng: ptr(-9.2), DistM: ptr(0)}, nil},
		{"missing poi", models.Hit{Kind: models.HitOpenCard}, errors.ErrInvalidInput},
		{"blank poi", models.Hit{POIID: "  ", Kind: models.HitOpenCard}, errors.ErrInvalidInput},
		{"missing kind", models.Hit{POIID: "vau"}, errors.ErrInvalidInput},
		{"unknown kind", models.Hit{POIID: "vau", Kind: "visit"}, errors.ErrInvalidHitKind},
		{"lat without lng", models.Hit{POIID: "vau", Kind: models.HitOpenCard, Lat: ptr(39.4)}, errors.ErrInvalidCoordinate},
		{"lat out of range", models.Hit{POIID: "vau", Kind: models.HitOpenCard, Lat: ptr(95.0), Lng: ptr(0.0)}, errors.ErrInvalidCoordinate},
		{"negative distance", models.Hit{POIID: "vau", Kind: models.HitOpenCard, DistM: ptr(-1)}, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHit(tt.hit)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var apiErr *errors.APIError
			if !stderrors.As(err, &apiErr) || apiErr.Code != tt.want.Code {
				t.Fatalf("expected %s, got %v", tt.want.Code, err)
			}
		})
	}
}

func TestRateKeyWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if rateKey("hits", "1.2.3.4", base) != rateKey("hits", "1.2.3.4", base.Add(59*time.Second)) {
		t.Fatal("expected the same key within one minute")
	}
	if rateKey("hits", "1.2.3.4", base) == rateKey("hits", "1.2.3.4", base.Add(time.Minute)) {
		t.Fatal("expected a new key for the next minute")
	}
	if rateKey("hits", "1.2.3.4", base) == rateKey("hits", "5.6.7.8", base) {
		t.Fatal("expected keys to differ per ip")
	}
}

type memHitStore struct {
	mu   sync.Mutex
	hits []models.Hit
}

func (m *memHitStore) InsertHit(_ context.Context, hit models.Hit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, hit)
	return nil
}

type memCounter struct {
	counts map[string]int64
	ttl    time.Duration
	err    error
}

func (c *memCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[key]++
	c.ttl = ttl
	return c.counts[key], nil
}

func newTestHitService(counter RateCounter, limit int64, at time.Time) (*HitService, *memHitStore) {
	store := &memHitStore{}
	return &HitService{
		store:   store,
		counter: counter,
		limit:   limit,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     func() time.Time { return at },
	}, store
}

func TestRecordRateLimit(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	counter := &memCounter{}
	svc, store := newTestHitService(counter, 3, at)
	hit := models.Hit{POIID: "vau", Kind: models.HitOpenCard, IP: "203.0.113.7"}

	for i := 0; i < 3; i++ {
		id, err := svc.Record(context.Background(), hit)
		if err != nil || id == "" {
			t.Fatalf("hit %d: expected to be stored, got %q %v", i+1, id, err)
		}
	}
	if _, err := svc.Record(context.Background(), hit); err != errors.ErrRateLimited {
		t.Fatalf("expected rate limit on hit 4, got %v", err)
	}
	if len(store.hits) != 3 {
		t.Fatalf("expected 3 stored hits, got %d", len(store.hits))
	}
	if counter.ttl < rateWindow {
		t.Fatalf("expected counter to outlive the window, got ttl %v", counter.ttl)
	}

	other := hit
	other.IP = "198.51.100.4"
	if _, err := svc.Record(context.Background(), other); err != nil {
		t.Fatalf("expected another ip to pass, got %v", err)
	}

	svc.now = func() time.Time { return at.Add(time.Minute) }
	if _, err := svc.Record(context.Background(), hit); err != nil {
		t.Fatalf("expected a new window to pass, got %v", err)
	}
}

func TestRecordLimiterFailureLetsHitThrough(t *testing.T) {
	svc, store := newTestHitService(&memCounter{err: stderrors.New("redis down")}, 1, time.Now())
	hit := models.Hit{POIID: "vau", Kind: models.HitEnterRadius, IP: "203.0.113.7"}
	for i := 0; i < 3; i++ {
		if _, err := svc.Record(context.Background(), hit); err != nil {
			t.Fatalf("expected hit %d to pass while the limiter fails, got %v", i+1, err)
		}
	}
	if len(store.hits) != 3 {
		t.Fatalf("expected 3 stored hits, got %d", len(store.hits))
	}
}

func TestRecordWithoutIPSkipsLimiter(t *testing.T) {
	counter := &memCounter{}
	svc, store := newTestHitService(counter, 1, time.Now())
	hit := models.Hit{POIID: "vau", Kind: models.HitManualClick}
	for i := 0; i < 2; i++ {
		if _, err := svc.Record(context.Background(), hit); err != nil {
			t.Fatalf("expected in-process hit to pass, got %v", err)
		}
	}
	if len(counter.counts) != 0 || len(store.hits) != 2 {
		t.Fatalf("expected no counting and 2 hits, got %v %d", counter.counts, len(store.hits))
	}
	if store.hits[0].ID == "" || store.hits[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", store.hits[0])
	}
}

func TestRecordRejectsInvalidHit(t *testing.T) {
	counter := &memCounter{}
	svc, store := newTestHitService(counter, 1, time.Now())
	if _, err := svc.Record(context.Background(), models.Hit{POIID: "vau", Kind: "visit", IP: "1.1.1.1"}); err != errors.ErrInvalidHitKind {
		t.Fatalf("expected invalid kind, got %v", err)
	}
	if len(counter.counts) != 0 || len(store.hits) != 0 {
		t.Fatal("expected invalid hits to be neither counted nor stored")
	}
}
