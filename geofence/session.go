package geofence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vau-explorer/geo"
	"vau-explorer/models"
)

const defaultLogTimeout = 5 * time.Second

// Client describes the device behind a session; it is attached to every hit.
type Client struct {
	Timezone  string
	UserAgent string
}

// Selection is the outcome of opening a POI by hand. Distance is nil when the
// session has no location.
type Selection struct {
	POI      models.POI `json:"poi"`
	Distance *float64   `json:"distance,omitempty"`
}

type Option func(*Session)

func WithHitLogger(h HitLogger) Option {
	return func(s *Session) { s.hits = h }
}

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithClient(c Client) Option {
	return func(s *Session) { s.client = c }
}

// WithLogTimeout bounds each background hit log call.
func WithLogTimeout(d time.Duration) Option {
	return func(s *Session) { s.logTimeout = d }
}

// Session owns the tracking state of one user: the POI snapshot, the
// TriggeredSet and the last known location. Samples are evaluated one at a
// time; hit logging runs in the background and never blocks evaluation.
type Session struct {
	id         string
	client     Client
	hits       HitLogger
	notifier   Notifier
	log        *slog.Logger
	logTimeout time.Duration

	mu        sync.Mutex
	pois      []models.POI
	index     map[string]int
	triggered *TriggeredSet
	active    bool
	last      *Sample
	touched   time.Time

	inflight sync.WaitGroup
}

// NewSession creates a stopped session over a copy of pois.
func NewSession(id string, pois []models.POI, opts ...Option) *Session {
	s := &Session{
		id:         id,
		hits:       nopHitLogger{},
		notifier:   nopNotifier{},
		log:        slog.Default(),
		logTimeout: defaultLogTimeout,
		pois:       append([]models.POI(nil), pois...),
		index:      make(map[string]int, len(pois)),
		triggered:  NewTriggeredSet(),
		touched:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i, poi := range s.pois {
		s.index[poi.ID] = i
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Start opens a fresh evaluation window. Starting an active session is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	if s.active {
		return
	}
	s.active = true
	s.triggered.Reset()
	s.log.Info("tracking started", "session", s.id, "pois", len(s.pois))
}

// Stop ends tracking: the TriggeredSet and the last location are cleared.
// Hit logs already in flight are not retracted.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	if !s.active {
		return
	}
	s.active = false
	s.last = nil
	s.triggered.Reset()
	s.log.Info("tracking stopped", "session", s.id)
}

// Reset returns every POI to Idle without stopping tracking.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	s.triggered.Reset()
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HandleSample evaluates a location fix and returns the POIs entered for the
// first time. Samples received while stopped are ignored.
func (s *Session) HandleSample(sample Sample) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	if !s.active {
		return nil
	}
	s.last = &sample

	events := Evaluate(s.triggered, s.pois, sample)
	for _, ev := range events {
		s.log.Info("poi entered", "session", s.id, "poi", ev.POI.ID, "dist_m", ev.DistanceM())
		s.notifier.Entered(s.id, ev)
		d := ev.Distance
		s.logHit(s.hitFor(ev.POI, models.HitEnterRadius, &d))
	}
	return events
}

// HandleError forwards a location failure to the notifier. No POI is evaluated
// and the TriggeredSet is left unchanged.
func (s *Session) HandleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	s.log.Warn("location failed", "session", s.id, "err", err)
	s.notifier.LocationFailed(s.id, err)
}

// Select opens a POI chosen by the user and logs a manual_click. It never
// consults the TriggeredSet and has no proximity precondition.
func (s *Session) Select(poiID string) (Selection, error) {
	return s.choose(poiID, models.HitManualClick)
}

// Open logs that the POI card was shown, with the same distance rules as Select.
func (s *Session) Open(poiID string) (Selection, error) {
	return s.choose(poiID, models.HitOpenCard)
}

func (s *Session) choose(poiID string, kind models.HitKind) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()

	i, ok := s.index[poiID]
	if !ok {
		return Selection{}, ErrUnknownPOI
	}
	sel := Selection{POI: s.pois[i]}
	if s.last != nil {
		d := geo.Distance(s.last.Coordinate, sel.POI.Coordinate())
		sel.Distance = &d
	}
	if kind == models.HitManualClick {
		s.notifier.Selected(s.id, sel)
	}
	s.logHit(s.hitFor(sel.POI, kind, sel.Distance))
	return sel, nil
}

// Triggered returns the ids of POIs that already fired in this session.
func (s *Session) Triggered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered.IDs()
}

// State returns the geofence state of one POI.
func (s *Session) State(poiID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered.State(poiID)
}

// LastLocation returns the most recent sample of the active session.
func (s *Session) LastLocation() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Sample{}, false
	}
	return *s.last, true
}

func (s *Session) POIs() []models.POI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.POI(nil), s.pois...)
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Wait blocks until background hit logs have finished.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) hitFor(poi models.POI, kind models.HitKind, dist *float64) models.Hit {
	hit := models.Hit{
		POIID:     poi.ID,
		Kind:      kind,
		Timezone:  s.client.Timezone,
		UserAgent: s.client.UserAgent,
	}
	if s.last != nil {
		lat, lng := s.last.Lat, s.last.Lng
		hit.Lat, hit.Lng = &lat, &lng
	}
	if dist != nil {
		m := geo.Round(*dist)
		hit.DistM = &m
	}
	return hit
}

func (s *Session) logHit(hit models.Hit) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.logTimeout)
		defer cancel()
		if err := s.hits.LogHit(ctx, hit); err != nil {
			s.log.Error("failed to log hit", "session", s.id, "poi", hit.POIID, "kind", hit.Kind, "err", err)
		}
	}()
}
