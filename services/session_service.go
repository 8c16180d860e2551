package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vau-explorer/geo"
	"vau-explorer/geofence"
	"vau-explorer/logger"
	"vau-explorer/metrics"
	"vau-explorer/utils/errors"
)

const tokenTTL = 24 * time.Hour

// SessionRequest describes the client opening a tracking session.
type SessionRequest struct {
	Lang      string `json:"lang"`
	Timezone  string `json:"tz"`
	UserAgent string `json:"ua"`
	IP        string `json:"-"`
}

type SessionOption func(*SessionService)

// WithMaxSessions caps the number of live sessions. Zero means no cap.
func WithMaxSessions(n int) SessionOption {
	return func(s *SessionService) { s.maxSessions = n }
}

// WithStartLimit allows at most perMinute session starts per client IP.
func WithStartLimit(counter RateCounter, perMinute int64) SessionOption {
	return func(s *SessionService) {
		s.counter = counter
		s.startLimit = perMinute
	}
}

type StartedSession struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	Lang      string    `json:"lang"`
	POICount  int       `json:"poi_count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionService keeps the tracking sessions of this process in memory. Each
// session is evaluated independently under its own lock.
type SessionService struct {
	provider   geofence.POIProvider
	hits       geofence.HitLogger
	notifier   geofence.Notifier
	jwtSecret  []byte
	ttl        time.Duration
	logTimeout time.Duration
	log        *slog.Logger
	now        func() time.Time

	maxSessions int
	counter     RateCounter
	startLimit  int64

	mu       sync.Mutex
	sessions map[string]*geofence.Session
}

// NewSessionService creates sessions over POI snapshots from provider. Idle
// sessions are dropped after ttl by the janitor.
func NewSessionService(provider geofence.POIProvider, hits geofence.HitLogger, jwtSecret string, ttl, logTimeout time.Duration, opts ...SessionOption) *SessionService {
	log := logger.L()
	s := &SessionService{
		provider:   provider,
		hits:       hits,
		notifier:   sessionNotifier{log: log},
		jwtSecret:  []byte(jwtSecret),
		ttl:        ttl,
		logTimeout: logTimeout,
		log:        log,
		now:        time.Now,
		sessions:   make(map[string]*geofence.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the POI snapshot for the requested language, starts tracking
// and issues the bearer token for the session.
func (s *SessionService) Start(ctx context.Context, req SessionRequest) (StartedSession, error) {
	if err := s.admit(ctx, req.IP); err != nil {
		return StartedSession{}, err
	}
	lang := ResolveLanguage(req.Lang)
	pois, err := s.provider.ListPOIs(ctx, lang)
	if err != nil {
		return StartedSession{}, fmt.Errorf("load pois: %w", err)
	}

	id := uuid.NewString()
	session := geofence.NewSession(id, pois,
		geofence.WithHitLogger(s.hits),
		geofence.WithNotifier(s.notifier),
		geofence.WithLogger(s.log),
		geofence.WithClient(geofence.Client{Timezone: req.Timezone, UserAgent: req.UserAgent}),
		geofence.WithLogTimeout(s.logTimeout),
	)

	expiresAt := s.now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sessionID": id,
		"exp":       expiresAt.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return StartedSession{}, fmt.Errorf("sign token: %w", err)
	}

	session.Start()
	s.mu.Lock()
	if s.full() {
		s.mu.Unlock()
		session.Stop()
		return StartedSession{}, errors.ErrTooManySessions
	}
	s.sessions[id] = session
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	return StartedSession{
		SessionID: id,
		Token:     tokenString,
		Lang:      lang,
		POICount:  len(pois),
		ExpiresAt: expiresAt,
	}, nil
}

// admit applies the per-IP start limit and the session cap. A failing
// counter does not block the start.
func (s *SessionService) admit(ctx context.Context, ip string) error {
	if s.counter != nil && ip != "" {
		n, err := s.counter.Incr(ctx, rateKey("sessions", ip, s.now()), 2*rateWindow)
		if err != nil {
			s.log.Warn("Session rate limit check failed", "ip", ip, "err", err)
		} else if n > s.startLimit {
			return errors.ErrRateLimited
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full() {
		return errors.ErrTooManySessions
	}
	return nil
}

// full must be called with s.mu held.
func (s *SessionService) full() bool {
	return s.maxSessions > 0 && len(s.sessions) >= s.maxSessions
}

// Get returns a live session.
func (s *SessionService) Get(id string) (*geofence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	return session, nil
}

// Ping evaluates a location fix and returns the POIs entered for the first time.
func (s *SessionService) Ping(id string, c geo.Coordinate) ([]geofence.Event, error) {
	if !c.Valid() {
		return nil, errors.ErrInvalidCoordinate
	}
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	events := session.HandleSample(geofence.Sample{Coordinate: c, At: s.now()})
	if events == nil {
		events = []geofence.Event{}
	}
	return events, nil
}

// ReportError records a location failure from the client. Nothing is evaluated.
func (s *SessionService) ReportError(id string, code geofence.LocationErrorCode, message string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	session.HandleError(&geofence.LocationError{Code: code, Message: message})
	return nil
}

func (s *SessionService) Select(id, poiID string) (geofence.Selection, error) {
	session, err := s.Get(id)
	if err != nil {
		return geofence.Selection{}, err
	}
	return choice(session.Select(poiID))
}

func (s *SessionService) Open(id, poiID string) (geofence.Selection, error) {
	session, err := s.Get(id)
	if err != nil {
		return geofence.Selection{}, err
	}
	return choice(session.Open(poiID))
}

func choice(sel geofence.Selection, err error) (geofence.Selection, error) {
	if stderrors.Is(err, geofence.ErrUnknownPOI) {
		return geofence.Selection{}, errors.ErrUnknownPOI
	}
	return sel, err
}

// Reset returns every POI of the session to Idle.
func (s *SessionService) Reset(id string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	session.Reset()
	return nil
}

// Stop ends tracking and forgets the session.
func (s *SessionService) Stop(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()
	if !ok {
		return errors.ErrSessionNotFound
	}
	session.Stop()
	return nil
}

// Len reports the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire stops and forgets sessions idle for longer than the TTL.
func (s *SessionService) Expire(now time.Time) int {
	s.mu.Lock()
	var expired []*geofence.Session
	for id, session := range s.sessions {
		if now.Sub(session.IdleSince()) > s.ttl {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	for _, session := range expired {
		session.Stop()
	}
	if len(expired) > 0 {
		s.log.Info("Expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (s *SessionService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Expire(t)
		}
	}
}

// Shutdown stops every session and waits for their pending hit logs.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*geofence.Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	metrics.ActiveSessions.Set(0)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
		session.Wait()
	}
}
