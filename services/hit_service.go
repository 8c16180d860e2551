package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"vau-explorer/geo"
	"vau-explorer/logger"
	"vau-explorer/metrics"
	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

const rateWindow = time.Minute

type hitStore interface {
	InsertHit(ctx context.Context, hit models.Hit) error
}

// RateCounter increments a windowed counter and returns its new value.
type RateCounter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type mongoHitStore struct {
	collection *mongo.Collection
}

func (m mongoHitStore) InsertHit(ctx context.Context, hit models.Hit) error {
	_, err := m.collection.InsertOne(ctx, hit)
	return err
}

// RedisCounter counts with INCR and sets the expiry in the same transaction.
type RedisCounter struct {
	Client *redis.Client
}

func (c RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// HitService validates, rate limits and stores hits.
type HitService struct {
	collection *mongo.Collection
	store      hitStore
	counter    RateCounter
	limit      int64
	log        *slog.Logger
	now        func() time.Time
}

// NewHitService allows at most limit hits per client IP per minute.
func NewHitService(collection *mongo.Collection, redisClient *redis.Client, limit int64) *HitService {
	return &HitService{
		collection: collection,
		store:      mongoHitStore{collection: collection},
		counter:    RedisCounter{Client: redisClient},
		limit:      limit,
		log:        logger.L(),
		now:        time.Now,
	}
}

// Init creates the indexes used to report hits per POI.
func (s *HitService) Init(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "poi_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create hit indexes: %w", err)
	}
	return nil
}

// ValidateHit checks the required fields, the kind and any coordinates given.
func ValidateHit(hit models.Hit) error {
	if strings.TrimSpace(hit.POIID) == "" || hit.Kind == "" {
		return errors.ErrInvalidInput.WithDetails("Missing required fields: poi_id, kind")
	}
	if !hit.Kind.Valid() {
		return errors.ErrInvalidHitKind
	}
	if (hit.Lat == nil) != (hit.Lng == nil) {
		return errors.ErrInvalidCoordinate.WithDetails("lat and lng must be given together")
	}
	if hit.Lat != nil && !(geo.Coordinate{Lat: *hit.Lat, Lng: *hit.Lng}).Valid() {
		return errors.ErrInvalidCoordinate
	}
	if hit.DistM != nil && *hit.DistM < 0 {
		return errors.ErrInvalidInput.WithDetails("dist_m must not be negative")
	}
	return nil
}

// Record stores hit and returns its id. Hits carrying a client IP are subject
// to the per-minute limit; a limiter failure lets the hit through.
func (s *HitService) Record(ctx context.Context, hit models.Hit) (string, error) {
	if err := ValidateHit(hit); err != nil {
		return "", err
	}
	if hit.IP != "" {
		allowed, err := s.allow(ctx, hit.IP)
		if err != nil {
			s.log.Warn("Rate limit check failed", "ip", hit.IP, "err", err)
		} else if !allowed {
			metrics.HitsRateLimitedTotal.Inc()
			return "", errors.ErrRateLimited
		}
	}

	hit.ID = uuid.NewString()
	hit.CreatedAt = s.now().UTC()
	if err := s.store.InsertHit(ctx, hit); err != nil {
		return "", fmt.Errorf("insert hit: %w", err)
	}
	metrics.HitsLoggedTotal.WithLabelValues(string(hit.Kind)).Inc()
	s.log.Debug("Hit logged", "poi", hit.POIID, "kind", hit.Kind)
	return hit.ID, nil
}

// LogHit lets sessions running in this process persist hits directly.
func (s *HitService) LogHit(ctx context.Context, hit models.Hit) error {
	_, err := s.Record(ctx, hit)
	return err
}

func (s *HitService) allow(ctx context.Context, ip string) (bool, error) {
	n, err := s.counter.Incr(ctx, rateKey("hits", ip, s.now()), 2*rateWindow)
	if err != nil {
		return false, err
	}
	return n <= s.limit, nil
}

// rateKey names the counter of one client IP for the minute containing t.
func rateKey(scope, ip string, t time.Time) string {
	return fmt.Sprintf("%s:rate:%s:%d", scope, ip, t.Unix()/int64(rateWindow/time.Second))
}
