package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vau-explorer/geo"
	"vau-explorer/logger"
	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

const (
	poiGeoKey     = "pois:geo"
	adminListSize = 200
	nearbyLimit   = 50
)

func poiKey(id string) string { return "poi:" + id }

// NearbyPOI is a POI with its distance from the query point.
type NearbyPOI struct {
	models.POI
	DistanceM int `json:"dist_m"`
}

// POIService stores POIs in MongoDB and mirrors the published ones into a
// Redis GEO set for radius queries.
type POIService struct {
	collection  *mongo.Collection
	redisClient *redis.Client
	log         *slog.Logger
	now         func() time.Time
}

func NewPOIService(collection *mongo.Collection, redisClient *redis.Client) *POIService {
	return &POIService{
		collection:  collection,
		redisClient: redisClient,
		log:         logger.L(),
		now:         time.Now,
	}
}

// Init seeds the collection from seedFile when it is empty and rebuilds the
// Redis index from MongoDB.
func (s *POIService) Init(ctx context.Context, seedFile string) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "published", Value: 1}, {Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
	})
	if err != nil {
		return fmt.Errorf("create poi indexes: %w", err)
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count pois: %w", err)
	}
	if count == 0 && seedFile != "" {
		s.log.Info("No POIs found in MongoDB, seeding", "file", seedFile)
		if err := s.seed(ctx, seedFile); err != nil {
			return err
		}
	}
	return s.reindex(ctx)
}

func (s *POIService) seed(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer file.Close()

	pois, err := ReadPOIs(file, s.now(), s.log)
	if err != nil {
		return err
	}
	if len(pois) == 0 {
		return nil
	}
	docs := make([]any, 0, len(pois))
	for _, poi := range pois {
		docs = append(docs, poi)
	}
	result, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("seed pois: %w", err)
	}
	s.log.Info("Inserted POIs into MongoDB", "count", len(result.InsertedIDs))
	return nil
}

// ReadPOIs decodes a JSON array of admin payloads, as used by the seed file,
// and validates each one. Invalid entries are logged and skipped.
func ReadPOIs(r io.Reader, now time.Time, log *slog.Logger) ([]models.POI, error) {
	var inputs []POIInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode poi file: %w", err)
	}
	pois := make([]models.POI, 0, len(inputs))
	for i, in := range inputs {
		poi, err := in.NewPOI(now)
		if err != nil {
			log.Warn("Skipping invalid POI", "index", i, "err", err)
			continue
		}
		pois = append(pois, poi)
	}
	return pois, nil
}

// PublishedPOIs keeps the published POIs with a usable location and radius,
// localised for lang. It applies the same rules as ListPOIs.
func PublishedPOIs(pois []models.POI, lang string, log *slog.Logger) []models.POI {
	published := make([]models.POI, 0, len(pois))
	for _, poi := range pois {
		if poi.Published {
			published = append(published, poi)
		}
	}
	return localizeAll(published, ResolveLanguage(lang), log)
}

func (s *POIService) reindex(ctx context.Context) error {
	if err := s.redisClient.Del(ctx, poiGeoKey).Err(); err != nil {
		return fmt.Errorf("clear geo index: %w", err)
	}
	cursor, err := s.collection.Find(ctx, bson.M{"published": true})
	if err != nil {
		return fmt.Errorf("load pois: %w", err)
	}
	defer cursor.Close(ctx)

	var pois []models.POI
	if err := cursor.All(ctx, &pois); err != nil {
		return fmt.Errorf("decode pois: %w", err)
	}
	indexed := 0
	for _, poi := range pois {
		if err := s.index(ctx, poi); err != nil {
			s.log.Warn("Failed to index POI", "poi", poi.ID, "err", err)
			continue
		}
		indexed++
	}
	s.log.Info("Indexed POIs into Redis", "count", indexed)
	return nil
}

// index writes poi into the GEO set, or removes it when unpublished.
func (s *POIService) index(ctx context.Context, poi models.POI) error {
	c, ok := coordinateOf(poi)
	if !poi.Published || !ok {
		return s.unindex(ctx, poi.ID)
	}
	data, err := json.Marshal(poi)
	if err != nil {
		return err
	}
	pipe := s.redisClient.TxPipeline()
	pipe.HSet(ctx, poiKey(poi.ID), "data", data)
	pipe.GeoAdd(ctx, poiGeoKey, &redis.GeoLocation{
		Name:      poi.ID,
		Longitude: c.Lng,
		Latitude:  c.Lat,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *POIService) unindex(ctx context.Context, id string) error {
	pipe := s.redisClient.TxPipeline()
	pipe.ZRem(ctx, poiGeoKey, id)
	pipe.Del(ctx, poiKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// ListPOIs returns the published POIs localised for lang, ordered by title.
// A POI without a usable location or radius is left out.
func (s *POIService) ListPOIs(ctx context.Context, lang string) ([]models.POI, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"published": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pois: %w", err)
	}
	defer cursor.Close(ctx)

	var pois []models.POI
	if err := cursor.All(ctx, &pois); err != nil {
		return nil, fmt.Errorf("decode pois: %w", err)
	}
	return localizeAll(pois, ResolveLanguage(lang), s.log), nil
}

func localizeAll(pois []models.POI, lang string, log *slog.Logger) []models.POI {
	out := make([]models.POI, 0, len(pois))
	for _, poi := range pois {
		if _, ok := coordinateOf(poi); !ok || poi.RadiusM <= 0 {
			log.Warn("Skipping POI without location or radius", "poi", poi.ID)
			continue
		}
		out = append(out, poi.Localize(lang))
	}
	return out
}

// FindNearbyPOIs queries the Redis GEO set around c. Distances are recomputed
// with geo.Distance so they agree with geofence triggering.
func (s *POIService) FindNearbyPOIs(ctx context.Context, c geo.Coordinate, radiusM float64, lang string) ([]NearbyPOI, error) {
	geoResults, err := s.redisClient.GeoRadius(ctx, poiGeoKey, c.Lng, c.Lat, &redis.GeoRadiusQuery{
		Radius: radiusM,
		Unit:   "m",
		Sort:   "ASC",
		Count:  nearbyLimit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius: %w", err)
	}

	lang = ResolveLanguage(lang)
	results := make([]NearbyPOI, 0, len(geoResults))
	for _, geoResult := range geoResults {
		data, err := s.redisClient.HGet(ctx, poiKey(geoResult.Name), "data").Result()
		if err != nil {
			s.log.Warn("Redis get failed for POI", "poi", geoResult.Name, "err", err)
			continue
		}
		var poi models.POI
		if err := json.Unmarshal([]byte(data), &poi); err != nil {
			s.log.Warn("Failed to unmarshal POI", "poi", geoResult.Name, "err", err)
			continue
		}
		d := geo.Distance(c, poi.Coordinate())
		if d > radiusM {
			continue
		}
		results = append(results, NearbyPOI{POI: poi.Localize(lang), DistanceM: geo.Round(d)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].DistanceM < results[j].DistanceM })

	s.log.Debug("Found nearby POIs", "count", len(results), "radius_m", radiusM)
	return results, nil
}

// AdminList returns up to 200 POIs, published or not, most recently updated first.
func (s *POIService) AdminList(ctx context.Context) ([]models.POI, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(adminListSize)
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pois: %w", err)
	}
	defer cursor.Close(ctx)

	pois := []models.POI{}
	if err := cursor.All(ctx, &pois); err != nil {
		return nil, fmt.Errorf("decode pois: %w", err)
	}
	return pois, nil
}

func (s *POIService) Create(ctx context.Context, in POIInput) (models.POI, error) {
	poi, err := in.NewPOI(s.now())
	if err != nil {
		return models.POI{}, err
	}
	if _, err := s.collection.InsertOne(ctx, poi); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.POI{}, errors.ErrConflict.WithDetails("a POI with id " + poi.ID + " already exists")
		}
		return models.POI{}, fmt.Errorf("insert poi: %w", err)
	}
	s.sync(ctx, poi)
	return poi, nil
}

// Update patches the POI with the fields present in in.
func (s *POIService) Update(ctx context.Context, id string, in POIInput) (models.POI, error) {
	var poi models.POI
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&poi)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return models.POI{}, errors.ErrNotFound
	}
	if err != nil {
		return models.POI{}, fmt.Errorf("find poi: %w", err)
	}
	if err := in.Apply(&poi, s.now()); err != nil {
		return models.POI{}, err
	}
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": id}, poi); err != nil {
		return models.POI{}, fmt.Errorf("replace poi: %w", err)
	}
	s.sync(ctx, poi)
	return poi, nil
}

func (s *POIService) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete poi: %w", err)
	}
	if result.DeletedCount == 0 {
		return errors.ErrNotFound
	}
	if err := s.unindex(ctx, id); err != nil {
		s.log.Warn("Failed to remove POI from Redis", "poi", id, "err", err)
	}
	return nil
}

// sync updates the Redis index after a write. MongoDB stays authoritative,
// so a Redis failure is only logged.
func (s *POIService) sync(ctx context.Context, poi models.POI) {
	if err := s.index(ctx, poi); err != nil {
		s.log.Warn("Failed to sync POI to Redis", "poi", poi.ID, "err", err)
	}
}
