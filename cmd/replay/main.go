// Command replay feeds a recorded GeoJSON track (or the demo location)
// through a geofence session and prints the POIs entered along the way.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"vau-explorer/client"
	"vau-explorer/geofence"
	"vau-explorer/logger"
	"vau-explorer/models"
	"vau-explorer/services"
	"vau-explorer/track"
)

type printer struct{}

func (printer) Entered(_ string, ev geofence.Event) {
	fmt.Printf("entered  %-30s %5d m  %s\n", ev.POI.ID, ev.DistanceM(), ev.POI.Title)
}

func (printer) Selected(string, geofence.Selection) {}

func (printer) LocationFailed(_ string, err error) {
	fmt.Printf("location %v\n", err)
}

func main() {
	var (
		serverURL string
		poiFile   string
		trackFile string
		lang      string
		interval  time.Duration
		demo      bool
		post      bool
	)
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "vau-explorer API base URL")
	flag.StringVar(&poiFile, "pois", "", "Read POIs from a JSON file instead of the server")
	flag.StringVar(&trackFile, "track", "", "GeoJSON track to replay")
	flag.StringVar(&lang, "lang", "pt", "POI language")
	flag.DurationVar(&interval, "interval", 0, "Delay between samples")
	flag.BoolVar(&demo, "demo", false, "Replay the demo location instead of a track")
	flag.BoolVar(&post, "post", false, "Post hits to the server")
	flag.Parse()

	log := logger.L()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(serverURL)
	pois, err := loadPOIs(ctx, api, poiFile, lang, log)
	if err != nil {
		log.Error("Failed to load POIs", "err", err)
		os.Exit(1)
	}

	var source *track.Replay
	switch {
	case demo:
		source = track.Fixed(geofence.DemoLocation)
	case trackFile != "":
		f, err := os.Open(trackFile)
		if err != nil {
			log.Error("Failed to open track", "err", err)
			os.Exit(1)
		}
		samples, err := track.LoadGeoJSON(f)
		f.Close()
		if err != nil {
			log.Error("Failed to read track", "err", err)
			os.Exit(1)
		}
		source = track.NewReplay(samples, interval)
	default:
		fmt.Fprintln(os.Stderr, "replay: one of -track or -demo is required")
		flag.Usage()
		os.Exit(2)
	}

	opts := []geofence.Option{
		geofence.WithNotifier(printer{}),
		geofence.WithLogger(log),
		geofence.WithClient(geofence.Client{Timezone: os.Getenv("TZ"), UserAgent: "vau-replay"}),
	}
	if post {
		opts = append(opts, geofence.WithHitLogger(api))
	}
	session := geofence.NewSession(uuid.NewString(), pois, opts...)

	err = geofence.NewTracker(source, session).Run(ctx)
	session.Wait()
	if err != nil && ctx.Err() == nil {
		log.Error("Replay failed", "err", err)
		os.Exit(1)
	}
}

// loadPOIs reads POIs from the server, or from a file in the seed format
// (flat lat/lng admin payloads) when path is set.
func loadPOIs(ctx context.Context, api *client.Client, path, lang string, log *slog.Logger) ([]models.POI, error) {
	if path == "" {
		return api.ListPOIs(ctx, lang)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pois, err := services.ReadPOIs(f, time.Now(), log)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return services.PublishedPOIs(pois, lang, log), nil
}
