package track

import (
	"context"
	"errors"
	"sync"
	"time"

	"vau-explorer/geo"
	"vau-explorer/geofence"
)

// ErrRunning is returned when Start is called on a replay that is still emitting.
var ErrRunning = errors.New("replay already running")

// Replay emits a fixed list of samples with a delay between them. It can be
// restarted after Stop or after the track has been exhausted.
type Replay struct {
	samples  []geofence.Sample
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReplay(samples []geofence.Sample, interval time.Duration) *Replay {
	return &Replay{
		samples:  append([]geofence.Sample(nil), samples...),
		interval: interval,
	}
}

// Fixed replays a single position once, e.g. the demo location.
func Fixed(c geo.Coordinate) *Replay {
	return NewReplay([]geofence.Sample{{Coordinate: c}}, 0)
}

func (r *Replay) Start(ctx context.Context) (<-chan geofence.Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		select {
		case <-r.done:
		default:
			return nil, ErrRunning
		}
	}
	if len(r.samples) == 0 {
		return nil, &geofence.LocationError{Code: geofence.PositionUnavailable, Message: "empty track"}
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan geofence.Update)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go func() {
		defer close(done)
		defer close(out)
		for i, s := range r.samples {
			if i > 0 && r.interval > 0 {
				timer := time.NewTimer(r.interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			if s.At.IsZero() {
				s.At = time.Now()
			}
			select {
			case out <- geofence.Update{Sample: s}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Stop cancels emission and waits for the replay goroutine to exit.
func (r *Replay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
