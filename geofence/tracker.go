package geofence

import (
	"context"
	"fmt"
)

// Tracker feeds a LocationSource into a Session for the duration of Run.
type Tracker struct {
	source  LocationSource
	session *Session
}

func NewTracker(source LocationSource, session *Session) *Tracker {
	return &Tracker{source: source, session: session}
}

// Run starts the session and processes updates one at a time until the
// source closes its channel or ctx is done. The source and the session are
// stopped on return.
func (t *Tracker) Run(ctx context.Context) error {
	updates, err := t.source.Start(ctx)
	if err != nil {
		t.session.HandleError(err)
		return fmt.Errorf("start location source: %w", err)
	}
	t.session.Start()
	defer func() {
		t.source.Stop()
		t.session.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Err != nil {
				t.session.HandleError(u.Err)
				continue
			}
			t.session.HandleSample(u.Sample)
		}
	}
}
