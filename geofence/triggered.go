package geofence

import "sort"

// State is the per-POI geofence state within one tracking session.
type State uint8

const (
	Idle State = iota
	Triggered
)

func (s State) String() string {
	if s == Triggered {
		return "triggered"
	}
	return "idle"
}

// TriggeredSet records which POIs already fired an entered event. Every POI
// starts Idle and moves to Triggered at most once until Reset.
// It is not safe for concurrent use; Session serialises access.
type TriggeredSet struct {
	states map[string]State
}

func NewTriggeredSet() *TriggeredSet {
	return &TriggeredSet{states: make(map[string]State)}
}

// State returns the state of the POI, Idle when never seen.
func (t *TriggeredSet) State(poiID string) State {
	return t.states[poiID]
}

// Has reports whether the POI is Triggered.
func (t *TriggeredSet) Has(poiID string) bool {
	return t.states[poiID] == Triggered
}

// Trigger moves the POI from Idle to Triggered and reports whether the
// transition happened.
func (t *TriggeredSet) Trigger(poiID string) bool {
	if t.states[poiID] == Triggered {
		return false
	}
	t.states[poiID] = Triggered
	return true
}

// Reset returns every POI to Idle.
func (t *TriggeredSet) Reset() {
	clear(t.states)
}

func (t *TriggeredSet) Len() int {
	return len(t.states)
}

// IDs returns the triggered POI ids in sorted order.
func (t *TriggeredSet) IDs() []string {
	ids := make([]string, 0, len(t.states))
	for id, st := range t.states {
		if st == Triggered {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
