package models

import "time"

// HitKind classifies how a user reached a POI.
type HitKind string

const (
	HitEnterRadius HitKind = "enter_radius"
	HitOpenCard    HitKind = "open_card"
	HitManualClick HitKind = "manual_click"
)

// Valid reports whether k is one of the known kinds.
func (k HitKind) Valid() bool {
	switch k {
	case HitEnterRadius, HitOpenCard, HitManualClick:
		return true
	}
	return false
}

// Hit is one interaction record. Optional fields are nil when unknown.
type Hit struct {
	ID        string    `json:"id,omitempty" bson:"_id"`
	POIID     string    `json:"poi_id" bson:"poi_id"`
	Kind      HitKind   `json:"kind" bson:"kind"`
	Lat       *float64  `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty" bson:"lng,omitempty"`
	DistM     *int      `json:"dist_m,omitempty" bson:"dist_m,omitempty"`
	Timezone  string    `json:"tz,omitempty" bson:"tz,omitempty"`
	UserAgent string    `json:"ua,omitempty" bson:"ua,omitempty"`
	IP        string    `json:"-" bson:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at"`
}
