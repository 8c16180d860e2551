package geo

import (
	"math"
	"testing"
)

func TestDistanceKnownReference(t *testing.T) {
	got := Distance(Coordinate{0, 0}, Coordinate{0, 1})
	want := 111194.93
	if math.Abs(got-want) > 1 {
		t.Fatalf("expected ~%.2f m, got %.2f", want, got)
	}
}

func TestDistanceIdentityAndSymmetry(t *testing.T) {
	points := []Coordinate{
		{39.4070, -9.2200},
		{39.4087, -9.2256},
		{-33.8688, 151.2093},
		{89.9, 179.9},
		{-90, -180},
		{0, 0},
	}
	for _, a := range points {
		if d := Distance(a, a); d != 0 {
			t.Fatalf("expected zero distance for %v, got %v", a, d)
		}
		for _, b := range points {
			ab := Distance(a, b)
			ba := Distance(b, a)
			if ab < 0 {
				t.Fatalf("expected non-negative distance for %v-%v, got %v", a, b, ab)
			}
			if math.Abs(ab-ba) > 1e-6 {
				t.Fatalf("expected symmetric distance for %v-%v, got %v and %v", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceSmallOffsets(t *testing.T) {
	origin := Coordinate{39.4070, -9.2200}
	metersPerDegree := EarthRadiusMeters * math.Pi / 180

	for _, meters := range []float64{1, 10, 60, 250, 999} {
		north := Coordinate{origin.Lat + meters/metersPerDegree, origin.Lng}
		got := Distance(origin, north)
		if math.Abs(got-meters) > meters*0.01 {
			t.Fatalf("expected ~%v m north, got %v", meters, got)
		}

		east := Coordinate{origin.Lat, origin.Lng + meters/(metersPerDegree*math.Cos(origin.Lat*math.Pi/180))}
		got = Distance(origin, east)
		if math.Abs(got-meters) > meters*0.01 {
			t.Fatalf("expected ~%v m east, got %v", meters, got)
		}
	}
}

func TestDistanceMonotonic(t *testing.T) {
	origin := Coordinate{39.4087, -9.2256}
	prev := 0.0
	for step := 1; step <= 20; step++ {
		d := Distance(origin, Coordinate{origin.Lat + float64(step)*0.001, origin.Lng})
		if d <= prev {
			t.Fatalf("expected distance to grow at step %d, got %v after %v", step, d, prev)
		}
		prev = d
	}
}

func TestCoordinateValid(t *testing.T) {
	tests := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{0, 0}, true},
		{Coordinate{90, 180}, true},
		{Coordinate{-90, -180}, true},
		{Coordinate{90.0001, 0}, false},
		{Coordinate{0, -180.5}, false},
		{Coordinate{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Fatalf("Valid(%v): expected %v, got %v", tt.c, tt.want, got)
		}
	}
}

func TestPointRoundTrip(t *testing.T) {
	c := Coordinate{Lat: 39.4087, Lng: -9.2256}
	p := c.Point()
	if p[0] != c.Lng || p[1] != c.Lat {
		t.Fatalf("expected [lng lat] point, got %v", p)
	}
	if back := FromPoint(p); back != c {
		t.Fatalf("expected %v, got %v", c, back)
	}
}

func TestRound(t *testing.T) {
	if got := Round(59.5); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := Round(0.4); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
