package geo

import (
	"errors"
	"math"
	"testing"

	"chatcommerce/internal/domain"
)

var branches = []domain.Branch{
	{Name: "Kondapur", Location: domain.Location{Latitude: 17.4699, Longitude: 78.3578}},
	{Name: "Madhapur", Location: domain.Location{Latitude: 17.4483, Longitude: 78.3915}},
	{Name: "Manikonda", Location: domain.Location{Latitude: 17.4062, Longitude: 78.3867}},
}

func TestDistanceKm(t *testing.T) {
	a := domain.Location{Latitude: 17.4699, Longitude: 78.3578}
	b := domain.Location{Latitude: 17.3850, Longitude: 78.4867}

	same, err := DistanceKm(a, a)
	if err != nil || same != 0 {
		t.Fatalf("expected zero distance, got %v (err %v)", same, err)
	}

	ab, _ := DistanceKm(a, b)
	ba, _ := DistanceKm(b, a)
	if ab != ba {
		t.Fatalf("expected symmetric distance, got %v and %v", ab, ba)
	}
	if ab < 16 || ab > 18 {
		t.Fatalf("expected roughly 16.7 km, got %v", ab)
	}

	// One degree of latitude along a meridian.
	d, _ := DistanceKm(domain.Location{}, domain.Location{Latitude: 1})
	if math.Abs(d-111.19) > 0.01 {
		t.Fatalf("expected 111.19 km per degree, got %v", d)
	}
}

func TestDistanceKmInvalidCoordinate(t *testing.T) {
	cases := []domain.Location{
		{Latitude: 91},
		{Longitude: -181},
		{Latitude: math.NaN()},
		{Longitude: math.Inf(1)},
	}
	for _, c := range cases {
		if _, err := DistanceKm(c, domain.Location{}); !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Fatalf("expected invalid coordinate for %+v, got %v", c, err)
		}
	}
}

func TestNearestBranch(t *testing.T) {
	p := domain.Location{Latitude: 17.4480, Longitude: 78.3900}
	b, dist, err := NearestBranch(p, branches)
	if err != nil {
		t.Fatalf("nearest branch: %v", err)
	}
	if b.Name != "Madhapur" {
		t.Fatalf("expected Madhapur, got %s", b.Name)
	}
	if dist > 1 {
		t.Fatalf("expected distance under 1 km, got %v", dist)
	}

	if _, _, err := NearestBranch(p, nil); !errors.Is(err, domain.ErrNoBranches) {
		t.Fatalf("expected ErrNoBranches, got %v", err)
	}
}

func TestNearestBranchTieGoesToFirst(t *testing.T) {
	loc := domain.Location{Latitude: 10, Longitude: 10}
	dir := []domain.Branch{{Name: "first", Location: loc}, {Name: "second", Location: loc}}
	b, _, _ := NearestBranch(domain.Location{Latitude: 10.1, Longitude: 10}, dir)
	if b.Name != "first" {
		t.Fatalf("expected first branch on tie, got %s", b.Name)
	}
}

func TestIsDeliverable(t *testing.T) {
	p := domain.Location{Latitude: 17.3850, Longitude: 78.4867}
	near, dist, _ := NearestBranch(p, branches)

	for _, radius := range []float64{1, dist, 50} {
		ok, b, d, err := IsDeliverable(p, branches, radius)
		if err != nil {
			t.Fatalf("is deliverable: %v", err)
		}
		if b.Name != near.Name || d != dist {
			t.Fatalf("expected same nearest branch regardless of radius, got %s", b.Name)
		}
		if ok != (dist <= radius) {
			t.Fatalf("radius %v: expected deliverable=%v", radius, dist <= radius)
		}
	}
}
