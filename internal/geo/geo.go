// Package geo resolves delivery eligibility by great-circle distance.
package geo

import (
	"math"

	"chatcommerce/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Validate rejects non-finite or out-of-range coordinates.
func Validate(p domain.Location) error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return domain.ErrInvalidCoordinate
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return domain.ErrInvalidCoordinate
	}
	return nil
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b domain.Location) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h))), nil
}

// NearestBranch scans the directory and returns the closest branch. Ties go to
// the branch listed first.
func NearestBranch(p domain.Location, branches []domain.Branch) (domain.Branch, float64, error) {
	if err := Validate(p); err != nil {
		return domain.Branch{}, 0, err
	}
	if len(branches) == 0 {
		return domain.Branch{}, 0, domain.ErrNoBranches
	}
	best := -1
	bestDist := math.Inf(1)
	for i, b := range branches {
		d, err := DistanceKm(p, b.Location)
		if err != nil {
			return domain.Branch{}, 0, err
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return branches[best], bestDist, nil
}

// IsDeliverable reports whether the nearest branch lies within radiusKm.
func IsDeliverable(p domain.Location, branches []domain.Branch, radiusKm float64) (bool, domain.Branch, float64, error) {
	branch, dist, err := NearestBranch(p, branches)
	if err != nil {
		return false, domain.Branch{}, 0, err
	}
	return dist <= radiusKm, branch, dist, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
