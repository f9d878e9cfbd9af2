package catalog

import (
	"math"
	"sort"

	"github.com/lalith-99/bookshare/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two points in degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// sortByDistance measures from origin to each owner, rounded to 0.1 km. An
// owner at 0,0 has never set a location.
func sortByDistance(books []models.BookListing, origin Origin) {
	for i := range books {
		b := &books[i]
		b.DistanceKm = nil
		if b.OwnerLat == 0 || b.OwnerLng == 0 {
			continue
		}
		d := math.Round(HaversineKm(origin.Lat, origin.Lng, b.OwnerLat, b.OwnerLng)*10) / 10
		b.DistanceKm = &d
	}
	sort.SliceStable(books, func(i, j int) bool {
		di, dj := books[i].DistanceKm, books[j].DistanceKm
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
}
