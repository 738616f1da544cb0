package metadata

import (
	"github.com/golang/geo/s2"

	"github.com/sells-group/rca-cli/internal/model"
)

// earthRadiusMiles is the mean Earth radius.
const earthRadiusMiles = 3958.8

// Distance returns the great-circle distance in miles between two entities,
// or false when either location is unknown.
func Distance(a, b model.EntityInfo) (float64, bool) {
	if !a.HasLocation() || !b.HasLocation() {
		return 0, false
	}
	pa := s2.LatLngFromDegrees(*a.Latitude, *a.Longitude)
	pb := s2.LatLngFromDegrees(*b.Latitude, *b.Longitude)
	return pa.Distance(pb).Radians() * earthRadiusMiles, true
}

// FillDistances sets Distance on every comparator that lacks one, measured
// from the subject. The subject itself gets 0.
func FillDistances(subject model.EntityInfo, infos []model.EntityInfo) {
	for i := range infos {
		if infos[i].ID == subject.ID {
			zero := 0.0
			infos[i].Distance = &zero
			continue
		}
		if infos[i].Distance != nil {
			continue
		}
		if d, ok := Distance(subject, infos[i]); ok {
			infos[i].Distance = &d
		}
	}
}
