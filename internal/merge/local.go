// Package merge turns local and remote rate observations into one
// deduplicated canonical record set.
package merge

import (
	"strings"

	"github.com/sells-group/rca-cli/internal/model"
)

// Access and climate labels used in classification tags.
const (
	AccessDriveUp  = "Drive-Up"
	AccessElevator = "Elevator"
	AccessGround   = "Ground Level"

	ClimateControlled = "Climate Controlled"
	ClimateHumidity   = "Humidity Controlled"
	ClimateNone       = "Non-Climate"
)

// ClassificationTag derives "{access} / {climate}" from feature flags. Any
// vehicle flag counts as drive-up access.
func ClassificationTag(f model.FeatureFlags) string {
	access := AccessGround
	switch {
	case f.DriveUp || f.AnyVehicle():
		access = AccessDriveUp
	case f.Elevator:
		access = AccessElevator
	}

	climate := ClimateNone
	switch {
	case f.ClimateControlled:
		climate = ClimateControlled
	case f.HumidityControlled:
		climate = ClimateHumidity
	}
	return access + " / " + climate
}

// Amenities builds the display feature string for a local record.
func Amenities(f model.FeatureFlags) string {
	var out []string
	if f.ClimateControlled {
		out = append(out, "Climate Controlled")
	}
	if f.OutdoorAccess {
		out = append(out, "Outdoor Access")
	} else {
		out = append(out, "Indoor Access")
	}
	if f.Power {
		out = append(out, "Power")
	}
	if f.Covered {
		out = append(out, "Covered")
	} else {
		out = append(out, "Not Covered")
	}
	switch {
	case f.DriveUp:
		out = append(out, "Drive Up Access")
	case f.Elevator:
		out = append(out, "Elevator Access")
	case !f.AnyVehicle():
		out = append(out, "Ground Floor Access")
	}
	if f.Car {
		out = append(out, "Vehicle Parking")
	}
	if f.RV {
		out = append(out, "RV Parking")
	}
	if f.Boat {
		out = append(out, "Boat Parking")
	}
	if f.OtherVehicle {
		out = append(out, "Other Parking")
	}
	return strings.Join(out, ", ")
}

// FromLocal adapts cache rows, attaching tag, amenities and site details.
func FromLocal(recs []model.RateRecord, infos map[int]model.EntityInfo) []model.CanonicalRecord {
	out := make([]model.CanonicalRecord, 0, len(recs))
	for _, r := range recs {
		r.Source = model.SourceLocal
		r.Date = model.Day(r.Date)
		r.ClassificationTag = ClassificationTag(r.Flags)
		r.FeatureText = Amenities(r.Flags)

		c := model.CanonicalRecord{RateRecord: r}
		if info, ok := infos[r.EntityID]; ok {
			c.StoreName = info.Name
			c.Address = info.Address
			c.Distance = info.Distance
		}
		out = append(out, c)
	}
	return out
}
