package merge

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/pkg/stortrack"
)

var (
	sizeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[xX]\s*(\d+(?:\.\d+)?)(?:\s*[xX]\s*(\d+(?:\.\d+)?))?`)
	// "cc" only as a standalone token; as a bare substring it would match
	// words like "access".
	ccRe = regexp.MustCompile(`\bcc\b`)
)

// ParseFeatures maps a free-text unit description onto feature flags by
// case-insensitive substring matching.
func ParseFeatures(text string) model.FeatureFlags {
	t := strings.ToLower(text)
	return model.FeatureFlags{
		ClimateControlled:  (strings.Contains(t, "climate") && !strings.Contains(t, "non-climate")) || ccRe.MatchString(t),
		HumidityControlled: strings.Contains(t, "humidity"),
		DriveUp:            strings.Contains(t, "drive"),
		Indoor:             strings.Contains(t, "inside") || strings.Contains(t, "indoor"),
		OutdoorAccess:      strings.Contains(t, "outdoor"),
		FirstFloor:         strings.Contains(t, "ground") || strings.Contains(t, "first floor"),
		Elevator:           strings.Contains(t, "elevator"),
	}
}

// ParseSize extracts width, length and optional height from "W x L[ x H]".
func ParseSize(label string) (width, length, height *float64, ok bool) {
	m := sizeRe.FindStringSubmatch(label)
	if m == nil {
		return nil, nil, nil, false
	}
	w, _ := strconv.ParseFloat(m[1], 64)
	l, _ := strconv.ParseFloat(m[2], 64)
	width, length = &w, &l
	if m[3] != "" {
		h, _ := strconv.ParseFloat(m[3], 64)
		height = &h
	}
	return width, length, height, true
}

// FromRemote flattens historicaldata payloads into canonical records tagged
// as remote. Price points with an unreadable date are dropped and counted.
func FromRemote(stores []stortrack.HistoricalStore, infos map[int]model.EntityInfo) ([]model.CanonicalRecord, Diagnostics) {
	var (
		out  []model.CanonicalRecord
		diag Diagnostics
	)
	for _, s := range stores {
		name, address := s.StoreName, s.Address
		var distance *float64
		if info, ok := infos[s.StoreID]; ok {
			if info.Name != "" {
				name = info.Name
			}
			if info.Address != "" {
				address = info.Address
			}
			distance = info.Distance
		}

		for _, u := range s.UnitTypes {
			flags := ParseFeatures(u.Feature)
			w, l, h, _ := ParseSize(u.Size)
			for _, p := range u.Prices {
				day, err := model.ParseDate(p.Date)
				if err != nil {
					diag.BadDate++
					continue
				}
				out = append(out, model.CanonicalRecord{
					RateRecord: model.RateRecord{
						EntityID:          s.StoreID,
						SpaceType:         u.Type,
						SizeLabel:         u.Size,
						Width:             w,
						Length:            l,
						Height:            h,
						RegularPrice:      p.Regular,
						OnlinePrice:       p.Online,
						PromoText:         p.Promo,
						Date:              day,
						Flags:             flags,
						FeatureText:       u.Feature,
						ClassificationTag: ClassificationTag(flags),
						Source:            model.SourceRemote,
					},
					StoreName: name,
					Address:   address,
					Distance:  distance,
				})
			}
		}
	}
	return out, diag
}
