package merge

import (
	"sort"
	"strings"

	"github.com/sells-group/rca-cli/internal/model"
)

// DefaultSpaceType is the unit type kept for analysis.
const DefaultSpaceType = "Unit"

// FilterSpaceType keeps records whose space type equals spaceType, ignoring
// case. An empty spaceType keeps everything.
func FilterSpaceType(recs []model.CanonicalRecord, spaceType string) (kept []model.CanonicalRecord, excluded int) {
	if spaceType == "" {
		return recs, 0
	}
	kept = make([]model.CanonicalRecord, 0, len(recs))
	for _, r := range recs {
		if strings.EqualFold(r.SpaceType, spaceType) {
			kept = append(kept, r)
		}
	}
	return kept, len(recs) - len(kept)
}

// SuggestCode proposes a short code for a tag or feature description:
// DUCC/DU drive-up, ECC/ENCC elevator, GLCC/GNCC ground level,
// ICC/INCC interior, otherwise CC/NCC.
func SuggestCode(text string) string {
	if text == "" {
		return "UNKNOWN"
	}
	t := strings.ToLower(text)
	climate := strings.Contains(t, "climate") && !strings.Contains(t, "non-climate")

	pick := func(cc, ncc string) string {
		if climate {
			return cc
		}
		return ncc
	}
	switch {
	case strings.Contains(t, "drive"):
		return pick("DUCC", "DU")
	case strings.Contains(t, "elevator"):
		return pick("ECC", "ENCC")
	case strings.Contains(t, "ground") || strings.Contains(t, "first floor"):
		return pick("GLCC", "GNCC")
	case strings.Contains(t, "interior"):
		return pick("ICC", "INCC")
	default:
		return pick("CC", "NCC")
	}
}

// Tags returns the distinct non-empty tags in recs, sorted.
func Tags(recs []model.CanonicalRecord) []string {
	seen := map[string]bool{}
	var tags []string
	for _, r := range recs {
		if r.ClassificationTag != "" && !seen[r.ClassificationTag] {
			seen[r.ClassificationTag] = true
			tags = append(tags, r.ClassificationTag)
		}
	}
	sort.Strings(tags)
	return tags
}

// SuggestCodes maps every tag in recs to its suggested code, then applies
// overrides (upper-cased).
func SuggestCodes(recs []model.CanonicalRecord, overrides map[string]string) map[string]string {
	codes := make(map[string]string)
	for _, tag := range Tags(recs) {
		codes[tag] = SuggestCode(tag)
	}
	for tag, code := range overrides {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			codes[tag] = code
		}
	}
	return codes
}

// ApplyTagCodes replaces each record's tag with its mapped code.
func ApplyTagCodes(recs []model.CanonicalRecord, codes map[string]string) {
	for i := range recs {
		if code, ok := codes[recs[i].ClassificationTag]; ok {
			recs[i].ClassificationTag = code
		}
	}
}

// ApplyNames overrides display names by entity id.
func ApplyNames(recs []model.CanonicalRecord, names map[int]string) {
	for i := range recs {
		if name, ok := names[recs[i].EntityID]; ok && name != "" {
			recs[i].StoreName = name
		}
	}
}
