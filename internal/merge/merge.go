package merge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
)

// Diagnostics counts records dropped or flagged while merging.
type Diagnostics struct {
	OutOfWindow    int `json:"out_of_window"`
	NoPrice        int `json:"no_price"`
	BadDate        int `json:"bad_date"`
	UnparsableSize int `json:"unparsable_size"`
	Duplicates     int `json:"duplicates"`
}

// Add accumulates other into d.
func (d *Diagnostics) Add(other Diagnostics) {
	d.OutOfWindow += other.OutOfWindow
	d.NoPrice += other.NoPrice
	d.BadDate += other.BadDate
	d.UnparsableSize += other.UnparsableSize
	d.Duplicates += other.Duplicates
}

// Dropped returns the number of records removed from the output.
func (d Diagnostics) Dropped() int {
	return d.OutOfWindow + d.NoPrice + d.BadDate + d.Duplicates
}

// Result is the merged, sorted record set.
type Result struct {
	Records     []model.CanonicalRecord
	LocalCount  int
	RemoteCount int
	Diagnostics Diagnostics
}

// PctDifference returns (regular-online)/regular×100 when both prices are
// present and regular is positive.
func PctDifference(regular, online *float64) *float64 {
	if regular == nil || online == nil || *regular <= 0 {
		return nil
	}
	v := (*regular - *online) / *regular * 100
	return &v
}

// Merge unions local and remote records, keeps the local copy on key
// collisions, and sorts by store name, date and size. Records outside the
// window or without any price are dropped and counted. Records whose size
// label cannot be parsed are kept but counted.
func Merge(local []model.RateRecord, remote []model.CanonicalRecord, infos map[int]model.EntityInfo, window model.DateRange) *Result {
	res := &Result{}
	seen := make(map[model.RecordKey]struct{}, len(local)+len(remote))

	add := func(c model.CanonicalRecord) {
		if !window.Contains(c.Date) {
			res.Diagnostics.OutOfWindow++
			return
		}
		if !c.HasPrice() {
			res.Diagnostics.NoPrice++
			return
		}
		key := c.Key()
		if _, dup := seen[key]; dup {
			res.Diagnostics.Duplicates++
			return
		}
		seen[key] = struct{}{}

		if _, _, _, ok := ParseSize(c.SizeLabel); !ok {
			res.Diagnostics.UnparsableSize++
		}
		c.PctDifference = PctDifference(c.RegularPrice, c.OnlinePrice)
		res.Records = append(res.Records, c)
		if c.Source == model.SourceLocal {
			res.LocalCount++
		} else {
			res.RemoteCount++
		}
	}

	// Local first so it wins every collision.
	for _, c := range FromLocal(local, infos) {
		add(c)
	}
	for _, c := range remote {
		c.Source = model.SourceRemote
		c.Date = model.Day(c.Date)
		add(c)
	}

	Sort(res.Records)

	zap.L().Debug("merge: records merged",
		zap.Int("local", res.LocalCount),
		zap.Int("remote", res.RemoteCount),
		zap.Int("duplicates", res.Diagnostics.Duplicates),
		zap.Int("dropped", res.Diagnostics.Dropped()),
	)
	return res
}

// Sort orders records by store name, date, then size label.
func Sort(recs []model.CanonicalRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.StoreName != b.StoreName {
			return a.StoreName < b.StoreName
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.SizeLabel != b.SizeLabel {
			return a.SizeLabel < b.SizeLabel
		}
		return a.EntityID < b.EntityID
	})
}
