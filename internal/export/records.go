package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rca-cli/internal/model"
)

// recordRow is one line of the data report.
type recordRow struct {
	StoreName    string `csv:"Store Name"`
	Address      string `csv:"ADDRESS"`
	SquareFeet   string `csv:"SF"`
	YearBuilt    string `csv:"Year Built"`
	UnitSize     string `csv:"UNIT SIZE"`
	UnitType     string `csv:"UNIT TYPE"`
	UnitFeature  string `csv:"UNIT FEATURE"`
	RegularPrice string `csv:"REGULAR PRICE"`
	OnlinePrice  string `csv:"ONLINE PRICE"`
	PctDiff      string `csv:"% Difference"`
	Date         string `csv:"Price Capture Date"`
	Promotion    string `csv:"PROMOTION"`
	Tag          string `csv:"TAG"`
}

func newRecordRow(r model.CanonicalRecord, meta *model.EntityMetadata) recordRow {
	row := recordRow{
		StoreName:    r.StoreName,
		Address:      r.Address,
		UnitSize:     r.SizeLabel,
		UnitType:     r.SpaceType,
		UnitFeature:  r.FeatureText,
		RegularPrice: Money(r.RegularPrice),
		OnlinePrice:  Money(r.OnlinePrice),
		Date:         model.FormatDate(r.Date),
		Promotion:    r.PromoText,
		Tag:          r.ClassificationTag,
	}
	if r.PctDifference != nil {
		row.PctDiff = fmt.Sprintf("%.1f%%", *r.PctDifference)
	}
	if meta != nil {
		row.SquareFeet = SquareFeet(meta.SquareFootage)
		if meta.YearBuilt != nil {
			row.YearBuilt = strconv.Itoa(*meta.YearBuilt)
		}
	}
	return row
}

// WriteRecordsCSV writes the flat per-record report in the given order.
// meta may be nil.
func WriteRecordsCSV(w io.Writer, recs []model.CanonicalRecord, meta map[int]*model.EntityMetadata) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(recordRow{}); err != nil {
		return eris.Wrap(err, "export: write records header")
	}
	for _, r := range recs {
		if err := enc.Encode(newRecordRow(r, meta[r.EntityID])); err != nil {
			return eris.Wrapf(err, "export: write record for entity %d", r.EntityID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush records")
	}
	return nil
}
