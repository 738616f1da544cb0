package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rca-cli/internal/aggregate"
	"github.com/sells-group/rca-cli/internal/model"
)

func TestOutputPaths(t *testing.T) {
	now := time.Date(2025, time.March, 4, 9, 5, 6, 0, time.UTC)

	p := OutputPaths("", "San Antonio", now, "")
	assert.Equal(t, "RCA_san_antonio_20250304_090506_data.csv", p.Data)
	assert.Equal(t, "RCA_san_antonio_20250304_090506_summary.csv", p.Summary)

	p = OutputPaths("", " ", now, ".xlsx")
	assert.Equal(t, "RCA_unknown_20250304_090506_summary.xlsx", p.Summary)

	p = OutputPaths("out/report.csv", "Austin", now, "")
	assert.Equal(t, "out/report_data.csv", p.Data)
	assert.Equal(t, "out/report_summary.csv", p.Summary)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$99.50", Money(model.Float(99.5)))
	assert.Empty(t, Money(nil))
	assert.Empty(t, Money(model.Float(0)))
	assert.Equal(t, "7.00%", Percent(model.Float(0.07)))
	assert.Equal(t, "-2.50%", Percent(model.Float(-0.025)))
	assert.Empty(t, Percent(nil))
	assert.Equal(t, "52,340", SquareFeet(model.Float(52340)))
	assert.Empty(t, SquareFeet(nil))
}

func TestWriteRecordsCSV(t *testing.T) {
	recs := []model.CanonicalRecord{{
		RateRecord: model.RateRecord{
			EntityID:          7,
			SpaceType:         "Unit",
			SizeLabel:         "10x10",
			RegularPrice:      model.Float(120),
			OnlinePrice:       model.Float(96),
			Date:              model.NewDate(2024, time.May, 3),
			FeatureText:       "Climate Controlled",
			ClassificationTag: "ICC",
			PromoText:         "First month free",
		},
		StoreName:     "Comp A",
		Address:       "1 Main St",
		PctDifference: model.Float(20),
	}, {
		RateRecord: model.RateRecord{
			EntityID:     8,
			SizeLabel:    "5x5",
			RegularPrice: model.Float(40),
			Date:         model.NewDate(2024, time.May, 4),
		},
		StoreName: "Comp B",
	}}
	meta := map[int]*model.EntityMetadata{7: {YearBuilt: model.Int(2004), SquareFootage: model.Float(81250)}}

	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, recs, meta))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"Store Name", "ADDRESS", "SF", "Year Built", "UNIT SIZE", "UNIT TYPE", "UNIT FEATURE",
		"REGULAR PRICE", "ONLINE PRICE", "% Difference", "Price Capture Date", "PROMOTION", "TAG",
	}, rows[0])
	assert.Equal(t, []string{
		"Comp A", "1 Main St", "81,250", "2004", "10x10", "Unit", "Climate Controlled",
		"$120.00", "$96.00", "20.0%", "2024-05-03", "First month free", "ICC",
	}, rows[1])
	assert.Equal(t, "Comp B", rows[2][0])
	assert.Empty(t, rows[2][2], "no metadata")
	assert.Empty(t, rows[2][8], "no online price")
	assert.Empty(t, rows[2][9])
}

func TestWriteRecordsCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, nil, nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.True(t, strings.HasPrefix(buf.String(), "Store Name,ADDRESS"))
}

func testRollup() *aggregate.Result {
	entity := aggregate.Row{EntityID: 2, Label: "Comp A", Adjustment: model.Float(0.07)}
	entity.Monthly[0] = aggregate.Cell{InStore: model.Float(100), Asking: model.Float(90), AskingAdj: model.Float(96.3)}
	entity.Trailing = []aggregate.Cell{{InStore: model.Float(100)}, {}, {}, {Asking: model.Float(90)}}

	avg := aggregate.Row{Label: aggregate.AverageLabel, Average: true}
	avg.Monthly[0] = aggregate.Cell{InStore: model.Float(110)}

	return &aggregate.Result{Groups: []aggregate.Group{
		{Size: "10x10", Tag: "ICC", Rows: []aggregate.Row{entity, avg}},
		{Size: "10x20", Tag: "DU", Rows: []aggregate.Row{avg}},
	}}
}

func TestRollupHeader(t *testing.T) {
	h := RollupHeader()
	require.Len(t, h, 3+36+12+1)
	assert.Equal(t, "Jan In Store", h[3])
	assert.Equal(t, "Dec In Store", h[14])
	assert.Equal(t, "Jan Asking UnAdj", h[15])
	assert.Equal(t, "Jan Asking Adj", h[27])
	assert.Equal(t, "T-12 In Store", h[39])
	assert.Equal(t, "T-1 In Store", h[42])
	assert.Equal(t, "T-12 Asking Adj", h[47])
	assert.Equal(t, "Adjustment %", h[51])
}

func TestWriteRollupCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRollupCSV(&buf, testRollup()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// header, 2 rows + blank, 1 row + blank
	require.Len(t, rows, 6)

	comp := rows[1]
	assert.Equal(t, []string{"10x10", "ICC", "Comp A"}, comp[:3])
	assert.Equal(t, "$100.00", comp[3])
	assert.Equal(t, "$90.00", comp[15])
	assert.Equal(t, "$96.30", comp[27])
	assert.Equal(t, "$100.00", comp[39])
	assert.Equal(t, "$90.00", comp[46])
	assert.Equal(t, "7.00%", comp[51])

	avg := rows[2]
	assert.Equal(t, aggregate.AverageLabel, avg[2])
	assert.Equal(t, "$110.00", avg[3])
	assert.Empty(t, avg[27])
	assert.Empty(t, avg[51])

	assert.Equal(t, make([]string, 52), rows[3])
	assert.Equal(t, "10x20", rows[4][0])
}

func TestWriteRollupCSV_Nil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRollupCSV(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteRollupXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	require.NoError(t, WriteRollupXLSX(path, testRollup()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SummarySheet]
	require.True(t, ok)
	require.GreaterOrEqual(t, len(sheet.Rows), 3)
	assert.Equal(t, "Unit Size", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Comp A", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "$100.00", sheet.Rows[1].Cells[3].String())
}
