package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rca-cli/internal/aggregate"
)

// SummarySheet is the worksheet name of the XLSX summary.
const SummarySheet = "Summary"

// RollupHeader returns the summary column names.
func RollupHeader() []string {
	h := []string{"Unit Size", "Tag", "Competitor"}
	for _, series := range []string{"In Store", "Asking UnAdj", "Asking Adj"} {
		for m := time.January; m <= time.December; m++ {
			h = append(h, m.String()[:3]+" "+series)
		}
	}
	for _, series := range []string{"In Store", "Asking UnAdj", "Asking Adj"} {
		for _, n := range aggregate.TrailingMonths {
			h = append(h, fmt.Sprintf("T-%d %s", n, series))
		}
	}
	return append(h, "Adjustment %")
}

// RollupRows flattens the rollup into summary lines. Each group is
// followed by a blank separator line.
func RollupRows(res *aggregate.Result) [][]string {
	if res == nil {
		return nil
	}
	width := len(RollupHeader())
	var out [][]string
	for _, g := range res.Groups {
		for _, r := range g.Rows {
			out = append(out, rollupLine(g, r))
		}
		out = append(out, make([]string, width))
	}
	return out
}

func rollupLine(g aggregate.Group, r aggregate.Row) []string {
	line := []string{g.Size, g.Tag, r.Label}
	for _, m := range r.Monthly {
		line = append(line, Money(m.InStore))
	}
	for _, m := range r.Monthly {
		line = append(line, Money(m.Asking))
	}
	for _, m := range r.Monthly {
		line = append(line, Money(m.AskingAdj))
	}
	for i := range aggregate.TrailingMonths {
		line = append(line, Money(trailing(r, i).InStore))
	}
	for i := range aggregate.TrailingMonths {
		line = append(line, Money(trailing(r, i).Asking))
	}
	for i := range aggregate.TrailingMonths {
		line = append(line, Money(trailing(r, i).AskingAdj))
	}
	return append(line, Percent(r.Adjustment))
}

func trailing(r aggregate.Row, i int) aggregate.Cell {
	if i < len(r.Trailing) {
		return r.Trailing[i]
	}
	return aggregate.Cell{}
}

// WriteRollupCSV writes the grouped summary report.
func WriteRollupCSV(w io.Writer, res *aggregate.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RollupHeader()); err != nil {
		return eris.Wrap(err, "export: write summary header")
	}
	if err := cw.WriteAll(RollupRows(res)); err != nil {
		return eris.Wrap(err, "export: write summary rows")
	}
	return nil
}

// WriteRollupXLSX writes the grouped summary report as a workbook with a
// single sheet.
func WriteRollupXLSX(path string, res *aggregate.Result) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(sheet, RollupHeader())
	for _, line := range RollupRows(res) {
		addRow(sheet, line)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
