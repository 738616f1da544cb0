// Package export writes run results as CSV and XLSX reports.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Paths are the two report files of a run.
type Paths struct {
	Data    string
	Summary string
}

// OutputPaths names the report files. With a base path the suffixes are
// appended to it (a trailing extension is dropped); otherwise the name is
// derived from the subject's city and the current time.
func OutputPaths(base, city string, now time.Time, ext string) Paths {
	if ext == "" {
		ext = ".csv"
	}
	if base == "" {
		slug := "unknown"
		if c := strings.TrimSpace(city); c != "" {
			slug = strings.ToLower(strings.ReplaceAll(c, " ", "_"))
		}
		base = fmt.Sprintf("RCA_%s_%s", slug, now.Format("20060102_150405"))
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Paths{
		Data:    base + "_data.csv",
		Summary: base + "_summary" + ext,
	}
}

var printer = message.NewPrinter(language.English)

// Money renders a price as $12.34; nil and zero render empty.
func Money(v *float64) string {
	if v == nil || *v == 0 {
		return ""
	}
	return fmt.Sprintf("$%.2f", *v)
}

// Percent renders a decimal fraction as 7.00%.
func Percent(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

// SquareFeet renders an area with thousands separators.
func SquareFeet(v *float64) string {
	if v == nil {
		return ""
	}
	return printer.Sprintf("%.0f", *v)
}
