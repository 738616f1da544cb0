package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/internal/pipeline"
)

// DefaultWindowMonths is the analysis window when a run file names neither
// dates nor a month count.
const DefaultWindowMonths = 12

// runFile is the YAML description of one analysis.
type runFile struct {
	Subject     model.EntityInfo             `yaml:"subject"`
	Comparators []model.EntityInfo           `yaml:"comparators"`
	Window      windowConfig                   `yaml:"window"`
	Rankings    map[int]model.Ranking        `yaml:"rankings,omitempty"`
	Factors     model.AdjustmentFactors      `yaml:"factors,omitempty"`
	Metadata    map[int]model.EntityMetadata `yaml:"metadata,omitempty"`
	Names       map[int]string               `yaml:"names,omitempty"`
	TagCodes    map[string]string            `yaml:"tag_codes,omitempty"`
	RawTags     bool                         `yaml:"raw_tags,omitempty"`
	// SpaceType overrides analysis.space_type; "all" disables the filter.
	SpaceType string `yaml:"space_type,omitempty"`
}

// windowConfig is either explicit dates or a number of months ending on the
// run date.
type windowConfig struct {
	Start  string `yaml:"start,omitempty"`
	End    string `yaml:"end,omitempty"`
	Months int    `yaml:"months,omitempty"`
}

func (w windowConfig) resolve(today time.Time) (model.DateRange, error) {
	end := model.Day(today)
	if w.End != "" {
		d, err := model.ParseDate(w.End)
		if err != nil {
			return model.DateRange{}, eris.Wrap(err, "window end")
		}
		end = d
	}
	if w.Start != "" {
		start, err := model.ParseDate(w.Start)
		if err != nil {
			return model.DateRange{}, eris.Wrap(err, "window start")
		}
		r := model.NewDateRange(start, end)
		if !r.Valid() {
			return model.DateRange{}, eris.Errorf("window start %s is after end %s", w.Start, model.FormatDate(end))
		}
		return r, nil
	}
	months := w.Months
	if months <= 0 {
		months = DefaultWindowMonths
	}
	return model.NewDateRange(end.AddDate(0, -months, 1), end), nil
}

func readRunFile(path string) (*runFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open run file")
	}
	defer f.Close() //nolint:errcheck
	return decodeRunFile(f)
}

func decodeRunFile(r io.Reader) (*runFile, error) {
	var rf runFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, eris.Wrap(err, "parse run file")
	}
	return &rf, nil
}

// input converts the run file into a pipeline input. defaultSpaceType
// applies when the file does not set one.
func (rf *runFile) input(today time.Time, defaultSpaceType string) (pipeline.Input, error) {
	window, err := rf.Window.resolve(today)
	if err != nil {
		return pipeline.Input{}, err
	}

	spaceType := defaultSpaceType
	if rf.SpaceType != "" {
		spaceType = rf.SpaceType
	}
	if strings.EqualFold(spaceType, "all") {
		spaceType = ""
	}

	in := pipeline.Input{
		Subject:     rf.Subject,
		Comparators: rf.Comparators,
		Window:      window,
		Rankings:    rf.Rankings,
		Factors:     rf.Factors,
		Metadata:    rf.Metadata,
		Names:       rf.Names,
		TagCodes:    rf.TagCodes,
		RawTags:     rf.RawTags,
		SpaceType:   spaceType,
	}
	if err := in.Validate(); err != nil {
		return pipeline.Input{}, err
	}
	return in, nil
}

func writeRunFile(w io.Writer, rf *runFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rf); err != nil {
		return eris.Wrap(err, "encode run file")
	}
	return eris.Wrap(enc.Close(), "encode run file")
}
