package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rca-cli/internal/model"
)

const sampleRunFile = `
subject:
  id: 101
  name: Subject Storage
  city: Austin
comparators:
  - id: 202
    name: Comp A
  - id: 303
window:
  start: "2024-01-01"
  end: "2024-12-31"
rankings:
  101:
    Location: 7
    Brand: 6
  202:
    Location: 5
factors:
  - name: Captive Market
    value: 0.02
metadata:
  202:
    year_built: 1998
    square_footage: 64000
names:
  303: Comp B
tag_codes:
  "Drive-Up / Non-Climate": DU
space_type: all
`

var today = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func TestDecodeRunFile(t *testing.T) {
	rf, err := decodeRunFile(strings.NewReader(sampleRunFile))
	require.NoError(t, err)

	in, err := rf.input(today, "Unit")
	require.NoError(t, err)

	assert.Equal(t, 101, in.Subject.ID)
	assert.Equal(t, "Austin", in.Subject.City)
	require.Len(t, in.Comparators, 2)
	assert.Equal(t, "2024-01-01..2024-12-31", in.Window.String())
	assert.Equal(t, 7, in.Rankings[101]["Location"])
	assert.InDelta(t, 0.02, in.Factors.Sum(), 1e-9)
	require.NotNil(t, in.Metadata[202].YearBuilt)
	assert.Equal(t, 1998, *in.Metadata[202].YearBuilt)
	assert.Equal(t, "Comp B", in.Names[303])
	assert.Equal(t, "DU", in.TagCodes["Drive-Up / Non-Climate"])
	assert.Empty(t, in.SpaceType, "all disables the filter")
}

func TestDecodeRunFile_UnknownField(t *testing.T) {
	_, err := decodeRunFile(strings.NewReader("subject: {id: 1}\nwindows: {}\n"))
	assert.Error(t, err)
}

func TestRunFileInput_Defaults(t *testing.T) {
	rf := &runFile{Subject: model.EntityInfo{ID: 1}}
	in, err := rf.input(today, "Unit")
	require.NoError(t, err)
	assert.Equal(t, "Unit", in.SpaceType)
	assert.Equal(t, "2024-03-16..2025-03-15", in.Window.String())
}

func TestRunFileInput_Invalid(t *testing.T) {
	rf := &runFile{}
	_, err := rf.input(today, "Unit")
	assert.Error(t, err, "subject required")

	rf = &runFile{Subject: model.EntityInfo{ID: 1}, Rankings: map[int]model.Ranking{1: {"Location": 0}}}
	_, err = rf.input(today, "Unit")
	assert.Error(t, err, "rank out of range")
}

func TestWindowConfig_Resolve(t *testing.T) {
	r, err := windowConfig{Months: 3}.resolve(today)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-16..2025-03-15", r.String())

	r, err = windowConfig{Start: "2025-01-01"}.resolve(today)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01..2025-03-15", r.String())

	r, err = windowConfig{End: "2024-06-30", Months: 1}.resolve(today)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31..2024-06-30", r.String())

	_, err = windowConfig{Start: "2025-04-01"}.resolve(today)
	assert.Error(t, err)

	_, err = windowConfig{Start: "soon"}.resolve(today)
	assert.Error(t, err)

	_, err = windowConfig{End: "later"}.resolve(today)
	assert.Error(t, err)
}

func TestWriteRunFile_RoundTrip(t *testing.T) {
	rf := &runFile{
		Subject:     model.EntityInfo{ID: 1, Name: "Subject", Distance: model.Float(0)},
		Comparators: []model.EntityInfo{{ID: 2, Name: "Comp", Distance: model.Float(1.5)}},
		Window:      windowConfig{Months: 12},
	}
	var buf bytes.Buffer
	require.NoError(t, writeRunFile(&buf, rf))

	back, err := decodeRunFile(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Comparators[0].ID)
	assert.Equal(t, 12, back.Window.Months)
	require.NotNil(t, back.Comparators[0].Distance)
	assert.InDelta(t, 1.5, *back.Comparators[0].Distance, 1e-9)
}
