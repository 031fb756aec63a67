package timespan_test

import (
	"testing"
	"time"

	"github.com/subpipe/subpipe/timespan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	for _, tt := range []struct {
		expr string
		want time.Duration
	}{
		{"30", 30 * time.Second},
		{"0", 0},
		{"4 4", 8 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"90m", 90 * time.Minute},
		{"1h 30m", 90 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"1H 30M", 90 * time.Minute},
		{"1.5h", 90 * time.Minute},
		{"2 hours", 2 * time.Hour},
		{"1 day", timespan.Day},
		{"3 days", 3 * timespan.Day},
		{"0.5 weeks", 84 * time.Hour},
		{"2 workweeks", 2 * timespan.Workweek},
		{"1 fortnight", timespan.Fortnight},
		{"2 months", 2 * timespan.Month},
		{"1 year", timespan.Year},
		{"1 leapyear", timespan.LeapYear},
		{"1 o", timespan.Workweek},
		{"1 b", timespan.Month},
		{"1 l", timespan.LeapYear},
		{"1 y", timespan.Year},
		{"1 f", timespan.Fortnight},
		{"1 w", timespan.Week},
		{"5:00", 5 * time.Minute},
		{":30", 30 * time.Second},
		{"1:00:00", time.Hour},
		{"2:03:04:05", 2*timespan.Day + 3*time.Hour + 4*time.Minute + 5*time.Second},
		{"5:12:05:02 1d", 6*timespan.Day + 12*time.Hour + 5*time.Minute + 2*time.Second},
		{"5:00 2h", 2*time.Hour + 5*time.Minute},
		{"10s 5", 15 * time.Second},
		// A unit with no pending number adds nothing.
		{"h", 0},
	} {
		got, err := timespan.Parse(tt.expr)
		if assert.NoErrorf(err, "parsing %q", tt.expr) {
			assert.Equalf(tt.want, got, "value of %q", tt.expr)
		}
	}
}

func TestParseErrors(t *testing.T) {
	assert := assert.New(t)

	for _, expr := range []string{
		"",
		"   ",
		"1 parsec",
		"5 hrs",
		"-5",
		"1..2",
		".",
		"x",
		"1:2:3:4:5",
	} {
		_, err := timespan.Parse(expr)
		assert.Errorf(err, "parsing %q", expr)
	}
}

func TestParserCustomUnits(t *testing.T) {
	assert := assert.New(t)

	p := timespan.NewParser()
	p.AddUnit("sprint", 2*timespan.Workweek, "sprints")

	got, err := p.Parse("2 sprints")
	require.NoError(t, err)
	assert.Equal(4*timespan.Workweek, got)

	got, err = p.Parse("1 SPRINT")
	require.NoError(t, err)
	assert.Equal(2*timespan.Workweek, got)

	p.DelUnit("sprint")
	_, err = p.Parse("1 sprint")
	assert.Error(err)
	_, err = p.Parse("1 sprints")
	assert.NoError(err, "aliases survive deleting the primary name")
}

func TestParserIsolation(t *testing.T) {
	assert := assert.New(t)

	p := timespan.NewParser()
	p.DelUnit("h")
	_, err := p.Parse("1h")
	assert.Error(err)

	// The package-level table is unaffected.
	got, err := timespan.Parse("1h")
	assert.NoError(err)
	assert.Equal(time.Hour, got)
}
