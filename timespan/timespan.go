// Package timespan parses human expressions of elapsed time, such as
// "90m", "1h 30m", "2 workweeks", or "5:12:05:02", into time.Duration
// values.
//
// An expression is a sequence of terms separated by whitespace, where
// each term is a number (fractions allowed), a number followed by a
// unit name, or a colon-separated days:hours:minutes:seconds value with
// the leading fields optional. Terms accumulate, so "1h 30m" is ninety
// minutes and "4 4" is eight seconds. A number with no unit means
// seconds. Matching is case-insensitive.
package timespan

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Calendar units used by the default table. Months and years are the
// fixed civil approximations (30 and 365 days), not calendar
// arithmetic.
const (
	Day       = 24 * time.Hour
	Workweek  = 5 * Day
	Week      = 7 * Day
	Fortnight = 14 * Day
	Month     = 30 * Day
	Year      = 365 * Day
	LeapYear  = 366 * Day
)

// defaultUnits maps every spelling the default table accepts. Each
// unit has a long form, a plural, and a single-letter abbreviation;
// the letters for month and leapyear are "b" and "l" because "m" and
// "y" are taken.
var defaultUnits = map[string]time.Duration{
	"leapyear":   LeapYear,
	"leapyears":  LeapYear,
	"l":          LeapYear,
	"year":       Year,
	"years":      Year,
	"y":          Year,
	"month":      Month,
	"months":     Month,
	"b":          Month,
	"fortnight":  Fortnight,
	"fortnights": Fortnight,
	"f":          Fortnight,
	"week":       Week,
	"weeks":      Week,
	"w":          Week,
	"workweek":   Workweek,
	"workweeks":  Workweek,
	"o":          Workweek,
	"day":        Day,
	"days":       Day,
	"d":          Day,
	"hour":       time.Hour,
	"hours":      time.Hour,
	"h":          time.Hour,
	"minute":     time.Minute,
	"minutes":    time.Minute,
	"m":          time.Minute,
	"second":     time.Second,
	"seconds":    time.Second,
	"s":          time.Second,
}

// colonUnits are the field weights of the colon form, most significant
// first. The last weight belongs to the field after the final colon,
// so an expression may contain at most len(colonUnits)-1 colons.
var colonUnits = [...]time.Duration{Day, time.Hour, time.Minute, time.Second}

// A Parser converts time expressions to durations using a configurable
// unit table.
type Parser struct {
	units map[string]time.Duration
}

// NewParser returns a Parser loaded with the default unit table.
func NewParser() *Parser {
	units := make(map[string]time.Duration, len(defaultUnits))
	for name, d := range defaultUnits {
		units[name] = d
	}
	return &Parser{units: units}
}

// AddUnit registers a custom unit, overriding any existing unit with
// the same name. Plural forms are not derived automatically; pass them
// as aliases if users should be able to write them. Names are matched
// case-insensitively.
func (p *Parser) AddUnit(name string, d time.Duration, aliases ...string) {
	p.units[strings.ToLower(name)] = d
	for _, a := range aliases {
		p.units[strings.ToLower(a)] = d
	}
}

// DelUnit removes a unit from the table.
func (p *Parser) DelUnit(name string) {
	delete(p.units, strings.ToLower(name))
}

// Parse converts a time expression into a duration.
func (p *Parser) Parse(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errors.New("empty time expression")
	}

	lower := strings.ToLower(s)

	maxColons := len(colonUnits) - 1
	if n := strings.Count(lower, ":"); n > maxColons {
		return 0, fmt.Errorf("invalid time %q: at most %d colons allowed", s, maxColons)
	}

	// The first colon field is chosen so that the field after the
	// final colon always lands on seconds.
	colon := maxColons - strings.Count(lower, ":")

	var (
		total     float64 // seconds
		value     float64
		acc       string
		unitMode  bool
		spaceMode bool
	)

	runes := []rune(lower)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if unitMode {
			if unicode.IsLetter(c) {
				acc += string(c)
				continue
			}
			unit, ok := p.units[acc]
			if !ok {
				return 0, fmt.Errorf("invalid time %q: unknown unit %q", s, acc)
			}
			total += value * unit.Seconds()
			value = 0
			acc = ""
			unitMode = false
			// The character that ended the unit starts the next term.
			i--
			continue
		}

		switch {
		case unicode.IsDigit(c) || c == '.':
			if spaceMode && acc != "" {
				// A bare number followed by whitespace counts as
				// seconds.
				v, err := number(s, acc)
				if err != nil {
					return 0, err
				}
				total += v
				value = 0
				acc = ""
			}
			spaceMode = false
			acc += string(c)
		case c == ':':
			if acc != "" {
				v, err := number(s, acc)
				if err != nil {
					return 0, err
				}
				value = v
			}
			total += value * colonUnits[colon].Seconds()
			colon++
			value = 0
			acc = ""
			spaceMode = false
		case unicode.IsSpace(c):
			spaceMode = true
		default:
			if acc != "" {
				v, err := number(s, acc)
				if err != nil {
					return 0, err
				}
				value = v
			}
			acc = string(c)
			spaceMode = false
			unitMode = true
		}
	}

	if unitMode {
		unit, ok := p.units[acc]
		if !ok {
			return 0, fmt.Errorf("invalid time %q: unknown unit %q", s, acc)
		}
		total += value * unit.Seconds()
	} else if acc != "" {
		v, err := number(s, acc)
		if err != nil {
			return 0, err
		}
		total += v
	}

	if total >= float64(math.MaxInt64)/float64(time.Second) {
		return 0, fmt.Errorf("time %q overflows a duration", s)
	}
	return time.Duration(math.Round(total * float64(time.Second))), nil
}

func number(expr, num string) (float64, error) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: bad number %q", expr, num)
	}
	return v, nil
}

var defaultParser = NewParser()

// Parse converts a time expression into a duration using the default
// unit table.
func Parse(s string) (time.Duration, error) {
	return defaultParser.Parse(s)
}
