// Package bytesize converts between byte counts and human-oriented size
// expressions such as "350", "125.2 K", "1.5 MiB", or "3 Mb".
//
// Parse understands both IEC binary prefixes (Ki, Mi, Gi, ...) and SI
// decimal prefixes (k, M, G, ...), an optional unit letter ("B" or the
// octet "o" for bytes, a lowercase "b" for bits), and the historical
// bare "K", which always meant 1024. Human and Format render a byte
// count back into a short, aligned figure.
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// A Prefix is an SI (or IEC) prefix, with its name and its multiplier.
type Prefix struct {
	Name       string
	Multiplier uint64
}

// SIPrefixes are the decimal prefixes, in increasing order of
// magnitude, up to the largest one whose multiplier fits in a uint64.
var SIPrefixes []Prefix

func init() {
	SIPrefixes = []Prefix{
		{"", 1},
		{"k", 1e3},
		{"M", 1e6},
		{"G", 1e9},
		{"T", 1e12},
		{"P", 1e15},
		{"E", 1e18},
	}
}

// IECPrefixes are the binary prefixes, in increasing order of
// magnitude, up to the largest one whose multiplier fits in a uint64.
var IECPrefixes []Prefix

func init() {
	IECPrefixes = []Prefix{
		{"", 1 << (10 * 0)},
		{"Ki", 1 << (10 * 1)},
		{"Mi", 1 << (10 * 2)},
		{"Gi", 1 << (10 * 3)},
		{"Ti", 1 << (10 * 4)},
		{"Pi", 1 << (10 * 5)},
		{"Ei", 1 << (10 * 6)},
	}
}

// multipliers maps every prefix Parse accepts to its value. The values
// are float64 so that Zi and Yi, which overflow uint64, can still be
// recognized; a parsed size must nevertheless fit in a uint64.
var multipliers map[string]float64

func init() {
	multipliers = make(map[string]float64)
	for _, p := range SIPrefixes[1:] {
		multipliers[p.Name] = float64(p.Multiplier)
	}
	for _, p := range IECPrefixes[1:] {
		multipliers[p.Name] = float64(p.Multiplier)
	}
	multipliers["Z"] = 1e21
	multipliers["Y"] = 1e24
	multipliers["Zi"] = 1 << (10 * 7)
	multipliers["Yi"] = 1 << (10 * 8)
}

// Parse converts a size expression into a byte count.
//
// An expression is a non-negative number (decimal fractions allowed),
// optional whitespace, and an optional unit word. The unit word is a
// prefix from SIPrefixes or IECPrefixes (case-sensitive, so "M" is
// mega and "Mi" is mebi), optionally followed by "B" or "o" for bytes
// or "b" for bits. A bare "K" is accepted as an alias for "Ki". Bit
// counts are converted to bytes, rounding up.
func Parse(s string) (uint64, error) {
	rest := strings.TrimSpace(s)

	i := 0
	dot := false
	for i < len(rest) && (isDigit(rest[i]) || (rest[i] == '.' && !dot)) {
		if rest[i] == '.' {
			dot = true
		}
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q: expected a leading number", s)
	}
	value, err := strconv.ParseFloat(rest[:i], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %v", s, err)
	}

	word := strings.TrimSpace(rest[i:])
	for j := 0; j < len(word); j++ {
		if !isAlpha(word[j]) {
			return 0, fmt.Errorf("invalid size %q: unexpected trailing %q", s, word[j:])
		}
	}

	bits := false
	switch {
	case strings.HasSuffix(word, "b"):
		bits = true
		word = word[:len(word)-1]
	case strings.HasSuffix(word, "B"), strings.HasSuffix(word, "o"):
		word = word[:len(word)-1]
	}

	// "K" predates the IEC prefixes and always meant 1024.
	if word == "K" {
		word = "Ki"
	}

	multiplier := 1.0
	if word != "" {
		m, ok := multipliers[word]
		if !ok {
			return 0, fmt.Errorf("invalid size %q: unknown prefix %q", s, word)
		}
		multiplier = m
	}

	value *= multiplier
	if bits {
		value = math.Ceil(value / 8)
	}
	if value >= 1<<64 {
		return 0, fmt.Errorf("size %q does not fit in 64 bits", s)
	}
	return uint64(value), nil
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isAlpha(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// Human formats a value, aligned, in `len(unit) + 10` or fewer
// characters (except for extremely large numbers), returning the
// number and the prefixed unit separately.
func Human(n uint64, prefixes []Prefix, unit string) (string, string) {
	prefix := prefixes[0]
	wholePart := n
	for _, p := range prefixes {
		w := n / p.Multiplier
		if w >= 1 {
			wholePart = w
			prefix = p
		}
	}

	if prefix.Multiplier == 1 {
		return fmt.Sprintf("%d", n), unit
	} else {
		mantissa := float64(n) / float64(prefix.Multiplier)
		var format string

		if wholePart >= 100 {
			// `mantissa` can actually be up to 1023.999.
			format = "%.0f"
		} else if wholePart >= 10 {
			format = "%.1f"
		} else {
			format = "%.2f"
		}
		return fmt.Sprintf(format, mantissa), prefix.Name + unit
	}
}

// Format is Human with the number and unit joined by a space.
func Format(n uint64, prefixes []Prefix, unit string) string {
	number, unit := Human(n, prefixes, unit)
	return number + " " + unit
}
