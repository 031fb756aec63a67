package subpipe

import (
	"errors"
	"strings"
)

var (
	errNoClosingQuote = errors.New("no closing quotation")
	errDanglingEscape = errors.New("no character after escape")
)

// SplitWords tokenizes a command line into an argument vector using
// shell-like word splitting and nothing else: unquoted whitespace
// separates words, single quotes group text verbatim, double quotes
// group text while honoring `\"` and `\\`, and a backslash outside
// quotes escapes the next character. There is no variable, glob or
// tilde expansion of any kind.
func SplitWords(line string) ([]string, error) {
	var (
		words  []string
		cur    strings.Builder
		inWord bool
	)

	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == '\\':
			if i+1 >= len(line) {
				return nil, errDanglingEscape
			}
			cur.WriteByte(line[i+1])
			inWord = true
			i += 2

		case c == '\'':
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, errNoClosingQuote
			}
			cur.WriteString(line[i+1 : i+1+end])
			inWord = true
			i += end + 2

		case c == '"':
			i++
			closed := false
			for i < len(line) {
				d := line[i]
				if d == '\\' && i+1 < len(line) && (line[i+1] == '"' || line[i+1] == '\\') {
					cur.WriteByte(line[i+1])
					i += 2
					continue
				}
				if d == '"' {
					closed = true
					i++
					break
				}
				cur.WriteByte(d)
				i++
			}
			if !closed {
				return nil, errNoClosingQuote
			}
			inWord = true

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
			i++

		default:
			cur.WriteByte(c)
			inWord = true
			i++
		}
	}

	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
