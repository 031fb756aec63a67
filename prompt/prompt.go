// Package prompt implements simple interactive questions for
// command-line programs.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// An Answer selects what an empty reply to a question means.
type Answer int

const (
	// NoDefault forces the user to type an explicit answer.
	NoDefault Answer = iota
	// DefaultYes treats a bare Enter as "yes".
	DefaultYes
	// DefaultNo treats a bare Enter as "no".
	DefaultNo
)

// suffix is the hint shown after the question, with the default answer
// capitalized.
func (a Answer) suffix() string {
	switch a {
	case DefaultYes:
		return "[Y/n]"
	case DefaultNo:
		return "[y/N]"
	default:
		return "[y/n]"
	}
}

// A Prompter asks questions on Out and reads answers from In. The zero
// value uses standard input and output. A Prompter buffers In, so use
// one Prompter per input source rather than one per question.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	br *bufio.Reader
}

func (p *Prompter) reader() *bufio.Reader {
	if p.br == nil {
		in := p.In
		if in == nil {
			in = os.Stdin
		}
		p.br = bufio.NewReader(in)
	}
	return p.br
}

func (p *Prompter) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

// YesNo asks a yes/no question and repeats it until the answer is
// recognizable. "y" and "yes" (any case) answer true, "n" and "no"
// answer false. An empty reply picks the default, which is shown as
// the capitalized letter in the prompt suffix; with NoDefault an empty
// reply re-asks. Exhausting the input is an error.
func (p *Prompter) YesNo(question string, def Answer) (bool, error) {
	br := p.reader()
	for {
		if _, err := fmt.Fprintf(p.out(), "%s %s ", question, def.suffix()); err != nil {
			return false, err
		}

		line, err := br.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			switch def {
			case DefaultYes:
				return true, nil
			case DefaultNo:
				return false, nil
			}
		}

		if err != nil {
			// Input ended on an unrecognized answer.
			if errors.Is(err, io.EOF) {
				return false, io.ErrUnexpectedEOF
			}
			return false, err
		}
	}
}

// Default prompts on standard input and output.
var Default = &Prompter{}

// YesNo asks a yes/no question on the Default prompter.
func YesNo(question string, def Answer) (bool, error) {
	return Default.YesNo(question, def)
}
