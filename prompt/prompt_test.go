package prompt_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/subpipe/subpipe/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYesNoAnswers(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		input string
		def   prompt.Answer
		want  bool
	}{
		{"y\n", prompt.NoDefault, true},
		{"YES\n", prompt.NoDefault, true},
		{" yes \n", prompt.NoDefault, true},
		{"n\n", prompt.NoDefault, false},
		{"No\n", prompt.NoDefault, false},
		{"\n", prompt.DefaultYes, true},
		{"\n", prompt.DefaultNo, false},
		{"n\n", prompt.DefaultYes, false},
		{"y\n", prompt.DefaultNo, true},
	} {
		p := &prompt.Prompter{In: strings.NewReader(tt.input), Out: io.Discard}
		got, err := p.YesNo("Proceed?", tt.def)
		if assert.NoErrorf(t, err, "input %q with default %v", tt.input, tt.def) {
			assert.Equalf(t, tt.want, got, "input %q with default %v", tt.input, tt.def)
		}
	}
}

func TestYesNoReprompts(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := &prompt.Prompter{In: strings.NewReader("maybe\n\nyes\n"), Out: &out}

	got, err := p.YesNo("Continue?", prompt.NoDefault)
	require.NoError(t, err)
	assert.True(t, got)

	// "maybe" and the empty reply were both rejected.
	assert.Equal(t, 3, strings.Count(out.String(), "Continue? [y/n] "))
}

func TestYesNoSuffixes(t *testing.T) {
	t.Parallel()

	for def, suffix := range map[prompt.Answer]string{
		prompt.NoDefault:  "[y/n]",
		prompt.DefaultYes: "[Y/n]",
		prompt.DefaultNo:  "[y/N]",
	} {
		var out bytes.Buffer
		p := &prompt.Prompter{In: strings.NewReader("y\n"), Out: &out}
		_, err := p.YesNo("Sure?", def)
		require.NoError(t, err)
		assert.Equal(t, "Sure? "+suffix+" ", out.String())
	}
}

func TestYesNoInputExhausted(t *testing.T) {
	t.Parallel()

	p := &prompt.Prompter{In: strings.NewReader(""), Out: io.Discard}
	_, err := p.YesNo("Anyone there?", prompt.DefaultYes)
	assert.ErrorIs(t, err, io.EOF)

	// A final line with no newline is still an answer.
	p = &prompt.Prompter{In: strings.NewReader("yes"), Out: io.Discard}
	got, err := p.YesNo("Still there?", prompt.NoDefault)
	require.NoError(t, err)
	assert.True(t, got)

	// An unrecognized final answer cannot be re-asked.
	p = &prompt.Prompter{In: strings.NewReader("maybe"), Out: io.Discard}
	_, err = p.YesNo("Really?", prompt.NoDefault)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPrompterBuffersAcrossQuestions(t *testing.T) {
	t.Parallel()

	p := &prompt.Prompter{In: strings.NewReader("y\nn\n"), Out: io.Discard}

	first, err := p.YesNo("First?", prompt.NoDefault)
	require.NoError(t, err)
	second, err := p.YesNo("Second?", prompt.NoDefault)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}
