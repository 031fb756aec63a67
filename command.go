package subpipe

import (
	"fmt"
	"sort"
	"strings"
)

// Via selects which output stream of a non-final stage feeds the next
// stage's standard input. The final stage's selector is unused; its
// terminal routing follows the pipeline-level configuration instead.
type Via int

const (
	// ViaStdout forwards standard output. Standard error follows its
	// own routing. This is the default, matching what a shell `|` does.
	ViaStdout Via = iota

	// ViaStderr forwards standard error. Standard output follows its
	// own routing.
	ViaStderr

	// ViaBoth forwards standard output and standard error merged into
	// a single stream.
	ViaBoth

	// ViaStdoutQuiet forwards standard output and discards standard
	// error.
	ViaStdoutQuiet

	// ViaStderrQuiet forwards standard error and discards standard
	// output.
	ViaStderrQuiet
)

func (v Via) String() string {
	switch v {
	case ViaStdout:
		return "stdout"
	case ViaStderr:
		return "stderr"
	case ViaBoth:
		return "both"
	case ViaStdoutQuiet:
		return "stdout-quiet"
	case ViaStderrQuiet:
		return "stderr-quiet"
	default:
		return fmt.Sprintf("via(%d)", int(v))
	}
}

func (v Via) forwardsStdout() bool {
	return v == ViaStdout || v == ViaBoth || v == ViaStdoutQuiet
}

func (v Via) forwardsStderr() bool {
	return v == ViaStderr || v == ViaBoth || v == ViaStderrQuiet
}

// Command describes one pipeline stage: an argument vector plus the
// stage-local settings applied at launch. Build one with `Cmd` or
// `CmdString`, refine it with the chainable setters, and treat it as
// immutable once its pipeline has started. The arguments are passed to
// the OS verbatim; nothing is ever shell-interpreted.
type Command struct {
	args   []string
	dir    string
	env    map[string]string
	via    Via
	stdout Stream
	stderr Stream
	uid    *int
	gid    *int
	groups []int
}

// Cmd returns a Command that runs the executable `name` with `args`.
// It panics if `name` is empty.
func Cmd(name string, args ...string) *Command {
	if name == "" {
		panic("attempt to create a command with an empty name")
	}
	return &Command{args: append([]string{name}, args...)}
}

// CmdString returns a Command built by splitting `line` into words
// with `SplitWords`.
func CmdString(line string) (*Command, error) {
	words, err := SplitWords(line)
	if err != nil {
		return nil, fmt.Errorf("splitting command %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("splitting command %q: empty command", line)
	}
	return &Command{args: words}, nil
}

// Dir sets the stage's working directory, overriding the pipeline-wide
// default.
func (c *Command) Dir(dir string) *Command {
	c.dir = dir
	return c
}

// Env overlays the given variables onto the stage's environment. Keys
// win over both the pipeline base environment and the pipeline-wide
// export set.
func (c *Command) Env(vars map[string]string) *Command {
	if c.env == nil {
		c.env = make(map[string]string, len(vars))
	}
	for k, v := range vars {
		c.env[k] = v
	}
	return c
}

// Via selects the stream forwarded to the next stage.
func (c *Command) Via(v Via) *Command {
	c.via = v
	return c
}

// Stdout routes the stage's standard output. Only valid for a stream
// the stage is not forwarding.
func (c *Command) Stdout(s Stream) *Command {
	c.stdout = s
	return c
}

// Stderr routes the stage's standard error. Only valid for a stream
// the stage is not forwarding.
func (c *Command) Stderr(s Stream) *Command {
	c.stderr = s
	return c
}

// User runs the stage as the given uid. Unix only; requires an
// appropriately privileged caller. Ignored on Windows.
func (c *Command) User(uid int) *Command {
	c.uid = &uid
	return c
}

// Group runs the stage with the given primary gid and optional
// supplementary groups. Unix only; ignored on Windows.
func (c *Command) Group(gid int, extra ...int) *Command {
	c.gid = &gid
	c.groups = append([]int(nil), extra...)
	return c
}

// Args returns a copy of the stage's argument vector.
func (c *Command) Args() []string {
	out := make([]string, len(c.args))
	copy(out, c.args)
	return out
}

func (c *Command) name() string { return c.args[0] }

func (c *Command) String() string { return strings.Join(c.args, " ") }

// mergeEnv builds the environment for one stage: the base environment
// (in its original order) overlaid with each map in turn, later maps
// winning. Keys new to the base are appended in sorted order so the
// result is deterministic.
func mergeEnv(base []string, overlays ...map[string]string) []string {
	override := make(map[string]string)
	for _, overlay := range overlays {
		for k, v := range overlay {
			override[k] = v
		}
	}

	out := make([]string, 0, len(base)+len(override))
	seen := make(map[string]bool, len(base))
	for _, kv := range base {
		k := kv
		if eq := strings.IndexByte(kv, '='); eq >= 0 {
			k = kv[:eq]
		}
		if seen[k] {
			// Duplicate keys in the base would defeat the overlay;
			// keep the first occurrence only.
			continue
		}
		seen[k] = true
		if v, ok := override[k]; ok {
			out = append(out, k+"="+v)
			delete(override, k)
			continue
		}
		out = append(out, kv)
	}

	added := make([]string, 0, len(override))
	for k, v := range override {
		added = append(added, k+"="+v)
	}
	sort.Strings(added)
	return append(out, added...)
}
