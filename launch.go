package subpipe

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/cli/safeexec"
	"go.uber.org/zap"
)

// stagePlan holds one stage's resolved stream destinations. A nil
// entry means "forwarded": the spawn loop fills it with the write end
// of a fresh pipe to the next stage.
type stagePlan struct {
	stdout *os.File
	stderr *os.File
	close  []*os.File // engine-owned files closed right after this stage spawns
}

// planner resolves every stream specification into a concrete file
// before anything is spawned, and owns the cleanup of everything it
// opened if the launch cannot go ahead.
type planner struct {
	p     *Pipeline
	async bool

	exes   []string
	stages []stagePlan

	stdin      *os.File
	stdinOwned bool
	stdinTemp  string

	outCol, errCol *collector
	outW, errW     *os.File // background capture write ends, for sharing
	drains         []*collector
	afterLaunch    []*os.File // parent copies closed once every stage has spawned
	opened         []*os.File // everything engine-opened, for failure cleanup
}

func stdFor(role string) *os.File {
	if role == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

func (pp *planner) col(role string) *collector {
	if role == "stdout" {
		return pp.outCol
	}
	return pp.errCol
}

func (pp *planner) setCol(role string, c *collector) {
	if role == "stdout" {
		pp.outCol = c
	} else {
		pp.errCol = c
	}
}

// build resolves executables, the input source, and every output
// destination. Nothing is spawned here; any error leaves no processes
// behind (call abort to release whatever was opened).
func (pp *planner) build() error {
	p := pp.p
	if len(p.stages) == 0 {
		return ErrNoStages
	}
	if err := p.validateRouting(); err != nil {
		return err
	}

	// A missing executable must spawn nothing, wherever it sits in the
	// chain, so resolve all of them before the first spawn.
	for i, c := range p.stages {
		exe, err := safeexec.LookPath(c.name())
		if err != nil {
			return &SpawnError{Stage: i, Name: c.name(), Err: err}
		}
		pp.exes = append(pp.exes, exe)
	}

	if err := pp.resolveInput(); err != nil {
		return &StreamError{Stage: -1, Role: "stdin", Err: err}
	}

	last := len(p.stages) - 1
	for i, c := range p.stages {
		sp, err := pp.planStage(c, i, last)
		if err != nil {
			return err
		}
		pp.stages = append(pp.stages, sp)
	}
	return nil
}

// planStage resolves the destinations for one stage's output streams.
func (pp *planner) planStage(c *Command, i, last int) (stagePlan, error) {
	var sp stagePlan

	resolve := func(s Stream, role string, quiet bool) (*os.File, error) {
		var f *os.File
		var err error
		switch {
		case quiet:
			f, err = pp.openNull(&sp)
		case s.isSet():
			f, err = pp.resolveOverride(s, role, &sp)
		case i == last:
			f, err = pp.terminal(role)
		default:
			// Pipeline-level routing describes the chain's terminal
			// output and binds the final stage alone. A middle stage's
			// unrouted stream stays on the parent's own stream, exactly
			// as a shell leaves it.
			f = stdFor(role)
		}
		if err != nil {
			return nil, &StreamError{Stage: i, Role: role, Err: err}
		}
		return f, nil
	}

	if i == last {
		// The final stage forwards nothing; both streams follow their
		// override or the pipeline-level terminal configuration.
		f, err := resolve(c.stdout, "stdout", false)
		if err != nil {
			return sp, err
		}
		sp.stdout = f
		f, err = resolve(c.stderr, "stderr", false)
		if err != nil {
			return sp, err
		}
		sp.stderr = f
		return sp, nil
	}

	v := c.via
	if !v.forwardsStdout() {
		f, err := resolve(c.stdout, "stdout", v == ViaStderrQuiet)
		if err != nil {
			return sp, err
		}
		sp.stdout = f
	}
	if !v.forwardsStderr() {
		f, err := resolve(c.stderr, "stderr", v == ViaStdoutQuiet)
		if err != nil {
			return sp, err
		}
		sp.stderr = f
	}
	return sp, nil
}

// resolveInput prepares the first stage's standard input. A payload is
// pre-loaded into a temporary file rather than a pipe, so the child
// reads it with no feeder goroutine however many stages there are.
func (pp *planner) resolveInput() error {
	p := pp.p
	switch p.input.kind {
	case inputInherit:
		pp.stdin = os.Stdin
	case inputHandle:
		pp.stdin = p.input.file
	case inputFile:
		f, err := os.Open(p.input.path)
		if err != nil {
			return err
		}
		pp.opened = append(pp.opened, f)
		pp.stdin = f
		pp.stdinOwned = true
	case inputPayload:
		f, err := os.CreateTemp("", "subpipe-stdin-*")
		if err != nil {
			return err
		}
		pp.opened = append(pp.opened, f)
		pp.stdinTemp = f.Name()
		if _, err := f.Write(p.input.payload); err != nil {
			return err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		pp.stdin = f
		pp.stdinOwned = true
	}
	return nil
}

// terminal resolves the pipeline-level destination for one of the
// final stage's streams. Only the final stage routes here: captured
// output must hold the terminal stage's bytes and nothing else.
func (pp *planner) terminal(role string) (*os.File, error) {
	spec := pp.p.stdout
	if role == "stderr" {
		spec = pp.p.stderr
	}

	var f *os.File
	var err error
	switch spec.kind {
	case streamDefault, streamInherit:
		f = stdFor(role)
	case streamCapture:
		f, err = pp.captureSink(role)
	case streamDiscard:
		f, err = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err == nil {
			pp.opened = append(pp.opened, f)
			pp.afterLaunch = append(pp.afterLaunch, f)
		}
	case streamFile:
		f, err = os.OpenFile(spec.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err == nil {
			pp.opened = append(pp.opened, f)
			pp.afterLaunch = append(pp.afterLaunch, f)
		}
	case streamHandle:
		f = spec.file
	default:
		err = fmt.Errorf("unhandled stream specification %v", spec)
	}
	return f, err
}

// resolveOverride resolves a per-stage routing override.
func (pp *planner) resolveOverride(s Stream, role string, sp *stagePlan) (*os.File, error) {
	switch s.kind {
	case streamInherit:
		return stdFor(role), nil
	case streamCapture:
		// Restricted to the final stage by validation.
		return pp.captureSink(role)
	case streamDiscard:
		return pp.openNull(sp)
	case streamFile:
		f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return nil, err
		}
		pp.opened = append(pp.opened, f)
		sp.close = append(sp.close, f)
		return f, nil
	case streamHandle:
		return s.file, nil
	default:
		return nil, fmt.Errorf("unhandled stream specification %v", s)
	}
}

// captureSink returns the file the child writes its captured stream
// to, creating the role's collector on first use.
func (pp *planner) captureSink(role string) (*os.File, error) {
	if col := pp.col(role); col != nil {
		if col.file != nil {
			return col.file, nil
		}
		if role == "stdout" {
			return pp.outW, nil
		}
		return pp.errW, nil
	}

	if !pp.async {
		col, err := newFileCollector(role)
		if err != nil {
			return nil, err
		}
		// The file is not registered in `opened`: the collector owns
		// it, keeps it open for read-back and peeking, and removes it
		// when the pipeline is closed.
		pp.setCol(role, col)
		return col.file, nil
	}

	col, w, err := newPipeCollector(role)
	if err != nil {
		return nil, err
	}
	pp.setCol(role, col)
	pp.drains = append(pp.drains, col)
	pp.opened = append(pp.opened, col.pr, w)
	pp.afterLaunch = append(pp.afterLaunch, w)
	if role == "stdout" {
		pp.outW = w
	} else {
		pp.errW = w
	}
	return w, nil
}

func (pp *planner) openNull(sp *stagePlan) (*os.File, error) {
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	pp.opened = append(pp.opened, f)
	sp.close = append(sp.close, f)
	return f, nil
}

// abort releases everything the planner opened. Used after a failed
// build or a failed spawn loop; second closes are deliberately
// ignored, so racing cleanup paths are harmless.
func (pp *planner) abort() {
	for _, f := range pp.opened {
		_ = f.Close()
	}
	if pp.stdinTemp != "" {
		_ = os.Remove(pp.stdinTemp)
	}
	if pp.outCol != nil {
		_ = pp.outCol.close()
	}
	if pp.errCol != nil {
		_ = pp.errCol.close()
	}
}

// launch resolves every stream and spawns every stage strictly left to
// right, wiring stage i's forwarded stream to stage i+1's stdin and
// closing the parent's descriptor copies as soon as each child holds
// its own. On a mid-launch spawn failure it kills and reaps the stages
// already spawned and releases every engine-owned descriptor, so a
// failed launch never leaks processes or files. Called with p.mu held.
func (p *Pipeline) launch(async bool) ([]*proc, error) {
	pp := &planner{p: p, async: async}
	if err := pp.build(); err != nil {
		pp.abort()
		return nil, err
	}

	base := p.baseEnv
	if base == nil {
		base = os.Environ()
	}

	var procs []*proc
	rollback := func(i int, name string, err error) ([]*proc, error) {
		p.log.Debug("rolling back partial launch",
			zap.Int("stage", i), zap.Error(err))
		for _, pr := range procs {
			_ = pr.kill()
			<-pr.done
		}
		pp.abort()
		return nil, &SpawnError{Stage: i, Name: name, Err: err}
	}

	stdin := pp.stdin
	closeStdin := pp.stdinOwned
	for i, c := range p.stages {
		sp := pp.stages[i]
		stdout, stderr := sp.stdout, sp.stderr

		// A nil destination is a forwarded stream: create the pipe to
		// the next stage now. ViaBoth leaves both nil, merging the two
		// streams into the same write end.
		var nextRead, pipeW *os.File
		if stdout == nil || stderr == nil {
			var err error
			nextRead, pipeW, err = os.Pipe()
			if err != nil {
				return rollback(i, c.name(), err)
			}
			pp.opened = append(pp.opened, nextRead, pipeW)
			if stdout == nil {
				stdout = pipeW
			}
			if stderr == nil {
				stderr = pipeW
			}
		}

		cmd := exec.Command(pp.exes[i], c.args[1:]...)
		cmd.Dir = c.dir
		if cmd.Dir == "" {
			cmd.Dir = p.dir
		}
		cmd.Env = mergeEnv(base, p.export, c.env)
		cmd.Stdin = stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		runInOwnProcessGroup(cmd)
		applyCredential(cmd, c)

		if err := cmd.Start(); err != nil {
			return rollback(i, c.name(), err)
		}

		pr := newProc(i, c.name(), cmd, p.log)
		procs = append(procs, pr)
		go pr.reap()

		p.log.Debug("spawned stage",
			zap.Int("stage", i),
			zap.String("cmd", c.name()),
			zap.Int("pid", cmd.Process.Pid))

		// The child holds its copies now; close ours immediately. A
		// duplicate write end left open here is the classic pipeline
		// deadlock (the downstream reader never sees EOF), and a
		// lingering read end would keep an upstream writer alive past
		// its reader's death.
		if closeStdin && stdin != nil {
			_ = stdin.Close()
		}
		if i == 0 && pp.stdinTemp != "" {
			_ = os.Remove(pp.stdinTemp)
			pp.stdinTemp = ""
		}
		if pipeW != nil {
			_ = pipeW.Close()
		}
		for _, f := range sp.close {
			_ = f.Close()
		}

		stdin = nextRead
		closeStdin = true
	}

	// Terminal destinations (capture write ends, file and null
	// targets) are engine-owned copies; the children hold their own
	// now that the loop is done.
	for _, f := range pp.afterLaunch {
		_ = f.Close()
	}

	p.outCol, p.errCol = pp.outCol, pp.errCol
	p.drains = pp.drains
	return procs, nil
}
