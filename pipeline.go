package subpipe

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle phase of a Pipeline.
type State int

const (
	// StateBuilt: commands may still be appended; no process exists.
	StateBuilt State = iota

	// StateLaunched: the stages have been handed to the OS.
	StateLaunched

	// StateCompleted: every stage has exited and captured output is
	// available.
	StateCompleted

	// StateFailed: the launch could not spawn some stage; any earlier
	// stages were rolled back.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateLaunched:
		return "launched"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Pipeline runs an ordered chain of external commands, wiring each
// stage's chosen output stream to the next stage's standard input the
// way a shell `|` does, and exposes the chain to the caller as one
// unit: poll it, wait for it (with or without a deadline), signal it,
// and read back whatever it was asked to capture.
//
// A Pipeline is built empty, filled with `Append`, and started exactly
// once with `Start` (spawn now, wait later) or `StartBackground`
// (spawn and collect on a background goroutine). All control-plane
// methods are safe for concurrent use.
type Pipeline struct {
	id      uuid.UUID
	log     *zap.Logger
	dir     string
	baseEnv []string
	export  map[string]string
	stdout  Stream
	stderr  Stream
	input   inputSpec

	mu      sync.Mutex
	state   State
	stages  []*Command
	procs   []*proc
	outCol  *collector
	errCol  *collector
	drains  []*collector
	failErr error
	bg      bool
	runDone chan struct{} // background mode: closed when the runner is finished

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// New returns an empty Pipeline with the options applied.
func New(options ...Option) *Pipeline {
	p := &Pipeline{
		id:  uuid.New(),
		log: zap.NewNop(),
	}
	for _, option := range options {
		option(p)
	}
	p.log = p.log.With(zap.Stringer("pipeline", p.id))
	return p
}

// WithDir sets the default working directory for every stage.
func WithDir(dir string) Option {
	return func(p *Pipeline) { p.dir = dir }
}

// WithBaseEnv sets the base environment ("KEY=VALUE" entries) that
// stage environments are built from. A nil base means "use the ambient
// process environment", which is also the default.
func WithBaseEnv(env []string) Option {
	return func(p *Pipeline) { p.baseEnv = env }
}

// WithExport overlays variables onto the base environment for every
// stage. Stage-level Env entries win over these.
func WithExport(vars map[string]string) Option {
	return func(p *Pipeline) {
		if p.export == nil {
			p.export = make(map[string]string, len(vars))
		}
		for k, v := range vars {
			p.export[k] = v
		}
	}
}

// WithStdout routes the final stage's standard output, the stream that
// leaves the pipeline. Earlier stages are not affected: their stdout is
// forwarded, routed by a per-stage override, or inherited. Defaults to
// Inherit.
func WithStdout(s Stream) Option {
	return func(p *Pipeline) { p.stdout = s }
}

// WithStderr routes the final stage's standard error. Earlier stages'
// stderr is inherited unless forwarded or overridden per stage.
// Defaults to Inherit.
func WithStderr(s Stream) Option {
	return func(p *Pipeline) { p.stderr = s }
}

// WithInput feeds the given bytes to the first stage's standard input.
func WithInput(data []byte) Option {
	return func(p *Pipeline) {
		p.input.set(inputPayload)
		p.input.payload = data
	}
}

// WithInputString feeds the given text to the first stage's standard
// input.
func WithInputString(s string) Option {
	return func(p *Pipeline) {
		p.input.set(inputPayload)
		p.input.payload = []byte(s)
	}
}

// WithInputFile opens the named file as the first stage's standard
// input.
func WithInputFile(path string) Option {
	return func(p *Pipeline) {
		p.input.set(inputFile)
		p.input.path = path
	}
}

// WithInputHandle uses an open file, owned by the caller, as the first
// stage's standard input. Mutually exclusive with WithInput and
// WithInputString.
func WithInputHandle(f *os.File) Option {
	return func(p *Pipeline) {
		p.input.set(inputHandle)
		p.input.file = f
	}
}

// WithLogger attaches a logger for engine debug events. The default is
// a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// ID returns the pipeline's identity, as carried in its log fields.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// State returns the pipeline's current lifecycle phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeCompleteLocked()
	return p.state
}

// Append adds commands as the pipeline's next stages. It panics if the
// pipeline has already started: stages are append-only before launch
// and immutable after.
func (p *Pipeline) Append(cmds ...*Command) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateBuilt {
		panic("attempt to modify a pipeline that has already started")
	}
	for _, c := range cmds {
		if c == nil {
			panic("attempt to append a nil command")
		}
	}
	p.stages = append(p.stages, cmds...)
}

// Start spawns every stage and returns. The caller owns completion:
// call `Wait` (or poll) to learn when the stages have exited, and
// `Output`/`ErrOutput` afterwards for captured streams. Capture is
// file-backed in this mode, so no engine goroutine touches the data
// while the pipeline runs.
//
// A configuration problem (`*StreamError`) leaves the pipeline Built
// with nothing spawned. A spawn failure (`*SpawnError`) moves it to
// Failed after rolling back any stages that had already started. A
// second call returns ErrAlreadyStarted.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateBuilt {
		return ErrAlreadyStarted
	}

	procs, err := p.launch(false)
	if err != nil {
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) {
			p.failErr = err
			p.state = StateFailed
		}
		return err
	}

	p.procs = procs
	p.state = StateLaunched
	p.log.Debug("pipeline launched", zap.Int("stages", len(procs)))
	return nil
}

// StartBackground spawns and tends the pipeline on a dedicated
// goroutine: the spawn sequence, capture draining (in memory, not in
// files), and reaping all happen off the caller's goroutine. The
// caller polls `IsRunning`/`Poll` or blocks in `Wait` only when it
// chooses to.
//
// Configuration problems are still reported synchronously, before the
// background work begins. A spawn failure surfaces through `Err`,
// `Wait`, and the Failed state.
func (p *Pipeline) StartBackground() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateBuilt {
		return ErrAlreadyStarted
	}
	if len(p.stages) == 0 {
		return ErrNoStages
	}
	if err := p.validateRouting(); err != nil {
		return err
	}

	p.bg = true
	p.runDone = make(chan struct{})
	p.state = StateLaunched
	go p.run()
	return nil
}

// run is the background-mode runner: spawn, drain captures, reap,
// publish.
func (p *Pipeline) run() {
	defer close(p.runDone)

	p.mu.Lock()
	procs, err := p.launch(true)
	if err != nil {
		p.failErr = err
		p.state = StateFailed
		p.mu.Unlock()
		p.log.Debug("background launch failed", zap.Error(err))
		return
	}
	p.procs = procs
	drains := p.drains
	p.mu.Unlock()

	var g errgroup.Group
	for _, c := range drains {
		g.Go(c.drain)
	}
	if err := g.Wait(); err != nil {
		p.log.Warn("capture drain failed", zap.Error(err))
	}

	for _, pr := range procs {
		<-pr.done
	}

	p.mu.Lock()
	p.finishLocked()
	p.mu.Unlock()
}

// Run starts the pipeline synchronously and waits for it: a
// convenience for script-like callers.
func (p *Pipeline) Run() ([]int, error) {
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p.Wait(context.Background())
}

// maybeCompleteLocked moves a synchronous pipeline to Completed once
// every stage has exited. Background pipelines complete in the runner
// instead, because captures may still be draining after the last stage
// exits. Called with p.mu held.
func (p *Pipeline) maybeCompleteLocked() {
	if p.state != StateLaunched || p.bg {
		return
	}
	for _, pr := range p.procs {
		if !pr.exited() {
			return
		}
	}
	p.finishLocked()
}

// finishLocked publishes captured output and marks the pipeline
// Completed. Called with p.mu held, exactly once.
func (p *Pipeline) finishLocked() {
	if p.state != StateLaunched {
		return
	}
	for _, c := range []*collector{p.outCol, p.errCol} {
		if c != nil {
			c.finalize()
			p.log.Debug("capture finalized",
				zap.String("stream", c.role),
				zap.Int("bytes", len(c.data)),
				zap.Error(c.err))
		}
	}
	p.state = StateCompleted
	p.log.Debug("pipeline completed")
}

// Close releases the engine-owned capture files. It does not affect
// the stages themselves; call it once captured output is no longer
// needed. Safe to call multiple times.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range []*collector{p.outCol, p.errCol} {
			if c == nil {
				continue
			}
			if err := c.close(); err != nil && p.closeErr == nil {
				p.closeErr = err
			}
		}
	})
	return p.closeErr
}
