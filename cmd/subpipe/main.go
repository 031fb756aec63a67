// Command subpipe runs a chain of commands as one pipeline, wiring
// each stage's output to the next stage's input the way a shell `|`
// does.
//
// Stages are given either as individually quoted arguments, each
// tokenized with shell-style word splitting:
//
//	subpipe "seq 1 100" "grep 5" "wc -l"
//
// or, when any "--" separator is present, as raw argument vectors that
// are never re-tokenized:
//
//	subpipe seq 1 100 -- grep 5 -- wc -l
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/subpipe/subpipe"
	"github.com/subpipe/subpipe/bytesize"
	"github.com/subpipe/subpipe/peekread"
	"github.com/subpipe/subpipe/pidlock"
	"github.com/subpipe/subpipe/prompt"
	"github.com/subpipe/subpipe/timespan"
)

// version is stamped by the release build.
var version = "dev"

// Exit statuses beyond the pipeline's own, following sysexits.h.
const (
	exitUsage    = 64
	exitTempFail = 75
)

// termGrace is how long a terminated pipeline gets to exit before it
// is killed outright.
const termGrace = 5 * time.Second

func main() {
	status, err := mainImplementation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "subpipe: %s\n", err)
	}
	os.Exit(status)
}

func mainImplementation() (int, error) {
	var (
		dir         string
		envVars     []string
		inputText   string
		inputFile   string
		timeoutSpec string
		capture     bool
		tee         bool
		quiet       bool
		lockPath    string
		verbose     bool
		showVersion bool
	)

	fs := pflag.NewFlagSet("subpipe", pflag.ContinueOnError)
	fs.StringVarP(&dir, "dir", "C", "", "run every stage in `directory`")
	fs.StringArrayVarP(&envVars, "env", "e", nil, "export `KEY=VALUE` to every stage (repeatable)")
	fs.StringVarP(&inputText, "input", "i", "", "feed `text` to the first stage's standard input")
	fs.StringVar(&inputFile, "input-file", "", "feed `file` to the first stage's standard input")
	fs.StringVarP(&timeoutSpec, "timeout", "t", "", "give up after `duration` (\"90s\", \"1h 30m\", \"1:30:00\")")
	fs.BoolVarP(&capture, "capture", "c", false, "capture final standard output and print it on completion")
	fs.BoolVar(&tee, "tee", false, "capture final standard output and tail it while running")
	fs.BoolVarP(&quiet, "quiet", "q", false, "discard uncaptured terminal streams")
	fs.StringVar(&lockPath, "lock", "", "serialize invocations through a PID lock `file`")
	fs.BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: subpipe [options] command [command ...]\n")
		fmt.Fprintf(os.Stderr, "       subpipe [options] arg... [-- arg... ...]\n\nOptions:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, nil
		}
		// pflag already reported the problem.
		return exitUsage, nil
	}

	if showVersion {
		fmt.Printf("subpipe version %s\n", version)
		return 0, nil
	}

	stages, err := buildStages(fs.Args(), fs.ArgsLenAtDash())
	if err != nil {
		return exitUsage, err
	}

	var opts []subpipe.Option
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return 1, err
		}
		defer func() { _ = logger.Sync() }()
		opts = append(opts, subpipe.WithLogger(logger))
	}
	if dir != "" {
		opts = append(opts, subpipe.WithDir(dir))
	}
	if len(envVars) > 0 {
		export, err := parseExport(envVars)
		if err != nil {
			return exitUsage, err
		}
		opts = append(opts, subpipe.WithExport(export))
	}

	// Changed, not the value: feeding an empty string is legitimate,
	// and conflicting sources are the engine's call to reject.
	if fs.Changed("input") {
		opts = append(opts, subpipe.WithInputString(inputText))
	}
	if fs.Changed("input-file") {
		opts = append(opts, subpipe.WithInputFile(inputFile))
	}

	switch {
	case capture || tee:
		opts = append(opts, subpipe.WithStdout(subpipe.Capture()))
	case quiet:
		opts = append(opts, subpipe.WithStdout(subpipe.Discard()))
	}
	if quiet {
		opts = append(opts, subpipe.WithStderr(subpipe.Discard()))
	}

	var limit time.Duration
	if timeoutSpec != "" {
		limit, err = timespan.Parse(timeoutSpec)
		if err != nil {
			return exitUsage, err
		}
	}

	if lockPath != "" {
		lock := pidlock.New(lockPath)
		if err := lock.Acquire(); err != nil {
			if errors.Is(err, pidlock.ErrLocked) {
				pid, _, _ := lock.Holder()
				return exitTempFail, fmt.Errorf("another instance (pid %d) holds %s", pid, lockPath)
			}
			return 1, err
		}
		defer func() { _ = lock.Release() }()
	}

	p := subpipe.New(opts...)
	defer func() { _ = p.Close() }()
	p.Append(stages...)

	if err := p.Start(); err != nil {
		return 1, err
	}

	// The tail goroutine peeks at the capture file while the stages
	// write to it, and drains whatever is left once the wait is over.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var tail errgroup.Group
	if tee {
		f, err := p.OutputFile()
		if err != nil {
			return 1, err
		}
		tail.Go(func() error {
			return peekread.New(f).Follow(ctx, os.Stdout)
		})
	}

	status, err := waitForPipeline(p, limit)
	cancel()
	if terr := tail.Wait(); terr != nil && err == nil {
		fmt.Fprintf(os.Stderr, "subpipe: tail: %s\n", terr)
	}
	if err != nil {
		return 1, err
	}

	if capture || tee {
		out, err := p.Output()
		if err != nil {
			return 1, err
		}
		if capture && !tee {
			if _, err := os.Stdout.Write(out); err != nil {
				return 1, err
			}
		}
		fmt.Fprintf(os.Stderr, "%s captured\n", bytesize.Format(uint64(len(out)), bytesize.IECPrefixes, "B"))
	}

	return status, nil
}

// buildStages turns the positional arguments into pipeline stages.
// Without a "--" separator every argument is one command line,
// tokenized the way a shell would. With separators, each "--"-delimited
// group is one stage's argument vector, taken verbatim.
func buildStages(args []string, dash int) ([]*subpipe.Command, error) {
	var cmds []*subpipe.Command

	if dash < 0 {
		for _, line := range args {
			c, err := subpipe.CmdString(line)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, c)
		}
	} else {
		appendGroup := func(group []string) error {
			if len(group) == 0 {
				return nil
			}
			if group[0] == "" {
				return errors.New("empty command name")
			}
			cmds = append(cmds, subpipe.Cmd(group[0], group[1:]...))
			return nil
		}
		if err := appendGroup(args[:dash]); err != nil {
			return nil, err
		}
		var group []string
		for _, a := range args[dash:] {
			if a == "--" {
				if err := appendGroup(group); err != nil {
					return nil, err
				}
				group = group[:0]
				continue
			}
			group = append(group, a)
		}
		if err := appendGroup(group); err != nil {
			return nil, err
		}
	}

	if len(cmds) == 0 {
		return nil, errors.New("no command given (see --help)")
	}
	return cmds, nil
}

// parseExport converts repeated --env flags into an overlay map.
func parseExport(envVars []string) (map[string]string, error) {
	export := make(map[string]string, len(envVars))
	for _, kv := range envVars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed --env %q: want KEY=VALUE", kv)
		}
		export[k] = v
	}
	return export, nil
}

// waitForPipeline waits for the pipeline and reduces it to a single
// exit status. With a limit, an overrunning pipeline is terminated —
// after asking, when a human is attached to stdin — with a grace
// period before the kill.
func waitForPipeline(p *subpipe.Pipeline, limit time.Duration) (int, error) {
	if limit <= 0 {
		return p.WaitStatus(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), limit)
	defer cancel()
	status, err := p.WaitStatus(ctx)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, subpipe.ErrTimeout) {
		return 0, err
	}

	terminate := true
	if interactive(os.Stdin) {
		answer, perr := prompt.YesNo(
			fmt.Sprintf("pipeline still running after %s; terminate it?", limit),
			prompt.DefaultYes)
		if perr == nil {
			terminate = answer
		}
	}
	if !terminate {
		return p.WaitStatus(context.Background())
	}

	if err := p.Terminate(); err != nil {
		return 0, err
	}
	graceCtx, graceCancel := context.WithTimeout(context.Background(), termGrace)
	defer graceCancel()
	status, err = p.WaitStatus(graceCtx)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, subpipe.ErrTimeout) {
		return 0, err
	}
	if err := p.Kill(); err != nil {
		return 0, err
	}
	return p.WaitStatus(context.Background())
}

// interactive reports whether f is attached to a terminal, which
// decides whether anyone is around to answer the timeout prompt.
func interactive(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
