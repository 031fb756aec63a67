// Package subpipe runs a chain of external commands wired together
// like a shell pipeline and controls the whole chain as one unit.
//
// A Pipeline is built from Command descriptors, launched once, and
// then observed and steered through a single handle: Poll and
// IsRunning never block, Wait blocks with an optional deadline, and
// Signal, Terminate, and Kill broadcast to every stage. Terminal
// output can be inherited, discarded, redirected, or captured for
// deterministic readback after completion.
//
//	p := subpipe.New(
//		subpipe.WithInputString("Hello, World\n"),
//		subpipe.WithStdout(subpipe.Capture()),
//	)
//	p.Append(subpipe.Cmd("cat"))
//	p.Append(subpipe.Cmd("grep", "World"))
//	p.Append(subpipe.Cmd("tr", "o", "0"))
//
//	codes, err := p.Run()
//	if err != nil {
//		return err
//	}
//	out, err := p.Output() // "Hell0, W0rld\n"
//
// Two launch modes cover the two kinds of caller. Start spawns the
// stages and returns, leaving Wait to the caller; StartBackground
// additionally moves spawning and capture drainage onto a background
// goroutine so the calling goroutine never blocks at all. In both
// modes a launch failure terminates any stages that had already been
// spawned, so a failed launch never leaks processes.
//
// Stages are connected with real pipe descriptors, not in-process
// copiers: each non-final stage forwards its stdout, stderr, or both
// to the next stage's stdin exactly as a shell would, and the parent
// closes its duplicate descriptor ends immediately after each spawn.
package subpipe
