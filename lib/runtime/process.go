package runtime

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ShellState holds the one piece of process-global state named in spec
// §5/§6: the shell variable `?`, updated immediately after each external
// invocation.
type ShellState struct {
	mu       sync.Mutex
	lastExit int
}

func NewShellState() *ShellState { return &ShellState{} }

func (s *ShellState) SetLastExit(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExit = code
}

func (s *ShellState) LastExit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastExit
}

// lineBuffer is the bounded multi-producer single-consumer queue backing
// a PipeValue, per spec §5/§9 ("implement as a bounded ... queue with a
// completion sentinel; producers are OS callback threads, the consumer
// is the interpreter"). Producers are the stdout/stderr reader
// goroutines; the consumer is the single VM thread via PipeValue.Next.
type lineBuffer struct {
	mu        sync.Mutex
	cond      *sync.Cond
	lines     []string
	openPipes int
	capacity  int
}

func newLineBuffer(capacity, openPipes int) *lineBuffer {
	b := &lineBuffer{capacity: capacity, openPipes: openPipes}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push enqueues a line from a reader goroutine, blocking while the
// buffer is at capacity (bounded per spec §3 Process Context invariant).
func (b *lineBuffer) push(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.lines) >= b.capacity && b.capacity > 0 {
		b.cond.Wait()
	}
	b.lines = append(b.lines, line)
	b.cond.Signal()
}

// closeOne decrements the open-pipe counter; reaching zero marks the
// buffer complete (spec §3 invariant).
func (b *lineBuffer) closeOne() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openPipes--
	b.cond.Broadcast()
}

func (b *lineBuffer) complete() bool {
	return b.openPipes <= 0
}

// pop blocks while the buffer is empty and not complete, matching spec
// §4.2's iteration contract.
func (b *lineBuffer) pop() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.lines) == 0 && !b.complete() {
		b.cond.Wait()
	}
	if len(b.lines) == 0 {
		return "", false
	}
	line := b.lines[0]
	b.lines = b.lines[1:]
	b.cond.Signal()
	return line, true
}

// PipeValue wraps a live enumerator of process output lines: finite,
// not restartable (spec §3 "a pipe value holds a live enumerator").
type PipeValue struct {
	ctx *ProcessContext
	buf *lineBuffer
}

// Next implements Iterator, so a pipe value can be consumed by
// GetIter/ForIter exactly like a list.
func (p *PipeValue) Next() (Value, bool, error) {
	line, ok := p.buf.pop()
	if !ok {
		return Value{}, false, nil
	}
	return String(line), true, nil
}

// ProcessContext owns one child process, its stdin feed, and a bounded
// line buffer shared between OS reader goroutines and the interpreter
// (spec §4.2).
type ProcessContext struct {
	ID   uuid.UUID
	Name string
	Args []string

	cmd           *exec.Cmd
	shell         *ShellState
	discardStdout bool
	discardStderr bool
	allowNonZero  bool

	buf      *lineBuffer
	exitCode int
	logger   commonlog.Logger
}

// NewProcessContext constructs a context for one invocation of name with
// args. It does not start the process.
func NewProcessContext(shell *ShellState, name string, args []string) *ProcessContext {
	return &ProcessContext{
		ID:     uuid.New(),
		Name:   name,
		Args:   args,
		shell:  shell,
		logger: commonlog.GetLogger("wisp.process"),
	}
}

// DiscardStdout/DiscardStderr mark a stream to be redirected and
// discarded rather than buffered (spec §4.2).
func (p *ProcessContext) DiscardStdout() { p.discardStdout = true }
func (p *ProcessContext) DiscardStderr() { p.discardStderr = true }

func (p *ProcessContext) buildCmd() *exec.Cmd {
	return exec.Command(p.Name, p.Args...)
}

// Start launches the process synchronously (spec §4.2 "Start"). If
// pipedValue is non-nil it is written to stdin then stdin is closed.
// It waits for exit, sets the shell `?` variable, and returns the exit
// code. A missing executable surfaces as *not found* carrying the name.
func (p *ProcessContext) Start(pipedValue *Value) (int, error) {
	cmd := p.buildCmd()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	var stdin io.WriteCloser
	var err error
	if pipedValue != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return 0, NewRuntimeErrorf("opening stdin for %s: %v", p.Name, err)
		}
	}

	if err := cmd.Start(); err != nil {
		return 0, wrapLaunchError(p.Name, err)
	}
	p.cmd = cmd

	if pipedValue != nil {
		go func() {
			defer stdin.Close()
			if _, werr := io.WriteString(stdin, pipedValue.Display()); werr != nil {
				p.logger.Debug("broken pipe writing piped value", "exe", p.Name, "error", werr)
			}
		}()
	}

	waitErr := cmd.Wait()
	code := exitCodeOf(cmd, waitErr)
	p.exitCode = code
	p.shell.SetLastExit(code)
	p.logger.Debug("process exited", "exe", p.Name, "exit", code)

	if waitErr != nil && code == 0 {
		return 0, NewRuntimeErrorf("running %s: %v", p.Name, waitErr)
	}
	return code, nil
}

// StartWithRedirect launches the process asynchronously, subscribing to
// stdout and stderr unless discarded, and returns a pipe value streaming
// their merged lines (spec §4.2).
func (p *ProcessContext) StartWithRedirect(pipedValue *Value) (*PipeValue, error) {
	cmd := p.buildCmd()

	openPipes := 0
	var stdoutPipe, stderrPipe io.ReadCloser
	var err error

	if !p.discardStdout {
		stdoutPipe, err = cmd.StdoutPipe()
		if err != nil {
			return nil, NewRuntimeErrorf("opening stdout for %s: %v", p.Name, err)
		}
		openPipes++
	} else {
		cmd.Stdout = io.Discard
	}

	if !p.discardStderr {
		stderrPipe, err = cmd.StderrPipe()
		if err != nil {
			return nil, NewRuntimeErrorf("opening stderr for %s: %v", p.Name, err)
		}
		openPipes++
	} else {
		cmd.Stderr = io.Discard
		p.allowNonZero = true // spec §4.2: stderr redirected tolerates non-zero exit
	}

	var stdin io.WriteCloser
	if pipedValue != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, NewRuntimeErrorf("opening stdin for %s: %v", p.Name, err)
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, wrapLaunchError(p.Name, err)
	}
	p.cmd = cmd

	buf := newLineBuffer(1024, openPipes)
	p.buf = buf

	var pumps sync.WaitGroup
	if stdoutPipe != nil {
		pumps.Add(1)
		go func() { defer pumps.Done(); p.pump(stdoutPipe, buf) }()
	}
	if stderrPipe != nil {
		pumps.Add(1)
		go func() { defer pumps.Done(); p.pump(stderrPipe, buf) }()
	}
	if pipedValue != nil {
		go func() {
			defer stdin.Close()
			if _, werr := io.WriteString(stdin, pipedValue.Display()); werr != nil {
				p.logger.Debug("broken pipe writing piped value, stopping producer", "exe", p.Name, "error", werr)
			}
		}()
	}

	go func() {
		// Wait closes the read ends of the pipes, so it runs only after
		// the pumps have read them to end-of-stream.
		pumps.Wait()
		waitErr := cmd.Wait()
		code := exitCodeOf(cmd, waitErr)
		p.exitCode = code
		p.shell.SetLastExit(code)
		p.logger.Debug("redirected process exited", "exe", p.Name, "exit", code)
	}()

	return &PipeValue{ctx: p, buf: buf}, nil
}

// pump is the OS-callback-style reader goroutine: one per redirected
// stream, each a producer into the shared lineBuffer. A nil-line
// end-of-stream decrements the open-pipe counter (spec §4.2).
func (p *ProcessContext) pump(r io.ReadCloser, buf *lineBuffer) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		buf.push(scanner.Text())
	}
	buf.closeOne()
}

// Stop kills the child process unconditionally (spec §4.2).
func (p *ProcessContext) Stop() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Success reports whether the invocation is considered successful: exit
// code zero, or a tolerated non-zero exit when stderr was redirected
// (spec §4.2).
func (p *ProcessContext) Success() bool {
	return p.exitCode == 0 || p.allowNonZero
}

func (p *ProcessContext) ExitCode() int { return p.exitCode }

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return 1
	}
	return 0
}

func wrapLaunchError(name string, err error) error {
	return NewNotFoundError("runtime " + name)
}
