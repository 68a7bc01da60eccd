package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLineBufferDeliversInOrderThenCompletes(t *testing.T) {
	buf := newLineBuffer(16, 1)
	buf.push("one")
	buf.push("two")
	buf.closeOne()

	line, ok := buf.pop()
	require.True(t, ok)
	require.Equal(t, "one", line)
	line, ok = buf.pop()
	require.True(t, ok)
	require.Equal(t, "two", line)
	_, ok = buf.pop()
	require.False(t, ok)
}

func TestLineBufferCompletesOnlyWhenAllPipesClose(t *testing.T) {
	buf := newLineBuffer(16, 2)
	buf.closeOne()
	require.False(t, buf.complete())
	buf.closeOne()
	require.True(t, buf.complete())
}

func TestLineBufferConsumerUnblocksOnCompletion(t *testing.T) {
	buf := newLineBuffer(16, 1)
	done := make(chan struct{})
	go func() {
		_, ok := buf.pop()
		require.False(t, ok)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	buf.closeOne()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not unblock when the buffer completed")
	}
}

func TestLineBufferBoundedProducerBackpressure(t *testing.T) {
	buf := newLineBuffer(1, 1)
	buf.push("a")
	pushed := make(chan struct{})
	go func() {
		buf.push("b") // blocks until the consumer drains "a"
		close(pushed)
	}()
	select {
	case <-pushed:
		t.Fatal("push did not block at capacity")
	case <-time.After(20 * time.Millisecond):
	}
	line, ok := buf.pop()
	require.True(t, ok)
	require.Equal(t, "a", line)
	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("push did not resume after drain")
	}
}

func TestStartReturnsExitCodeAndSetsShellVar(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "sh", []string{"-c", "exit 3"})
	code, err := ctx.Start(nil)
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, 3, shell.LastExit())
	require.False(t, ctx.Success())
}

func TestStartMissingExecutableIsNotFound(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "wisp-no-such-binary", nil)
	_, err := ctx.Start(nil)
	require.Error(t, err)
	le, ok := AsLangError(err)
	require.True(t, ok)
	require.Equal(t, KindNotFound, le.Kind)
	require.Contains(t, le.Msg, "wisp-no-such-binary")
}

func TestStartWithRedirectStreamsStdoutLines(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "sh", []string{"-c", `printf 'alpha\nbeta\n'`})
	pipe, err := ctx.StartWithRedirect(nil)
	require.NoError(t, err)

	var lines []string
	for {
		v, ok, err := pipe.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		lines = append(lines, v.Str)
	}
	require.Equal(t, []string{"alpha", "beta"}, lines)
}

func TestStartWithRedirectPipeIsNotRestartable(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "sh", []string{"-c", `printf 'once\n'`})
	pipe, err := ctx.StartWithRedirect(nil)
	require.NoError(t, err)

	v, ok, err := pipe.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "once", v.Str)
	_, ok, err = pipe.Next()
	require.NoError(t, err)
	require.False(t, ok)
	// exhausted for good: a second read does not rewind
	_, ok, err = pipe.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPipedValueIsWrittenToStdin(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "cat", nil)
	piped := String("hello\nworld")
	pipe, err := ctx.StartWithRedirect(&piped)
	require.NoError(t, err)

	var lines []string
	for {
		v, ok, err := pipe.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		lines = append(lines, v.Str)
	}
	require.Equal(t, []string{"hello", "world"}, lines)
}

func TestDiscardedStderrToleratesNonZeroExit(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "sh", []string{"-c", "echo oops >&2; exit 2"})
	ctx.DiscardStderr()
	pipe, err := ctx.StartWithRedirect(nil)
	require.NoError(t, err)

	for {
		_, ok, err := pipe.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	// Exit-code bookkeeping happens on the Wait goroutine after the pipes
	// close, so give it a moment.
	require.Eventually(t, func() bool { return shell.LastExit() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, ctx.Success())
}

func TestPipeValueIteratesThroughGetIterator(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "sh", []string{"-c", `printf '1\n2\n'`})
	pipe, err := ctx.StartWithRedirect(nil)
	require.NoError(t, err)

	it, err := GetIterator(Pipe(pipe))
	require.NoError(t, err)
	v, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v.Str)
}

func TestStopKillsRunningProcess(t *testing.T) {
	shell := NewShellState()
	ctx := NewProcessContext(shell, "sleep", []string{"30"})
	pipe, err := ctx.StartWithRedirect(nil)
	require.NoError(t, err)
	require.NoError(t, ctx.Stop())

	// The OS closes the pipes when the child dies, so iteration ends.
	done := make(chan struct{})
	go func() {
		for {
			_, ok, _ := pipe.Next()
			if !ok {
				break
			}
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipe iteration did not terminate after Stop")
	}
}
