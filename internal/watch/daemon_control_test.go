package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mfo/internal/log"
	"mfo/internal/organize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlSingleInstance(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	c := NewControl(dir, nil)

	_, running := c.Running()
	assert.False(t, running)

	require.NoError(t, c.Acquire())
	pid, err := c.PID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	other := NewControl(dir, nil)
	err = other.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	pid, running = other.Running()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, c.Release())
	_, running = other.Running()
	assert.False(t, running)
	assert.NoFileExists(t, filepath.Join(dir, pidFile))
}

func TestControlSendWithoutInstance(t *testing.T) {
	c := NewControl(t.TempDir(), nil)
	assert.Error(t, c.Send("reload"))
	assert.Error(t, c.Send("explode"))
}

func TestParsePid(t *testing.T) {
	pid, err := parsePid(" 4242\n")
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	_, err = parsePid("abc")
	assert.Error(t, err)
}

func signalFor(t *testing.T, command string) os.Signal {
	t.Helper()
	for sig, name := range signalCommands {
		if name == command {
			return sig
		}
	}
	t.Skipf("no signal maps to %q on this platform", command)
	return nil
}

func serveAsync(d *Dispatcher, ch <-chan os.Signal) <-chan error {
	done := make(chan error, 1)
	go func() { done <- d.serveSignals(context.Background(), ch) }()
	return done
}

func TestServeSignalsSlowCommandDoesNotDelayStop(t *testing.T) {
	reload := signalFor(t, "reload")
	stop := signalFor(t, "stop")
	f := newFixture(t, nil, nil)
	f.start(t)

	entered := make(chan struct{})
	cmdErr := make(chan error, 1)
	f.dispatcher.commands["reload"] = func(ctx context.Context) error {
		close(entered)
		select {
		case <-ctx.Done():
			cmdErr <- ctx.Err()
		case <-time.After(30 * time.Second):
			cmdErr <- nil
		}
		return ctx.Err()
	}

	ch := make(chan os.Signal, 2)
	done := serveAsync(f.dispatcher, ch)
	ch <- reload
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("reload never ran")
	}

	start := time.Now()
	ch <- stop
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stop signal held up by a running command")
	}
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Stopped, f.dispatcher.State())
	assert.ErrorIs(t, <-cmdErr, context.Canceled)
}

func TestServeSignalsRunsCommandsInOrder(t *testing.T) {
	pause := signalFor(t, "pause")
	resume := signalFor(t, "resume")
	stop := signalFor(t, "stop")
	f := newFixture(t, nil, nil)
	f.start(t)

	ch := make(chan os.Signal, 4)
	done := serveAsync(f.dispatcher, ch)
	ch <- pause
	require.Eventually(t, func() bool { return f.dispatcher.State() == Paused }, 5*time.Second, 10*time.Millisecond)
	ch <- resume
	require.Eventually(t, func() bool { return f.dispatcher.State() == Running }, 5*time.Second, 10*time.Millisecond)
	ch <- stop
	require.NoError(t, <-done)
	assert.Equal(t, Stopped, f.dispatcher.State())
}

func TestRunCommandLogsRejectedCommandAsInfo(t *testing.T) {
	f := newFixture(t, nil, nil)
	var buf bytes.Buffer
	d := NewDispatcher(f.store, organize.NewEngine(organize.NewMover(nil, nil), nil), nil, log.NewLogger(log.WithOutput(&buf)))

	d.runCommand(context.Background(), "pause")
	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "Command ignored in current state")
	assert.NotContains(t, buf.String(), "Command failed")

	buf.Reset()
	d.runCommand(context.Background(), "explode")
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "Command failed")
}
