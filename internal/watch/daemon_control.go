package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"mfo/internal/errors"
	"mfo/internal/log"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/sevlyar/go-daemon"
)

const (
	lockFile = "mfo.lock"
	pidFile  = "mfo.pid"
)

// DefaultStateDir is where the lock and pid files live.
func DefaultStateDir() string {
	return filepath.Join(xdg.StateHome, "mfo")
}

// Control manages the lifecycle of a background service: one instance at
// a time, found by the CLI through its pid file and driven by signals.
type Control struct {
	dir      string
	lockPath string
	pidPath  string
	lock     *flock.Flock
	logger   log.Logging
}

// NewControl creates a Control that keeps its files in dir.
func NewControl(dir string, logger log.Logging) *Control {
	if logger == nil {
		logger = log.Discard()
	}
	lockPath := filepath.Join(dir, lockFile)
	return &Control{
		dir:      dir,
		lockPath: lockPath,
		pidPath:  filepath.Join(dir, pidFile),
		lock:     flock.New(lockPath),
		logger:   logger,
	}
}

// Acquire takes the single-instance lock and records this process's pid.
func (c *Control) Acquire() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "create state directory")
	}
	ok, err := c.lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquire lock")
	}
	if !ok {
		if pid, err := c.PID(); err == nil {
			return errors.Newf("another instance is already running (pid %d)", pid)
		}
		return errors.New("another instance is already running")
	}
	if err := os.WriteFile(c.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = c.lock.Unlock()
		return errors.Wrap(err, "write pid file")
	}
	c.logger.With(log.F("pid", os.Getpid()), log.F("lock", c.lockPath)).Debug("Instance lock acquired")
	return nil
}

// Release removes the pid file and drops the lock.
func (c *Control) Release() error {
	if err := os.Remove(c.pidPath); err != nil && !os.IsNotExist(err) {
		c.logger.WithError(err).Warn("Failed to remove PID file")
	}
	if err := c.lock.Unlock(); err != nil {
		return errors.Wrap(err, "release lock")
	}
	return nil
}

// PID reads the pid file.
func (c *Control) PID() (int, error) {
	data, err := os.ReadFile(c.pidPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	return parsePid(string(data))
}

// Running reports whether another process holds the lock, and its pid.
func (c *Control) Running() (int, bool) {
	other := flock.New(c.lockPath)
	ok, err := other.TryLock()
	if err != nil {
		return 0, false
	}
	if ok {
		_ = other.Unlock()
		return 0, false
	}
	pid, err := c.PID()
	if err != nil {
		return 0, false
	}
	return pid, true
}

// Send delivers a named command to the running instance.
func (c *Control) Send(command string) error {
	sig, ok := commandSignals[command]
	if !ok {
		return errors.Newf("command %q cannot be sent to a running instance", command)
	}
	pid, running := c.Running()
	if !running {
		return errors.New("daemon is not running")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "find process %d", pid)
	}
	if err := proc.Signal(sig); err != nil {
		return errors.Wrapf(err, "signal process %d", pid)
	}
	c.logger.With(log.F("pid", pid), log.F("command", command)).Debug("Command sent")
	return nil
}

// SendableCommands lists what Send accepts on this platform.
func SendableCommands() []string {
	names := make([]string, 0, len(commandSignals))
	for name := range commandSignals {
		names = append(names, name)
	}
	return names
}

// parsePid parses a PID from a string
func parsePid(pidStr string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(pidStr))
	if err != nil {
		return 0, fmt.Errorf("invalid PID format: %w", err)
	}
	return pid, nil
}

// Daemonize re-executes the program detached from the terminal, with
// output going to logFile. In the parent it returns parent=true and the
// caller should exit. In the child the returned context must be released
// on exit.
func Daemonize(logFile string) (dctx *daemon.Context, parent bool, err error) {
	dctx = &daemon.Context{
		LogFileName: logFile,
		LogFilePerm: 0o640,
		WorkDir:     "/",
		Umask:       0o27,
	}
	child, err := dctx.Reborn()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to daemonize")
	}
	return dctx, child != nil, nil
}

// ServeSignals maps incoming signals to commands until a stop signal
// arrives or ctx ends, then stops the dispatcher. Commands run one at a
// time off the signal loop, so a slow one never holds up a stop.
func (d *Dispatcher) ServeSignals(ctx context.Context) error {
	sigs := make([]os.Signal, 0, len(signalCommands))
	for sig := range signalCommands {
		sigs = append(sigs, sig)
	}
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)
	return d.serveSignals(ctx, ch)
}

func (d *Dispatcher) serveSignals(ctx context.Context, ch <-chan os.Signal) error {
	cmdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	queue := make(chan string, 8)
	worker := make(chan struct{})
	go func() {
		defer close(worker)
		for name := range queue {
			if cmdCtx.Err() != nil {
				continue
			}
			d.runCommand(cmdCtx, name)
		}
	}()
	shutdown := func() error {
		cancel()
		err := d.Stop()
		close(queue)
		<-worker
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case sig := <-ch:
			name := signalCommands[sig]
			d.logger.With(log.F("signal", sig.String()), log.F("command", name)).Info("Received signal")
			if name == "stop" {
				return shutdown()
			}
			select {
			case queue <- name:
			default:
				d.logger.With(log.F("command", name)).Warn("Too many commands queued, dropping signal")
			}
		}
	}
}

func (d *Dispatcher) runCommand(ctx context.Context, name string) {
	err := d.Command(ctx, name)
	switch {
	case err == nil:
	case errors.IsInvalidState(err):
		d.logger.With(log.F("command", name)).WithError(err).Info("Command ignored in current state")
	default:
		d.logger.With(log.F("command", name)).WithError(err).Warn("Command failed")
	}
}
