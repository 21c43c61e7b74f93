package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mfo/internal/config"
	"mfo/internal/duplicates"
	"mfo/internal/errors"
	"mfo/internal/log"
	"mfo/internal/notify"
	"mfo/internal/organize"
	"mfo/pkg/types"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultReloadDebounce is how long the config file must be quiet before
// it is re-read. Editors often write a file in several steps.
const DefaultReloadDebounce = 250 * time.Millisecond

// State is the lifecycle state of a Dispatcher.
type State int32

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "stopped"
}

// Status represents the current status of the dispatcher
type Status struct {
	State            State     `json:"state"`
	Halted           bool      `json:"halted"` // downloads folder vanished
	WatchDirectories []string  `json:"watch_directories"`
	StartedAt        time.Time `json:"started_at"`
	LastActivity     time.Time `json:"last_activity"`
	FilesProcessed   int64     `json:"files_processed"`
	FilesSkipped     int64     `json:"files_skipped"`
	FilesFailed      int64     `json:"files_failed"`
	InFlight         int64     `json:"in_flight"`
	Pending          int       `json:"pending"`
	ConfigVersion    uint64    `json:"config_version"`
	NextSweep        time.Time `json:"next_sweep"`
}

// CommandFunc is a named operation on the dispatcher.
type CommandFunc func(ctx context.Context) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOutcomeHook registers fn to see every finished move.
func WithOutcomeHook(fn func(types.MoveOutcome)) Option {
	return func(d *Dispatcher) { d.onOutcome = fn }
}

// WithScanner replaces the duplicate scanner.
func WithScanner(s *duplicates.Scanner) Option {
	return func(d *Dispatcher) { d.scanner = s }
}

// WithReloadDebounce changes how long config file events are coalesced.
func WithReloadDebounce(delay time.Duration) Option {
	return func(d *Dispatcher) { d.reloadDelay = delay }
}

type slots struct {
	sem  *semaphore.Weighted
	size int64
}

// Dispatcher turns filesystem events in the downloads folder into moves,
// reacts to config file changes and runs the scheduled sweep.
type Dispatcher struct {
	store     config.Source
	organizer organize.Organizer
	scanner   *duplicates.Scanner
	notifier  notify.Notifier
	logger    log.Logging
	onOutcome func(types.MoveOutcome)

	// mu guards lifecycle transitions and the fields below it.
	mu        sync.RWMutex
	state     State
	watcher   *Watcher
	loopDone  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	downloads string
	configDir string
	gate      *StabilityGate

	paused       atomic.Bool
	halted       atomic.Bool
	processed    atomic.Int64
	skipped      atomic.Int64
	failed       atomic.Int64
	inflight     atomic.Int64
	lastActivity atomic.Int64
	slots        atomic.Pointer[slots]

	jobs  *sync.WaitGroup
	locks *keyedMutex

	reloadMu    sync.Mutex
	reloadDelay time.Duration
	reloadTimer *time.Timer

	scheduler *Scheduler
	commands  map[string]CommandFunc
}

// NewDispatcher wires a dispatcher. It does nothing until Start.
func NewDispatcher(store config.Source, organizer organize.Organizer, notifier notify.Notifier, logger log.Logging, opts ...Option) *Dispatcher {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	d := &Dispatcher{
		store:       store,
		organizer:   organizer,
		notifier:    notifier,
		logger:      logger,
		locks:       newKeyedMutex(),
		reloadDelay: DefaultReloadDebounce,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.scanner == nil {
		d.scanner = duplicates.NewScanner(logger)
	}
	d.scheduler = NewScheduler(d.scheduledRun, logger)
	d.commands = map[string]CommandFunc{
		"pause":  func(context.Context) error { return d.Pause() },
		"resume": func(context.Context) error { return d.Resume() },
		"reload": func(context.Context) error { return d.ReloadConfig() },
		"stop":   func(context.Context) error { return d.Stop() },
		"sweep": func(ctx context.Context) error {
			_, err := d.Sweep(ctx)
			return err
		},
		"scan-duplicates": func(ctx context.Context) error {
			_, _, err := d.ScanDuplicates(ctx, nil)
			return err
		},
	}
	return d
}

// Start begins watching the downloads folder and the config file's
// directory.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Stopped {
		return errors.NewStateError("start", d.state.String())
	}

	cfg := d.store.Current()
	if cfg == nil {
		return errors.New("no configuration loaded")
	}
	if err := config.EnsureFolders(cfg); err != nil {
		return err
	}

	w, err := New(d.logger)
	if err != nil {
		return err
	}
	if err := w.AddDirectory(cfg.DownloadsFolder); err != nil {
		w.Stop()
		return errors.Wrap(err, "cannot watch downloads folder")
	}
	d.configDir = ""
	if path := d.store.Path(); path != "" {
		dir := filepath.Dir(filepath.Clean(path))
		if err := w.AddDirectory(dir); err != nil {
			d.logger.With(log.F("directory", dir)).WithError(err).Warn("Cannot watch configuration directory, reload on change disabled")
		} else {
			d.configDir = dir
		}
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.watcher = w
	d.downloads = filepath.Clean(cfg.DownloadsFolder)
	d.gate = NewStabilityGate(d.settled)
	d.resize(cfg.MaxConcurrentMoves)
	d.jobs = &sync.WaitGroup{}
	d.loopDone = make(chan struct{})
	go d.loop(w, d.loopDone)

	if err := d.scheduler.Apply(cfg.ScheduledOrganization); err != nil {
		d.logger.WithError(err).Error("Cannot schedule organization")
	}

	d.paused.Store(false)
	d.halted.Store(false)
	d.startedAt = time.Now()
	d.state = Running
	d.logger.With(log.F("downloads", d.downloads), log.F("config_version", cfg.Version)).Info("Watcher started")
	return nil
}

// Pause stops consuming new files. Moves already underway, and files
// already waiting out their quiet period, still complete.
func (d *Dispatcher) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Running {
		return errors.NewStateError("pause", d.state.String())
	}
	d.paused.Store(true)
	if d.downloads != d.configDir {
		if err := d.watcher.RemoveDirectory(d.downloads); err != nil {
			d.logger.WithError(err).Warn("Error removing downloads watch")
		}
	}
	d.state = Paused
	d.logger.Info("Watcher paused")
	return nil
}

// Resume starts consuming new files again. Files that arrived while
// paused are not picked up until the next sweep.
func (d *Dispatcher) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Paused {
		return errors.NewStateError("resume", d.state.String())
	}
	if err := d.watcher.AddDirectory(d.downloads); err != nil {
		return errors.Wrap(err, "cannot watch downloads folder")
	}
	d.halted.Store(false)
	d.paused.Store(false)
	d.state = Running
	d.logger.Info("Watcher resumed")
	return nil
}

// Stop ends watching, drops files still waiting out their quiet period
// and waits for in-flight moves up to the configured shutdown timeout.
// With a zero timeout it does not wait. Stopping a stopped dispatcher is a
// no-op.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.state == Stopped {
		d.mu.Unlock()
		return nil
	}
	d.state = Stopped
	d.paused.Store(false)
	d.cancel()
	w, loopDone, gate, jobs := d.watcher, d.loopDone, d.gate, d.jobs
	d.watcher = nil
	d.mu.Unlock()

	d.reloadMu.Lock()
	if d.reloadTimer != nil {
		d.reloadTimer.Stop()
		d.reloadTimer = nil
	}
	d.reloadMu.Unlock()

	dropped := gate.CancelAll()
	w.Stop()
	<-loopDone

	timeout := d.store.Current().ShutdownTimeout()
	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	d.scheduler.Stop(waitCtx)

	done := make(chan struct{})
	go func() {
		jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-waitCtx.Done():
		select {
		case <-done:
		default:
			if err := d.abandoned(timeout); err != nil {
				return err
			}
		}
	}

	d.logger.With(log.F("dropped_pending", dropped), log.F("files_processed", d.processed.Load())).Info("Watcher stopped")
	return nil
}

// abandoned reports the moves still running once the shutdown wait is
// over. A zero timeout means Stop does not wait, so leftovers are only
// logged.
func (d *Dispatcher) abandoned(timeout time.Duration) error {
	n := d.inflight.Load()
	if n == 0 {
		return nil
	}
	if timeout <= 0 {
		d.logger.With(log.F("in_flight", n)).Warn("Stopped without waiting for moves")
		return nil
	}
	d.logger.With(log.F("in_flight", n), log.F("timeout", timeout.String())).Error("Shutdown timed out waiting for moves")
	return errors.Newf("shutdown timed out with %d moves in flight", n)
}

// ReloadConfig re-reads the config file. On success the new snapshot
// drives everything that starts afterwards; moves already underway keep
// the snapshot they began with. On failure the previous snapshot stays.
func (d *Dispatcher) ReloadConfig() error {
	prev := d.store.Current()
	if err := d.store.Reload(); err != nil {
		if prev == nil || prev.Notifications {
			d.notifier.Notify("Configuration Error", "Failed to reload configuration: "+err.Error())
		}
		return err
	}
	cfg := d.store.Current()
	if cfg == prev {
		return nil
	}
	d.apply(cfg)
	if cfg.Notifications {
		d.notifier.Notify("Configuration Reloaded", "Configuration has been reloaded")
	}
	return nil
}

func (d *Dispatcher) apply(cfg *config.Config) {
	if err := config.EnsureFolders(cfg); err != nil {
		d.logger.WithError(err).Error("Cannot create category folders")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Stopped {
		return
	}
	d.resize(cfg.MaxConcurrentMoves)
	if err := d.scheduler.Apply(cfg.ScheduledOrganization); err != nil {
		d.logger.WithError(err).Error("Cannot schedule organization")
	}

	next := filepath.Clean(cfg.DownloadsFolder)
	if next == d.downloads {
		return
	}
	logger := d.logger.With(log.F("from", d.downloads), log.F("to", next))
	if d.state == Running {
		if d.downloads != d.configDir {
			if err := d.watcher.RemoveDirectory(d.downloads); err != nil {
				logger.WithError(err).Warn("Error removing downloads watch")
			}
		}
		if err := d.watcher.AddDirectory(next); err != nil {
			logger.WithError(err).Error("Cannot watch new downloads folder, watch halted")
			d.downloads = next
			d.halted.Store(true)
			return
		}
	}
	d.downloads = next
	d.halted.Store(false)
	logger.Info("Downloads folder changed")
}

func (d *Dispatcher) resize(n int) {
	if cur := d.slots.Load(); cur != nil && cur.size == int64(n) {
		return
	}
	// Jobs holding a slot of the old semaphore release it there.
	d.slots.Store(&slots{sem: semaphore.NewWeighted(int64(n)), size: int64(n)})
}

func (d *Dispatcher) loop(w *Watcher, done chan struct{}) {
	defer close(done)
	for mod := range w.FileChannel() {
		d.handle(mod)
	}
}

func (d *Dispatcher) handle(mod FileModification) {
	d.mu.RLock()
	downloads, configDir, gate := d.downloads, d.configDir, d.gate
	d.mu.RUnlock()

	if mod.DirGone {
		switch mod.Path {
		case downloads:
			d.halted.Store(true)
			d.logger.With(log.F("directory", mod.Path)).Error("Downloads folder was removed, watch halted")
		case configDir:
			d.logger.With(log.F("directory", mod.Path)).Warn("Configuration directory was removed, reload on change disabled")
		}
		return
	}

	if path := d.store.Path(); path != "" && mod.Path == filepath.Clean(path) {
		d.scheduleReload()
		return
	}
	if filepath.Dir(mod.Path) != downloads || !mod.Op.Has(fsnotify.Create) {
		return
	}
	if d.paused.Load() {
		d.logger.With(log.F("file", mod.Path)).Debug("Paused, ignoring new file")
		return
	}

	cfg := d.store.Current()
	if gate.Observe(types.FileEvent{Path: mod.Path, DetectedAt: mod.Timestamp}, cfg.Quiescence()) {
		d.logger.With(log.F("file", mod.Path), log.F("quiescence", cfg.Quiescence().String())).Debug("New file, waiting for it to settle")
	}
}

func (d *Dispatcher) scheduleReload() {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	if d.reloadTimer != nil {
		d.reloadTimer.Reset(d.reloadDelay)
		return
	}
	d.reloadTimer = time.AfterFunc(d.reloadDelay, func() {
		d.reloadMu.Lock()
		d.reloadTimer = nil
		d.reloadMu.Unlock()
		if d.State() == Stopped {
			return
		}
		// Errors are logged by the store and reported by notification.
		_ = d.ReloadConfig()
	})
}

// begin registers a job with the running dispatcher. It returns a context
// that ends with the dispatcher, or ok=false when stopped.
func (d *Dispatcher) begin(parent context.Context) (ctx context.Context, done func(), ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state == Stopped || d.ctx.Err() != nil {
		return nil, nil, false
	}
	jobs := d.jobs
	jobs.Add(1)
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(d.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
		jobs.Done()
	}, true
}

func (d *Dispatcher) settled(ev types.FileEvent) {
	ctx, done, ok := d.begin(context.Background())
	if !ok {
		return
	}
	defer done()

	if _, err := os.Lstat(ev.Path); err != nil {
		d.logger.With(log.F("file", ev.Path)).Debug("File disappeared before it settled")
		return
	}
	d.organize(ctx, ev.Path)
}

// organize runs one file through the organizer under the worker cap and
// the per-path lock. The config snapshot is taken once a slot is held.
func (d *Dispatcher) organize(ctx context.Context, path string) (types.MoveOutcome, bool) {
	logger := d.logger.With(log.F("event_id", uuid.NewString()), log.F("file", path))

	s := d.slots.Load()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		logger.Debug("Move abandoned before it started")
		return types.MoveOutcome{}, false
	}
	defer s.sem.Release(1)

	unlock := d.locks.Lock(path)
	defer unlock()

	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	cfg := d.store.Current()
	logger.With(log.F("config_version", cfg.Version)).Debug("Organizing file")
	outcome := d.organizer.OrganizeFile(ctx, path, cfg)
	d.record(outcome)
	return outcome, true
}

func (d *Dispatcher) record(outcome types.MoveOutcome) {
	switch outcome.Result {
	case types.Success:
		d.processed.Add(1)
	case types.Skipped:
		d.skipped.Add(1)
	case types.Failed:
		d.failed.Add(1)
	}
	d.lastActivity.Store(time.Now().UnixNano())
	if d.onOutcome != nil {
		d.onOutcome(outcome)
	}
}

// Sweep organizes the regular files already sitting in the downloads
// folder, one at a time. Files waiting on the stability gate are taken
// over by the sweep.
func (d *Dispatcher) Sweep(ctx context.Context) ([]types.MoveOutcome, error) {
	ctx, done, ok := d.begin(ctx)
	if !ok {
		return nil, errors.NewStateError("sweep", Stopped.String())
	}
	defer done()

	cfg := d.store.Current()
	entries, err := os.ReadDir(cfg.DownloadsFolder)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read downloads folder")
	}

	d.mu.RLock()
	gate := d.gate
	d.mu.RUnlock()

	var outcomes []types.MoveOutcome
	for _, entry := range entries {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(cfg.DownloadsFolder, entry.Name())
		gate.Cancel(path)
		if outcome, ran := d.organize(ctx, path); ran {
			outcomes = append(outcomes, outcome)
		}
	}

	moved := 0
	for _, o := range outcomes {
		if o.Moved() {
			moved++
		}
	}
	d.logger.With(log.F("files", len(outcomes)), log.F("moved", moved)).Info("Sweep finished")
	return outcomes, nil
}

// ScanDuplicates scans the category folders and applies the configured
// duplicate action. progress may be nil. A running dispatcher's Stop
// cancels the scan.
func (d *Dispatcher) ScanDuplicates(ctx context.Context, progress duplicates.Progress) (duplicates.Report, duplicates.ActionResult, error) {
	if jobCtx, done, ok := d.begin(ctx); ok {
		defer done()
		ctx = jobCtx
	}
	cfg := d.store.Current()
	report, err := d.scanner.Scan(ctx, cfg.CategoryFolders(), progress)
	if err != nil {
		return report, duplicates.ActionResult{}, err
	}
	result := duplicates.Apply(report, cfg.DuplicateDetection.Action, cfg, d.notifier, d.logger)
	return report, result, nil
}

func (d *Dispatcher) scheduledRun() {
	ctx, done, ok := d.begin(context.Background())
	if !ok {
		return
	}
	defer done()

	d.logger.Info("Running scheduled organization")
	if _, err := d.Sweep(ctx); err != nil {
		d.logger.WithError(err).Error("Scheduled organization failed")
		return
	}
	if d.store.Current().DuplicateDetection.Enabled {
		if _, _, err := d.ScanDuplicates(ctx, nil); err != nil {
			d.logger.WithError(err).Error("Scheduled duplicate scan failed")
		}
	}
}

// Command runs the named command.
func (d *Dispatcher) Command(ctx context.Context, name string) error {
	fn, ok := d.commands[name]
	if !ok {
		return errors.Newf("unknown command %q", name)
	}
	d.logger.With(log.F("command", name)).Debug("Running command")
	return fn(ctx)
}

// Commands lists the command names Command accepts.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State returns the lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Status returns the current status of the dispatcher
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := Status{
		State:          d.state,
		Halted:         d.halted.Load(),
		StartedAt:      d.startedAt,
		FilesProcessed: d.processed.Load(),
		FilesSkipped:   d.skipped.Load(),
		FilesFailed:    d.failed.Load(),
		InFlight:       d.inflight.Load(),
		NextSweep:      d.scheduler.NextRun(),
	}
	if ts := d.lastActivity.Load(); ts != 0 {
		st.LastActivity = time.Unix(0, ts)
	}
	if d.watcher != nil {
		st.WatchDirectories = d.watcher.GetDirectories()
	}
	if d.gate != nil {
		st.Pending = d.gate.Pending()
	}
	if cfg := d.store.Current(); cfg != nil {
		st.ConfigVersion = cfg.Version
	}
	return st
}
