package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mfo/internal/log"

	"github.com/fsnotify/fsnotify"
)

// FileModification represents a file event detected by the watcher
type FileModification struct {
	Path      string
	Info      os.FileInfo // nil for DirGone events
	Timestamp time.Time
	Op        fsnotify.Op
	// DirGone is set when a watched directory itself was removed or
	// renamed away. The watch on it is gone.
	DirGone bool
}

// Watcher monitors directories for file changes using fsnotify
type Watcher struct {
	logger log.Logging

	// Directories being watched
	directories []string

	// Channel to receive file modifications
	fileModChan chan FileModification

	// Channel to signal stop
	stopChan chan struct{}
	loopDone chan struct{}

	// fsnotify watcher instance
	fsWatcher *fsnotify.Watcher

	// Lock for running state and the directories list
	mutex sync.RWMutex

	// Whether the watcher is running
	running bool
}

// New creates a new directory watcher using fsnotify
func New(logger log.Logging) (*Watcher, error) {
	if logger == nil {
		logger = log.Discard()
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:      logger,
		directories: []string{},
		fileModChan: make(chan FileModification, 64),
		stopChan:    make(chan struct{}),
		loopDone:    make(chan struct{}),
		fsWatcher:   fsWatcher,
	}, nil
}

// AddDirectory adds a directory to watch using fsnotify
func (w *Watcher) AddDirectory(dir string) error {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}

	w.mutex.Lock()
	if !w.watchingLocked(dir) {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()
	w.logger.With(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// RemoveDirectory stops watching dir. Removing a directory that is not
// watched is not an error.
func (w *Watcher) RemoveDirectory(dir string) error {
	dir = filepath.Clean(dir)
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if !w.watchingLocked(dir) {
		return nil
	}
	w.forgetLocked(dir)
	// fsnotify drops the watch on its own when the directory is deleted.
	if err := w.fsWatcher.Remove(dir); err != nil && err != fsnotify.ErrNonExistentWatch {
		return fmt.Errorf("failed to remove directory %s from watcher: %w", dir, err)
	}
	w.logger.With(log.F("directory", dir)).Info("Stopped watching directory")
	return nil
}

func (w *Watcher) watchingLocked(dir string) bool {
	for _, existing := range w.directories {
		if existing == dir {
			return true
		}
	}
	return false
}

func (w *Watcher) forgetLocked(dir string) {
	for i, existing := range w.directories {
		if existing == dir {
			w.directories = append(w.directories[:i], w.directories[i+1:]...)
			return
		}
	}
}

// FileChannel returns the channel that delivers file modification events.
// It is closed by Stop.
func (w *Watcher) FileChannel() <-chan FileModification {
	return w.fileModChan
}

// Start begins the file watching process using fsnotify
func (w *Watcher) Start() error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mutex.Unlock()

	go w.loop()
	w.logger.Debug("Watcher started")
	return nil
}

func (w *Watcher) loop() {
	defer close(w.loopDone)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			mod, ok := w.translate(event)
			if !ok {
				continue
			}
			// Block rather than drop: a lost Create is a file that never
			// gets organized.
			select {
			case w.fileModChan <- mod:
			case <-w.stopChan:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if err == fsnotify.ErrEventOverflow {
				w.logger.WithError(err).Warn("Filesystem event queue overflowed, some new files may be missed until the next sweep")
				continue
			}
			w.logger.WithError(err).Error("fsnotify watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) translate(event fsnotify.Event) (FileModification, bool) {
	name := filepath.Clean(event.Name)
	now := time.Now()

	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.mutex.Lock()
		watched := w.watchingLocked(name)
		if watched {
			w.forgetLocked(name)
		}
		w.mutex.Unlock()
		if watched {
			return FileModification{Path: name, Timestamp: now, Op: event.Op, DirGone: true}, true
		}
		return FileModification{}, false
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return FileModification{}, false
	}
	info, err := os.Stat(name)
	if err != nil {
		// Gone again already, e.g. a browser's temporary file.
		if !os.IsNotExist(err) {
			w.logger.With(log.F("file", name)).WithError(err).Error("Error stating file")
		}
		return FileModification{}, false
	}
	if info.IsDir() {
		return FileModification{}, false
	}
	return FileModification{Path: name, Info: info, Timestamp: now, Op: event.Op}, true
}

// Stop halts the file watching process and closes FileChannel.
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		if err := w.fsWatcher.Close(); err != nil {
			w.logger.WithError(err).Debug("Error closing idle fsnotify watcher")
		}
		return
	}
	w.running = false
	close(w.stopChan)
	w.mutex.Unlock()

	if err := w.fsWatcher.Close(); err != nil {
		w.logger.WithError(err).Error("Error closing fsnotify watcher")
	}
	<-w.loopDone
	close(w.fileModChan)
	w.logger.Debug("Watcher stopped")
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// GetDirectories returns the list of directories being watched
func (w *Watcher) GetDirectories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirsCopy := make([]string, len(w.directories))
	copy(dirsCopy, w.directories)
	return dirsCopy
}
