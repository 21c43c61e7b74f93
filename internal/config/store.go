package config

import (
	"sync"
	"sync/atomic"

	"mfo/internal/errors"
	"mfo/internal/log"
)

// Source supplies configuration snapshots to the rest of the program.
type Source interface {
	// Current returns the active snapshot. Callers must not modify it.
	Current() *Config
	// Reload re-reads the backing file. On error the active snapshot is
	// left in place.
	Reload() error
	// Path is the backing file.
	Path() string
}

// Override adjusts a freshly loaded snapshot before it is validated and
// published, e.g. to apply command line flags.
type Override func(*Config)

// Store owns the active configuration snapshot.
type Store struct {
	path      string
	overrides []Override
	logger    log.Logging

	current atomic.Pointer[Config]
	version atomic.Uint64

	// reloadMu serializes Reload; readers never take it.
	reloadMu sync.Mutex

	subMu sync.Mutex
	subs  []chan *Config
}

// NewStore creates a store backed by path. Nothing is read until Load.
func NewStore(path string, logger log.Logging, overrides ...Override) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{path: path, logger: logger, overrides: overrides}
}

// NewStaticStore publishes cfg as-is without a backing file. Reload
// re-publishes the same snapshot. Used by one-shot commands and tests.
func NewStaticStore(cfg *Config) *Store {
	s := &Store{logger: log.Discard()}
	s.publish(cfg.Clone())
	return s
}

// Load performs the initial read. Unlike Reload, callers are expected to
// treat its failure as fatal.
func (s *Store) Load() (*Config, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	s.publish(cfg)
	s.logger.With(log.F("path", s.path), log.F("version", cfg.Version)).Info("Configuration loaded")
	return cfg, nil
}

// Reload re-reads the file and swaps the snapshot. In-flight work keeps
// the snapshot it already holds.
func (s *Store) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if s.path == "" {
		return nil
	}
	cfg, err := s.read()
	if err != nil {
		s.logger.WithError(err).Error("Configuration reload rejected, keeping previous configuration")
		return err
	}
	s.publish(cfg)
	s.logger.With(log.F("path", s.path), log.F("version", cfg.Version)).Info("Configuration reloaded")
	return nil
}

func (s *Store) read() (*Config, error) {
	cfg, err := LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	if len(s.overrides) > 0 {
		for _, o := range s.overrides {
			o(cfg)
		}
		cfg.normalize()
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrap(err, "configuration invalid after command line overrides")
		}
	}
	for _, w := range cfg.Lint() {
		s.logger.With(log.F("path", s.path)).Warn(w)
	}
	return cfg, nil
}

func (s *Store) publish(cfg *Config) {
	cfg.Version = s.version.Add(1)
	s.current.Store(cfg)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		// Keep only the newest snapshot for slow subscribers.
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
}

// Current returns the active snapshot, or nil before Load.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Subscribe returns a channel that receives every newly published
// snapshot. A subscriber that falls behind only sees the latest one.
func (s *Store) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

var _ Source = (*Store)(nil)
