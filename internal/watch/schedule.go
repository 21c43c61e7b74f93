package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mfo/internal/config"
	"mfo/internal/log"

	"github.com/robfig/cron/v3"
)

// CronSpec turns a scheduled_organization block into a five-field cron
// expression: daily at HH:MM, weekly on Sunday, monthly on the 1st.
func CronSpec(s config.ScheduledOrganization) (string, error) {
	hour, minute, err := s.Clock()
	if err != nil {
		return "", err
	}
	switch s.Frequency {
	case config.Daily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case config.Weekly:
		return fmt.Sprintf("%d %d * * 0", minute, hour), nil
	case config.Monthly:
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	}
	return "", fmt.Errorf("unknown frequency %q", s.Frequency)
}

// Scheduler runs the periodic sweep. Apply rebuilds it from a snapshot.
type Scheduler struct {
	logger log.Logging
	job    func()

	mu      sync.Mutex
	cron    *cron.Cron
	spec    string
	entryID cron.EntryID
}

// NewScheduler creates a stopped scheduler that runs job on schedule.
func NewScheduler(job func(), logger log.Logging) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Scheduler{job: job, logger: logger}
}

// Apply starts, reschedules or stops the sweep to match s.
func (s *Scheduler) Apply(sched config.ScheduledOrganization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sched.Enabled {
		if s.cron != nil {
			s.stopLocked()
			s.logger.Info("Scheduled organization disabled")
		}
		return nil
	}

	spec, err := CronSpec(sched)
	if err != nil {
		return err
	}
	if s.cron != nil && spec == s.spec {
		return nil
	}
	s.stopLocked()

	c := cron.New(cron.WithLocation(time.Local), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(spec, s.job)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron, s.spec, s.entryID = c, spec, id
	s.logger.With(
		log.F("frequency", sched.Frequency),
		log.F("time", sched.Time),
		log.F("next_run", c.Entry(id).Next.Format(time.RFC3339)),
	).Info("Scheduled organization enabled")
	return nil
}

// NextRun returns the next scheduled sweep, or the zero time.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Stop cancels the schedule and waits for a running sweep to return or
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron, s.spec, s.entryID = nil, "", 0
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) stopLocked() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron, s.spec, s.entryID = nil, "", 0
}
