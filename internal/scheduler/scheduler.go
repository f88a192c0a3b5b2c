package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Cleaner drops expired entries and reports how many were removed
type Cleaner interface {
	Cleanup() int
}

// Scheduler runs the server's housekeeping jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *zap.Logger
}

// New creates a new scheduler instance
func New(logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{scheduler: s, logger: logger}
}

// AddCleanup runs c.Cleanup every interval
func (s *Scheduler) AddCleanup(name string, interval time.Duration, c Cleaner) error {
	if interval <= 0 {
		return fmt.Errorf("cleanup %s: interval must be positive", name)
	}
	_, err := s.scheduler.Every(interval).Tag(name).Do(func() {
		s.runCleanup(name, c)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Start begins running all scheduled jobs without blocking
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

func (s *Scheduler) runCleanup(name string, c Cleaner) {
	if removed := c.Cleanup(); removed > 0 {
		s.logger.Debug("cleanup finished", zap.String("job", name), zap.Int("removed", removed))
	}
}
