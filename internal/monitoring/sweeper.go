package monitoring

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Emmanuel1440/task-manager-api/internal/services"
)

// Sweeper periodically flags overdue tasks and reopens completed recurring
// tasks whose next activation has arrived.
type Sweeper struct {
	taskSvc  services.TaskServiceProvider
	eventSvc services.EventServiceProvider
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

// NewSweeper creates a new sweeper instance.
func NewSweeper(taskSvc services.TaskServiceProvider, eventSvc services.EventServiceProvider, interval time.Duration) *Sweeper {
	return &Sweeper{
		taskSvc:  taskSvc,
		eventSvc: eventSvc,
		interval: interval,
		done:     make(chan bool),
	}
}

// Run starts the sweeper's ticking loop.
func (s *Sweeper) Run() {
	log.Info().Dur("interval", s.interval).Msg("Starting background task sweeper")
	s.ticker = time.NewTicker(s.interval)
	defer s.ticker.Stop()

	// Run once immediately on start
	s.Sweep(time.Now().UTC())

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping background task sweeper")
			return
		case <-s.ticker.C:
			s.Sweep(time.Now().UTC())
		}
	}
}

// Stop halts the sweeper.
func (s *Sweeper) Stop() {
	s.done <- true
}

// Sweep performs a single pass at the given instant.
func (s *Sweeper) Sweep(now time.Time) {
	s.sweepOverdue(now)
	s.sweepRecurring(now)
}

func (s *Sweeper) sweepOverdue(now time.Time) {
	tasks, err := s.taskSvc.FindNewlyOverdue(now)
	if err != nil {
		log.Error().Err(err).Msg("Sweeper: failed to query overdue tasks")
		return
	}

	for _, task := range tasks {
		if err := s.taskSvc.MarkOverdue(task.ID); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("Sweeper: failed to mark task overdue")
			continue
		}
		s.eventSvc.Record("task.overdue", "warn", fmt.Sprintf("Task %q is overdue", task.Title), &task.ID, task.UserID)
	}
}

func (s *Sweeper) sweepRecurring(now time.Time) {
	tasks, err := s.taskSvc.FindCompletedRecurring()
	if err != nil {
		log.Error().Err(err).Msg("Sweeper: failed to query recurring tasks")
		return
	}

	for _, task := range tasks {
		schedule, err := cron.ParseStandard(task.Recurrence)
		if err != nil {
			log.Warn().Err(err).Str("task_id", task.ID).Str("recurrence", task.Recurrence).Msg("Sweeper: invalid recurrence expression")
			continue
		}

		// The activation after the last touch; once it passes, the task
		// comes back with a due date at the following activation.
		if next := schedule.Next(task.UpdatedAt); now.After(next) {
			if err := s.taskSvc.Reopen(task.ID, schedule.Next(now)); err != nil {
				log.Error().Err(err).Str("task_id", task.ID).Msg("Sweeper: failed to reopen recurring task")
				continue
			}
			s.eventSvc.Record("task.reopened", "info", fmt.Sprintf("Recurring task %q reopened", task.Title), &task.ID, task.UserID)
		}
	}
}
