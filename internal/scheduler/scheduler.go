// Package scheduler wraps robfig/cron for the periodic workers of
// §4.8 (Evolution) and §4.14 (monthly billing), grounded on the shape
// of aristath-sentinel's internal/scheduler.Scheduler (Job interface,
// cron.AddFunc registration, Start/Stop) but logging via the standard
// library the way this repository's own packages do.
package scheduler

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of periodic work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background cron jobs.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// AddJob registers job on a standard 5-field cron schedule.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := job.Run(); err != nil {
			log.Printf("scheduler: job %s failed: %v", job.Name(), err)
		}
	})
	return err
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	return job.Run()
}
