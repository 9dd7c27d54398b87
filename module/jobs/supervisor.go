package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/vijaygopal97/convergent-server/utils"
)

const (
	runnerLockKey     = "qc:jobs:runner"
	runnerLockTTL     = 60 * time.Second
	runnerLockRefresh = 30 * time.Second
)

// Job is one periodic task owned by the supervisor.
type Job struct {
	Name  string
	Every time.Duration
	// RunAfter schedules an extra one-shot run this long after startup;
	// zero means no warm-up run.
	RunAfter time.Duration
	Fn       func(ctx context.Context)
}

// JobSupervisor elects one process instance as the background job runner via
// the advisory lock and owns the lifecycle of every scheduled job. If the
// lock cannot be acquired the instance runs no jobs at all: the bias is
// "don't duplicate work" over "don't miss work".
type JobSupervisor struct {
	locker Locker
	holder string
	jobs   []Job

	mu       sync.Mutex
	running  bool
	cron     *cron.Cron
	oneShots []*time.Timer
	stopOnce *sync.Once
	stopCh   chan struct{}
}

func NewJobSupervisor(locker Locker, jobs []Job) *JobSupervisor {
	return &JobSupervisor{
		locker: locker,
		holder: uuid.New().String(),
		jobs:   jobs,
	}
}

// Start tries to become the job runner. It returns false (without error)
// when another instance already holds the lock; an unreachable lock store is
// also treated as "not the runner".
func (s *JobSupervisor) Start(ctx context.Context) bool {
	ok, err := s.locker.Acquire(ctx, runnerLockKey, s.holder, runnerLockTTL)
	if err != nil {
		utils.LogError("Job supervisor: lock store unreachable, running no jobs", err)
		return false
	}
	if !ok {
		log.Printf("Job supervisor: another instance is the job runner")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = true
	s.stopOnce = &sync.Once{}
	s.stopCh = make(chan struct{})
	s.cron = cron.New()

	for _, job := range s.jobs {
		job := job
		s.cron.Schedule(cron.Every(job.Every), cron.FuncJob(func() {
			s.runJob(ctx, job)
		}))
		if job.RunAfter > 0 {
			timer := time.AfterFunc(job.RunAfter, func() {
				s.runJob(ctx, job)
			})
			s.oneShots = append(s.oneShots, timer)
		}
	}
	s.cron.Start()

	go s.refreshLoop(ctx)

	log.Printf("Job supervisor: acquired runner lock as %s, %d jobs scheduled", s.holder, len(s.jobs))
	return true
}

// IsRunner reports whether this instance currently claims to run the jobs.
func (s *JobSupervisor) IsRunner() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop demotes this instance and best-effort releases the lock. Safe to call
// whether or not Start succeeded.
func (s *JobSupervisor) Stop(ctx context.Context) {
	wasRunning := s.demote()
	if !wasRunning {
		return
	}
	if err := s.locker.Release(ctx, runnerLockKey, s.holder); err != nil {
		utils.LogError("Job supervisor: failed to release runner lock", err)
	}
	log.Printf("Job supervisor: stopped")
}

func (s *JobSupervisor) runJob(ctx context.Context, job Job) {
	// a demoted instance must not start new work even if a tick slipped in
	if !s.IsRunner() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Job %s panicked: %v", job.Name, r)
		}
	}()

	start := time.Now()
	job.Fn(ctx)
	log.Printf("Job %s finished in %s", job.Name, time.Since(start).Round(time.Millisecond))
}

// refreshLoop keeps the lock alive. On any refresh failure the instance
// demotes itself promptly: all timers are cancelled synchronously before the
// running flag clears, so no further tick can fire after demotion.
func (s *JobSupervisor) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(runnerLockRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ok, err := s.locker.Refresh(ctx, runnerLockKey, s.holder, runnerLockTTL)
			if err != nil || !ok {
				utils.LogError("Job supervisor: lock refresh failed, demoting", err)
				s.demote()
				return
			}
		}
	}
}

// demote synchronously cancels the cron schedule and all one-shot timers,
// then clears the running flag. Returns whether the instance was running.
func (s *JobSupervisor) demote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.cron != nil {
		s.cron.Stop()
	}
	for _, timer := range s.oneShots {
		timer.Stop()
	}
	s.oneShots = nil
	s.running = false
	return true
}
