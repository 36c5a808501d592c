// services/scheduler.go
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// MinTerminationDelay is the floor applied when a challenge's end date is
// already in the past at scheduling time: one-shot jobs reject non-positive
// delays, so the job is pushed just far enough into the future to fire.
const MinTerminationDelay = time.Second

// DueFunc is invoked when a challenge's termination timer fires. Firing is
// at-least-once; the callback must be idempotent.
type DueFunc func(ctx context.Context, challengeID string) error

// TerminationScheduler keeps at most one live "end this challenge" job per
// challenge id. Scheduling the same id again supersedes the previous job.
type TerminationScheduler struct {
	sched gocron.Scheduler

	mu    sync.Mutex
	jobs  map[string]uuid.UUID // challenge id → live job
	onDue DueFunc
}

// NewTerminationScheduler builds the scheduler with a bounded worker pool:
// at most concurrency termination jobs run at once, the rest queue.
func NewTerminationScheduler(concurrency int) (*TerminationScheduler, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	sched, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(uint(concurrency), gocron.LimitModeWait),
	)
	if err != nil {
		return nil, err
	}
	return &TerminationScheduler{
		sched: sched,
		jobs:  make(map[string]uuid.UUID),
	}, nil
}

// Start registers the due-callback and starts dispatching jobs.
func (s *TerminationScheduler) Start(onDue DueFunc) {
	s.mu.Lock()
	s.onDue = onDue
	s.mu.Unlock()
	s.sched.Start()
}

// Shutdown stops the scheduler and drops all pending jobs.
func (s *TerminationScheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// terminationFireAt computes when the termination job should fire.
// delay = max(endDate - now, MinTerminationDelay).
func terminationFireAt(now, endDate time.Time) time.Time {
	delay := endDate.Sub(now)
	if delay < MinTerminationDelay {
		delay = MinTerminationDelay
	}
	return now.Add(delay)
}

// Schedule creates the delayed termination job for a challenge. An existing
// job for the same challenge is cancelled first, never duplicated.
func (s *TerminationScheduler) Schedule(challengeID string, endDate time.Time) error {
	fireAt := terminationFireAt(time.Now(), endDate)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.jobs[challengeID]; ok {
		if err := s.sched.RemoveJob(prev); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			log.Printf("[Scheduler] failed to remove stale job for challenge %s: %v", challengeID, err)
		}
		delete(s.jobs, challengeID)
	}

	job, err := s.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(fireAt)),
		gocron.NewTask(s.dispatch, challengeID),
	)
	if err != nil {
		return err
	}
	s.jobs[challengeID] = job.ID()
	log.Printf("[Scheduler] challenge %s termination scheduled for %s", challengeID, fireAt.Format(time.RFC3339))
	return nil
}

// Cancel removes the live termination job for a challenge, if any. Absence
// is not an error: the job may already have fired or never existed.
func (s *TerminationScheduler) Cancel(challengeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobID, ok := s.jobs[challengeID]
	if !ok {
		return
	}
	delete(s.jobs, challengeID)
	if err := s.sched.RemoveJob(jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Printf("[Scheduler] failed to cancel job for challenge %s: %v", challengeID, err)
	}
}

// scheduled reports whether a live job exists for the challenge.
func (s *TerminationScheduler) scheduled(challengeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[challengeID]
	return ok
}

func (s *TerminationScheduler) dispatch(challengeID string) {
	s.mu.Lock()
	delete(s.jobs, challengeID) // one-shot: the job is spent either way
	onDue := s.onDue
	s.mu.Unlock()

	if onDue == nil {
		log.Printf("[Scheduler] no due-callback registered, dropping fire for challenge %s", challengeID)
		return
	}
	if err := onDue(context.Background(), challengeID); err != nil {
		log.Printf("[Scheduler] ❌ failed to end challenge %s: %v", challengeID, err)
	}
}
