package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"wellness-platform/services"
)

// SettlementWorker drains the settlement task queue. Tasks are claimed with
// a conditional pending→processing update, then handed to a bounded pool of
// goroutines that run the idempotent settlement path, so duplicate delivery
// or two worker processes racing over the same rows stays harmless.
type SettlementWorker struct {
	Store       services.ChallengeStore
	Lifecycle   *services.ChallengeService
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

func NewSettlementWorker(store services.ChallengeStore, lifecycle *services.ChallengeService, interval time.Duration, concurrency int) *SettlementWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SettlementWorker{
		Store:       store,
		Lifecycle:   lifecycle,
		Interval:    interval,
		Concurrency: concurrency,
		BatchSize:   concurrency * 4,
	}
}

// Run polls for due settlement tasks until the context is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) {
	log.Printf("Starting settlement worker (every %s, concurrency %d)...", w.Interval, w.Concurrency)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Settlement worker stopped.")
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

func (w *SettlementWorker) drainOnce(ctx context.Context) {
	tasks, err := w.Store.ClaimPendingSettlements(ctx, w.BatchSize)
	if err != nil {
		log.Printf("❌ Error claiming settlement tasks: %v", err)
		return
	}
	if len(tasks) == 0 {
		return
	}
	log.Printf("📥 Claimed %d settlement task(s)", len(tasks))

	sem := make(chan struct{}, w.Concurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(taskID, challengeID, userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, settleErr := w.Lifecycle.SettleUserChallenge(ctx, challengeID, userID)
			if settleErr != nil {
				// Recorded on the task for operators; the claim poll keeps
				// reporting unclaimed and can re-enqueue.
				log.Printf("❌ Settlement failed for challenge %s user %s: %v", challengeID, userID, settleErr)
			}
			if err := w.Store.FinishSettlementTask(ctx, taskID, settleErr); err != nil {
				log.Printf("❌ Failed to finish settlement task %s: %v", taskID, err)
			}
		}(task.ID, task.ChallengeID, task.UserID)
	}
	wg.Wait()
}
