package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"wellness-platform/models"
	"wellness-platform/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves a fixed task batch and records how each task was finished.
type stubStore struct {
	mu          sync.Mutex
	pending     []models.SettlementTask
	challenge   *models.Challenge
	settledUser *models.UserChallenge
	finished    map[string]error
}

func (s *stubStore) GetToolkit(context.Context, string) (*models.Toolkit, error) {
	return nil, services.ErrToolkitNotFound
}

func (s *stubStore) GetChallenge(_ context.Context, id string) (*models.Challenge, error) {
	if s.challenge != nil && s.challenge.ID == id {
		cp := *s.challenge
		return &cp, nil
	}
	return nil, services.ErrChallengeNotFound
}

func (s *stubStore) HasActiveChallenge(context.Context, string) (bool, error) { return false, nil }

func (s *stubStore) CreateChallenge(context.Context, *models.Challenge) error { return nil }

func (s *stubStore) UpdateChallenge(context.Context, string, map[string]interface{}) error {
	return nil
}

func (s *stubStore) ListOpenChallenges(context.Context) ([]models.Challenge, error) {
	return nil, nil
}

func (s *stubStore) MarkChallengeEnded(context.Context, string) (bool, error) { return false, nil }

func (s *stubStore) DisableToolkitSchedules(context.Context, string) error { return nil }

func (s *stubStore) GetUserChallenge(_ context.Context, _, userID string) (*models.UserChallenge, error) {
	if s.settledUser != nil && s.settledUser.UserID == userID {
		cp := *s.settledUser
		return &cp, nil
	}
	return nil, services.ErrUserChallengeNotFound
}

func (s *stubStore) UpsertSettledUserChallenge(context.Context, *models.UserChallenge) (bool, error) {
	return false, nil
}

func (s *stubStore) EnqueueSettlement(context.Context, string, string) error { return nil }

func (s *stubStore) ClaimPendingSettlements(_ context.Context, limit int) ([]models.SettlementTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, nil
	}
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	batch := s.pending[:limit]
	s.pending = s.pending[limit:]
	return batch, nil
}

func (s *stubStore) FinishSettlementTask(_ context.Context, taskID string, taskErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished == nil {
		s.finished = make(map[string]error)
	}
	s.finished[taskID] = taskErr
	return nil
}

func newWorkerFixture(store *stubStore) *SettlementWorker {
	lifecycle := services.NewChallengeService(store, nil, nil, nil)
	return NewSettlementWorker(store, lifecycle, 10*time.Millisecond, 2)
}

func TestDrainOnceFinishesClaimedTasks(t *testing.T) {
	// The challenge has ended and the user is already settled, so every task
	// resolves through the idempotent no-op path.
	store := &stubStore{
		challenge: &models.Challenge{ID: "ch-1", IsCompleted: true},
		settledUser: &models.UserChallenge{
			ChallengeID: "ch-1",
			UserID:      "u1",
			Status:      models.UserChallengeWinner,
		},
		pending: []models.SettlementTask{
			{ID: "t1", ChallengeID: "ch-1", UserID: "u1", Status: models.SettlementProcessing},
			{ID: "t2", ChallengeID: "ch-1", UserID: "u1", Status: models.SettlementProcessing},
			{ID: "t3", ChallengeID: "ch-1", UserID: "u1", Status: models.SettlementProcessing},
		},
	}
	w := newWorkerFixture(store)

	w.drainOnce(context.Background())

	require.Len(t, store.finished, 3)
	for _, id := range []string{"t1", "t2", "t3"} {
		err, ok := store.finished[id]
		require.True(t, ok, "task %s must be finished", id)
		assert.NoError(t, err)
	}
	assert.Empty(t, store.pending, "batch fully drained")
}

func TestDrainOnceRecordsSettlementFailure(t *testing.T) {
	// Challenge still running: settlement is rejected and the task carries
	// the error instead of succeeding silently.
	store := &stubStore{
		challenge: &models.Challenge{ID: "ch-1", IsCompleted: false},
		pending: []models.SettlementTask{
			{ID: "t1", ChallengeID: "ch-1", UserID: "u1", Status: models.SettlementProcessing},
		},
	}
	w := newWorkerFixture(store)

	w.drainOnce(context.Background())

	require.Len(t, store.finished, 1)
	assert.ErrorIs(t, store.finished["t1"], services.ErrChallengeNotEnded)
}

func TestDrainOnceWithEmptyQueue(t *testing.T) {
	store := &stubStore{}
	w := newWorkerFixture(store)
	w.drainOnce(context.Background())
	assert.Empty(t, store.finished)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &stubStore{}
	w := newWorkerFixture(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
