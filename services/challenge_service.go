package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"wellness-platform/models"

	"github.com/google/uuid"
)

// TerminationTimer is the scheduling capability the lifecycle needs: one
// cancelable, reschedulable delayed termination per challenge.
// *TerminationScheduler is the production implementation.
type TerminationTimer interface {
	Schedule(challengeID string, endDate time.Time) error
	Cancel(challengeID string)
}

// ChallengeService orchestrates the challenge lifecycle: creation, update,
// termination and per-user settlement. It owns every idempotency guarantee
// and emits the lifecycle events; all state coordination happens through the
// store's conditional writes.
type ChallengeService struct {
	Store     ChallengeStore
	Ranking   *RankingService
	Timer     TerminationTimer
	Publisher EventPublisher
}

func NewChallengeService(store ChallengeStore, ranking *RankingService, timer TerminationTimer, publisher EventPublisher) *ChallengeService {
	return &ChallengeService{
		Store:     store,
		Ranking:   ranking,
		Timer:     timer,
		Publisher: publisher,
	}
}

// ChallengeSpec is the admin input for creating a challenge.
type ChallengeSpec struct {
	ToolkitID             string    `json:"toolkit_id"`
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	TotalDays             int       `json:"total_days"`
	RequiredGoalPoints    int64     `json:"required_goal_points"`
	RequiredWinningPoints int64     `json:"required_winning_points"`
	AwardedGoalPoints     int64     `json:"awarded_goal_points"`
	AwardedWinningPoints  int64     `json:"awarded_winning_points"`
}

// ChallengePatch carries optional field updates; nil means "leave as is".
type ChallengePatch struct {
	StartDate             *time.Time `json:"start_date"`
	EndDate               *time.Time `json:"end_date"`
	TotalDays             *int       `json:"total_days"`
	RequiredGoalPoints    *int64     `json:"required_goal_points"`
	RequiredWinningPoints *int64     `json:"required_winning_points"`
	AwardedGoalPoints     *int64     `json:"awarded_goal_points"`
	AwardedWinningPoints  *int64     `json:"awarded_winning_points"`
}

// CreateChallenge validates the spec, rejects a second active challenge on
// the same toolkit, persists the challenge and schedules its termination.
// Validation happens before any mutation or scheduling side effect.
func (s *ChallengeService) CreateChallenge(ctx context.Context, spec ChallengeSpec) (*models.Challenge, error) {
	if !spec.EndDate.After(spec.StartDate) {
		return nil, ErrInvalidChallengeDates
	}
	if _, err := s.Store.GetToolkit(ctx, spec.ToolkitID); err != nil {
		return nil, err
	}
	active, err := s.Store.HasActiveChallenge(ctx, spec.ToolkitID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveChallengeExists
	}

	totalDays := spec.TotalDays
	if totalDays <= 0 {
		totalDays = int(spec.EndDate.Sub(spec.StartDate).Hours() / 24)
	}

	ch := &models.Challenge{
		ID:                    uuid.NewString(),
		ToolkitID:             spec.ToolkitID,
		StartDate:             spec.StartDate,
		EndDate:               spec.EndDate,
		TotalDays:             totalDays,
		RequiredGoalPoints:    spec.RequiredGoalPoints,
		RequiredWinningPoints: spec.RequiredWinningPoints,
		AwardedGoalPoints:     spec.AwardedGoalPoints,
		AwardedWinningPoints:  spec.AwardedWinningPoints,
	}
	if err := s.Store.CreateChallenge(ctx, ch); err != nil {
		return nil, err
	}

	if err := s.Timer.Schedule(ch.ID, ch.EndDate); err != nil {
		// The challenge row exists; the restore pass picks it up on restart.
		log.Printf("⚠️  failed to schedule termination for challenge %s: %v", ch.ID, err)
	}
	return ch, nil
}

// UpdateChallenge applies a partial update. When the end date changes, the
// previously scheduled termination is superseded by one at the new time.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (*models.Challenge, error) {
	existing, err := s.Store.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}

	start := existing.StartDate
	end := existing.EndDate
	if patch.StartDate != nil {
		start = *patch.StartDate
	}
	if patch.EndDate != nil {
		end = *patch.EndDate
	}
	if !end.After(start) {
		return nil, ErrInvalidChallengeDates
	}

	updates := map[string]interface{}{}
	if patch.StartDate != nil {
		updates["start_date"] = *patch.StartDate
	}
	if patch.EndDate != nil {
		updates["end_date"] = *patch.EndDate
	}
	if patch.TotalDays != nil {
		updates["total_days"] = *patch.TotalDays
	}
	if patch.RequiredGoalPoints != nil {
		updates["required_goal_points"] = *patch.RequiredGoalPoints
	}
	if patch.RequiredWinningPoints != nil {
		updates["required_winning_points"] = *patch.RequiredWinningPoints
	}
	if patch.AwardedGoalPoints != nil {
		updates["awarded_goal_points"] = *patch.AwardedGoalPoints
	}
	if patch.AwardedWinningPoints != nil {
		updates["awarded_winning_points"] = *patch.AwardedWinningPoints
	}
	if len(updates) > 0 {
		if err := s.Store.UpdateChallenge(ctx, id, updates); err != nil {
			return nil, err
		}
	}

	endChanged := patch.EndDate != nil && !patch.EndDate.Equal(existing.EndDate)
	if endChanged && !existing.IsCompleted {
		// Schedule replaces the live job for this id, so the old end time
		// cannot fire independently.
		if err := s.Timer.Schedule(id, end); err != nil {
			log.Printf("⚠️  failed to reschedule termination for challenge %s: %v", id, err)
		}
	}

	return s.Store.GetChallenge(ctx, id)
}

// EndChallenge terminates a challenge. Idempotent: the completion flag is
// flipped by a conditional write, and only the actor that wins the flip
// emits ChallengeEnded. A duplicate trigger — a raced timer, a repeated
// admin call — succeeds without re-emitting, re-running only the
// conditional schedule disable.
func (s *ChallengeService) EndChallenge(ctx context.Context, challengeID string) error {
	ch, err := s.Store.GetChallenge(ctx, challengeID)
	if err != nil {
		return err
	}

	flipped, err := s.Store.MarkChallengeEnded(ctx, challengeID)
	if err != nil {
		return err
	}
	if !flipped {
		// Another actor already won the flip. The schedule disable is a
		// conditional no-op once done, so re-running it here heals an
		// earlier call that flipped the flag but failed before disabling.
		return s.Store.DisableToolkitSchedules(ctx, ch.ToolkitID)
	}

	s.Timer.Cancel(challengeID)
	s.publish(ctx, EventChallengeEnded, ChallengeEndedPayload{
		SchemaVersion: 1,
		ChallengeID:   challengeID,
		ToolkitID:     ch.ToolkitID,
		EndedAt:       time.Now().UTC(),
	})

	if err := s.Store.DisableToolkitSchedules(ctx, ch.ToolkitID); err != nil {
		// The flag is flipped and the event is out; a retry takes the
		// duplicate path above and re-runs the disable.
		return fmt.Errorf("challenge %s ended but disabling toolkit schedules failed: %w", challengeID, err)
	}
	log.Printf("✅ challenge %s ended", challengeID)
	return nil
}

// SettleUserChallenge computes and persists one participant's final outcome
// exactly once. Repeated and concurrent calls return the same persisted
// outcome; only the call that wins the conditional write emits events.
func (s *ChallengeService) SettleUserChallenge(ctx context.Context, challengeID, userID string) (*models.UserChallenge, error) {
	ch, err := s.Store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !ch.IsCompleted {
		return nil, ErrChallengeNotEnded
	}

	existing, err := s.Store.GetUserChallenge(ctx, challengeID, userID)
	if err != nil && !errors.Is(err, ErrUserChallengeNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != models.UserChallengeInProgress {
		return existing, nil // already settled: successful no-op
	}

	snapshot, err := s.Ranking.ComputeRanking(ctx, challengeID, ch.EndDate)
	if err != nil {
		return nil, err
	}
	outcome := DetermineOutcome(userID, snapshot, RewardConfigFromChallenge(ch))

	now := time.Now().UTC()
	uc := &models.UserChallenge{
		ID:                 uuid.NewString(),
		ChallengeID:        challengeID,
		UserID:             userID,
		Status:             outcome.Status,
		GoalBonusPoints:    outcome.GoalBonusPoints,
		WinningBonusPoints: outcome.WinningBonusPoints,
		RawPointsEarned:    outcome.RawPointsEarned,
		TotalRewardPoints:  outcome.TotalRewardPoints,
		IsWinner:           outcome.IsWinner,
		IsGoalCompleted:    outcome.IsGoalCompleted,
		SettledAt:          &now,
	}

	applied, err := s.Store.UpsertSettledUserChallenge(ctx, uc)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent settlement won the write; its outcome is the outcome.
		return s.Store.GetUserChallenge(ctx, challengeID, userID)
	}

	if outcome.IsWinner {
		s.publish(ctx, EventChallengeWon, ChallengeWonPayload{
			SchemaVersion:      1,
			ChallengeID:        challengeID,
			UserID:             userID,
			Rank:               outcome.Rank,
			RawPointsEarned:    outcome.RawPointsEarned,
			WinningBonusPoints: outcome.WinningBonusPoints,
			TotalRewardPoints:  outcome.TotalRewardPoints,
		})
	}
	if outcome.IsGoalCompleted {
		s.publish(ctx, EventChallengeGoalCompleted, ChallengeGoalCompletedPayload{
			SchemaVersion:     1,
			ChallengeID:       challengeID,
			UserID:            userID,
			GoalBonusPoints:   outcome.GoalBonusPoints,
			TotalRewardPoints: outcome.TotalRewardPoints,
		})
	}
	return uc, nil
}

// IsPointsClaimed reports whether the participant's reward points were
// already settled. Read-only.
func (s *ChallengeService) IsPointsClaimed(ctx context.Context, challengeID, userID string) (bool, error) {
	uc, err := s.Store.GetUserChallenge(ctx, challengeID, userID)
	if errors.Is(err, ErrUserChallengeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return uc.Status != models.UserChallengeInProgress, nil
}

// CheckPointsClaimed is the polling entry point: it reports the claimed flag
// and, when the challenge has ended and the points are still unclaimed,
// enqueues an asynchronous settlement task. It never triggers settlement for
// a still-active challenge.
func (s *ChallengeService) CheckPointsClaimed(ctx context.Context, challengeID, userID string) (bool, error) {
	claimed, err := s.IsPointsClaimed(ctx, challengeID, userID)
	if err != nil || claimed {
		return claimed, err
	}

	ch, err := s.Store.GetChallenge(ctx, challengeID)
	if err != nil {
		return false, err
	}
	if !ch.IsCompleted {
		return false, nil
	}
	if err := s.Store.EnqueueSettlement(ctx, challengeID, userID); err != nil {
		// The poll result stays truthful even when enqueueing fails; the
		// next poll tries again.
		log.Printf("⚠️  failed to enqueue settlement for challenge %s user %s: %v", challengeID, userID, err)
	}
	return false, nil
}

// RankingResult is the API view of a ranking snapshot, annotated with the
// requesting user's own position and claim state.
type RankingResult struct {
	ChallengeID string         `json:"challenge_id"`
	AsOf        time.Time      `json:"as_of"`
	DaysPassed  int            `json:"days_passed"`
	TotalDays   int            `json:"total_days"`
	Entries     []RankingEntry `json:"entries"`
	MyRank      int            `json:"my_rank"`
	MyPoints    int64          `json:"my_points"`
	Claimed     bool           `json:"claimed"`
}

// GetRanking computes the ranking as of a date and folds in the requester's
// own rank, points and claimed flag.
func (s *ChallengeService) GetRanking(ctx context.Context, challengeID string, asOf time.Time, requestingUserID string) (*RankingResult, error) {
	ch, err := s.Store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Ranking.ComputeRanking(ctx, challengeID, asOf)
	if err != nil {
		return nil, err
	}
	claimed, err := s.IsPointsClaimed(ctx, challengeID, requestingUserID)
	if err != nil {
		return nil, err
	}

	result := &RankingResult{
		ChallengeID: challengeID,
		AsOf:        asOf,
		DaysPassed:  DaysPassed(ch, asOf),
		TotalDays:   ch.TotalDays,
		Entries:     snapshot.Entries,
		Claimed:     claimed,
	}
	for _, entry := range snapshot.Entries {
		if entry.UserID == requestingUserID {
			result.MyRank = entry.Rank
			result.MyPoints = entry.PointsEarned
			break
		}
	}
	return result, nil
}

// ChallengeResultView is a participant's current or final challenge result.
// For a settled participant it mirrors the persisted row; otherwise it is
// computed on the fly and nothing is persisted.
type ChallengeResultView struct {
	ChallengeID string                     `json:"challenge_id"`
	UserID      string                     `json:"user_id"`
	Status      models.UserChallengeStatus `json:"status"`
	DaysPassed  int                        `json:"days_passed"`
	TotalDays   int                        `json:"total_days"`
	Outcome     Outcome                    `json:"outcome"`
	Claimed     bool                       `json:"claimed"`
}

// GetChallengeResult builds the result view for one participant as of a date.
func (s *ChallengeService) GetChallengeResult(ctx context.Context, challengeID string, asOf time.Time, userID string) (*ChallengeResultView, error) {
	ch, err := s.Store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	view := &ChallengeResultView{
		ChallengeID: challengeID,
		UserID:      userID,
		Status:      models.UserChallengeInProgress,
		DaysPassed:  DaysPassed(ch, asOf),
		TotalDays:   ch.TotalDays,
	}

	existing, err := s.Store.GetUserChallenge(ctx, challengeID, userID)
	if err != nil && !errors.Is(err, ErrUserChallengeNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != models.UserChallengeInProgress {
		view.Status = existing.Status
		view.Claimed = true
		view.Outcome = Outcome{
			UserID:             userID,
			Status:             existing.Status,
			RawPointsEarned:    existing.RawPointsEarned,
			GoalBonusPoints:    existing.GoalBonusPoints,
			WinningBonusPoints: existing.WinningBonusPoints,
			TotalRewardPoints:  existing.TotalRewardPoints,
			IsWinner:           existing.IsWinner,
			IsGoalCompleted:    existing.IsGoalCompleted,
		}
		return view, nil
	}

	snapshot, err := s.Ranking.ComputeRanking(ctx, challengeID, asOf)
	if err != nil {
		return nil, err
	}
	view.Outcome = DetermineOutcome(userID, snapshot, RewardConfigFromChallenge(ch))
	view.Status = view.Outcome.Status
	if !ch.IsCompleted {
		// Provisional result: the challenge is still running.
		view.Status = models.UserChallengeInProgress
	}
	return view, nil
}

// RestoreTerminationSchedules re-arms the termination timer for every open
// challenge. Called once at startup so timers survive restarts.
func (s *ChallengeService) RestoreTerminationSchedules(ctx context.Context) error {
	open, err := s.Store.ListOpenChallenges(ctx)
	if err != nil {
		return err
	}
	for _, ch := range open {
		if err := s.Timer.Schedule(ch.ID, ch.EndDate); err != nil {
			return fmt.Errorf("failed to restore termination schedule for challenge %s: %w", ch.ID, err)
		}
	}
	if len(open) > 0 {
		log.Printf("⏰ restored %d termination schedule(s)", len(open))
	}
	return nil
}

func (s *ChallengeService) publish(ctx context.Context, name string, payload interface{}) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, name, payload); err != nil {
		// Fire-and-forget: subscribers assume at-least-once and resync from
		// persisted state, so a publish failure never fails the operation.
		log.Printf("⚠️  failed to publish %s: %v", name, err)
	}
}
