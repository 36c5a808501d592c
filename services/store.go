package services

import (
	"context"
	"errors"
	"time"

	"wellness-platform/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeStore is the persistence boundary of the lifecycle engine. All
// coordination between concurrent actors happens here, through conditional
// writes that report whether they actually applied — there are no locks
// anywhere above this interface.
type ChallengeStore interface {
	GetToolkit(ctx context.Context, id string) (*models.Toolkit, error)
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	HasActiveChallenge(ctx context.Context, toolkitID string) (bool, error)
	CreateChallenge(ctx context.Context, ch *models.Challenge) error
	UpdateChallenge(ctx context.Context, id string, updates map[string]interface{}) error
	ListOpenChallenges(ctx context.Context) ([]models.Challenge, error)

	// MarkChallengeEnded flips the completion flag only if it is still false.
	// It returns true when this call performed the flip, false when another
	// actor already did. A missing challenge is ErrChallengeNotFound.
	MarkChallengeEnded(ctx context.Context, id string) (bool, error)

	DisableToolkitSchedules(ctx context.Context, toolkitID string) error

	GetUserChallenge(ctx context.Context, challengeID, userID string) (*models.UserChallenge, error)

	// UpsertSettledUserChallenge persists a settled outcome so that exactly
	// one of any number of concurrent attempts for the same (challenge, user)
	// pair succeeds. Returns true when this call applied the write.
	UpsertSettledUserChallenge(ctx context.Context, uc *models.UserChallenge) (bool, error)

	// EnqueueSettlement inserts a pending settlement task. A pending,
	// processing or done duplicate for the same (challenge, user) pair is a
	// silent no-op; a failed one is reset to pending so it gets retried.
	EnqueueSettlement(ctx context.Context, challengeID, userID string) error

	// ClaimPendingSettlements moves up to limit pending tasks to processing
	// and returns only the ones this caller actually claimed.
	ClaimPendingSettlements(ctx context.Context, limit int) ([]models.SettlementTask, error)

	// FinishSettlementTask records the task result: done on nil, failed with
	// the error text otherwise.
	FinishSettlementTask(ctx context.Context, taskID string, taskErr error) error
}

type gormChallengeStore struct {
	db *gorm.DB
}

// NewChallengeStore returns the GORM-backed ChallengeStore.
func NewChallengeStore(db *gorm.DB) ChallengeStore {
	return &gormChallengeStore{db: db}
}

func (s *gormChallengeStore) GetToolkit(ctx context.Context, id string) (*models.Toolkit, error) {
	var tk models.Toolkit
	if err := s.db.WithContext(ctx).First(&tk, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolkitNotFound
		}
		return nil, err
	}
	return &tk, nil
}

func (s *gormChallengeStore) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var ch models.Challenge
	if err := s.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return &ch, nil
}

func (s *gormChallengeStore) HasActiveChallenge(ctx context.Context, toolkitID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("toolkit_id = ? AND is_completed = ?", toolkitID, false).
		Count(&count).Error
	return count > 0, err
}

func (s *gormChallengeStore) CreateChallenge(ctx context.Context, ch *models.Challenge) error {
	if err := s.db.WithContext(ctx).Create(ch).Error; err != nil {
		// The partial unique index on open challenges closes the race between
		// the active-challenge check and the insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrActiveChallengeExists
		}
		return err
	}
	return nil
}

func (s *gormChallengeStore) UpdateChallenge(ctx context.Context, id string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

func (s *gormChallengeStore) ListOpenChallenges(ctx context.Context) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.db.WithContext(ctx).
		Where("is_completed = ?", false).
		Find(&challenges).Error
	return challenges, err
}

func (s *gormChallengeStore) MarkChallengeEnded(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ? AND is_completed = ?", id, false).
		Update("is_completed", true)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Zero rows is either "already ended" or "no such challenge".
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Challenge{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrChallengeNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *gormChallengeStore) DisableToolkitSchedules(ctx context.Context, toolkitID string) error {
	return s.db.WithContext(ctx).Model(&models.ToolkitSchedule{}).
		Where("toolkit_id = ? AND is_active = ?", toolkitID, true).
		Update("is_active", false).Error
}

func (s *gormChallengeStore) GetUserChallenge(ctx context.Context, challengeID, userID string) (*models.UserChallenge, error) {
	var uc models.UserChallenge
	err := s.db.WithContext(ctx).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserChallengeNotFound
		}
		return nil, err
	}
	return &uc, nil
}

func (s *gormChallengeStore) UpsertSettledUserChallenge(ctx context.Context, uc *models.UserChallenge) (bool, error) {
	// A row may already exist in IN_PROGRESS; claim it with a conditional
	// update first. The status guard is what makes concurrent settlement
	// single-winner.
	result := s.db.WithContext(ctx).Model(&models.UserChallenge{}).
		Where("challenge_id = ? AND user_id = ? AND status = ?",
			uc.ChallengeID, uc.UserID, models.UserChallengeInProgress).
		Updates(map[string]interface{}{
			"status":               uc.Status,
			"goal_bonus_points":    uc.GoalBonusPoints,
			"winning_bonus_points": uc.WinningBonusPoints,
			"raw_points_earned":    uc.RawPointsEarned,
			"total_reward_points":  uc.TotalRewardPoints,
			"is_winner":            uc.IsWinner,
			"is_goal_completed":    uc.IsGoalCompleted,
			"settled_at":           uc.SettledAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		// The claimed row keeps its original identity; hand the persisted
		// state back so callers never see an id the database doesn't have.
		var persisted models.UserChallenge
		if err := s.db.WithContext(ctx).
			Where("challenge_id = ? AND user_id = ?", uc.ChallengeID, uc.UserID).
			First(&persisted).Error; err != nil {
			return false, err
		}
		*uc = persisted
		return true, nil
	}

	// No claimable row: insert one. DoNothing means a concurrent insert for
	// the same pair leaves exactly one row and reports zero rows to the
	// loser, which we read back as "already settled".
	insert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(uc)
	if insert.Error != nil {
		return false, insert.Error
	}
	return insert.RowsAffected == 1, nil
}

func (s *gormChallengeStore) EnqueueSettlement(ctx context.Context, challengeID, userID string) error {
	task := models.SettlementTask{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		UserID:      userID,
		Status:      models.SettlementPending,
	}
	// A pending or processing duplicate is left alone; a failed task is
	// reset to pending so the next poll retries it instead of starving the
	// user forever. Attempts keep counting across retries.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     models.SettlementPending,
			"last_error": "",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: "settlement_tasks", Name: "status"},
				Value:  models.SettlementFailed,
			},
		}},
	}).Create(&task).Error
}

func (s *gormChallengeStore) ClaimPendingSettlements(ctx context.Context, limit int) ([]models.SettlementTask, error) {
	var candidates []models.SettlementTask
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SettlementPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]models.SettlementTask, 0, len(candidates))
	for _, task := range candidates {
		result := s.db.WithContext(ctx).Model(&models.SettlementTask{}).
			Where("id = ? AND status = ?", task.ID, models.SettlementPending).
			Updates(map[string]interface{}{
				"status":   models.SettlementProcessing,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 1 {
			claimed = append(claimed, task)
		}
		// Zero rows: another worker claimed it between the read and the
		// update. Skip it.
	}
	return claimed, nil
}

func (s *gormChallengeStore) FinishSettlementTask(ctx context.Context, taskID string, taskErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.SettlementDone,
		"last_error":   "",
		"processed_at": &now,
	}
	if taskErr != nil {
		updates["status"] = models.SettlementFailed
		updates["last_error"] = taskErr.Error()
	}
	return s.db.WithContext(ctx).Model(&models.SettlementTask{}).
		Where("id = ?", taskID).
		Updates(updates).Error
}
