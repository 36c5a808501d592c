package services

import (
	"context"
	"fmt"
	"time"

	"wellness-platform/models"

	"gorm.io/gorm"
)

// RankingEntry is one participant's aggregated score as of a date.
type RankingEntry struct {
	UserID       string `json:"user_id"`
	PointsEarned int64  `json:"points_earned"`
	Rank         int    `json:"rank"`
}

// RankingSnapshot is the ordered, as-of-date list of challenge participants.
// It is computed on demand and never persisted.
type RankingSnapshot struct {
	ChallengeID string         `json:"challenge_id"`
	AsOf        time.Time      `json:"as_of"`
	Entries     []RankingEntry `json:"entries"`
}

// participantPoints is the raw aggregation row before ranks are assigned.
type participantPoints struct {
	UserID       string
	PointsEarned int64
}

// pointsAggregator sums each participant's points for one toolkit inside a
// time window, ordered descending. One aggregator per toolkit variant.
type pointsAggregator func(ctx context.Context, toolkitID string, from, to time.Time) ([]participantPoints, error)

// RankingService resolves a challenge's toolkit variant to its aggregation
// source and produces ranking snapshots. The variant→source mapping is a
// closed dispatch table: an unregistered variant is rejected at the boundary
// rather than turned into a query.
type RankingService struct {
	store   ChallengeStore
	sources map[models.ToolkitVariant]pointsAggregator
}

// NewRankingService registers the GORM-backed aggregation sources for every
// supported toolkit variant.
func NewRankingService(db *gorm.DB, store ChallengeStore) *RankingService {
	return &RankingService{
		store: store,
		sources: map[models.ToolkitVariant]pointsAggregator{
			models.ToolkitVariantHabit:   logPointsAggregator(db, &models.HabitLog{}),
			models.ToolkitVariantRoutine: logPointsAggregator(db, &models.RoutineLog{}),
			models.ToolkitVariantSleep:   logPointsAggregator(db, &models.SleepLog{}),
		},
	}
}

// newRankingServiceWithSources is the injection seam used by tests.
func newRankingServiceWithSources(store ChallengeStore, sources map[models.ToolkitVariant]pointsAggregator) *RankingService {
	return &RankingService{store: store, sources: sources}
}

// logPointsAggregator builds the grouped SUM over one variant's log table.
// The model pins the table at compile time.
func logPointsAggregator(db *gorm.DB, model interface{}) pointsAggregator {
	return func(ctx context.Context, toolkitID string, from, to time.Time) ([]participantPoints, error) {
		var rows []participantPoints
		err := db.WithContext(ctx).Model(model).
			Select("user_id, COALESCE(SUM(points_earned), 0) AS points_earned").
			Where("toolkit_id = ? AND performed_at >= ? AND performed_at <= ?", toolkitID, from, to).
			Group("user_id").
			Order("points_earned DESC").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate participant points: %w", err)
		}
		return rows, nil
	}
}

// ComputeRanking loads the challenge, dispatches on its toolkit variant and
// returns the participants ordered by points earned inside the challenge
// window clamped to asOf. Rank is the position in that order, starting at 1;
// ties keep the sort order the source produced.
func (r *RankingService) ComputeRanking(ctx context.Context, challengeID string, asOf time.Time) (*RankingSnapshot, error) {
	ch, err := r.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	tk, err := r.store.GetToolkit(ctx, ch.ToolkitID)
	if err != nil {
		return nil, err
	}

	aggregate, ok := r.sources[tk.Variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolkitVariantUnsupported, tk.Variant)
	}

	// Points never accrue past the challenge end.
	windowEnd := asOf
	if windowEnd.After(ch.EndDate) {
		windowEnd = ch.EndDate
	}

	rows, err := aggregate(ctx, ch.ToolkitID, ch.StartDate, windowEnd)
	if err != nil {
		return nil, err
	}

	snapshot := &RankingSnapshot{
		ChallengeID: challengeID,
		AsOf:        asOf,
		Entries:     make([]RankingEntry, 0, len(rows)),
	}
	for i, row := range rows {
		snapshot.Entries = append(snapshot.Entries, RankingEntry{
			UserID:       row.UserID,
			PointsEarned: row.PointsEarned,
			Rank:         i + 1,
		})
	}
	return snapshot, nil
}

// DaysPassed returns how many full days of the challenge have elapsed as of
// the given date, clamped to the configured duration — a result view
// requested long after the end still reports total_days, never more.
func DaysPassed(ch *models.Challenge, asOf time.Time) int {
	if asOf.Before(ch.StartDate) {
		return 0
	}
	days := int(asOf.Sub(ch.StartDate).Hours() / 24)
	if days > ch.TotalDays {
		return ch.TotalDays
	}
	return days
}
