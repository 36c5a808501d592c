package services

import (
	"context"
	"testing"
	"time"

	"wellness-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAggregator returns fixed rows and captures the window it was
// queried with.
type recordingAggregator struct {
	rows []participantPoints
	from time.Time
	to   time.Time
}

func (a *recordingAggregator) aggregate(_ context.Context, _ string, from, to time.Time) ([]participantPoints, error) {
	a.from = from
	a.to = to
	return a.rows, nil
}

func seedRankingFixture(store *memStore, variant models.ToolkitVariant) *models.Challenge {
	tk := &models.Toolkit{ID: "tk-1", Title: "Evening Routine", Slug: "evening-routine", Variant: variant, IsActive: true}
	store.toolkits[tk.ID] = tk
	ch := &models.Challenge{
		ID:        "ch-1",
		ToolkitID: tk.ID,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		TotalDays: 9,
	}
	store.challenges[ch.ID] = ch
	return ch
}

func TestComputeRankingAssignsRanksInOrder(t *testing.T) {
	store := newMemStore()
	ch := seedRankingFixture(store, models.ToolkitVariantRoutine)
	agg := &recordingAggregator{rows: []participantPoints{
		{UserID: "u1", PointsEarned: 30},
		{UserID: "u2", PointsEarned: 20},
		{UserID: "u3", PointsEarned: 20},
	}}
	svc := newRankingServiceWithSources(store, map[models.ToolkitVariant]pointsAggregator{
		models.ToolkitVariantRoutine: agg.aggregate,
	})

	snapshot, err := svc.ComputeRanking(context.Background(), ch.ID, ch.EndDate)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 3)
	assert.Equal(t, RankingEntry{UserID: "u1", PointsEarned: 30, Rank: 1}, snapshot.Entries[0])
	assert.Equal(t, RankingEntry{UserID: "u2", PointsEarned: 20, Rank: 2}, snapshot.Entries[1])
	assert.Equal(t, RankingEntry{UserID: "u3", PointsEarned: 20, Rank: 3}, snapshot.Entries[2])
}

func TestComputeRankingClampsWindowToEndDate(t *testing.T) {
	store := newMemStore()
	ch := seedRankingFixture(store, models.ToolkitVariantSleep)
	agg := &recordingAggregator{}
	svc := newRankingServiceWithSources(store, map[models.ToolkitVariant]pointsAggregator{
		models.ToolkitVariantSleep: agg.aggregate,
	})

	asOf := ch.EndDate.AddDate(0, 1, 0)
	_, err := svc.ComputeRanking(context.Background(), ch.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, ch.StartDate, agg.from)
	assert.Equal(t, ch.EndDate, agg.to, "points never accrue past the end date")
}

func TestComputeRankingMidChallengeWindow(t *testing.T) {
	store := newMemStore()
	ch := seedRankingFixture(store, models.ToolkitVariantHabit)
	agg := &recordingAggregator{}
	svc := newRankingServiceWithSources(store, map[models.ToolkitVariant]pointsAggregator{
		models.ToolkitVariantHabit: agg.aggregate,
	})

	asOf := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	snapshot, err := svc.ComputeRanking(context.Background(), ch.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, asOf, agg.to)
	assert.Equal(t, asOf, snapshot.AsOf)
	assert.Empty(t, snapshot.Entries)
}

func TestComputeRankingRejectsUnknownVariant(t *testing.T) {
	store := newMemStore()
	ch := seedRankingFixture(store, "CARDIO")
	svc := newRankingServiceWithSources(store, map[models.ToolkitVariant]pointsAggregator{
		models.ToolkitVariantHabit: (&recordingAggregator{}).aggregate,
	})

	_, err := svc.ComputeRanking(context.Background(), ch.ID, ch.EndDate)
	require.ErrorIs(t, err, ErrToolkitVariantUnsupported)
}

func TestComputeRankingChallengeNotFound(t *testing.T) {
	svc := newRankingServiceWithSources(newMemStore(), nil)
	_, err := svc.ComputeRanking(context.Background(), "missing", time.Now())
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestDaysPassed(t *testing.T) {
	ch := &models.Challenge{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		TotalDays: 9,
	}

	tests := []struct {
		name string
		asOf time.Time
		want int
	}{
		{"before start", time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), 0},
		{"at start", ch.StartDate, 0},
		{"mid challenge", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 3},
		{"partial day rounds down", time.Date(2024, 1, 4, 23, 0, 0, 0, time.UTC), 3},
		{"at end", ch.EndDate, 9},
		{"long after end clamps to total", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysPassed(ch, tt.asOf))
		})
	}
}
