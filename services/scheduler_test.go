package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminationFireAt(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	t.Run("future end date fires at the end date", func(t *testing.T) {
		end := now.Add(48 * time.Hour)
		assert.Equal(t, end, terminationFireAt(now, end))
	})

	t.Run("past end date gets the minimum delay", func(t *testing.T) {
		end := now.Add(-time.Hour)
		assert.Equal(t, now.Add(MinTerminationDelay), terminationFireAt(now, end))
	})

	t.Run("end date right now gets the minimum delay", func(t *testing.T) {
		assert.Equal(t, now.Add(MinTerminationDelay), terminationFireAt(now, now))
	})
}

func TestScheduleReplacesExistingJob(t *testing.T) {
	s, err := NewTerminationScheduler(1)
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Schedule("ch-1", time.Now().Add(time.Hour)))
	first := s.jobs["ch-1"]

	require.NoError(t, s.Schedule("ch-1", time.Now().Add(2*time.Hour)))
	second := s.jobs["ch-1"]

	assert.Len(t, s.jobs, 1, "rescheduling must not accumulate jobs")
	assert.NotEqual(t, first, second)
	assert.True(t, s.scheduled("ch-1"))
}

func TestCancelIsIdempotent(t *testing.T) {
	s, err := NewTerminationScheduler(1)
	require.NoError(t, err)
	defer s.Shutdown()

	s.Cancel("never-scheduled")

	require.NoError(t, s.Schedule("ch-1", time.Now().Add(time.Hour)))
	s.Cancel("ch-1")
	s.Cancel("ch-1")
	assert.False(t, s.scheduled("ch-1"))
}

func TestPastEndDateStillFires(t *testing.T) {
	s, err := NewTerminationScheduler(2)
	require.NoError(t, err)
	defer s.Shutdown()

	fired := make(chan string, 1)
	s.Start(func(_ context.Context, challengeID string) error {
		fired <- challengeID
		return nil
	})

	// The end date is long past; the minimum delay floor makes it fire anyway.
	require.NoError(t, s.Schedule("ch-1", time.Now().Add(-time.Hour)))

	select {
	case id := <-fired:
		assert.Equal(t, "ch-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("termination job never fired")
	}
	assert.False(t, s.scheduled("ch-1"), "a fired one-shot job is forgotten")
}

func TestRescheduleSupersedesOldFireTime(t *testing.T) {
	s, err := NewTerminationScheduler(2)
	require.NoError(t, err)
	defer s.Shutdown()

	var fires int32
	s.Start(func(_ context.Context, _ string) error {
		atomic.AddInt32(&fires, 1)
		return nil
	})

	// First schedule would fire at the minimum delay; pushing the end date out
	// before it fires must leave exactly zero fires in the old window.
	require.NoError(t, s.Schedule("ch-1", time.Now()))
	require.NoError(t, s.Schedule("ch-1", time.Now().Add(time.Hour)))

	time.Sleep(2 * time.Second)
	assert.Zero(t, atomic.LoadInt32(&fires), "superseded job must not fire")
	assert.True(t, s.scheduled("ch-1"))
}
