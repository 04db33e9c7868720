package threadtracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(st, 24*time.Hour)
}

func TestTrackThenGetReturnsTrackedThread(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	tr.Track("C1", "111.222", ThreadBirthday, "standard", []string{"U1"}, nil, now)

	th, ok := tr.Get("C1", "111.222", now.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, ThreadBirthday, th.ThreadType)
	assert.Equal(t, []string{"U1"}, th.BirthdayPeople)
}

func TestGetUnknownThreadReturnsFalse(t *testing.T) {
	tr := newTestTracker(t)
	_, ok := tr.Get("C1", "999.999", time.Now())
	assert.False(t, ok)
}

func TestGetEvictsExpiredThread(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	tr.Track("C1", "111.222", ThreadBirthday, "standard", nil, nil, now)

	_, ok := tr.Get("C1", "111.222", now.Add(25*time.Hour))
	assert.False(t, ok)

	assert.Equal(t, 0, tr.Count())
}

func TestIncrementReactionsAndResponsesAreMonotonic(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	tr.Track("C1", "1.1", ThreadBirthday, "standard", nil, nil, now)

	tr.IncrementReactions("C1", "1.1")
	tr.IncrementReactions("C1", "1.1")
	tr.IncrementResponses("C1", "1.1")

	th, ok := tr.Get("C1", "1.1", now)
	require.True(t, ok)
	assert.Equal(t, 2, th.ReactionsCount)
	assert.Equal(t, 1, th.ResponsesSent)
}

func TestCleanupExpiredRemovesOnlyStaleEntries(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	tr.Track("C1", "old", ThreadBirthday, "standard", nil, nil, base.Add(-48*time.Hour))
	tr.Track("C1", "new", ThreadBirthday, "standard", nil, nil, base)

	removed := tr.CleanupExpired(base)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, tr.Count())
}

func TestTrackPersistsAcrossTrackerInstances(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	first := New(st, 24*time.Hour)
	first.Track("C1", "1.1", ThreadSpecialDay, "chronicler", nil, &SpecialDayInfo{Date: "07-31", Name: "Test Day", Source: "UN"}, now)

	st2, err := store.New(dir)
	require.NoError(t, err)
	second := New(st2, 24*time.Hour)
	th, ok := second.Get("C1", "1.1", now)
	require.True(t, ok)
	assert.Equal(t, ThreadSpecialDay, th.ThreadType)
	require.NotNil(t, th.SpecialDayInfo)
	assert.Equal(t, "Test Day", th.SpecialDayInfo.Name)
}
