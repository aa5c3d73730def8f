package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecoveryPointRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rp := types.RecoveryPoint{
		ID:        "rp-1",
		CreatedAt: time.Now().Truncate(time.Millisecond),
		Files: []types.RecoveryPointFile{
			{Path: "/tmp/a.log", Size: 123, Category: "User Logs (30d+)", ModTime: time.Now().Add(-time.Hour)},
			{Path: "/tmp/b.log", Size: 456, Category: "User Logs (30d+)"},
		},
	}
	require.NoError(t, s.SaveRecoveryPoint(rp))

	got, err := s.GetRecoveryPoint("rp-1")
	require.NoError(t, err)
	assert.Equal(t, rp.ID, got.ID)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "/tmp/a.log", got.Files[0].Path)
	assert.Equal(t, int64(123), got.Files[0].Size)
}

func TestRecoveryPointNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRecoveryPoint("missing")
	assert.ErrorIs(t, err, ErrRecoveryPointNotFound)
}

func TestRecoveryPointCapacityPrune(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < recoveryPointCap+10; i++ {
		rp := types.RecoveryPoint{
			ID:        string(rune('a'+i%26)) + "-" + time.Duration(i).String(),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Files:     []types.RecoveryPointFile{{Path: "/tmp/x"}},
		}
		require.NoError(t, s.SaveRecoveryPoint(rp))
	}

	points, err := s.ListRecoveryPoints()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(points), recoveryPointCap)
}

func TestRecoveryPointTTLPrune(t *testing.T) {
	s := newTestStore(t)

	old := types.RecoveryPoint{
		ID:        "old",
		CreatedAt: time.Now().Add(-recoveryPointTTL - time.Hour),
		Files:     []types.RecoveryPointFile{{Path: "/tmp/old"}},
	}
	require.NoError(t, s.SaveRecoveryPoint(old))

	fresh := types.RecoveryPoint{
		ID:        "fresh",
		CreatedAt: time.Now(),
		Files:     []types.RecoveryPointFile{{Path: "/tmp/fresh"}},
	}
	require.NoError(t, s.SaveRecoveryPoint(fresh))

	_, err := s.GetRecoveryPoint("old")
	assert.ErrorIs(t, err, ErrRecoveryPointNotFound)
	_, err = s.GetRecoveryPoint("fresh")
	assert.NoError(t, err)
}

func TestFeedbackRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordFeedback("/tmp/a", types.FeedbackSelected))
	require.NoError(t, s.RecordFeedback("/tmp/a", types.FeedbackDeselected))
	require.NoError(t, s.RecordFeedback("/tmp/b", types.FeedbackIgnored))

	entries, err := s.FeedbackFor("/tmp/a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.FeedbackSelected, entries[0].Action)
	assert.Equal(t, types.FeedbackDeselected, entries[1].Action)

	entries, err = s.FeedbackFor("/tmp/missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
