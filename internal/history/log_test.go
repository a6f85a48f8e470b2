package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

type stubSource struct {
	entries []model.HistoryEntry
	err     error
}

func (s *stubSource) FetchContractHistory(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	return s.entries, s.err
}

func TestLoad_PreservesSourceOrder(t *testing.T) {
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-24 * time.Hour)
	src := &stubSource{entries: []model.HistoryEntry{
		{PrevStatus: model.StatusContracted, CurrentStatus: model.StatusInProgress, ChangedAt: later},
		{PrevStatus: model.StatusIntentSigned, CurrentStatus: model.StatusContracted, ChangedAt: earlier},
	}}

	got, err := NewLog(src).Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, src.entries, got)

	got[0].CurrentStatus = model.StatusTerminated
	assert.Equal(t, model.StatusInProgress, src.entries[0].CurrentStatus)
}

func TestLoad_PropagatesError(t *testing.T) {
	src := &stubSource{err: errors.New("db down")}

	_, err := NewLog(src).Load(context.Background(), 1)
	assert.ErrorIs(t, err, src.err)
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	last, ok := Latest([]model.HistoryEntry{
		{CurrentStatus: model.StatusContracted},
		{CurrentStatus: model.StatusInProgress},
	})
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, last.CurrentStatus)
}
