package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

// fakeStore ведёт себя как сервер: хранит договор и дописывает журнал при успешной смене статуса.
type fakeStore struct {
	contract model.Contract
	history  []model.HistoryEntry

	updateErr  error
	fetchErr   error
	nextCalls  int
	plainCalls int
	snapshots  []model.Contract
}

func (f *fakeStore) write(status model.Status, snapshot model.Contract) error {
	f.snapshots = append(f.snapshots, snapshot)
	if f.updateErr != nil {
		return f.updateErr
	}
	prev := f.contract.Status
	f.contract = snapshot.Clone()
	f.contract.Status = status
	f.history = append(f.history, model.HistoryEntry{
		PrevStatus:    prev,
		CurrentStatus: status,
		ChangedAt:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	return nil
}

func (f *fakeStore) UpdateContractStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error {
	f.plainCalls++
	return f.write(status, snapshot)
}

func (f *fakeStore) UpdateContractToNextStatus(ctx context.Context, id int64, status model.Status, snapshot model.Contract) error {
	f.nextCalls++
	return f.write(status, snapshot)
}

func (f *fakeStore) FetchContractDetail(ctx context.Context, id int64) (*model.Contract, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	c := f.contract.Clone()
	return &c, nil
}

func (f *fakeStore) FetchContractHistory(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.HistoryEntry(nil), f.history...), nil
}

func newStore(status model.Status) *fakeStore {
	return &fakeStore{contract: model.Contract{
		ID:                    7,
		Status:                status,
		PropertyID:            3,
		Deposit:               100,
		LessorOrSellerParties: []model.Party{{CustomerID: 1}},
		LesseeOrBuyerParties:  []model.Party{{CustomerID: 2}},
	}}
}

func TestAdvance_ImmediateSuccessorSucceeds(t *testing.T) {
	for i := 0; i+1 < len(model.ForwardOrder); i++ {
		from, next := model.ForwardOrder[i], model.ForwardOrder[i+1]
		t.Run(string(from), func(t *testing.T) {
			store := newStore(from)
			e := NewEngine(DefaultPolicy(), store, store.contract, nil)

			require.NoError(t, e.Advance(context.Background(), next))
			assert.Equal(t, next, e.Contract().Status)
			assert.Equal(t, 1, store.nextCalls)
		})
	}
}

func TestAdvance_RejectsSkipsAndBackwardMoves(t *testing.T) {
	for i, from := range model.ForwardOrder {
		for j, next := range model.ForwardOrder {
			if j == i+1 {
				continue
			}
			store := newStore(from)
			e := NewEngine(DefaultPolicy(), store, store.contract, nil)

			err := e.Advance(context.Background(), next)
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, next)
			assert.Equal(t, from, e.Contract().Status)
			assert.Zero(t, store.nextCalls, "no write expected for %s -> %s", from, next)
		}
	}
}

func TestAdvance_RejectsBranchStatuses(t *testing.T) {
	store := newStore(model.StatusInProgress)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.ErrorIs(t, e.Advance(context.Background(), model.StatusCancelled), ErrInvalidTransition)
	require.ErrorIs(t, e.Advance(context.Background(), model.StatusTerminated), ErrInvalidTransition)
}

func TestAdvance_RecordsHistoryEntry(t *testing.T) {
	store := newStore(model.StatusInProgress)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.NoError(t, e.Advance(context.Background(), model.StatusPaidComplete))

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusInProgress, history[0].PrevStatus)
	assert.Equal(t, model.StatusPaidComplete, history[0].CurrentStatus)
	assert.Equal(t, history, e.Contract().History)
}

func TestAdvance_SendsFullSnapshot(t *testing.T) {
	store := newStore(model.StatusContracted)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.NoError(t, e.Advance(context.Background(), model.StatusInProgress))

	require.Len(t, store.snapshots, 1)
	snap := store.snapshots[0]
	assert.Equal(t, model.StatusInProgress, snap.Status)
	assert.Equal(t, int64(100), snap.Deposit)
	assert.Equal(t, int64(3), snap.PropertyID)
	assert.Len(t, snap.LessorOrSellerParties, 1)
}

func TestAdvance_FailedWriteConvergesToServerState(t *testing.T) {
	store := newStore(model.StatusInProgress)
	store.updateErr = errors.New("connection reset")
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	err := e.Advance(context.Background(), model.StatusPaidComplete)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.updateErr)
	assert.Equal(t, model.StatusInProgress, e.Contract().Status)
	assert.Empty(t, e.History())
	assert.False(t, e.Stale())
}

func TestAdvance_CancelledContextStillRefetches(t *testing.T) {
	store := newStore(model.StatusInProgress)
	store.updateErr = context.Canceled
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Advance(ctx, model.StatusPaidComplete)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusInProgress, e.Contract().Status)
}

func TestAdvance_RefetchFailureMarksStale(t *testing.T) {
	store := newStore(model.StatusInProgress)
	store.fetchErr = errors.New("timeout")
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	err := e.Advance(context.Background(), model.StatusPaidComplete)

	require.ErrorIs(t, err, store.fetchErr)
	assert.True(t, e.Stale())
}

func TestConfirm_RequiresRequestBeforeCommit(t *testing.T) {
	store := newStore(model.StatusInProgress)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.ErrorIs(t, e.Commit(context.Background()), ErrNoPendingChange)
	assert.Zero(t, store.plainCalls)
}

func TestConfirm_CancelWithExpectedEndDate(t *testing.T) {
	store := newStore(model.StatusInProgress)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	end := time.Date(2024, 9, 30, 15, 4, 0, 0, time.UTC)
	require.NoError(t, e.RequestConfirmation(model.StatusCancelled, &end))

	pending, ok := e.Pending()
	require.True(t, ok)
	assert.Equal(t, model.StatusCancelled, pending)
	assert.Zero(t, store.plainCalls)

	require.NoError(t, e.Commit(context.Background()))

	c := e.Contract()
	assert.Equal(t, model.StatusCancelled, c.Status)
	require.NotNil(t, c.ExpectedContractEndDate)
	assert.Equal(t, "2024-09-30", model.FormatDate(c.ExpectedContractEndDate))
	_, ok = e.Pending()
	assert.False(t, ok)
}

func TestConfirm_TerminateIgnoresExpectedEndDate(t *testing.T) {
	store := newStore(model.StatusContracted)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	end := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.RequestConfirmation(model.StatusTerminated, &end))
	require.NoError(t, e.Commit(context.Background()))

	assert.Equal(t, model.StatusTerminated, e.Contract().Status)
	assert.Nil(t, e.Contract().ExpectedContractEndDate)
}

func TestConfirm_PolicyRestrictions(t *testing.T) {
	store := newStore(model.StatusListed)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.ErrorIs(t, e.RequestConfirmation(model.StatusCancelled, nil), ErrInvalidTransition)
	require.ErrorIs(t, e.RequestConfirmation(model.StatusPaidComplete, nil), ErrInvalidTransition)
	require.NoError(t, e.RequestConfirmation(model.StatusTerminated, nil))

	strict := Policy{TerminateFrom: []model.Status{model.StatusContracted}}
	e = NewEngine(strict, store, store.contract, nil)
	require.ErrorIs(t, e.RequestConfirmation(model.StatusTerminated, nil), ErrInvalidTransition)

	done := newStore(model.StatusMovedIn)
	e = NewEngine(DefaultPolicy(), done, done.contract, nil)
	require.ErrorIs(t, e.RequestConfirmation(model.StatusTerminated, nil), ErrInvalidTransition)
}

func TestConfirm_DiscardDropsIntent(t *testing.T) {
	store := newStore(model.StatusInProgress)
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.NoError(t, e.RequestConfirmation(model.StatusTerminated, nil))
	e.Discard()

	require.ErrorIs(t, e.Commit(context.Background()), ErrNoPendingChange)
	assert.Zero(t, store.plainCalls)
}

func TestConfirm_FailedWriteClearsIntentAndRefetches(t *testing.T) {
	store := newStore(model.StatusInProgress)
	store.updateErr = errors.New("boom")
	e := NewEngine(DefaultPolicy(), store, store.contract, nil)

	require.NoError(t, e.RequestConfirmation(model.StatusCancelled, nil))
	require.Error(t, e.Commit(context.Background()))

	assert.Equal(t, model.StatusInProgress, e.Contract().Status)
	_, ok := e.Pending()
	assert.False(t, ok)
}

func TestPolicyAllowedNext(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t,
		[]model.Status{model.StatusPaidComplete, model.StatusCancelled, model.StatusTerminated},
		p.AllowedNext(model.StatusInProgress))
	assert.Equal(t,
		[]model.Status{model.StatusNegotiating, model.StatusTerminated},
		p.AllowedNext(model.StatusListed))
	assert.Empty(t, p.AllowedNext(model.StatusMovedIn))
	assert.Empty(t, p.AllowedNext(model.StatusCancelled))
}

func TestParseStatusList(t *testing.T) {
	list, err := ParseStatusList(" contracted, IN_PROGRESS ")
	require.NoError(t, err)
	assert.Equal(t, []model.Status{model.StatusContracted, model.StatusInProgress}, list)

	all, err := ParseStatusList("*")
	require.NoError(t, err)
	assert.Len(t, all, 7)

	empty, err := ParseStatusList("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseStatusList("MOVED_IN")
	assert.Error(t, err)
	_, err = ParseStatusList("ARCHIVED")
	assert.Error(t, err)
}
