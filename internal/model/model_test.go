package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, raw string) *time.Time {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func TestStatusInfoCoversEnumeration(t *testing.T) {
	require.Len(t, Statuses, 10)

	for _, s := range Statuses {
		info, ok := s.Info()
		assert.True(t, ok, "status %s has no info", s)
		assert.NotEmpty(t, info.Label)
		assert.NotEmpty(t, info.Color)
	}

	_, ok := Status("UNKNOWN").Info()
	assert.False(t, ok)
	assert.Equal(t, StatusInProgress, Statuses[5])
	assert.Equal(t, DefaultStatus, NewDraft().Status())
}

func TestStatusSuccessor(t *testing.T) {
	for i := 0; i+1 < len(ForwardOrder); i++ {
		next, ok := ForwardOrder[i].Successor()
		require.True(t, ok)
		assert.Equal(t, ForwardOrder[i+1], next)
	}

	for _, s := range []Status{StatusMovedIn, StatusCancelled, StatusTerminated} {
		_, ok := s.Successor()
		assert.False(t, ok, "status %s must not have a successor", s)
		assert.True(t, s.Terminal())
	}
}

func TestDraftIsImmutable(t *testing.T) {
	base := NewDraft().WithParties([]Party{{CustomerID: 1, Name: "Kim"}}, []Party{{CustomerID: 2}})

	changed := base.WithCategory(CategorySale).WithPrice(100).WithParties(nil, nil)

	assert.Nil(t, base.Category())
	assert.Nil(t, base.Price())
	assert.Len(t, base.Lessors(), 1)
	assert.Empty(t, changed.Lessors())

	lessors := base.Lessors()
	lessors[0].Name = "changed"
	assert.Equal(t, "Kim", base.Lessors()[0].Name)
}

func TestDraftContractTreatsAbsentAmountsAsZero(t *testing.T) {
	c := NewDraft().WithCategory(CategoryMonthly).WithDeposit(500).Contract()

	assert.Equal(t, int64(500), c.Deposit)
	assert.Zero(t, c.MonthlyRent)
	assert.Zero(t, c.Price)
	require.NotNil(t, c.Category)
	assert.Equal(t, CategoryMonthly, *c.Category)
}

func TestDraftContractZeroesAmountsOutsideCategory(t *testing.T) {
	c := NewDraft().WithCategory(CategoryMonthly).WithDeposit(1000).WithMonthlyRent(50).WithPrice(-5).Contract()
	assert.Equal(t, int64(1000), c.Deposit)
	assert.Equal(t, int64(50), c.MonthlyRent)
	assert.Zero(t, c.Price)

	c = NewDraft().WithCategory(CategorySale).WithDeposit(-1).WithMonthlyRent(-1).WithPrice(900).Contract()
	assert.Zero(t, c.Deposit)
	assert.Zero(t, c.MonthlyRent)
	assert.Equal(t, int64(900), c.Price)

	c = NewDraft().WithPrice(7).WithDeposit(3).Contract()
	assert.Equal(t, int64(7), c.Price)
	assert.Equal(t, int64(3), c.Deposit)
}

func TestDraftCollapsesRepeatedParties(t *testing.T) {
	d := NewDraft().WithParties(
		[]Party{{CustomerID: 1, Name: "Kim"}, {CustomerID: 1}, {CustomerID: 4}},
		[]Party{{CustomerID: 2}, {CustomerID: 2}},
	)
	assert.Equal(t, []Party{{CustomerID: 1, Name: "Kim"}, {CustomerID: 4}}, d.Lessors())
	assert.Equal(t, []Party{{CustomerID: 2}}, d.Lessees())

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"status":"LISTED","propertyUid":1,"lessorOrSellerUids":[1,1],"lesseeOrBuyerUids":[3,2,3]}`), &p))
	parsed, err := p.Draft()
	require.NoError(t, err)

	c := parsed.Contract()
	assert.Equal(t, []Party{{CustomerID: 1}}, c.LessorOrSellerParties)
	assert.Equal(t, []Party{{CustomerID: 3}, {CustomerID: 2}}, c.LesseeOrBuyerParties)
}

func TestPayloadRoundTrip(t *testing.T) {
	draft := NewDraft().
		WithCategory(CategoryDeposit).
		WithContractDate(date(t, "2024-03-01")).
		WithContractStartDate(date(t, "2024-03-10")).
		WithContractEndDate(date(t, "2026-03-09")).
		WithDeposit(300000000).
		WithMonthlyRent(0).
		WithProperty(77, "").
		WithParties(
			[]Party{{CustomerID: 1}, {CustomerID: 2}},
			[]Party{{CustomerID: 3}},
		)

	raw, err := json.Marshal(PayloadFromDraft(draft))
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(raw, &parsed))

	back, err := parsed.Draft()
	require.NoError(t, err)

	assert.Equal(t, draft.Category(), back.Category())
	assert.Equal(t, draft.ContractDate(), back.ContractDate())
	assert.Equal(t, draft.ContractStartDate(), back.ContractStartDate())
	assert.Equal(t, draft.ContractEndDate(), back.ContractEndDate())
	assert.Nil(t, back.ExpectedContractEndDate())
	assert.Equal(t, draft.Deposit(), back.Deposit())
	assert.Equal(t, draft.MonthlyRent(), back.MonthlyRent())
	assert.Equal(t, draft.Price(), back.Price())
	assert.Equal(t, draft.Lessors(), back.Lessors())
	assert.Equal(t, draft.Lessees(), back.Lessees())
	assert.Equal(t, draft.PropertyID(), back.PropertyID())
	assert.Equal(t, draft.Status(), back.Status())
}

func TestPayloadNullCategoryIsPreserved(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"category":null,"status":"LISTED","propertyUid":1}`), &p))

	d, err := p.Draft()
	require.NoError(t, err)
	assert.Nil(t, d.Category())
	assert.Nil(t, PayloadFromDraft(d).Category)
}

func TestPayloadRejectsMalformedFields(t *testing.T) {
	bad := "RENT"
	_, err := Payload{Category: &bad}.Draft()
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Payload{ContractDate: "10.03.2024"}.Draft()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
