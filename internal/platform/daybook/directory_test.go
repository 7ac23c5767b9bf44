package daybook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
)

func TestBundleDirectory_SupplierWins(t *testing.T) {
	dir := daybook.NewBundleDirectory([]ledger.Record{
		ledger.NewPartyRecord(ledger.PartyRecord{Kind: ledger.PartySupplier, Name: "Both"}),
		ledger.NewPartyRecord(ledger.PartyRecord{Kind: ledger.PartyCustomer, Name: "Both"}),
	})

	kind, ok, err := dir.PartyKind(context.Background(), "Both")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ledger.PartySupplier, kind)

	_, ok, err = dir.PartyKind(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedDirectory_ReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := new(MockDirectory)
	inner.On("PartyKind", ctx, "Acme").Return(ledger.PartyCustomer, true, nil).Once()
	inner.On("PartyKind", ctx, "Cash").Return(ledger.PartyKind(""), false, nil).Once()
	inner.On("StockUOM", ctx, "Widget").Return("Nos", true, nil).Once()

	dir := daybook.NewCachedDirectory(inner, time.Minute)
	for i := 0; i < 3; i++ {
		kind, ok, err := dir.PartyKind(ctx, "Acme")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ledger.PartyCustomer, kind)

		_, ok, err = dir.PartyKind(ctx, "Cash")
		require.NoError(t, err)
		assert.False(t, ok)

		uom, ok, err := dir.StockUOM(ctx, "Widget")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Nos", uom)
	}

	inner.AssertExpectations(t)
}

func TestCachedDirectory_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	inner := new(MockDirectory)
	inner.On("StockUOM", ctx, "Widget").Return("", false, errors.New("timeout")).Once()
	inner.On("StockUOM", ctx, "Widget").Return("Nos", true, nil).Once()

	dir := daybook.NewCachedDirectory(inner, 0)
	_, _, err := dir.StockUOM(ctx, "Widget")
	require.Error(t, err)

	uom, ok, err := dir.StockUOM(ctx, "Widget")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Nos", uom)
	inner.AssertExpectations(t)
}

func TestCachedDirectory_Flush(t *testing.T) {
	ctx := context.Background()
	inner := new(MockDirectory)
	inner.On("PartyKind", mock.Anything, "Acme").Return(ledger.PartyCustomer, true, nil).Twice()

	dir := daybook.NewCachedDirectory(inner, time.Minute)
	_, _, _ = dir.PartyKind(ctx, "Acme")
	dir.Flush()
	_, _, _ = dir.PartyKind(ctx, "Acme")
	inner.AssertExpectations(t)
}
