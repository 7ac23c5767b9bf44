package daybook_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

// =============================================================================
// Mock Directory
// =============================================================================

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) PartyKind(ctx context.Context, name string) (ledger.PartyKind, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(ledger.PartyKind), args.Bool(1), args.Error(2)
}

func (m *MockDirectory) StockUOM(ctx context.Context, itemCode string) (string, bool, error) {
	args := m.Called(ctx, itemCode)
	return args.String(0), args.Bool(1), args.Error(2)
}

// =============================================================================
// Fixtures
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSettings() ledger.Settings {
	s := ledger.DefaultSettings()
	s.Company = "Acme Corp"
	return s
}

// masterDirectory knows one customer, one supplier and one item
func masterDirectory() *daybook.BundleDirectory {
	return daybook.NewBundleDirectory([]ledger.Record{
		ledger.NewPartyRecord(ledger.PartyRecord{Kind: ledger.PartyCustomer, Name: "Acme Traders"}),
		ledger.NewPartyRecord(ledger.PartyRecord{Kind: ledger.PartySupplier, Name: "Globex"}),
		ledger.NewItemRecord(ledger.ItemMaster{Code: "Widget", StockUOM: "Nos"}),
	})
}

func parse(t *testing.T, xml string) *tallyxml.Node {
	t.Helper()
	n, err := tallyxml.Parse(xml)
	require.NoError(t, err)
	return n
}

func parseReport(t *testing.T, xml string) *tallyxml.Node {
	t.Helper()
	n, err := tallyxml.ParseReport(xml)
	require.NoError(t, err)
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
