package daybook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/pkg/money"
)

const receiptVoucher = `<VOUCHER VCHTYPE="Receipt">
<DATE>20240405</DATE><GUID>guid-receipt</GUID><VOUCHERTYPENAME>Receipt</VOUCHERTYPENAME><VOUCHERNUMBER>7</VOUCHERNUMBER>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Acme Traders</LEDGERNAME><ISPARTYLEDGER>Yes</ISPARTYLEDGER><AMOUNT>1500.00</AMOUNT></ALLLEDGERENTRIES.LIST>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>HDFC Bank</LEDGERNAME><ISPARTYLEDGER>Yes</ISPARTYLEDGER><AMOUNT>-1500.00</AMOUNT></ALLLEDGERENTRIES.LIST>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Round Off</LEDGERNAME><ISPARTYLEDGER>No</ISPARTYLEDGER><AMOUNT>0.00</AMOUNT></ALLLEDGERENTRIES.LIST>
</VOUCHER>`

func TestTransform_JournalResolvesParties(t *testing.T) {
	tr := daybook.NewTransformer(masterDirectory(), testSettings())

	rec, err := tr.Transform(context.Background(), parse(t, receiptVoucher))
	require.NoError(t, err)
	require.Equal(t, ledger.KindJournal, rec.Kind)

	j := rec.Journal
	assert.Equal(t, "guid-receipt", j.SourceID)
	assert.Equal(t, "guid-receipt", rec.Key())
	assert.Equal(t, "7", j.SourceVoucherNo)
	assert.Equal(t, "2024-04-05", j.PostingDate)

	// zero line dropped
	require.Len(t, j.Lines, 2)

	party := j.Lines[0]
	assert.Equal(t, ledger.DefaultDebtorsAccount, party.Account)
	assert.Equal(t, "Acme Traders", party.Party)
	assert.Equal(t, ledger.PartyCustomer, party.PartyType)
	assert.True(t, dec("1500").Equal(party.Credit))
	assert.Equal(t, "Main - AC", party.CostCenter)

	// flagged as party but unknown to the directory: stays on its own ledger
	bank := j.Lines[1]
	assert.Equal(t, "HDFC Bank", bank.Account)
	assert.Empty(t, bank.Party)
	assert.True(t, dec("1500").Equal(bank.Debit))
}

func TestTransform_MultiCurrencyAmount(t *testing.T) {
	v := `<VOUCHER><DATE>20240405</DATE><GUID>guid-fx</GUID><VOUCHERTYPENAME>Payment</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Globex</LEDGERNAME><ISPARTYLEDGER>Yes</ISPARTYLEDGER><AMOUNT>-JPY363953.00 @ ₹ 0.6931/JPY = -₹ 252255.82</AMOUNT></ALLLEDGERENTRIES.LIST>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>HDFC Bank</LEDGERNAME><ISPARTYLEDGER>No</ISPARTYLEDGER><AMOUNT>252255.82</AMOUNT></ALLLEDGERENTRIES.LIST>
</VOUCHER>`

	rec, err := daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, v))
	require.NoError(t, err)

	line := rec.Journal.Lines[0]
	assert.True(t, dec("252255.82").Equal(line.Debit))
	assert.True(t, line.Credit.IsZero())
	assert.Equal(t, ledger.DefaultCreditorsAccount, line.Account)
	assert.Equal(t, ledger.PartySupplier, line.PartyType)
}

func TestTransform_RupeePrefixedForexAmount(t *testing.T) {
	voucher := `<VOUCHER><DATE>20240405</DATE><GUID>g-fx</GUID><VOUCHERTYPENAME>Journal</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Cash</LEDGERNAME><AMOUNT>-JPY100.00 @ Rs. 0.69/JPY = -Rs. 69.00</AMOUNT></ALLLEDGERENTRIES.LIST>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Sales</LEDGERNAME><AMOUNT>Rs. 69.00</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>`

	rec, err := daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, voucher))
	require.NoError(t, err)
	require.Len(t, rec.Journal.Lines, 2)
	assert.True(t, dec("69").Equal(rec.Journal.Lines[0].Debit))
	assert.True(t, dec("69").Equal(rec.Journal.Lines[1].Credit))
}

func TestTransform_InvalidJournals(t *testing.T) {
	tests := []struct {
		name    string
		voucher string
		wantErr error
	}{
		{
			name: "all lines zero",
			voucher: `<VOUCHER><DATE>20240405</DATE><GUID>g1</GUID><VOUCHERTYPENAME>Journal</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Cash</LEDGERNAME><AMOUNT>0</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>`,
			wantErr: ledger.ErrNoPostingLines,
		},
		{
			name: "unbalanced",
			voucher: `<VOUCHER><DATE>20240405</DATE><GUID>g2</GUID><VOUCHERTYPENAME>Journal</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Cash</LEDGERNAME><AMOUNT>-100</AMOUNT></ALLLEDGERENTRIES.LIST>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Sales</LEDGERNAME><AMOUNT>99</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>`,
			wantErr: ledger.ErrUnbalanced,
		},
		{
			name: "missing guid",
			voucher: `<VOUCHER><DATE>20240405</DATE><VOUCHERTYPENAME>Journal</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Cash</LEDGERNAME><AMOUNT>-1</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>`,
			wantErr: daybook.ErrMissingGUID,
		},
		{
			name: "bad date",
			voucher: `<VOUCHER><DATE>05-04-2024</DATE><GUID>g3</GUID><VOUCHERTYPENAME>Journal</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Cash</LEDGERNAME><AMOUNT>-1</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>`,
			wantErr: daybook.ErrInvalidDate,
		},
		{
			name: "letters inside amount",
			voucher: `<VOUCHER><DATE>20240405</DATE><GUID>g4</GUID><VOUCHERTYPENAME>Journal</VOUCHERTYPENAME>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Cash</LEDGERNAME><AMOUNT>-12abc34</AMOUNT></ALLLEDGERENTRIES.LIST>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Sales</LEDGERNAME><AMOUNT>1234</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>`,
			wantErr: money.ErrInvalidAmount,
		},
	}

	tr := daybook.NewTransformer(masterDirectory(), testSettings())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Transform(context.Background(), parse(t, tt.voucher))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRoute(t *testing.T) {
	inventory := `<ALLINVENTORYENTRIES.LIST><STOCKITEMNAME>Widget</STOCKITEMNAME></ALLINVENTORYENTRIES.LIST>`
	tests := []struct {
		name    string
		voucher string
		want    daybook.Route
	}{
		{"cancelled", `<VOUCHER><ISCANCELLED>Yes</ISCANCELLED><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME>` + inventory + `</VOUCHER>`, daybook.RouteSkip},
		{"sales with inventory", `<VOUCHER><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME>` + inventory + `</VOUCHER>`, daybook.RouteSale},
		{"credit note with inventory", `<VOUCHER><VOUCHERTYPENAME>Credit Note</VOUCHERTYPENAME>` + inventory + `</VOUCHER>`, daybook.RouteSale},
		{"sales without inventory", `<VOUCHER><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME></VOUCHER>`, daybook.RouteJournal},
		{"purchase with inventory", `<VOUCHER><VOUCHERTYPENAME>Purchase</VOUCHERTYPENAME><INVENTORYENTRIESIN.LIST><STOCKITEMNAME>Bolt</STOCKITEMNAME></INVENTORYENTRIESIN.LIST></VOUCHER>`, daybook.RoutePurchase},
		{"debit note with inventory", `<VOUCHER><VOUCHERTYPENAME>Debit Note</VOUCHERTYPENAME>` + inventory + `</VOUCHER>`, daybook.RoutePurchase},
		{"payment with inventory", `<VOUCHER><VOUCHERTYPENAME>Payment</VOUCHERTYPENAME>` + inventory + `</VOUCHER>`, daybook.RouteJournal},
		{"custom type with inventory", `<VOUCHER><VOUCHERTYPENAME>Stock Journal</VOUCHERTYPENAME>` + inventory + `</VOUCHER>`, daybook.RouteJournal},
	}

	tr := daybook.NewTransformer(masterDirectory(), testSettings())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Route(parse(t, tt.voucher)))
		})
	}
}

func TestTransform_SalesWithoutInventoryIsJournal(t *testing.T) {
	v := `<VOUCHER><DATE>20240410</DATE><GUID>guid-sale</GUID><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME>
<LEDGERENTRIES.LIST><LEDGERNAME>Acme Traders</LEDGERNAME><ISPARTYLEDGER>Yes</ISPARTYLEDGER><AMOUNT>-1180</AMOUNT></LEDGERENTRIES.LIST>
<LEDGERENTRIES.LIST><LEDGERNAME>Consulting Income</LEDGERNAME><ISPARTYLEDGER>No</ISPARTYLEDGER><AMOUNT>1000</AMOUNT></LEDGERENTRIES.LIST>
<LEDGERENTRIES.LIST><LEDGERNAME>Output GST</LEDGERNAME><ISPARTYLEDGER>No</ISPARTYLEDGER><AMOUNT>180</AMOUNT></LEDGERENTRIES.LIST>
</VOUCHER>`

	rec, err := daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, v))
	require.NoError(t, err)
	assert.Equal(t, ledger.KindJournal, rec.Kind)
	assert.Len(t, rec.Journal.Lines, 3)
}

const salesInvoiceVoucher = `<VOUCHER><DATE>20240412</DATE><GUID>guid-inv</GUID><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME>
<VOUCHERNUMBER>S-12</VOUCHERNUMBER><PARTYNAME>Acme Traders</PARTYNAME>
<ALLINVENTORYENTRIES.LIST><STOCKITEMNAME>Widget</STOCKITEMNAME><RATE>714.29/Nos</RATE><ACTUALQTY> 2 nos</ACTUALQTY>
  <ACCOUNTINGALLOCATIONS.LIST><LEDGERNAME>Sales</LEDGERNAME><AMOUNT>1428.58</AMOUNT></ACCOUNTINGALLOCATIONS.LIST></ALLINVENTORYENTRIES.LIST>
<ALLINVENTORYENTRIES.LIST><STOCKITEMNAME>Widget</STOCKITEMNAME><RATE>10.00/Nos</RATE>
  <ACCOUNTINGALLOCATIONS.LIST><LEDGERNAME>Sales</LEDGERNAME></ACCOUNTINGALLOCATIONS.LIST></ALLINVENTORYENTRIES.LIST>
<LEDGERENTRIES.LIST><LEDGERNAME>Acme Traders</LEDGERNAME><ISPARTYLEDGER>Yes</ISPARTYLEDGER><AMOUNT>-1695.72</AMOUNT></LEDGERENTRIES.LIST>
<LEDGERENTRIES.LIST><LEDGERNAME>Output GST</LEDGERNAME><ISPARTYLEDGER>No</ISPARTYLEDGER><AMOUNT>-257.14</AMOUNT></LEDGERENTRIES.LIST>
</VOUCHER>`

func TestTransform_SalesInvoice(t *testing.T) {
	rec, err := daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, salesInvoiceVoucher))
	require.NoError(t, err)
	require.Equal(t, ledger.KindInvoice, rec.Kind)

	inv := rec.Invoice
	assert.Equal(t, ledger.DirectionSale, inv.Direction)
	assert.Equal(t, "Acme Traders", inv.Counterparty)
	assert.Equal(t, ledger.DefaultDebtorsAccount, inv.ControlAccount)
	assert.Equal(t, "2024-04-12", inv.PostingDate)
	assert.Equal(t, inv.PostingDate, inv.DueDate)
	assert.Equal(t, ledger.PriceListName, inv.PriceList)
	assert.Equal(t, "S-12", inv.SourceVoucherNo)

	require.Len(t, inv.Items, 2)
	first := inv.Items[0]
	assert.Equal(t, "Widget", first.ItemCode)
	assert.True(t, dec("2").Equal(first.Qty))
	assert.Equal(t, "Nos", first.UOM)
	assert.True(t, dec("714.29").Equal(first.Rate))
	assert.Equal(t, "Sales", first.Account)
	assert.Equal(t, "Stores - AC", first.Warehouse)

	// no ACTUALQTY: one unit of the item's stock UOM
	second := inv.Items[1]
	assert.True(t, dec("1").Equal(second.Qty))
	assert.Equal(t, "Nos", second.UOM)

	require.Len(t, inv.Taxes, 1)
	assert.Equal(t, "Output GST", inv.Taxes[0].Account)
	assert.True(t, dec("257.14").Equal(inv.Taxes[0].Amount))
	assert.Equal(t, ledger.ChargeTypeActual, inv.Taxes[0].ChargeType)
	assert.Equal(t, ledger.TaxAdd, inv.Taxes[0].AddDeduct)
}

func TestTransform_PurchaseInvoiceUsesCreditors(t *testing.T) {
	v := `<VOUCHER><DATE>20240412</DATE><GUID>guid-pinv</GUID><VOUCHERTYPENAME>Purchase</VOUCHERTYPENAME><PARTYNAME>Globex</PARTYNAME>
<INVENTORYENTRIES.LIST><STOCKITEMNAME>Widget</STOCKITEMNAME><RATE>5</RATE><ACTUALQTY>3 Nos</ACTUALQTY>
  <ACCOUNTINGALLOCATIONS.LIST><LEDGERNAME>Purchase Accounts</LEDGERNAME></ACCOUNTINGALLOCATIONS.LIST></INVENTORYENTRIES.LIST>
</VOUCHER>`

	rec, err := daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, v))
	require.NoError(t, err)
	assert.Equal(t, "Purchase Invoice", rec.Doctype())
	assert.Equal(t, ledger.DefaultCreditorsAccount, rec.Invoice.ControlAccount)
	assert.Empty(t, rec.Invoice.Taxes)
}

func TestTransform_InvoiceErrors(t *testing.T) {
	noAllocation := `<VOUCHER><DATE>20240412</DATE><GUID>g</GUID><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME><PARTYNAME>Acme Traders</PARTYNAME>
<ALLINVENTORYENTRIES.LIST><STOCKITEMNAME>Widget</STOCKITEMNAME><ACTUALQTY>1 Nos</ACTUALQTY></ALLINVENTORYENTRIES.LIST></VOUCHER>`
	_, err := daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, noAllocation))
	assert.ErrorIs(t, err, daybook.ErrMissingItemAccount)

	unknownItem := `<VOUCHER><DATE>20240412</DATE><GUID>g</GUID><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME><PARTYNAME>Acme Traders</PARTYNAME>
<ALLINVENTORYENTRIES.LIST><STOCKITEMNAME>Gizmo</STOCKITEMNAME>
<ACCOUNTINGALLOCATIONS.LIST><LEDGERNAME>Sales</LEDGERNAME></ACCOUNTINGALLOCATIONS.LIST></ALLINVENTORYENTRIES.LIST></VOUCHER>`
	_, err = daybook.NewTransformer(masterDirectory(), testSettings()).Transform(context.Background(), parse(t, unknownItem))
	assert.ErrorIs(t, err, daybook.ErrUnknownItem)
}

func TestTransform_DirectoryFailure(t *testing.T) {
	dir := new(MockDirectory)
	dir.On("PartyKind", mock.Anything, "Acme Traders").Return(ledger.PartyKind(""), false, errors.New("connection reset"))

	_, err := daybook.NewTransformer(dir, testSettings()).Transform(context.Background(), parse(t, receiptVoucher))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFormatDate(t *testing.T) {
	got, err := daybook.FormatDate("20230331")
	require.NoError(t, err)
	assert.Equal(t, "2023-03-31", got)

	_, err = daybook.FormatDate("20230231")
	assert.ErrorIs(t, err, daybook.ErrInvalidDate)
}
