package daybook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/masters"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
	"github.com/kislikjeka/tallymigrate/pkg/money"
)

// Route is the posting shape a voucher is transformed into
type Route string

const (
	RouteSkip     Route = "skip"
	RouteJournal  Route = "journal"
	RouteSale     Route = "sale"
	RoutePurchase Route = "purchase"
)

// inventoryTags are the elements Tally uses for inventory lines
var inventoryTags = []string{
	"INVENTORYENTRIES.LIST",
	"ALLINVENTORYENTRIES.LIST",
	"INVENTORYENTRIESIN.LIST",
	"INVENTORYENTRIESOUT.LIST",
}

var ledgerEntryTags = []string{
	"ALLLEDGERENTRIES.LIST",
	"LEDGERENTRIES.LIST",
}

// Transformer converts day-book vouchers into journal or invoice records
type Transformer struct {
	dir      Directory
	settings ledger.Settings
}

// NewTransformer creates a voucher transformer
func NewTransformer(dir Directory, settings ledger.Settings) *Transformer {
	return &Transformer{dir: dir, settings: settings}
}

// IsCancelled reports whether Tally marked the voucher cancelled
func IsCancelled(voucher *tallyxml.Node) bool {
	return voucher.Text("ISCANCELLED") == "Yes"
}

// Route classifies a voucher. Trade vouchers become invoices only when
// they carry inventory lines; everything else posts as a journal.
func (t *Transformer) Route(voucher *tallyxml.Node) Route {
	if IsCancelled(voucher) {
		return RouteSkip
	}
	switch voucher.Text("VOUCHERTYPENAME") {
	case "Journal", "Receipt", "Payment", "Contra":
		return RouteJournal
	case "Sales", "Credit Note":
		if len(inventoryLines(voucher)) > 0 {
			return RouteSale
		}
	case "Purchase", "Debit Note":
		if len(inventoryLines(voucher)) > 0 {
			return RoutePurchase
		}
	}
	return RouteJournal
}

// Transform converts one voucher. Cancelled vouchers must be filtered by
// the caller.
func (t *Transformer) Transform(ctx context.Context, voucher *tallyxml.Node) (ledger.Record, error) {
	var rec ledger.Record
	switch t.Route(voucher) {
	case RouteSkip:
		return rec, fmt.Errorf("cancelled voucher cannot be transformed")
	case RouteSale:
		inv, err := t.toInvoice(ctx, voucher, ledger.DirectionSale)
		if err != nil {
			return rec, err
		}
		rec = ledger.NewInvoiceRecord(*inv)
	case RoutePurchase:
		inv, err := t.toInvoice(ctx, voucher, ledger.DirectionPurchase)
		if err != nil {
			return rec, err
		}
		rec = ledger.NewInvoiceRecord(*inv)
	default:
		j, err := t.toJournal(ctx, voucher)
		if err != nil {
			return rec, err
		}
		rec = ledger.NewJournalRecord(*j)
	}

	if err := rec.Validate(); err != nil {
		return ledger.Record{}, err
	}
	return rec, nil
}

func (t *Transformer) toJournal(ctx context.Context, voucher *tallyxml.Node) (*ledger.JournalPosting, error) {
	header, err := readHeader(voucher)
	if err != nil {
		return nil, err
	}

	j := &ledger.JournalPosting{
		SourceID:        header.guid,
		SourceVoucherNo: header.number,
		PostingDate:     header.date,
	}
	for _, entry := range ledgerEntries(voucher) {
		name := entry.Text("LEDGERNAME")
		amount, err := money.ParseConverted(entry.Text("AMOUNT"))
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", name, err)
		}
		if amount.IsZero() {
			continue
		}

		line := ledger.NewPostingLine(name, t.settings.CostCenter(), amount)
		if entry.Text("ISPARTYLEDGER") == "Yes" {
			line, err = t.resolveParty(ctx, line, name)
			if err != nil {
				return nil, err
			}
		}
		j.Lines = append(j.Lines, line)
	}
	return j, nil
}

// resolveParty moves a party ledger line onto its control account
func (t *Transformer) resolveParty(ctx context.Context, line ledger.PostingLine, name string) (ledger.PostingLine, error) {
	kind, ok, err := t.dir.PartyKind(ctx, name)
	if err != nil {
		return line, fmt.Errorf("failed to look up party %s: %w", name, err)
	}
	if !ok {
		return line, nil
	}
	return line.WithParty(kind, name, t.controlAccount(kind)), nil
}

func (t *Transformer) controlAccount(kind ledger.PartyKind) string {
	return controlFor(t.settings, kind)
}

func (t *Transformer) toInvoice(ctx context.Context, voucher *tallyxml.Node, direction ledger.Direction) (*ledger.InvoicePosting, error) {
	header, err := readHeader(voucher)
	if err != nil {
		return nil, err
	}

	counterparty := voucher.Text("PARTYNAME")
	if counterparty == "" {
		counterparty = voucher.Text("PARTYLEDGERNAME")
	}

	inv := &ledger.InvoicePosting{
		Direction:       direction,
		Counterparty:    counterparty,
		ControlAccount:  t.controlAccount(direction.PartyKind()),
		PostingDate:     header.date,
		DueDate:         header.date,
		SourceID:        header.guid,
		SourceVoucherNo: header.number,
		PriceList:       ledger.PriceListName,
	}

	for _, entry := range inventoryLines(voucher) {
		item, err := t.invoiceLine(ctx, entry)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}

	for _, entry := range ledgerEntries(voucher) {
		if entry.Text("ISPARTYLEDGER") != "No" {
			continue
		}
		amount, err := money.ParseConverted(entry.Text("AMOUNT"))
		if err != nil {
			return nil, fmt.Errorf("tax ledger %s: %w", entry.Text("LEDGERNAME"), err)
		}
		inv.Taxes = append(inv.Taxes, ledger.TaxLine{
			ChargeType: ledger.ChargeTypeActual,
			AddDeduct:  ledger.TaxAdd,
			Account:    entry.Text("LEDGERNAME"),
			Amount:     amount.Abs(),
			CostCenter: t.settings.CostCenter(),
		})
	}
	return inv, nil
}

func (t *Transformer) invoiceLine(ctx context.Context, entry *tallyxml.Node) (ledger.InvoiceLine, error) {
	code := entry.Text("STOCKITEMNAME")
	line := ledger.InvoiceLine{
		ItemCode:   code,
		CostCenter: t.settings.CostCenter(),
		Warehouse:  t.settings.Warehouse(),
	}

	if qty := entry.Text("ACTUALQTY"); qty != "" {
		fields := strings.Fields(qty)
		parsed, err := money.Parse(fields[0])
		if err != nil {
			return line, fmt.Errorf("%w: item %s: %v", ErrInvalidQuantity, code, err)
		}
		line.Qty = parsed
		if len(fields) > 1 {
			line.UOM = masters.NormalizeUOM(fields[1])
		}
	} else {
		line.Qty = decimal.NewFromInt(1)
	}

	if line.UOM == "" {
		uom, ok, err := t.dir.StockUOM(ctx, code)
		if err != nil {
			return line, fmt.Errorf("failed to look up item %s: %w", code, err)
		}
		if !ok {
			return line, fmt.Errorf("%w: %s", ErrUnknownItem, code)
		}
		line.UOM = masters.NormalizeUOM(uom)
	}

	rate, err := money.ParseRate(entry.Text("RATE"))
	if err != nil {
		return line, fmt.Errorf("item %s rate: %w", code, err)
	}
	line.Rate = rate

	allocation := entry.First("ACCOUNTINGALLOCATIONS.LIST")
	if allocation == nil || allocation.Text("LEDGERNAME") == "" {
		return line, fmt.Errorf("%w: %s", ErrMissingItemAccount, code)
	}
	line.Account = allocation.Text("LEDGERNAME")
	return line, nil
}

type voucherHeader struct {
	guid   string
	number string
	date   string
}

func readHeader(voucher *tallyxml.Node) (voucherHeader, error) {
	h := voucherHeader{
		guid:   voucher.Text("GUID"),
		number: voucher.Text("VOUCHERNUMBER"),
	}
	if h.guid == "" {
		return h, ErrMissingGUID
	}
	date, err := FormatDate(voucher.Text("DATE"))
	if err != nil {
		return h, err
	}
	h.date = date
	return h, nil
}

// FormatDate converts a Tally YYYYMMDD date to YYYY-MM-DD
func FormatDate(tallyDate string) (string, error) {
	d, err := time.Parse("20060102", strings.TrimSpace(tallyDate))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, tallyDate)
	}
	return d.Format("2006-01-02"), nil
}

func inventoryLines(voucher *tallyxml.Node) []*tallyxml.Node {
	var lines []*tallyxml.Node
	for _, tag := range inventoryTags {
		lines = append(lines, voucher.FindAll(tag)...)
	}
	return lines
}

func ledgerEntries(voucher *tallyxml.Node) []*tallyxml.Node {
	var entries []*tallyxml.Node
	for _, tag := range ledgerEntryTags {
		entries = append(entries, voucher.FindAll(tag)...)
	}
	return entries
}
