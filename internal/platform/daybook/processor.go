package daybook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
	"github.com/kislikjeka/tallymigrate/pkg/money"
)

// InvalidVoucher is a voucher that could not be transformed. It is logged
// and left out of the bundle; the rest of the day book is still processed.
type InvalidVoucher struct {
	GUID   string `json:"guid"`
	Number string `json:"number"`
	Type   string `json:"type"`
	Error  string `json:"error"`
}

// Result is the processed day book
type Result struct {
	Opening   *ledger.JournalPosting
	Plug      *Plug
	Vouchers  []ledger.Record
	Invalid   []InvalidVoucher
	Cancelled int
}

// Records returns the bundle in import order, opening balance first
func (r *Result) Records() []ledger.Record {
	records := make([]ledger.Record, 0, len(r.Vouchers)+1)
	if r.Opening != nil {
		records = append(records, ledger.NewJournalRecord(*r.Opening))
	}
	return append(records, r.Vouchers...)
}

// Processor turns a day-book export and trial balance into a Result
type Processor struct {
	dir    Directory
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a day-book processor
func NewProcessor(dir Directory, logger *slog.Logger) *Processor {
	return &Processor{
		dir:    dir,
		logger: logger.With("component", "daybook"),
		now:    time.Now,
	}
}

const processSteps = 4

// Process transforms every voucher and synthesizes the opening balance.
// Only an unusable trial balance fails the whole run.
func (p *Processor) Process(ctx context.Context, dayBook, trialBalance *tallyxml.Node, settings ledger.Settings, progress ledger.ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = ledger.NoProgress
	}

	vouchers := dayBook.Collection().FindAll("VOUCHER")
	progress("Processing trial balance", 1, processSteps)
	opening, plug, err := BuildOpening(ctx, trialBalance, p.dir, settings, p.openingFallbackDate(vouchers))
	if err != nil {
		return nil, fmt.Errorf("failed to build opening balance: %w", err)
	}
	if opening == nil {
		p.logger.Warn("trial balance has no balances, no opening entry")
	}
	if plug != nil {
		p.logger.Warn("trial balance does not balance, plugged on temporary opening",
			"account", ledger.TemporaryOpeningAccount,
			"amount", money.Format(plug.Amount),
			"side", plug.Side)
	}

	progress("Processing vouchers", 2, processSteps)
	result := &Result{Opening: opening, Plug: plug}
	t := NewTransformer(p.dir, settings)
	for _, v := range vouchers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsCancelled(v) {
			result.Cancelled++
			continue
		}

		rec, err := t.Transform(ctx, v)
		if err != nil {
			invalid := InvalidVoucher{
				GUID:   v.Text("GUID"),
				Number: v.Text("VOUCHERNUMBER"),
				Type:   v.Text("VOUCHERTYPENAME"),
				Error:  err.Error(),
			}
			p.logger.Warn("invalid voucher",
				"guid", invalid.GUID,
				"voucher_no", invalid.Number,
				"voucher_type", invalid.Type,
				"error", err)
			result.Invalid = append(result.Invalid, invalid)
			continue
		}
		result.Vouchers = append(result.Vouchers, rec)
	}

	progress("Logging invalid vouchers", 3, processSteps)
	p.logger.Info("day book processed",
		"vouchers", len(result.Vouchers),
		"invalid", len(result.Invalid),
		"cancelled", result.Cancelled,
		"opening", opening != nil)
	progress("Done", processSteps, processSteps)
	return result, nil
}

// openingFallbackDate is the earliest valid voucher date, else today
func (p *Processor) openingFallbackDate(vouchers []*tallyxml.Node) string {
	earliest := ""
	for _, v := range vouchers {
		if IsCancelled(v) {
			continue
		}
		date, err := FormatDate(v.Text("DATE"))
		if err != nil {
			continue
		}
		if earliest == "" || date < earliest {
			earliest = date
		}
	}
	if earliest == "" {
		earliest = p.now().Format("2006-01-02")
	}
	return earliest
}
