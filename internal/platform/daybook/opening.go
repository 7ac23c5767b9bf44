package daybook

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
	"github.com/kislikjeka/tallymigrate/pkg/money"
)

// openingStockRow is left out of the opening balance: stock is not migrated
const openingStockRow = "Opening Stock"

// Plug is the balancing line added on the temporary opening account when
// the trial balance does not balance.
type Plug struct {
	Amount decimal.Decimal
	Side   money.Side
}

// BuildOpening synthesizes the opening balance journal from a trial balance
// report. Posting date is settings.OpeningDate, else fallbackDate. A report
// with no balances yields a nil posting.
func BuildOpening(ctx context.Context, report *tallyxml.Node, dir Directory, settings ledger.Settings, fallbackDate string) (*ledger.JournalPosting, *Plug, error) {
	names := report.FindAll("DSPDISPNAME")
	credits := report.FindAll("DSPCLCRAMT")
	debits := report.FindAll("DSPCLDRAMT")
	if len(names) != len(credits) || len(names) != len(debits) {
		return nil, nil, fmt.Errorf("%w: %d names, %d credit and %d debit amounts",
			ErrMalformedTrialBalance, len(names), len(credits), len(debits))
	}

	postingDate := settings.OpeningDate
	if postingDate == "" {
		postingDate = fallbackDate
	}
	j := &ledger.JournalPosting{
		SourceID:    ledger.OpeningKey,
		PostingDate: postingDate,
		Title:       ledger.OpeningTitle,
		VoucherType: ledger.OpeningVoucherType,
		IsOpening:   true,
	}

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for i, n := range names {
		name := n.InnerText()
		if name == openingStockRow {
			continue
		}

		credit, err := money.Parse(credits[i].InnerText())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: credit of %s: %v", ErrMalformedTrialBalance, name, err)
		}
		debit, err := money.Parse(debits[i].InnerText())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: debit of %s: %v", ErrMalformedTrialBalance, name, err)
		}
		credit, debit = credit.Abs(), debit.Abs()
		totalCredit = totalCredit.Add(credit)
		totalDebit = totalDebit.Add(debit)

		party, partyKind, err := lookupParty(ctx, dir, name)
		if err != nil {
			return nil, nil, err
		}
		for _, amount := range []struct {
			value decimal.Decimal
			side  money.Side
		}{{debit, money.Debit}, {credit, money.Credit}} {
			if amount.value.IsZero() {
				continue
			}
			line := ledger.PostingLine{Account: name, CostCenter: settings.CostCenter()}
			if amount.side == money.Debit {
				line.Debit = amount.value
			} else {
				line.Credit = amount.value
			}
			if party {
				line = line.WithParty(partyKind, name, controlFor(settings, partyKind))
			}
			j.Lines = append(j.Lines, line)
		}
	}

	if len(j.Lines) == 0 {
		return nil, nil, nil
	}

	var plug *Plug
	difference := money.Round(totalDebit.Sub(totalCredit))
	if !difference.IsZero() {
		amount, side := money.Split(difference)
		if side == money.Debit {
			j.Lines = append(j.Lines, ledger.PostingLine{Account: ledger.TemporaryOpeningAccount, CostCenter: settings.CostCenter(), Debit: amount})
		} else {
			j.Lines = append(j.Lines, ledger.PostingLine{Account: ledger.TemporaryOpeningAccount, CostCenter: settings.CostCenter(), Credit: amount})
		}
		plug = &Plug{Amount: amount, Side: side}
	}

	if err := j.Validate(); err != nil {
		return nil, nil, fmt.Errorf("opening balance: %w", err)
	}
	return j, plug, nil
}

func lookupParty(ctx context.Context, dir Directory, name string) (bool, ledger.PartyKind, error) {
	if dir == nil {
		return false, "", nil
	}
	kind, ok, err := dir.PartyKind(ctx, name)
	if err != nil {
		return false, "", fmt.Errorf("failed to look up party %s: %w", name, err)
	}
	return ok, kind, nil
}

func controlFor(settings ledger.Settings, kind ledger.PartyKind) string {
	if kind == ledger.PartySupplier {
		return settings.CreditorsAccount
	}
	return settings.DebtorsAccount
}
