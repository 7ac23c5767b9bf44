package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/masters"
)

// Names created ahead of the day-book import
const (
	DirectExpensesAccount    = "Direct Expenses"
	StockExpensesAccount     = "Stock Expenses"
	ValuationExpensesAccount = "Expenses Included In Valuation"
	IndirectExpensesAccount  = "Indirect Expenses"
	PriceListCurrency        = "INR"
	customFieldGUID          = "tally_guid"
	customFieldVoucherNo     = "tally_voucher_no"
)

// prerequisiteAccounts returns the accounts vouchers post to that Tally
// does not export, parents first.
func prerequisiteAccounts(settings ledger.Settings) []ledger.AccountNode {
	return []ledger.AccountNode{
		{Name: ledger.TemporaryOpeningAccount, ParentName: masters.RootAssets, RootType: ledger.RootAsset, AccountType: ledger.AccountTypeTemporary},
		{Name: DirectExpensesAccount, ParentName: masters.RootExpenses, IsGroup: true, RootType: ledger.RootExpense},
		{Name: StockExpensesAccount, ParentName: DirectExpensesAccount, IsGroup: true, RootType: ledger.RootExpense},
		{Name: ValuationExpensesAccount, ParentName: StockExpensesAccount, RootType: ledger.RootExpense},
		{Name: IndirectExpensesAccount, ParentName: masters.RootExpenses, IsGroup: true, RootType: ledger.RootExpense},
		{Name: settings.RoundOffAccount, ParentName: IndirectExpensesAccount, RootType: ledger.RootExpense, AccountType: ledger.AccountTypeRoundOff},
	}
}

// prerequisiteDocuments renders everything the day-book import needs to
// exist before the first voucher.
func prerequisiteDocuments(registry *ledger.Registry, settings ledger.Settings) ([]*ledger.Document, error) {
	var docs []*ledger.Document
	for _, acc := range prerequisiteAccounts(settings) {
		doc, err := registry.Render(ledger.NewAccountRecord(acc), settings)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	for _, doctype := range []string{"Journal Entry", "Sales Invoice", "Purchase Invoice"} {
		docs = append(docs,
			customField(doctype, customFieldGUID, "Tally GUID"),
			customField(doctype, customFieldVoucherNo, "Tally Voucher Number"),
		)
	}

	priceList := &ledger.Document{Doctype: "Price List", Name: ledger.PriceListName}
	priceList.Set("price_list_name", ledger.PriceListName)
	priceList.Set("selling", 1)
	priceList.Set("buying", 1)
	priceList.Set("enabled", 1)
	priceList.Set("currency", PriceListCurrency)
	docs = append(docs, priceList)

	return docs, nil
}

func customField(doctype, fieldname, label string) *ledger.Document {
	doc := &ledger.Document{Doctype: "Custom Field", Name: doctype + "-" + fieldname}
	doc.Set("dt", doctype)
	doc.Set("fieldname", fieldname)
	doc.Set("fieldtype", "Data")
	doc.Set("label", label)
	doc.Set("read_only", 1)
	return doc
}

// ensurePrerequisites inserts the prerequisite documents idempotently and
// types the control accounts. Any failure aborts the import.
func (r *Runner) ensurePrerequisites(ctx context.Context, settings ledger.Settings) error {
	docs, err := prerequisiteDocuments(r.registry, settings)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		err := r.docs.Insert(ctx, doc, InsertOptions{SkipValidation: settings.SkipValidation})
		if err != nil && !errors.Is(err, ledger.ErrDuplicateDocument) {
			return fmt.Errorf("failed to create %s %q: %w", doc.Doctype, doc.Name, err)
		}
	}

	for account, accountType := range map[string]string{
		settings.DebtorsAccount:   ledger.AccountTypeReceivable,
		settings.CreditorsAccount: ledger.AccountTypePayable,
	} {
		if err := r.docs.SetField(ctx, "Account", settings.Qualify(account), "account_type", accountType); err != nil {
			return fmt.Errorf("failed to type control account %q: %w", account, err)
		}
	}
	return nil
}
