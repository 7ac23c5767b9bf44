package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/tallymigrate/pkg/money"
)

// Well-known names in the target chart
const (
	TemporaryOpeningAccount = "Temporary Opening"
	PriceListName           = "Tally Price List"
	OpeningKey              = "tally-opening-balance"
	OpeningTitle            = "Tally Opening Balance"
	OpeningVoucherType      = "Opening Entry"
)

// RootType is the top-level category of an account
type RootType string

const (
	RootAsset     RootType = "Asset"
	RootLiability RootType = "Liability"
	RootIncome    RootType = "Income"
	RootExpense   RootType = "Expense"
)

// IsValid checks if the root type is valid
func (r RootType) IsValid() bool {
	switch r {
	case RootAsset, RootLiability, RootIncome, RootExpense:
		return true
	}
	return false
}

// ReportType returns the financial statement the root type reports on
func (r RootType) ReportType() string {
	if r == RootIncome || r == RootExpense {
		return "Profit and Loss"
	}
	return "Balance Sheet"
}

// Account types set on special accounts
const (
	AccountTypeReceivable = "Receivable"
	AccountTypePayable    = "Payable"
	AccountTypeTemporary  = "Temporary"
	AccountTypeRoundOff   = "Round Off"
)

// AccountNode is one account of the chart. Roots have no parent.
type AccountNode struct {
	Name        string   `json:"name"`
	ParentName  string   `json:"parent_name,omitempty"`
	IsGroup     bool     `json:"is_group"`
	RootType    RootType `json:"root_type"`
	AccountType string   `json:"account_type,omitempty"`
}

// IsRoot reports whether the node is one of the fixed root categories
func (a *AccountNode) IsRoot() bool {
	return a.ParentName == ""
}

// Validate validates the account node
func (a *AccountNode) Validate() error {
	if a.Name == "" {
		return ErrEmptyAccountName
	}
	if !a.RootType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRootType, a.RootType)
	}
	if a.ParentName == "" && !a.IsGroup {
		return fmt.Errorf("%w: %s", ErrMissingParent, a.Name)
	}
	switch a.AccountType {
	case "", AccountTypeReceivable, AccountTypePayable, AccountTypeTemporary, AccountTypeRoundOff:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.AccountType)
	}
	return nil
}

// PartyKind distinguishes customers from suppliers
type PartyKind string

const (
	PartyCustomer PartyKind = "Customer"
	PartySupplier PartyKind = "Supplier"
)

// IsValid checks if the party kind is valid
func (k PartyKind) IsValid() bool {
	return k == PartyCustomer || k == PartySupplier
}

// PartyRecord is a customer or supplier master
type PartyRecord struct {
	Kind  PartyKind `json:"kind"`
	Name  string    `json:"name"`
	TaxID string    `json:"tax_id,omitempty"`
}

// Validate validates the party
func (p *PartyRecord) Validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPartyKind, p.Kind)
	}
	if p.Name == "" {
		return ErrEmptyPartyName
	}
	return nil
}

// PartyLink ties an address to a party
type PartyLink struct {
	Kind PartyKind `json:"kind"`
	Name string    `json:"name"`
}

// AddressLineLimit is the maximum length of a target address line
const AddressLineLimit = 140

// Address is a party's billing address
type Address struct {
	Title   string      `json:"title"`
	Line1   string      `json:"line1"`
	Line2   string      `json:"line2,omitempty"`
	Country string      `json:"country,omitempty"`
	State   string      `json:"state,omitempty"`
	PinCode string      `json:"pin_code,omitempty"`
	Phone   string      `json:"phone,omitempty"`
	GSTIN   string      `json:"gstin,omitempty"`
	Links   []PartyLink `json:"links"`
}

// Validate validates the address
func (a *Address) Validate() error {
	if a.Title == "" {
		return ErrEmptyPartyName
	}
	if len(a.Links) == 0 {
		return ErrAddressUnlinked
	}
	for _, l := range a.Links {
		if !l.Kind.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidPartyKind, l.Kind)
		}
	}
	return nil
}

// UnitOfMeasure is a UOM master
type UnitOfMeasure struct {
	Name string `json:"name"`
}

// ItemMaster is a non-stock catalog item
type ItemMaster struct {
	Code        string `json:"code"`
	StockUOM    string `json:"stock_uom"`
	ItemGroup   string `json:"item_group"`
	IsStockItem bool   `json:"is_stock_item"`
}

// Validate validates the item
func (i *ItemMaster) Validate() error {
	if i.Code == "" {
		return ErrEmptyItemCode
	}
	if i.StockUOM == "" {
		return ErrEmptyUOM
	}
	return nil
}

// PostingLine is one debit or credit line of a journal
type PostingLine struct {
	Account    string          `json:"account"`
	Party      string          `json:"party,omitempty"`
	PartyType  PartyKind       `json:"party_type,omitempty"`
	CostCenter string          `json:"cost_center"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
}

// NewPostingLine builds a line from a signed Tally amount: negative amounts
// are debits, others credits.
func NewPostingLine(account, costCenter string, signed decimal.Decimal) PostingLine {
	line := PostingLine{Account: account, CostCenter: costCenter}
	amount, side := money.Split(signed)
	if side == money.Debit {
		line.Debit = amount
	} else {
		line.Credit = amount
	}
	return line
}

// WithParty redirects the line to a control account on behalf of a party
func (l PostingLine) WithParty(kind PartyKind, party, controlAccount string) PostingLine {
	l.Account = controlAccount
	l.Party = party
	l.PartyType = kind
	return l
}

// Validate validates the line
func (l *PostingLine) Validate() error {
	if l.Account == "" {
		return ErrEmptyAccountName
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return ErrNegativeAmount
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return fmt.Errorf("%w: account %s", ErrInvalidDebitCredit, l.Account)
	}
	if l.Party != "" && !l.PartyType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPartyKind, l.PartyType)
	}
	return nil
}

// JournalPosting is a generic double-entry posting
type JournalPosting struct {
	SourceID        string        `json:"source_id"`
	SourceVoucherNo string        `json:"source_voucher_no,omitempty"`
	PostingDate     string        `json:"posting_date"`
	Title           string        `json:"title,omitempty"`
	VoucherType     string        `json:"voucher_type,omitempty"`
	IsOpening       bool          `json:"is_opening,omitempty"`
	Lines           []PostingLine `json:"lines"`
}

// Totals returns the sum of debits and credits
func (j *JournalPosting) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range j.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Validate validates the journal and checks it balances to two decimals
func (j *JournalPosting) Validate() error {
	if j.SourceID == "" {
		return ErrMissingSourceID
	}
	if j.PostingDate == "" {
		return ErrMissingPostingDate
	}
	if len(j.Lines) == 0 {
		return ErrNoPostingLines
	}
	for i := range j.Lines {
		if err := j.Lines[i].Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	debit, credit := j.Totals()
	if !money.Equal(debit, credit) {
		return fmt.Errorf("%w: debit=%s, credit=%s", ErrUnbalanced, money.Format(debit), money.Format(credit))
	}
	return nil
}

// Direction is the side of trade an invoice records
type Direction string

const (
	DirectionSale     Direction = "Sale"
	DirectionPurchase Direction = "Purchase"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionSale || d == DirectionPurchase
}

// Doctype returns the target invoice doctype
func (d Direction) Doctype() string {
	if d == DirectionPurchase {
		return "Purchase Invoice"
	}
	return "Sales Invoice"
}

// PartyKind returns the kind of party the invoice is raised against
func (d Direction) PartyKind() PartyKind {
	if d == DirectionPurchase {
		return PartySupplier
	}
	return PartyCustomer
}

// InvoiceLine is one item line of an invoice
type InvoiceLine struct {
	ItemCode   string          `json:"item_code"`
	Qty        decimal.Decimal `json:"qty"`
	UOM        string          `json:"uom"`
	Rate       decimal.Decimal `json:"rate"`
	Account    string          `json:"account"`
	CostCenter string          `json:"cost_center"`
	Warehouse  string          `json:"warehouse"`
}

// Tax charge constants
const (
	ChargeTypeActual = "Actual"
	TaxAdd           = "Add"
)

// TaxLine is a flat charge on an invoice
type TaxLine struct {
	ChargeType string          `json:"charge_type"`
	AddDeduct  string          `json:"add_deduct"`
	Account    string          `json:"account"`
	Amount     decimal.Decimal `json:"amount"`
	CostCenter string          `json:"cost_center"`
}

// InvoicePosting is a sales or purchase invoice
type InvoicePosting struct {
	Direction       Direction     `json:"direction"`
	Counterparty    string        `json:"counterparty"`
	ControlAccount  string        `json:"control_account"`
	PostingDate     string        `json:"posting_date"`
	DueDate         string        `json:"due_date"`
	SourceID        string        `json:"source_id"`
	SourceVoucherNo string        `json:"source_voucher_no,omitempty"`
	PriceList       string        `json:"price_list"`
	Items           []InvoiceLine `json:"items"`
	Taxes           []TaxLine     `json:"taxes,omitempty"`
}

// Validate validates the invoice
func (i *InvoicePosting) Validate() error {
	if !i.Direction.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, i.Direction)
	}
	if i.SourceID == "" {
		return ErrMissingSourceID
	}
	if i.PostingDate == "" {
		return ErrMissingPostingDate
	}
	if i.Counterparty == "" {
		return ErrMissingCounterparty
	}
	if i.ControlAccount == "" {
		return ErrEmptyAccountName
	}
	if len(i.Items) == 0 {
		return ErrNoInvoiceItems
	}
	for n, item := range i.Items {
		if item.ItemCode == "" {
			return fmt.Errorf("item %d: %w", n+1, ErrEmptyItemCode)
		}
		if item.Account == "" {
			return fmt.Errorf("item %d: %w", n+1, ErrEmptyAccountName)
		}
	}
	for n, tax := range i.Taxes {
		if tax.Amount.IsNegative() {
			return fmt.Errorf("tax %d: %w", n+1, ErrNegativeAmount)
		}
	}
	return nil
}
