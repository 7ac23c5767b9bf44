package ledger

import "errors"

// Account errors
var (
	ErrEmptyAccountName   = errors.New("account name is required")
	ErrInvalidRootType    = errors.New("invalid root type")
	ErrMissingParent      = errors.New("non-root account requires a parent")
	ErrInvalidAccountType = errors.New("invalid account type")
)

// Party and item errors
var (
	ErrInvalidPartyKind = errors.New("invalid party kind")
	ErrEmptyPartyName   = errors.New("party name is required")
	ErrAddressUnlinked  = errors.New("address must link to at least one party")
	ErrEmptyItemCode    = errors.New("item code is required")
	ErrEmptyUOM         = errors.New("unit of measure is required")
)

// Posting errors
var (
	ErrInvalidDebitCredit  = errors.New("exactly one of debit and credit must be non-zero")
	ErrNegativeAmount      = errors.New("amount cannot be negative")
	ErrNoPostingLines      = errors.New("posting has no lines")
	ErrUnbalanced          = errors.New("posting debits and credits do not balance")
	ErrMissingSourceID     = errors.New("posting requires a source id")
	ErrMissingPostingDate  = errors.New("posting requires a posting date")
	ErrInvalidDirection    = errors.New("invalid invoice direction")
	ErrNoInvoiceItems      = errors.New("invoice has no item lines")
	ErrMissingCounterparty = errors.New("invoice requires a counterparty")
)

// Record errors
var (
	ErrInvalidKind     = errors.New("invalid record kind")
	ErrPayloadMismatch = errors.New("record payload does not match its kind")
	ErrNoWriter        = errors.New("no document writer registered for kind")
)

// Store errors
var (
	// ErrDuplicateDocument is returned by document stores when an insert hits
	// a uniqueness violation. Import treats it as already migrated.
	ErrDuplicateDocument = errors.New("document already exists")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrMissingReference  = errors.New("referenced document does not exist")
)

// Settings errors
var (
	ErrMissingControlAccount = errors.New("debtors and creditors control accounts are required")
	ErrSameControlAccount    = errors.New("debtors and creditors control accounts must differ")
	ErrInvalidChunkSize      = errors.New("chunk size must be positive")
)
