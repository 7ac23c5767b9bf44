package ledger

import (
	"encoding/json"
	"fmt"
)

// Kind tags the payload a Record carries
type Kind string

const (
	KindAccount Kind = "account"
	KindParty   Kind = "party"
	KindAddress Kind = "address"
	KindUOM     Kind = "uom"
	KindItem    Kind = "item"
	KindJournal Kind = "journal"
	KindInvoice Kind = "invoice"
)

// IsValid checks if the kind is valid
func (k Kind) IsValid() bool {
	switch k {
	case KindAccount, KindParty, KindAddress, KindUOM, KindItem, KindJournal, KindInvoice:
		return true
	}
	return false
}

// Record is the unit a stage artifact holds: exactly one payload, matching Kind.
type Record struct {
	Kind    Kind            `json:"kind"`
	Account *AccountNode    `json:"account,omitempty"`
	Party   *PartyRecord    `json:"party,omitempty"`
	Address *Address        `json:"address,omitempty"`
	UOM     *UnitOfMeasure  `json:"uom,omitempty"`
	Item    *ItemMaster     `json:"item,omitempty"`
	Journal *JournalPosting `json:"journal,omitempty"`
	Invoice *InvoicePosting `json:"invoice,omitempty"`
}

// NewAccountRecord wraps an account node
func NewAccountRecord(a AccountNode) Record { return Record{Kind: KindAccount, Account: &a} }

// NewPartyRecord wraps a party
func NewPartyRecord(p PartyRecord) Record { return Record{Kind: KindParty, Party: &p} }

// NewAddressRecord wraps an address
func NewAddressRecord(a Address) Record { return Record{Kind: KindAddress, Address: &a} }

// NewUOMRecord wraps a unit of measure
func NewUOMRecord(u UnitOfMeasure) Record { return Record{Kind: KindUOM, UOM: &u} }

// NewItemRecord wraps an item
func NewItemRecord(i ItemMaster) Record { return Record{Kind: KindItem, Item: &i} }

// NewJournalRecord wraps a journal posting
func NewJournalRecord(j JournalPosting) Record { return Record{Kind: KindJournal, Journal: &j} }

// NewInvoiceRecord wraps an invoice posting
func NewInvoiceRecord(i InvoicePosting) Record { return Record{Kind: KindInvoice, Invoice: &i} }

// Key returns the idempotency key of the record: the document name it is
// imported under.
func (r Record) Key() string {
	switch r.Kind {
	case KindAccount:
		if r.Account != nil {
			return r.Account.Name
		}
	case KindParty:
		if r.Party != nil {
			return r.Party.Name
		}
	case KindAddress:
		if r.Address != nil {
			return r.Address.Title + "-Billing"
		}
	case KindUOM:
		if r.UOM != nil {
			return r.UOM.Name
		}
	case KindItem:
		if r.Item != nil {
			return r.Item.Code
		}
	case KindJournal:
		if r.Journal != nil {
			return r.Journal.SourceID
		}
	case KindInvoice:
		if r.Invoice != nil {
			return r.Invoice.SourceID
		}
	}
	return ""
}

// Doctype returns the target doctype of the record
func (r Record) Doctype() string {
	switch r.Kind {
	case KindAccount:
		return "Account"
	case KindParty:
		if r.Party != nil {
			return string(r.Party.Kind)
		}
	case KindAddress:
		return "Address"
	case KindUOM:
		return "UOM"
	case KindItem:
		return "Item"
	case KindJournal:
		return "Journal Entry"
	case KindInvoice:
		if r.Invoice != nil {
			return r.Invoice.Direction.Doctype()
		}
	}
	return ""
}

// IsOpening reports whether the record is the opening balance posting
func (r Record) IsOpening() bool {
	return r.Kind == KindJournal && r.Journal != nil && r.Journal.IsOpening
}

// Validate checks the record carries exactly the payload its kind names
// and that the payload is valid.
func (r Record) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}

	set := 0
	for _, present := range []bool{
		r.Account != nil, r.Party != nil, r.Address != nil, r.UOM != nil,
		r.Item != nil, r.Journal != nil, r.Invoice != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %d payloads set", ErrPayloadMismatch, set)
	}

	switch r.Kind {
	case KindAccount:
		if r.Account == nil {
			return ErrPayloadMismatch
		}
		return r.Account.Validate()
	case KindParty:
		if r.Party == nil {
			return ErrPayloadMismatch
		}
		return r.Party.Validate()
	case KindAddress:
		if r.Address == nil {
			return ErrPayloadMismatch
		}
		return r.Address.Validate()
	case KindUOM:
		if r.UOM == nil {
			return ErrPayloadMismatch
		}
		if r.UOM.Name == "" {
			return ErrEmptyUOM
		}
		return nil
	case KindItem:
		if r.Item == nil {
			return ErrPayloadMismatch
		}
		return r.Item.Validate()
	case KindJournal:
		if r.Journal == nil {
			return ErrPayloadMismatch
		}
		return r.Journal.Validate()
	case KindInvoice:
		if r.Invoice == nil {
			return ErrPayloadMismatch
		}
		return r.Invoice.Validate()
	}
	return nil
}

// MarshalRecords serializes a bundle of records as a stage artifact
func MarshalRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return data, nil
}

// UnmarshalRecords parses a stage artifact and validates every record
func UnmarshalRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d (%s %q): %w", i, r.Kind, r.Key(), err)
		}
	}
	return records, nil
}
