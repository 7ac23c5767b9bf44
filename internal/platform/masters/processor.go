package masters

import (
	"fmt"
	"log/slog"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

// Bundle is the processed master data of one export
type Bundle struct {
	Company   string
	Accounts  []ledger.AccountNode
	Parties   []ledger.PartyRecord
	Addresses []ledger.Address
	UOMs      []ledger.UnitOfMeasure
	Items     []ledger.ItemMaster
	Skipped   SkippedAccounts
}

// SkippedAccounts lists masters that did not make it into the chart as
// declared. Orphans are dropped; for duplicates only the first declaration
// is kept.
type SkippedAccounts struct {
	Orphans    []string `json:"orphans"`
	Duplicates []string `json:"duplicates"`
}

// Len returns the number of skipped names
func (s SkippedAccounts) Len() int {
	return len(s.Orphans) + len(s.Duplicates)
}

// Records returns the bundle in import order: accounts, parties, addresses,
// units, items.
func (b *Bundle) Records() []ledger.Record {
	records := make([]ledger.Record, 0,
		len(b.Accounts)+len(b.Parties)+len(b.Addresses)+len(b.UOMs)+len(b.Items))
	for _, a := range b.Accounts {
		records = append(records, ledger.NewAccountRecord(a))
	}
	for _, p := range b.Parties {
		records = append(records, ledger.NewPartyRecord(p))
	}
	for _, a := range b.Addresses {
		records = append(records, ledger.NewAddressRecord(a))
	}
	for _, u := range b.UOMs {
		records = append(records, ledger.NewUOMRecord(u))
	}
	for _, i := range b.Items {
		records = append(records, ledger.NewItemRecord(i))
	}
	return records
}

// Processor turns a master export into a Bundle
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a master data processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{logger: logger.With("component", "masters")}
}

const processSteps = 5

// Process extracts the chart of accounts, parties, addresses, units and items.
// The export's company name fills settings.Company when it is unset.
func (p *Processor) Process(root *tallyxml.Node, settings *ledger.Settings, progress ledger.ProgressFunc) (*Bundle, error) {
	if progress == nil {
		progress = ledger.NoProgress
	}
	collection := root.Collection()
	if collection == nil {
		return nil, ErrNoCollection
	}

	progress("Reading master data", 1, processSteps)
	bundle := &Bundle{Company: CompanyName(collection)}
	if settings.Company == "" {
		settings.Company = bundle.Company
	}

	progress("Processing chart of accounts and parties", 2, processSteps)
	groups, ledgers := ReadAccountSources(collection)
	tree, err := BuildAccountTree(groups, ledgers, *settings)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart of accounts: %w", err)
	}
	for _, orphan := range tree.Orphans {
		p.logger.Warn("account cannot reach a root, skipping", "account", orphan)
	}
	for _, name := range tree.Duplicates {
		p.logger.Warn("account declared more than once, keeping the first", "account", name)
	}
	bundle.Accounts = tree.Nodes
	bundle.Skipped = SkippedAccounts{Orphans: tree.Orphans, Duplicates: tree.Duplicates}

	progress("Processing party addresses", 3, processSteps)
	bundle.Parties, bundle.Addresses = ExtractParties(collection, tree.Customers, tree.Suppliers)

	progress("Processing items and UOMs", 4, processSteps)
	bundle.UOMs, bundle.Items = ExtractItems(collection)

	p.logger.Info("master data processed",
		"company", bundle.Company,
		"accounts", len(bundle.Accounts),
		"parties", len(bundle.Parties),
		"addresses", len(bundle.Addresses),
		"uoms", len(bundle.UOMs),
		"items", len(bundle.Items),
		"orphans", len(tree.Orphans),
		"duplicates", len(tree.Duplicates))
	progress("Done", processSteps, processSteps)
	return bundle, nil
}
