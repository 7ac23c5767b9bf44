package masters

import (
	"strings"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

// ExtractParties builds party records and billing addresses for the ledgers
// the tree builder classified as customers or suppliers. A ledger that is
// both gets one record per kind and a single address linked to each.
func ExtractParties(collection *tallyxml.Node, customers, suppliers []string) ([]ledger.PartyRecord, []ledger.Address) {
	isCustomer := toSet(customers)
	isSupplier := toSet(suppliers)
	seen := make(map[string]bool)

	var parties []ledger.PartyRecord
	var addresses []ledger.Address
	for _, l := range collection.FindAll("LEDGER") {
		name := l.Name()
		if seen[name] || (!isCustomer[name] && !isSupplier[name]) {
			continue
		}
		seen[name] = true

		taxID := l.Text("INCOMETAXNUMBER")
		var links []ledger.PartyLink
		if isCustomer[name] {
			parties = append(parties, ledger.PartyRecord{Kind: ledger.PartyCustomer, Name: name, TaxID: taxID})
			links = append(links, ledger.PartyLink{Kind: ledger.PartyCustomer, Name: name})
		}
		if isSupplier[name] {
			parties = append(parties, ledger.PartyRecord{Kind: ledger.PartySupplier, Name: name, TaxID: taxID})
			links = append(links, ledger.PartyLink{Kind: ledger.PartySupplier, Name: name})
		}

		line1, line2 := SplitAddress(strings.Join(l.Texts("ADDRESS"), "\n"))
		addresses = append(addresses, ledger.Address{
			Title:   name,
			Line1:   line1,
			Line2:   line2,
			Country: l.Text("COUNTRYNAME"),
			State:   l.Text("LEDSTATENAME"),
			PinCode: l.Text("PINCODE"),
			Phone:   l.Text("LEDGERPHONE"),
			GSTIN:   l.Text("PARTYGSTIN"),
			Links:   links,
		})
	}
	return parties, addresses
}

// SplitAddress splits an address at the target line limit
func SplitAddress(address string) (line1, line2 string) {
	runes := []rune(address)
	if len(runes) <= ledger.AddressLineLimit {
		return strings.TrimSpace(address), ""
	}
	return strings.TrimSpace(string(runes[:ledger.AddressLineLimit])),
		strings.TrimSpace(string(runes[ledger.AddressLineLimit:]))
}

// CompanyName returns the company the export was taken from
func CompanyName(collection *tallyxml.Node) string {
	return collection.First("REMOTECMPINFO.LIST").Text("REMOTECMPNAME")
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
