package masters

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

// Item defaults
const (
	DefaultUOM       = "Unit"
	DefaultItemGroup = "All Item Groups"
)

// NormalizeUOM title-cases a Tally unit symbol, defaulting to Unit
func NormalizeUOM(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return DefaultUOM
	}
	return cases.Title(language.Und).String(unit)
}

// ExtractItems reads UNIT and STOCKITEM masters. Items are imported as
// non-stock items; every unit an item references is emitted as a UOM.
func ExtractItems(collection *tallyxml.Node) ([]ledger.UnitOfMeasure, []ledger.ItemMaster) {
	var uoms []ledger.UnitOfMeasure
	seenUOM := make(map[string]bool)
	addUOM := func(name string) {
		if seenUOM[name] {
			return
		}
		seenUOM[name] = true
		uoms = append(uoms, ledger.UnitOfMeasure{Name: name})
	}

	for _, u := range collection.FindAll("UNIT") {
		if name := u.Name(); name != "" {
			addUOM(NormalizeUOM(name))
		}
	}

	var items []ledger.ItemMaster
	seenItem := make(map[string]bool)
	for _, s := range collection.FindAll("STOCKITEM") {
		code := s.Name()
		if code == "" || seenItem[code] {
			continue
		}
		seenItem[code] = true

		uom := NormalizeUOM(s.Text("BASEUNITS"))
		addUOM(uom)
		items = append(items, ledger.ItemMaster{
			Code:      code,
			StockUOM:  uom,
			ItemGroup: DefaultItemGroup,
		})
	}
	return uoms, items
}
