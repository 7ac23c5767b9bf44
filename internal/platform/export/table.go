package export

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// Fixed leading columns. A row with an empty parentfield is a document,
// any other row is a child table row of the document above it.
const (
	ColumnName        = "name"
	ColumnParentField = "parentfield"
)

// OpeningEntry exports the opening balance journal on its own
const OpeningEntry = "Opening Entry"

// Table is a flat rendering of documents of one doctype
type Table struct {
	Doctype string
	Columns []string
	Rows    [][]string
}

// Build flattens the documents of a doctype into a table. Child tables
// follow their parent document, one row per child, tagged by parentfield.
// OpeningEntry selects the opening journal; Journal Entry excludes it.
func Build(docs []*ledger.Document, doctype string) (*Table, error) {
	selected := selectDocuments(docs, doctype)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, doctype)
	}

	cols := newColumnSet(ColumnName, ColumnParentField)
	for _, doc := range selected {
		if doc.Company != "" {
			cols.add("company")
		}
		for _, f := range doc.Fields {
			if rows, ok := f.Value.([]ledger.Row); ok {
				for _, row := range rows {
					for _, c := range row {
						cols.add(c.Name)
					}
				}
				continue
			}
			cols.add(f.Name)
		}
	}

	t := &Table{Doctype: doctype, Columns: cols.names}
	for _, doc := range selected {
		line := make([]string, len(cols.names))
		line[0] = doc.Name
		if doc.Company != "" {
			line[cols.index["company"]] = doc.Company
		}
		var children [][]string
		for _, f := range doc.Fields {
			rows, ok := f.Value.([]ledger.Row)
			if !ok {
				line[cols.index[f.Name]] = FormatValue(f.Value)
				continue
			}
			for _, row := range rows {
				child := make([]string, len(cols.names))
				child[0] = doc.Name
				child[1] = f.Name
				for _, c := range row {
					child[cols.index[c.Name]] = FormatValue(c.Value)
				}
				children = append(children, child)
			}
		}
		t.Rows = append(t.Rows, line)
		t.Rows = append(t.Rows, children...)
	}
	return t, nil
}

func selectDocuments(docs []*ledger.Document, doctype string) []*ledger.Document {
	var out []*ledger.Document
	for _, doc := range docs {
		opening := isOpening(doc)
		switch {
		case doctype == OpeningEntry && opening:
			out = append(out, doc)
		case doc.Doctype == doctype && !opening:
			out = append(out, doc)
		}
	}
	return out
}

func isOpening(doc *ledger.Document) bool {
	if doc.Doctype != "Journal Entry" {
		return false
	}
	v, ok := doc.Get("is_opening")
	return ok && v == "Yes"
}

// Documents rebuilds documents from a table. Values come back as strings.
func (t *Table) Documents() ([]*ledger.Document, error) {
	nameCol, parentCol := -1, -1
	for i, c := range t.Columns {
		switch c {
		case ColumnName:
			nameCol = i
		case ColumnParentField:
			parentCol = i
		}
	}
	if nameCol < 0 || parentCol < 0 {
		return nil, ErrMissingColumn
	}

	var docs []*ledger.Document
	for i, line := range t.Rows {
		if line[parentCol] == "" {
			doc := &ledger.Document{Doctype: t.Doctype, Name: line[nameCol]}
			for j, v := range line {
				if j == nameCol || j == parentCol || v == "" {
					continue
				}
				if t.Columns[j] == "company" {
					doc.Company = v
					continue
				}
				doc.Fields = append(doc.Fields, ledger.Field{Name: t.Columns[j], Value: v})
			}
			docs = append(docs, doc)
			continue
		}

		if len(docs) == 0 || docs[len(docs)-1].Name != line[nameCol] {
			return nil, fmt.Errorf("row %d: child of %q has no parent row", i+2, line[nameCol])
		}
		appendChild(docs[len(docs)-1], line[parentCol], t.childRow(line, nameCol, parentCol))
	}
	return docs, nil
}

func (t *Table) childRow(line []string, nameCol, parentCol int) ledger.Row {
	var row ledger.Row
	for j, v := range line {
		if j == nameCol || j == parentCol || v == "" {
			continue
		}
		row = append(row, ledger.Field{Name: t.Columns[j], Value: v})
	}
	return row
}

func appendChild(doc *ledger.Document, table string, row ledger.Row) {
	for i, f := range doc.Fields {
		if f.Name != table {
			continue
		}
		rows, _ := f.Value.([]ledger.Row)
		doc.Fields[i].Value = append(rows, row)
		return
	}
	doc.Fields = append(doc.Fields, ledger.Field{Name: table, Value: []ledger.Row{row}})
}

// FormatValue renders a field value as a cell
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case decimal.Decimal:
		return x.String()
	}
	return fmt.Sprint(v)
}

type columnSet struct {
	names []string
	index map[string]int
}

func newColumnSet(names ...string) *columnSet {
	s := &columnSet{index: make(map[string]int)}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *columnSet) add(name string) {
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
}
