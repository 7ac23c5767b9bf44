package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes the table with a header row
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// ParseCSV reads a table written by WriteCSV
func ParseCSV(r io.Reader, doctype string) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromRows(doctype, records)
}

func fromRows(doctype string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	t := &Table{Doctype: doctype, Columns: rows[0]}
	for _, row := range rows[1:] {
		// spreadsheet readers drop trailing empty cells
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
