package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value of a document or child row. Value is a string,
// bool, int, decimal.Decimal or, for child tables, []Row.
type Field struct {
	Name  string
	Value interface{}
}

// Row is one child table row
type Row []Field

// Link is a reference from a document to another document that must exist
type Link struct {
	Doctype string
	Name    string
}

// Document is the target-shaped rendering of a Record, ready for insert.
// Field order is preserved for export.
type Document struct {
	Doctype     string
	Name        string
	Company     string
	Submittable bool
	Fields      []Field
	Links       []Link
}

// Set appends a field, skipping empty strings
func (d *Document) Set(name string, value interface{}) {
	if s, ok := value.(string); ok && s == "" {
		return
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: value})
}

// Table appends a child table
func (d *Document) Table(name string, rows []Row) {
	if len(rows) == 0 {
		return
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: rows})
}

// Link records a dependency on another document
func (d *Document) Link(doctype, name string) {
	if name == "" {
		return
	}
	for _, l := range d.Links {
		if l.Doctype == doctype && l.Name == name {
			return
		}
	}
	d.Links = append(d.Links, Link{Doctype: doctype, Name: name})
}

// Get returns the value of a top-level field
func (d *Document) Get(name string) (interface{}, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Tables returns the child tables in field order
func (d *Document) Tables() []Field {
	var tables []Field
	for _, f := range d.Fields {
		if _, ok := f.Value.([]Row); ok {
			tables = append(tables, f)
		}
	}
	return tables
}

// MarshalJSON writes the document as an ordered object
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	head := []Field{{Name: "doctype", Value: d.Doctype}, {Name: "name", Value: d.Name}}
	if d.Company != "" {
		head = append(head, Field{Name: "company", Value: d.Company})
	}
	if err := writeObject(&buf, append(head, d.Fields...)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON writes the row as an ordered object
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, fields []Field) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
