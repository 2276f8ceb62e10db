// Package tuple implements Tuple and Schema: the ordered, typed row format
// that TableCache and the storage adapters exchange with the store.
package tuple

import (
	"fmt"

	"github.com/Stone1973/telldb/field"
)

// Column names one field in a Schema.
type Column struct {
	Name string
	Tag  field.Tag
}

// Schema is a named, ordered list of columns with O(1) name→id lookup,
// grounded in SOP's StoreInfo/btree.Item field-binding idiom: a table's
// shape is fixed at create_table time and every Tuple bound to it carries
// exactly that column list, in that order.
type Schema struct {
	table    string
	columns  []Column
	idByName map[string]int
}

// NewSchema builds a Schema for the given table name and ordered columns.
// Column names must be unique within a schema.
func NewSchema(table string, columns ...Column) (*Schema, error) {
	idByName := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idByName[c.Name]; dup {
			return nil, fmt.Errorf("tuple: schema %q: duplicate column %q", table, c.Name)
		}
		idByName[c.Name] = i
	}
	cp := make([]Column, len(columns))
	copy(cp, columns)
	return &Schema{table: table, columns: cp, idByName: idByName}, nil
}

// Table returns the schema's table name.
func (s *Schema) Table() string { return s.table }

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.columns) }

// Column returns the column at position id. Panics if id is out of range,
// mirroring Field's typed-accessor convention: callers own bounds checking
// since positional ids come from a schema they already hold.
func (s *Schema) Column(id int) Column {
	if id < 0 || id >= len(s.columns) {
		panic(fmt.Sprintf("tuple: column id %d out of range for schema %q (len %d)", id, s.table, len(s.columns)))
	}
	return s.columns[id]
}

// IDOf resolves a column name to its positional id.
func (s *Schema) IDOf(name string) (int, bool) {
	id, ok := s.idByName[name]
	return id, ok
}

// Tags returns the column tags in schema order.
func (s *Schema) Tags() []field.Tag {
	tags := make([]field.Tag, len(s.columns))
	for i, c := range s.columns {
		tags[i] = c.Tag
	}
	return tags
}
