package tuple

import (
	"fmt"
	"io"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/field"
)

// Tuple is an ordered sequence of Fields bound to a Schema. A Tuple is
// always immutable: it is produced either by decoding a store record or by
// a Builder's Build. A transactional write under construction is a Builder,
// never a partially-mutable Tuple — this keeps a Tuple handed to a caller
// safe to read concurrently with TableCache staging further changes on the
// same key.
type Tuple struct {
	schema *Schema
	values []field.Field
}

// New wraps values under schema as an immutable Tuple. It fails
// TypeMismatch if len(values) != schema.Len() or any value's tag disagrees
// with its column's declared tag (NULL is always accepted regardless of the
// column's declared tag, matching Field's own NULL handling).
func New(schema *Schema, values []field.Field) (*Tuple, error) {
	if len(values) != schema.Len() {
		return nil, telldb.NewError(telldb.TypeMismatch,
			fmt.Errorf("tuple: schema %q has %d columns, got %d values", schema.Table(), schema.Len(), len(values)), nil)
	}
	for i, v := range values {
		col := schema.columns[i]
		if v.Tag() != col.Tag && v.Tag() != field.NULL {
			return nil, telldb.NewError(telldb.TypeMismatch,
				fmt.Errorf("tuple: column %q wants %s, got %s", col.Name, col.Tag, v.Tag()), nil)
		}
	}
	cp := make([]field.Field, len(values))
	copy(cp, values)
	return &Tuple{schema: schema, values: cp}, nil
}

// Schema returns the Tuple's bound schema.
func (t *Tuple) Schema() *Schema { return t.schema }

// Get returns the field at position id. Panics if id is out of range.
func (t *Tuple) Get(id int) field.Field {
	if id < 0 || id >= len(t.values) {
		panic(fmt.Sprintf("tuple: field id %d out of range (len %d)", id, len(t.values)))
	}
	return t.values[id]
}

// GetByName resolves name through the schema and returns that field. Fails
// KeyNotFound if the schema has no such column.
func (t *Tuple) GetByName(name string) (field.Field, error) {
	id, ok := t.schema.IDOf(name)
	if !ok {
		return field.Field{}, telldb.NewError(telldb.KeyNotFound, fmt.Errorf("tuple: no column %q in schema %q", name, t.schema.Table()), name)
	}
	return t.values[id], nil
}

// Fields returns a copy of the Tuple's values in schema order.
func (t *Tuple) Fields() []field.Field {
	cp := make([]field.Field, len(t.values))
	copy(cp, t.values)
	return cp
}

// Serialize writes every field in schema order to dest, back to back, using
// each Field's own wire layout. It returns the total bytes written.
func (t *Tuple) Serialize(dest io.Writer) (int, error) {
	total := 0
	for i, v := range t.values {
		n, err := v.Serialize(dest)
		if err != nil {
			return total, fmt.Errorf("tuple: serialize column %q: %w", t.schema.columns[i].Name, err)
		}
		total += n
	}
	return total, nil
}

// Deserialize decodes a Tuple bound to schema from src, the inverse of
// Serialize. The schema supplies each column's tag since the wire format
// itself carries no per-field type byte.
func Deserialize(schema *Schema, src io.Reader) (*Tuple, error) {
	values := make([]field.Field, schema.Len())
	for i, col := range schema.columns {
		v, err := field.Deserialize(col.Tag, src)
		if err != nil {
			return nil, fmt.Errorf("tuple: deserialize column %q: %w", col.Name, err)
		}
		values[i] = v
	}
	return &Tuple{schema: schema, values: values}, nil
}

// Builder assembles a new Tuple field by field before it exists as an
// immutable value — the "builder-mode" half of spec's Tuple lifecycle rule.
// TableCache uses a Builder for every insert/update it stages; the result of
// Build is the immutable Tuple handed to the caller and to write-back.
type Builder struct {
	schema *Schema
	values []field.Field
}

// NewBuilder starts a Builder for schema with every column set to
// field.NoType() (uninitialized).
func NewBuilder(schema *Schema) *Builder {
	values := make([]field.Field, schema.Len())
	for i := range values {
		values[i] = field.NoType()
	}
	return &Builder{schema: schema, values: values}
}

// FromTuple starts a Builder pre-populated with src's values, for building
// an updated image from an existing one.
func FromTuple(src *Tuple) *Builder {
	return &Builder{schema: src.schema, values: src.Fields()}
}

// Set stores v at position id. Fails TypeMismatch if v's tag disagrees with
// the column's declared tag (NULL always accepted).
func (b *Builder) Set(id int, v field.Field) error {
	col := b.schema.Column(id)
	if v.Tag() != col.Tag && v.Tag() != field.NULL {
		return telldb.NewError(telldb.TypeMismatch, fmt.Errorf("tuple: column %q wants %s, got %s", col.Name, col.Tag, v.Tag()), nil)
	}
	b.values[id] = v
	return nil
}

// SetByName resolves name through the schema and calls Set.
func (b *Builder) SetByName(name string, v field.Field) error {
	id, ok := b.schema.IDOf(name)
	if !ok {
		return telldb.NewError(telldb.KeyNotFound, fmt.Errorf("tuple: no column %q in schema %q", name, b.schema.Table()), name)
	}
	return b.Set(id, v)
}

// Build finalizes the Builder into an immutable Tuple. Every column must
// have been set to a typed Field (NoType left over from NewBuilder fails).
func (b *Builder) Build() (*Tuple, error) {
	for i, v := range b.values {
		if !v.IsTyped() {
			return nil, telldb.NewError(telldb.TypeMismatch,
				fmt.Errorf("tuple: column %q was never set", b.schema.columns[i].Name), nil)
		}
	}
	return New(b.schema, b.values)
}
