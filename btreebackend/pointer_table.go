// Package btreebackend adapts storage.Store's key→record interface onto
// the two record families a copy-on-write B-link tree needs: a pointer
// table (logical_pointer → (physical_pointer, version)) and a node table
// (physical_pointer → node bytes). Grounded on SOP's handle.go
// logical/physical id pairing, adapted from UUID pairs to the raw uint64
// pointer spaces spec.md §3 specifies.
package btreebackend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/tuple"
)

// MaxVersion is the store's UINT64_MAX sentinel meaning "current active
// version". PointerTable.Remove rewrites it to maxVersionRewrite before
// calling the store, since passing it through unchanged would mean
// something the B-tree did not intend.
const MaxVersion uint64 = ^uint64(0)

const maxVersionRewrite = MaxVersion - 2

// PointerTable maps a B-link tree's logical pointers to physical pointers,
// backed by a store table with one not-null BIGINT column, "pptr".
type PointerTable struct {
	store  storage.Store
	table  string
	schema *tuple.Schema
}

// NewPointerTable returns a PointerTable for the given secondary index,
// backed by the "<indexName>_ptr" table.
func NewPointerTable(store storage.Store, indexName string) (*PointerTable, error) {
	schema, err := tuple.NewSchema(indexName+"_ptr", tuple.Column{Name: "pptr", Tag: field.BIGINT})
	if err != nil {
		return nil, err
	}
	return &PointerTable{store: store, table: indexName + "_ptr", schema: schema}, nil
}

// EnsureTable declares the pointer table in the store.
func (t *PointerTable) EnsureTable(ctx context.Context) error {
	return t.store.CreateTable(ctx, t.table, t.schema)
}

func (t *PointerTable) encode(pptr uint64) ([]byte, error) {
	b := tuple.NewBuilder(t.schema)
	if err := b.Set(0, field.NewBigInt(int64(pptr))); err != nil {
		return nil, err
	}
	tup, err := b.Build()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := tup.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *PointerTable) decode(data []byte) (uint64, error) {
	tup, err := tuple.Deserialize(t.schema, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return uint64(tup.Get(0).BigInt()), nil
}

// Read issues a point get for lptr. Fails ObjectDoesntExist if absent.
func (t *PointerTable) Read(ctx context.Context, lptr uint64) (pptr uint64, version uint64, err error) {
	rec, found, err := t.store.Get(ctx, t.table, lptr, 0)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, telldb.NewError(telldb.ObjectDoesntExist, fmt.Errorf("btreebackend: pointer %d not found", lptr), nil)
	}
	pptr, err = t.decode(rec.Fields)
	if err != nil {
		return 0, 0, err
	}
	return pptr, uint64(rec.Version), nil
}

// Insert creates lptr → pptr at initial version 0 using a create-if-absent
// insert. Returns 1 on success; fails ObjectExists otherwise, which the
// B-tree uses to detect raced installs.
func (t *PointerTable) Insert(ctx context.Context, lptr, pptr uint64) (uint64, error) {
	data, err := t.encode(pptr)
	if err != nil {
		return 0, err
	}
	if _, err := t.store.Insert(ctx, t.table, lptr, 0, data, true); err != nil {
		return 0, err
	}
	return 1, nil
}

// Update compare-and-swaps lptr's mapping to pptr, expecting the store's
// current version to equal version. Returns version+1 on success, or fails
// WrongVersion on mismatch.
func (t *PointerTable) Update(ctx context.Context, lptr, pptr, version uint64) (uint64, error) {
	data, err := t.encode(pptr)
	if err != nil {
		return 0, err
	}
	if _, err := t.store.Update(ctx, t.table, lptr, int64(version), data); err != nil {
		return 0, err
	}
	return version + 1, nil
}

// Remove performs a versioned delete of lptr. If version is MaxVersion, it
// is rewritten to maxVersionRewrite first — see the MaxVersion doc comment.
func (t *PointerTable) Remove(ctx context.Context, lptr, version uint64) error {
	if version == MaxVersion {
		version = maxVersionRewrite
	}
	_, err := t.store.Remove(ctx, t.table, lptr, int64(version))
	return err
}
