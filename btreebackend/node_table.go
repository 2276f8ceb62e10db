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

// nodeInsertVersion/nodeRemoveVersion are the fixed versions every node
// table row is written and removed at: nodes are immutable once written,
// so there is exactly one version transition. spec.md's prose describes
// Insert as using "initial version 0" but Remove as matching "version 1,
// the post-insert version the store assigns" — the two are reconciled by
// having node inserts (unlike pointer-table inserts) land directly at
// version 1, since a node's insert is always the blind, unchecked path
// rather than the pointer table's create-if-absent CAS.
const (
	nodeInsertVersion = 1
	nodeRemoveVersion = 1
)

// NodeTable maps a B-link tree's physical pointers to node bytes, backed
// by a store table with one not-null BLOB column, "node".
type NodeTable struct {
	store  storage.Store
	table  string
	schema *tuple.Schema
}

// NewNodeTable returns a NodeTable for the given secondary index, backed by
// the "<indexName>_node" table.
func NewNodeTable(store storage.Store, indexName string) (*NodeTable, error) {
	schema, err := tuple.NewSchema(indexName+"_node", tuple.Column{Name: "node", Tag: field.BLOB})
	if err != nil {
		return nil, err
	}
	return &NodeTable{store: store, table: indexName + "_node", schema: schema}, nil
}

// EnsureTable declares the node table in the store.
func (t *NodeTable) EnsureTable(ctx context.Context) error {
	return t.store.CreateTable(ctx, t.table, t.schema)
}

func (t *NodeTable) encode(data []byte) ([]byte, error) {
	b := tuple.NewBuilder(t.schema)
	if err := b.Set(0, field.NewBlob(data)); err != nil {
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

// Read fetches pptr's node bytes. Unlike the source's zero-copy view into
// the underlying tuple's memory, this returns an owned copy: Go's
// garbage-collected slices make aliasing the store's internal buffer
// pointless as a performance trick and dangerous as a correctness one.
func (t *NodeTable) Read(ctx context.Context, pptr uint64) ([]byte, error) {
	rec, found, err := t.store.Get(ctx, t.table, pptr, 0)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, telldb.NewError(telldb.ObjectDoesntExist, fmt.Errorf("btreebackend: node %d not found", pptr), nil)
	}
	tup, err := tuple.Deserialize(t.schema, bytes.NewReader(rec.Fields))
	if err != nil {
		return nil, err
	}
	return tup.Get(0).Blob(), nil
}

// Insert blind-writes pptr's node bytes at version 1, overwriting whatever
// was there — the B-link tree only ever calls Insert on a physical pointer
// it has not used before.
func (t *NodeTable) Insert(ctx context.Context, pptr uint64, data []byte) error {
	encoded, err := t.encode(data)
	if err != nil {
		return err
	}
	_, err = t.store.Insert(ctx, t.table, pptr, nodeInsertVersion, encoded, false)
	return err
}

// Remove blind-deletes pptr's node at version 1, the version every node
// carries immediately after Insert.
func (t *NodeTable) Remove(ctx context.Context, pptr uint64) error {
	_, err := t.store.Remove(ctx, t.table, pptr, nodeRemoveVersion)
	return err
}
