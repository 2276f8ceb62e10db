package txcache

import (
	"bytes"
	"encoding/json"

	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/tablecache"
	"github.com/Stone1973/telldb/tuple"
)

// entryLog is one primary-table change in an undo log: enough to both
// replay a rollback (Before) and re-apply write-back (After) without
// consulting the live TableCache again.
type entryLog struct {
	Table  string
	Key    uint64
	Action tablecache.Action
	Before []byte `json:",omitempty"`
	After  []byte `json:",omitempty"`
}

// indexEntryLog is one secondary-index mutation, emitted only when the
// undo log is built with_indexes=true.
type indexEntryLog struct {
	Table    string
	ColumnID int
	Key      uint64
	Action   tablecache.Action // Insert or Delete only
	IndexKey []byte
}

// undoLogBody is the single contiguous buffer spec.md §4.5 describes,
// encoded with encoding/json — the same Marshaler-driven framing the
// teacher's transactionlogger.go uses for its own logged payloads
// (encoding.DefaultMarshaler wraps encoding/json for exactly this reason:
// it is the teacher's chosen wire format for anything durable that is not
// a Field/Tuple itself).
type undoLogBody struct {
	SnapshotVersion uint64
	Entries         []entryLog
	IndexEntries    []indexEntryLog `json:",omitempty"`
}

func encodeTuple(tup *tuple.Tuple) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := tup.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeField(f field.Field) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// undoLog builds the commit-time undo log for every pending change across
// every open table. withIndexes additionally emits index-side undo
// records (spec.md §4.5's undoLog(with_indexes)). Returns a nil slice, not
// an error, when there is nothing pending.
func (c *TransactionCache) undoLog(withIndexes bool) ([]byte, error) {
	c.mu.Lock()
	tables := make([]*tablecache.TableCache, 0, len(c.tables))
	for _, tc := range c.tables {
		tables = append(tables, tc)
	}
	bindings := make(map[string][]indexBinding, len(c.indexes))
	for k, v := range c.indexes {
		bindings[k] = v
	}
	c.mu.Unlock()

	body := undoLogBody{SnapshotVersion: c.snapshot.Version}
	for _, tc := range tables {
		table := tc.Table()
		for key, ch := range tc.Changes() {
			entry := entryLog{Table: table, Key: key, Action: ch.Action}
			if ch.HasBefore {
				b, err := encodeTuple(ch.Before)
				if err != nil {
					return nil, err
				}
				entry.Before = b
			}
			if ch.Action != tablecache.Delete {
				a, err := encodeTuple(ch.After)
				if err != nil {
					return nil, err
				}
				entry.After = a
			}
			body.Entries = append(body.Entries, entry)

			if !withIndexes {
				continue
			}
			for _, b := range bindings[table] {
				if ch.HasBefore {
					kf, err := encodeField(ch.Before.Get(b.columnID))
					if err != nil {
						return nil, err
					}
					body.IndexEntries = append(body.IndexEntries, indexEntryLog{
						Table: table, ColumnID: b.columnID, Key: key,
						Action: tablecache.Delete, IndexKey: kf,
					})
				}
				if ch.Action != tablecache.Delete {
					kf, err := encodeField(ch.After.Get(b.columnID))
					if err != nil {
						return nil, err
					}
					body.IndexEntries = append(body.IndexEntries, indexEntryLog{
						Table: table, ColumnID: b.columnID, Key: key,
						Action: tablecache.Insert, IndexKey: kf,
					})
				}
			}
		}
	}

	if len(body.Entries) == 0 {
		return nil, nil
	}
	return json.Marshal(body)
}

func decodeUndoLog(data []byte) (undoLogBody, error) {
	var body undoLogBody
	err := json.Unmarshal(data, &body)
	return body, err
}
