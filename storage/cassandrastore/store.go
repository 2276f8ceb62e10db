// Package cassandrastore is a storage.Store backed by Cassandra, grounded on
// SOP's adapters/cassandra/registry.go: one keyspace holds one table per
// TellDB table, and every write goes through a Cassandra lightweight
// transaction (LWT) to get the compare-and-swap semantics the B-tree
// backend and TableCache write-back require. Unlike the teacher, there is
// no separate registry/store-repository split — one table per TellDB table
// is enough here since TellDB's own TableCache and undo log already carry
// the multi-table bookkeeping the teacher's registry existed for.
package cassandrastore

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/gocql/gocql"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/tuple"
)

// Config configures the Cassandra connection, grounded on SOP's
// adapters/cassandra.Config (cluster hosts, keyspace, consistency, timeout)
// trimmed to what one Store needs.
type Config struct {
	ClusterHosts []string
	Keyspace     string
	Consistency  gocql.Consistency
}

// Store is a Cassandra-backed storage.Store.
type Store struct {
	session     *gocql.Session
	keyspace    string
	consistency gocql.Consistency
}

// New dials the cluster described by cfg and returns a ready Store. It does
// not create the keyspace; operators are expected to provision it the way
// SOP's deployment docs provision the SOP keyspace.
func New(cfg Config) (*Store, error) {
	cluster := gocql.NewCluster(cfg.ClusterHosts...)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Consistency != gocql.Any {
		cluster.Consistency = cfg.Consistency
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: connect: %w", err), nil)
	}
	return &Store{session: session, keyspace: cfg.Keyspace, consistency: cluster.Consistency}, nil
}

func (s *Store) tableName(table string) string {
	return fmt.Sprintf("%s.%s", s.keyspace, table)
}

func (s *Store) Get(ctx context.Context, table string, key uint64, _ int64) (storage.Record, bool, error) {
	q := fmt.Sprintf("SELECT fields, version, deleted FROM %s WHERE key = ?;", s.tableName(table))
	var fields []byte
	var version int64
	var deleted bool
	err := s.session.Query(q, key).WithContext(ctx).Consistency(s.consistency).Scan(&fields, &version, &deleted)
	if err == gocql.ErrNotFound {
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: get %s/%d: %w", table, key, err), nil)
	}
	if deleted {
		return storage.Record{}, false, nil
	}
	return storage.Record{Fields: fields, Version: version}, true, nil
}

func (s *Store) Insert(ctx context.Context, table string, key uint64, version int64, fields []byte, checkAbsence bool) (bool, error) {
	if !checkAbsence {
		q := fmt.Sprintf("INSERT INTO %s (key, fields, version, deleted) VALUES (?,?,?,false);", s.tableName(table))
		if err := s.session.Query(q, key, fields, version).WithContext(ctx).Consistency(s.consistency).Exec(); err != nil {
			return false, telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: insert %s/%d: %w", table, key, err), nil)
		}
		return true, nil
	}

	q := fmt.Sprintf("INSERT INTO %s (key, fields, version, deleted) VALUES (?,?,?,false) IF NOT EXISTS;", s.tableName(table))
	applied, err := s.session.Query(q, key, fields, version).WithContext(ctx).ScanCAS()
	if err != nil {
		return false, telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: insert %s/%d: %w", table, key, err), nil)
	}
	if !applied {
		return false, telldb.NewError(telldb.ObjectExists, fmt.Errorf("cassandrastore: %s/%d already exists", table, key), nil)
	}
	return true, nil
}

func (s *Store) Update(ctx context.Context, table string, key uint64, expectedVersion int64, fields []byte) (bool, error) {
	q := fmt.Sprintf("UPDATE %s SET fields = ?, version = ? WHERE key = ? IF version = ? AND deleted = false;", s.tableName(table))
	applied, err := s.session.Query(q, fields, expectedVersion+1, key, expectedVersion).WithContext(ctx).ScanCAS()
	if err != nil {
		return false, telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: update %s/%d: %w", table, key, err), nil)
	}
	if !applied {
		return false, s.classifyCASFailure(ctx, table, key, expectedVersion)
	}
	return true, nil
}

func (s *Store) Remove(ctx context.Context, table string, key uint64, expectedVersion int64) (bool, error) {
	q := fmt.Sprintf("UPDATE %s SET deleted = true WHERE key = ? IF version = ? AND deleted = false;", s.tableName(table))
	applied, err := s.session.Query(q, key, expectedVersion).WithContext(ctx).ScanCAS()
	if err != nil {
		return false, telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: remove %s/%d: %w", table, key, err), nil)
	}
	if !applied {
		return false, s.classifyCASFailure(ctx, table, key, expectedVersion)
	}
	return true, nil
}

// classifyCASFailure distinguishes "key doesn't exist" from "version raced"
// after a failed LWT, since a single ScanCAS bool doesn't tell them apart.
func (s *Store) classifyCASFailure(ctx context.Context, table string, key uint64, expectedVersion int64) error {
	_, found, err := s.Get(ctx, table, key, 0)
	if err != nil {
		return err
	}
	if !found {
		return telldb.NewError(telldb.ObjectDoesntExist, fmt.Errorf("cassandrastore: %s/%d not found", table, key), nil)
	}
	return telldb.NewError(telldb.WrongVersion, fmt.Errorf("cassandrastore: %s/%d expected version %d", table, key, expectedVersion), nil)
}

// CreateTable issues the CREATE TABLE DDL for a TellDB table. schema is
// accepted for interface symmetry with storage.Store; the physical layout
// here is fixed (key/fields/version/deleted) regardless of the logical
// Field schema, since fields is always an opaque tuple.Tuple.Serialize
// payload from this Store's point of view.
func (s *Store) CreateTable(ctx context.Context, name string, _ *tuple.Schema) error {
	q := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (key bigint PRIMARY KEY, fields blob, version bigint, deleted boolean);",
		s.tableName(name))
	if err := s.session.Query(q).WithContext(ctx).Exec(); err != nil {
		return telldb.NewError(telldb.TransportError, fmt.Errorf("cassandrastore: create table %s: %w", name, err), nil)
	}
	return nil
}

// Commit is a no-op on the Cassandra side, matching the preserved source
// behavior spec.md §9 documents: the store's commit call exists so both a
// successful write-back and a rollback can signal "this snapshot has
// concluded" without a distinct abort RPC, and Cassandra's LWTs already
// make every prior Insert/Update/Remove durable and visible on return.
func (s *Store) Commit(_ context.Context, snapshotVersion uint64) error {
	log.Debug("cassandrastore commit", "snapshot_version", snapshotVersion)
	return nil
}

// Close releases the underlying session.
func (s *Store) Close() {
	s.session.Close()
}
