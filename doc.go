// Package telldb defines the core types and helpers shared across the TellDB
// codebase: transaction identifiers, the typed error surface, transaction
// modes, and small retry/backoff/concurrency helpers used by the higher
// layers (storage adapters, the table and transaction caches, and the
// transaction façade).
//
// TellDB is a client-side transactional layer over a remote, non-
// transactional record store and a commit-timestamp authority. See the
// subpackages for the rest of the system: field, tuple, storage, cachekit,
// commitmgr, btreebackend, tablecache, txcache, transaction, and client.
package telldb

// Timeout model
//
// Transaction commits are bounded by two timers: the caller-provided
// context deadline, and the transaction's own CommitMaxDuration used as a
// safety cap. The effective commit deadline is the earlier of the two.
// Distributed locks do not use CommitMaxDuration: the commit manager's
// writer-set lock and the schema DDL lock each carry their own fixed lease.
