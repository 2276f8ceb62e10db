// Command telldb-bench is an insert/read/delete benchmark harness driving
// a real Transaction end to end, grounded on SOP's tools/benchmark/main.go:
// stdlib flag parsing, sequential phase timing printed to stdout, and
// os.Exit(1) on any failure rather than propagating errors up through a
// return value.
package main

import (
	"context"
	"flag"
	"fmt"
	log "log/slog"
	"os"
	"time"

	"github.com/gocql/gocql"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/cachekit"
	"github.com/Stone1973/telldb/client"
	"github.com/Stone1973/telldb/commitmgr"
	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/storage/cassandrastore"
	"github.com/Stone1973/telldb/storage/memstore"
	"github.com/Stone1973/telldb/tuple"
)

const benchTable = "telldb_bench"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("telldb-bench", flag.ContinueOnError)
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	commitManager := fs.String("commit-manager", "", "commit manager Redis address (empty uses an in-process fake)")
	server := fs.String("server", "", "store server address; empty uses the in-process memstore")
	memory := fs.Int64("memory", 0, "advisory memory budget in bytes (accepted but not used by any backend)")
	networkThreads := fs.Int("network-threads", 1, "advisory network I/O concurrency (unused by memstore)")
	count := fs.Int("count", 10000, "number of rows to insert/read/delete")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log.SetDefault(log.New(log.NewTextHandler(os.Stderr, &log.HandlerOptions{Level: level})))

	_ = memory
	_ = networkThreads

	store, closeStore, err := openStore(*server)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeStore()

	mgr, err := openCommitManager(*commitManager)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	lock := openSchemaLock(*commitManager)

	c := client.New(store, mgr, nil, lock, client.Options{DefaultCommitMaxDuration: 30 * time.Second})

	ctx := context.Background()
	schema, err := tuple.NewSchema(benchTable, tuple.Column{Name: "value", Tag: field.BIGINT})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := c.CreateTable(ctx, benchTable, schema); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("Benchmarking TellDB with %d rows\n", *count)

	if err := benchInsert(ctx, c, schema, *count); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := benchRead(ctx, c, *count); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := benchDelete(ctx, c, *count); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return 0
}

func parseLevel(s string) (log.Level, error) {
	switch s {
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return 0, fmt.Errorf("telldb-bench: unknown --log-level %q", s)
	}
}

func openStore(server string) (storage.Store, func(), error) {
	if server == "" {
		return memstore.New(), func() {}, nil
	}
	s, err := cassandrastore.New(cassandrastore.Config{
		ClusterHosts: []string{server},
		Keyspace:     "telldb_bench",
		Consistency:  gocql.Quorum,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("telldb-bench: connect store: %w", err)
	}
	return s, func() {}, nil
}

func openCommitManager(addr string) (commitmgr.CommitManager, error) {
	if addr == "" {
		return newFakeCommitManager(), nil
	}
	return commitmgr.NewRedisCommitManager(commitmgr.Config{Address: addr}), nil
}

// openSchemaLock returns a DistLock sharing the commit manager's Redis, or
// nil when running against the in-process fake commit manager: single
// process, nothing to serialize CreateTable against.
func openSchemaLock(addr string) *cachekit.DistLock {
	if addr == "" {
		return nil
	}
	return cachekit.NewDistLock(cachekit.NewRedisClient(addr, "", 0))
}

func benchInsert(ctx context.Context, c *client.ClientContext, schema *tuple.Schema, count int) error {
	fmt.Println("Starting Insert benchmark...")
	start := time.Now()

	txn, err := c.OpenTransaction(ctx, telldb.ReadWrite)
	if err != nil {
		return err
	}
	defer txn.Close(ctx)

	for i := 0; i < count; i++ {
		b := tuple.NewBuilder(schema)
		if err := b.Set(0, field.NewBigInt(int64(i))); err != nil {
			return err
		}
		tup, err := b.Build()
		if err != nil {
			return err
		}
		if err := txn.Insert(ctx, benchTable, uint64(i), tup); err != nil {
			return fmt.Errorf("insert %d: %w", i, err)
		}
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("commit inserts: %w", err)
	}

	printRate("Insert", count, time.Since(start))
	return nil
}

func benchRead(ctx context.Context, c *client.ClientContext, count int) error {
	fmt.Println("Starting Read benchmark...")
	start := time.Now()

	txn, err := c.OpenTransaction(ctx, telldb.ReadOnly)
	if err != nil {
		return err
	}
	defer txn.Close(ctx)

	for i := 0; i < count; i++ {
		ch, err := txn.Get(ctx, benchTable, uint64(i))
		if err != nil {
			return err
		}
		r := <-ch
		if r.Err != nil {
			return r.Err
		}
		if !r.Found {
			return fmt.Errorf("read %d: not found", i)
		}
	}

	printRate("Read", count, time.Since(start))
	return nil
}

func benchDelete(ctx context.Context, c *client.ClientContext, count int) error {
	fmt.Println("Starting Delete benchmark...")
	start := time.Now()

	txn, err := c.OpenTransaction(ctx, telldb.ReadWrite)
	if err != nil {
		return err
	}
	defer txn.Close(ctx)

	for i := 0; i < count; i++ {
		if err := txn.Remove(ctx, benchTable, uint64(i)); err != nil {
			return fmt.Errorf("remove %d: %w", i, err)
		}
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("commit deletes: %w", err)
	}

	printRate("Delete", count, time.Since(start))
	return nil
}

func printRate(phase string, count int, d time.Duration) {
	fmt.Printf("%s: %d items in %v (%.2f ops/sec)\n", phase, count, d, float64(count)/d.Seconds())
}

// fakeCommitManager is a single-process stand-in used when --commit-manager
// is not given, so the benchmark still runs without a live Redis instance.
// It has no cross-process visibility guarantees, unlike commitmgr's Redis
// implementation.
type fakeCommitManager struct {
	version uint64
}

func newFakeCommitManager() *fakeCommitManager { return &fakeCommitManager{} }

func (m *fakeCommitManager) NewSnapshot(_ context.Context, _ telldb.UUID) (telldb.Snapshot, error) {
	m.version++
	return telldb.Snapshot{Version: m.version, InFlightWriters: map[telldb.UUID]struct{}{}}, nil
}

func (m *fakeCommitManager) Complete(_ context.Context, _ telldb.Snapshot, _ telldb.UUID) error {
	return nil
}
