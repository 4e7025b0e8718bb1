package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// DB wraps a pgxpool.Pool and provides transaction support.
// It serves as the main entry point for database operations.
type DB struct {
	pool       *pgxpool.Pool
	vectorDims int
}

type Config struct {
	DSN string

	MaxConns int32
	MinConns int32

	// VectorDims is the width of the messages.embedding column.
	VectorDims int

	// MigrateOnStart applies the schema in New.
	MigrateOnStart bool
}

// New creates a new DB instance with the given configuration.
// Every pooled connection has the pgvector types registered.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 2
	}

	dims := cfg.VectorDims
	if dims <= 0 {
		dims = 384
	}

	if cfg.MigrateOnStart {
		// The vector extension must exist before AfterConnect can register its types.
		if err := ensureExtension(ctx, cfg.DSN); err != nil {
			return nil, err
		}
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{pool: pool, vectorDims: dims}

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return db, nil
}

func ensureExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting for extension setup: %w", err)
	}
	defer conn.Close(ctx) //nolint:errcheck

	if _, err := conn.Exec(ctx, createExtensionSQL); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// VectorDims reports the embedding width the schema was created with.
func (db *DB) VectorDims() int {
	return db.vectorDims
}

// Queries returns a new Queries instance for non-transactional operations.
func (db *DB) Queries() *Queries {
	return NewQueries(db.pool)
}

// WithTx executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
//
//	err := db.WithTx(ctx, func(q *db.Queries) error {
//	    if _, err := q.InsertMessage(ctx, params); err != nil {
//	        return err
//	    }
//	    return q.MarkCommandDelivered(ctx, commandID)
//	})
func (db *DB) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	// no-op once committed
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(NewQueries(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
