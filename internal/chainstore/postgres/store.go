package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/bitcoin-sv/node/internal/chainstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the Postgres-backed chainstore.Store. It runs its own migrations
// on Start and serves FetchLastHeight from the blocks table; reorganizations
// are detected by a caller-driven Apply (there is no LISTEN/NOTIFY wiring
// here, since nothing downstream emits it) and broadcast to at most one
// pending subscriber, matching the in-memory store's contract.
type Store struct {
	params ConnParams
	db     *sqlx.DB

	mu           sync.Mutex
	reorgHandler chainstore.ReorganizeHandler
}

// New opens (but does not migrate) a Postgres chain store.
func New(params ConnParams) (*Store, error) {
	db, err := sqlx.Open("pgx", params.dsn())
	if err != nil {
		return nil, fmt.Errorf("open postgres chain store: %w", err)
	}
	return &Store{params: params, db: db}, nil
}

// Start pings the connection and applies any pending migrations.
func (s *Store) Start(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres chain store: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	dbDriver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Stop closes the pool.
func (s *Store) Stop() error {
	return s.db.Close()
}

// FetchLastHeight returns the height of the highest block on the active
// chain, or -1 if the table is empty.
func (s *Store) FetchLastHeight(ctx context.Context) (int64, error) {
	var height sql.NullInt64
	err := s.db.GetContext(ctx, &height, `SELECT MAX(height) FROM blocks WHERE is_active`)
	if err != nil {
		return 0, fmt.Errorf("fetch last height: %w", err)
	}
	if !height.Valid {
		return -1, nil
	}
	return height.Int64, nil
}

// SubscribeReorganize installs a one-shot handler, mirroring MemStore.
func (s *Store) SubscribeReorganize(handler chainstore.ReorganizeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reorgHandler = handler
}

// Apply records a chain extension or reorganization: newBlocks are inserted
// active, replacedBlocks are marked inactive, and any pending reorg
// subscription fires and clears.
func (s *Store) Apply(ctx context.Context, event chainstore.ReorgEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorg tx: %w", err)
	}
	defer tx.Rollback()

	for _, b := range event.ReplacedBlocks {
		if _, err := tx.ExecContext(ctx, `UPDATE blocks SET is_active = FALSE WHERE height = $1`, b.Height); err != nil {
			return fmt.Errorf("deactivate replaced block %d: %w", b.Height, err)
		}
	}
	for _, b := range event.NewBlocks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (height, hash, is_active) VALUES ($1, $2, TRUE)
			ON CONFLICT (height) DO UPDATE SET hash = EXCLUDED.hash, is_active = TRUE
		`, b.Height, b.Hash[:]); err != nil {
			return fmt.Errorf("insert new block %d: %w", b.Height, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorg tx: %w", err)
	}

	s.mu.Lock()
	handler := s.reorgHandler
	s.reorgHandler = nil
	s.mu.Unlock()

	if handler != nil {
		handler(nil, event)
	}
	return nil
}

var _ chainstore.Store = (*Store)(nil)
