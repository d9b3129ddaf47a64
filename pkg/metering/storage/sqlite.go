package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend on an embedded SQLite database.
//
// Increments are a single UPSERT ... RETURNING statement, so the
// add-and-fetch is atomic within the database even when several processes
// share the file. The database runs in WAL mode and is checkpointed
// periodically.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	incrStmt *sql.Stmt
	getStmt  *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS metering_aggregates (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.incrStmt, err = s.db.Prepare(`
		INSERT INTO metering_aggregates (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = value + excluded.value,
			updated_at = excluded.updated_at
		RETURNING value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`SELECT value FROM metering_aggregates WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	return nil
}

// IncrBy implements Backend.
func (s *SQLiteBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key cannot be empty")
	}

	var value int64
	err := s.incrStmt.QueryRowContext(ctx, key, delta, time.Now().Unix()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment aggregate: %w", err)
	}
	return value, nil
}

// Get implements Backend.
func (s *SQLiteBackend) Get(ctx context.Context, key string) (Value, error) {
	if key == "" {
		return Value{}, fmt.Errorf("key cannot be empty")
	}

	var value int64
	err := s.getStmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Value{}, nil
	}
	if err != nil {
		return Value{}, fmt.Errorf("failed to read aggregate: %w", err)
	}
	return Value{Amount: value, Present: true}, nil
}

// Close releases the database. It is idempotent.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.incrStmt != nil {
			s.incrStmt.Close()
		}
		if s.getStmt != nil {
			s.getStmt.Close()
		}

		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})

	return closeErr
}

func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
