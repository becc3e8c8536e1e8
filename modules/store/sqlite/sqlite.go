// Package sqlite implements the conversation store on modernc.org/sqlite
// (pure Go, no CGO) running as a shared-cache in-memory database. Histories
// live for the lifetime of the process, exactly like the map-backed store,
// but reads and writes go through SQL transactions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/serhrag/ragchat/internal/conversation"
	"github.com/serhrag/ragchat/internal/core"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ conversation.Store = (*Store)(nil)
	_ core.Configurable  = (*Module)(nil)
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
	_ core.Stopper       = (*Module)(nil)
)

// Module publishes a SQLite-backed conversation.Store.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Name == "" {
		id, err := conversation.NewID(time.Time{})
		if err != nil {
			return fmt.Errorf("sqlite: name database: %w", err)
		}
		m.config.Name = "ragchat-" + id
	}

	store, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.store = store

	ctx.RegisterService(conversation.StoreService, store)
	m.logger.Info("sqlite conversation store provisioned", "name", m.config.Name)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.store.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper. Closing the last connection discards the
// in-memory database.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info("sqlite conversation store stopping")
	return m.store.Close()
}

// Store returns the module's conversation.Store.
func (m *Module) Store() *Store {
	return m.store
}

// Open creates the in-memory database described by cfg and migrates it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if cfg.Name == "" {
		return nil, fmt.Errorf("sqlite: database name is required")
	}

	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Name, err)
	}

	// One connection keeps the in-memory database alive and serializes
	// writers so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout),
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}
