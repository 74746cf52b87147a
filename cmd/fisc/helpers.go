package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/config"
	"github.com/openfiscal/fisc/internal/storage"
)

// loadConfig materializes and validates the run configuration from viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper()
	if err != nil {
		return nil, common.NewUserError("configuration is invalid, check the config file and flags", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, common.NewUserError("configuration is invalid, check the config file and flags", err)
	}
	return cfg, nil
}

// openStorage opens the SQLite database named by the configuration and
// brings the schema up to date. Migrations are idempotent, so every command
// can call this safely.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(cfg.DatabasePath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot create database directory for %s", dbPath), err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open database at %s", dbPath), err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError(fmt.Sprintf("cannot migrate database at %s", dbPath), err)
	}
	return store, nil
}
