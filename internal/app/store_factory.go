package app

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/overdue/internal/store"
	"github.com/shrimpsizemoose/overdue/internal/store/postgres"
	"github.com/shrimpsizemoose/overdue/internal/store/sqlite"
)

func DetectDBType(dsn string) (store.DatabaseType, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return store.DBTypePostgres, nil
	case dsn == "":
		return "", fmt.Errorf("database dsn is empty")
	default:
		return store.DBTypeSQLite, nil
	}
}

func NewStore(cfg store.DBConfig) (store.PenaltyStore, error) {
	dbType := cfg.Type
	if dbType == "" {
		var err error
		if dbType, err = DetectDBType(cfg.DSN); err != nil {
			return nil, err
		}
	}

	switch dbType {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(cfg.DSN, cfg.MigrationsDir)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(cfg.DSN, cfg.MigrationsDir)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", cfg.DSN)
	}
}
