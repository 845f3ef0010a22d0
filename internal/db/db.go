package db

import (
	"fmt"
	"path/filepath"

	glebarez "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite    = "sqlite"  // pure Go, default
	DriverSQLiteCgo = "sqlite3" // mattn/go-sqlite3
	DriverMySQL     = "mysql"
	DriverPostgres  = "postgres"
)

type Handle struct {
	DB     *gorm.DB
	Path   string
	Driver string
}

// OpenAt opens the default SQLite file inside dir.
func OpenAt(dir string) (*Handle, error) {
	return Open(DriverSQLite, filepath.Join(dir, "mosync.db"))
}

func Open(driver, dsn string) (*Handle, error) {
	var dial gorm.Dialector
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		dial = glebarez.Open(dsn)
	case DriverSQLiteCgo:
		dial = cgosqlite.Open(dsn)
	case DriverMySQL:
		dial = mysql.Open(dsn)
	case DriverPostgres:
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // logger.Info for verbose SQL
	})
	if err != nil {
		return nil, err
	}

	// SQLite: one serialized connection, every statement completes atomically
	if driver == DriverSQLite || driver == DriverSQLiteCgo {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return &Handle{DB: gdb, Path: dsn, Driver: driver}, nil
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
