package store

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options controls how the SQLite database is opened
type Options struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// Open connects to the SQLite file at opts.Path in WAL mode with a busy
// timeout and foreign keys on, then migrates the schema.
//
// Two pools share the file. Write transactions begin IMMEDIATE so they take
// the write lock up front and queue on the busy timeout; a deferred BEGIN
// would fail with SQLITE_BUSY when upgrading from read to write. Reads use
// deferred transactions and never take the write lock.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	write, err := connect(dsn(opts.Path, "immediate"), opts)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(write); err != nil {
		closeDB(write)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	read, err := connect(dsn(opts.Path, "deferred"), opts)
	if err != nil {
		closeDB(write)
		return nil, err
	}
	return New(read, write), nil
}

func connect(dsn string, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dsn(path, txlock string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=" + txlock +
		"&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}
