// Package ledger keeps a local record of mail this server submitted.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in UTC
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Ledger is the SQLite-backed send history
type Ledger struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewLedger opens (and creates if needed) the ledger database at dbPath
func NewLedger(dbPath string, logger *logrus.Logger) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between the pool's connections
	db.SetMaxOpenConns(1)

	l := &Ledger{
		db:     db,
		logger: logger,
	}

	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("Send ledger initialized")
	return l, nil
}

func (l *Ledger) initSchema() error {
	if _, err := l.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
