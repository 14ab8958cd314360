package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("sqlite", func(def config.WriterDef) (model.Writer, error) {
		if def.Path == "" {
			return nil, fmt.Errorf("sqlite writer needs a path")
		}
		return NewSQLiteWriter(def.Path)
	})
}

const createSQLiteTable = `
CREATE TABLE IF NOT EXISTS rs_member_summary (
    snapshot       INTEGER NOT NULL,
    generated_at   INTEGER NOT NULL,
    name           TEXT    NOT NULL,
    asn            INTEGER NOT NULL,
    members        INTEGER NOT NULL,
    ipv4_prefixes  INTEGER NOT NULL,
    ipv6_prefixes  INTEGER NOT NULL,
    sources        INTEGER NOT NULL,
    failed_sources INTEGER NOT NULL,
    PRIMARY KEY (snapshot, asn)
);`

// SQLiteWriter keeps the report history in a local SQLite database. Writing a
// snapshot again replaces its previous rows.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database at path.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(createSQLiteTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

func (w *SQLiteWriter) Name() string {
	return "sqlite"
}

func (w *SQLiteWriter) Write(ctx context.Context, rep *model.Report) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rs_member_summary WHERE snapshot = ?", rep.Snapshot.Unix()); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rs_member_summary
		(snapshot, generated_at, name, asn, members, ipv4_prefixes, ipv6_prefixes, sources, failed_sources)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := summaryRows(rep)
	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, r.Snapshot.Unix(), r.GeneratedAt.Unix(), r.Name, r.ASN,
			r.Members, r.IPv4Prefixes, r.IPv6Prefixes, r.Sources, r.FailedSources)
		if err != nil {
			return fmt.Errorf("failed to insert row for AS%d: %w", r.ASN, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	zap.S().Infof("Wrote %d route server rows to SQLite.", len(rows))
	return nil
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
