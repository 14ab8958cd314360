package report

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const createTableStatement = `
CREATE TABLE IF NOT EXISTS rs_member_summary (
    Snapshot      DateTime,
    GeneratedAt   DateTime,
    Name          String,
    ASN           UInt32,
    Members       UInt64,
    IPv4Prefixes  UInt64,
    IPv6Prefixes  UInt64,
    Sources       UInt32,
    FailedSources UInt32
) ENGINE = ReplacingMergeTree(GeneratedAt)
PARTITION BY toYYYYMM(Snapshot)
ORDER BY (Snapshot, ASN);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures the summary table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	zap.S().Info("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	port := cfg.Port
	if port == 0 {
		port = 9000
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Write inserts one row per route server into rs_member_summary.
func (w *ClickHouseWriter) Write(ctx context.Context, rep *model.Report) error {
	rows := summaryRows(rep)
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO rs_member_summary")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range rows {
		err := batch.Append(
			r.Snapshot,
			r.GeneratedAt,
			r.Name,
			r.ASN,
			r.Members,
			r.IPv4Prefixes,
			r.IPv6Prefixes,
			r.Sources,
			r.FailedSources,
		)
		if err != nil {
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	zap.S().Infof("Wrote %d route server rows to ClickHouse.", len(rows))
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
