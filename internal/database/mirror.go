package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// MirrorSink writes batches to a PostgreSQL table. It implements writer.Sink
// and writer.Resetter. Keyed rows are upserted, except after Reset, when the
// table starts empty and rows are loaded with COPY. The pool belongs to the
// caller and is not closed by Close.
type MirrorSink struct {
	pool   *pgxpool.Pool
	table  string
	schema model.Schema
	key    string
	logger *slog.Logger

	createSQL string
	upsertSQL string

	copyMode bool
}

// NewMirrorSink creates a sink for ds writing to table.
func NewMirrorSink(pool *pgxpool.Pool, table string, ds model.Dataset, logger *slog.Logger) *MirrorSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MirrorSink{
		pool:      pool,
		table:     table,
		schema:    ds.Schema,
		key:       ds.KeyColumn,
		logger:    logger,
		createSQL: createTableSQL(table, ds.Schema, ds.KeyColumn),
		copyMode:  ds.KeyColumn == "",
	}
	if ds.KeyColumn != "" {
		m.upsertSQL = upsertSQL(table, ds.Schema, ds.KeyColumn)
	}
	return m
}

// Name implements writer.Sink.
func (m *MirrorSink) Name() string { return "postgres" }

// Table returns the target table.
func (m *MirrorSink) Table() string { return m.table }

// EnsureTable creates the table if it does not exist.
func (m *MirrorSink) EnsureTable(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, m.createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", m.table, err)
	}
	return nil
}

// Reset empties the table for a fresh run and switches the sink to COPY.
func (m *MirrorSink) Reset(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, truncateSQL(m.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", m.table, err)
	}
	m.copyMode = true
	m.logger.Info("mirror table truncated", "table", m.table)
	return nil
}

// Write implements writer.Sink.
func (m *MirrorSink) Write(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	var affected int64
	var err error
	if m.copyMode {
		affected, err = m.copyRows(ctx, records)
	} else {
		affected, err = m.batchUpsert(ctx, records)
	}
	if err != nil {
		return fmt.Errorf("mirror to %s: %w", m.table, err)
	}

	m.logger.Debug("mirrored batch",
		"table", m.table,
		"count", len(records),
		"affected", affected,
		"duration", time.Since(start),
	)
	return nil
}

// Close implements writer.Sink.
func (m *MirrorSink) Close() error { return nil }

// copyRows appends rows with COPY.
func (m *MirrorSink) copyRows(ctx context.Context, records []model.Record) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = r
	}
	return m.pool.CopyFrom(ctx, pgx.Identifier{m.table}, m.schema.Names(), pgx.CopyFromRows(rows))
}

// batchUpsert inserts rows using pgx.Batch with ON CONFLICT DO UPDATE, so a
// later row replaces an earlier one with the same key.
func (m *MirrorSink) batchUpsert(ctx context.Context, records []model.Record) (int64, error) {
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(m.upsertSQL, r...)
	}

	results := m.pool.SendBatch(ctx, batch)
	defer results.Close()

	var affected int64
	for range records {
		ct, err := results.Exec()
		if err != nil {
			return affected, err
		}
		affected += ct.RowsAffected()
	}
	return affected, nil
}

func pgType(t model.ColumnType) string {
	switch t {
	case model.Int64:
		return "BIGINT"
	case model.Float64:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func createTableSQL(table string, schema model.Schema, key string) string {
	cols := make([]string, 0, schema.Len()+1)
	for _, c := range schema.Columns {
		cols = append(cols, quote(c.Name)+" "+pgType(c.Type))
	}
	if key != "" {
		cols = append(cols, "PRIMARY KEY ("+quote(key)+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(cols, ", "))
}

func truncateSQL(table string) string {
	return "TRUNCATE TABLE " + quote(table)
}

func upsertSQL(table string, schema model.Schema, key string) string {
	names := make([]string, schema.Len())
	params := make([]string, schema.Len())
	var sets []string
	for i, c := range schema.Columns {
		names[i] = quote(c.Name)
		params[i] = fmt.Sprintf("$%d", i+1)
		if c.Name != key {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", names[i], names[i]))
		}
	}
	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		quote(table), strings.Join(names, ", "), strings.Join(params, ", "), quote(key), conflict)
}
