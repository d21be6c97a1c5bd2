package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// View is the name the trades file is exposed under.
const View = "trades"

// Result is a query result with every value rendered as text.
type Result struct {
	Query   Query
	Columns []string
	Rows    [][]string
}

// Analyzer runs queries over one Parquet file.
type Analyzer struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates an in-memory DuckDB database with a view over path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open trades file: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// The view lives in the catalog of this one in-memory database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	create := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet(%s)", View, literal(path))
	if _, err := db.ExecContext(ctx, create); err != nil {
		db.Close()
		return nil, fmt.Errorf("create view over %s: %w", path, err)
	}

	logger.Debug("analysis database ready", "path", path)
	return &Analyzer{db: db, path: path, logger: logger}, nil
}

// Close releases the database.
func (a *Analyzer) Close() error {
	return a.db.Close()
}

// Path returns the file being analysed.
func (a *Analyzer) Path() string { return a.path }

// Run executes q and renders the result.
func (a *Analyzer) Run(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, q.SQL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s columns: %w", q.Name, err)
	}

	res := &Result{Query: q, Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Name, err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = format(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}

	a.logger.Debug("query complete", "query", q.Name, "rows", len(res.Rows), "duration", time.Since(start))
	return res, nil
}

// ExportCSV writes the result of q to dir/<name>.csv and returns the path.
func (a *Analyzer) ExportCSV(ctx context.Context, q Query, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create csv dir: %w", err)
	}
	out := filepath.Join(dir, q.Name+".csv")
	stmt := fmt.Sprintf("COPY (%s) TO %s (HEADER, DELIMITER ',')", q.SQL, literal(out))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("export %s: %w", q.Name, err)
	}
	a.logger.Info("exported query", "query", q.Name, "path", out)
	return out, nil
}

// literal quotes s as a SQL string literal.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case *big.Int:
		return x.String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
