package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// SQLTool runs read-only SELECT statements against an in-memory SQLite
// database seeded with the per-service p95 baseline. Non-SELECT
// statements are rejected before reaching the database.
type SQLTool struct {
	db *sql.DB
}

// fixtureEntry is the per-service shape of the optional seed fixture.
type fixtureEntry struct {
	P95 int `json:"p95"`
}

// defaultSeedP95 is used for catalog services absent from the fixture.
const defaultSeedP95 = 200

// NewSQLTool opens an in-memory database and seeds the services table.
// fixturePath may be empty; catalog services then default to a flat
// baseline.
func NewSQLTool(catalog []string, fixturePath string) (*SQLTool, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The in-memory database exists per connection; a second connection
	// would see an empty schema.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE services (name TEXT PRIMARY KEY, p95 INTEGER NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create services table: %w", err)
	}

	seed := map[string]int{}
	for _, s := range catalog {
		seed[s] = defaultSeedP95
	}
	if fixturePath != "" {
		raw, err := os.ReadFile(fixturePath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("read fixture %s: %w", fixturePath, err)
		}
		var fixture map[string]fixtureEntry
		if err := json.Unmarshal(raw, &fixture); err != nil {
			db.Close()
			return nil, fmt.Errorf("parse fixture %s: %w", fixturePath, err)
		}
		for name, entry := range fixture {
			seed[name] = entry.P95
		}
	}

	for name, p95 := range seed {
		if _, err := db.Exec(`INSERT INTO services (name, p95) VALUES (?, ?)`, name, p95); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed service %s: %w", name, err)
		}
	}

	return &SQLTool{db: db}, nil
}

func (t *SQLTool) Name() string { return "sql" }

func (t *SQLTool) Capabilities() []Capability {
	return []Capability{CapabilityCalc, CapabilityUtil}
}

// Invoke expects param "sql", a single SELECT statement. Rows are
// returned as maps keyed by column name.
func (t *SQLTool) Invoke(ctx context.Context, params map[string]any) (*Result, error) {
	stmt, _ := params["sql"].(string)
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(stmt)), "select") {
		return failure(t.Name(), ReasonRejected, "only SELECT allowed"), nil
	}

	rows, err := t.db.QueryContext(ctx, stmt)
	if err != nil {
		// A bad statement is definitive; retrying cannot help.
		return failure(t.Name(), ReasonError, err.Error()), nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failure(t.Name(), ReasonError, err.Error()), nil
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return failure(t.Name(), ReasonError, err.Error()), nil
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return failure(t.Name(), ReasonError, err.Error()), nil
	}

	return success(t.Name(), map[string]any{
		"columns": columns,
		"rows":    out,
	}, 0.9), nil
}

// Close releases the underlying database.
func (t *SQLTool) Close() error {
	return t.db.Close()
}
