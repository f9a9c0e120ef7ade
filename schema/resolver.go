package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
)

// Queryer is the subset of *sql.DB / *sql.Conn the resolver needs
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ProbeTable builds a query returning the columns of table and no rows
func ProbeTable(dialect, table string) (string, error) {
	ds := goqu.Dialect(dialectName(dialect)).
		From(goqu.L(table)).
		Where(goqu.L("1 = 0"))

	query, _, err := ds.ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build probe for %s: %w", table, err)
	}
	return query, nil
}

// ProbeQuery builds a query returning the columns of an arbitrary SELECT and no rows
func ProbeQuery(dialect, query string) (string, error) {
	ds := goqu.Dialect(dialectName(dialect)).
		From(goqu.L("(" + query + ")").As("probe")).
		Where(goqu.L("1 = 0"))

	probe, _, err := ds.ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build probe for query: %w", err)
	}
	return probe, nil
}

func dialectName(dialect string) string {
	switch strings.ToLower(dialect) {
	case "mysql":
		return "mysql"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return "default"
	}
}

// Resolve inspects table with a zero-row query and locates cursorColumn.
// Column names are matched case-insensitively since drivers disagree on case.
func Resolve(ctx context.Context, db Queryer, dialect, table, cursorColumn string) (*Table, error) {
	table = strings.TrimSpace(table)
	cursorColumn = strings.TrimSpace(cursorColumn)
	if table == "" {
		return nil, fmt.Errorf("%w: table name is required", ErrInvalidTarget)
	}

	probe, err := ProbeTable(dialect, table)
	if err != nil {
		return nil, err
	}
	return resolve(ctx, db, table, probe, cursorColumn)
}

// ResolveQuery resolves the column layout of an explicit SELECT
func ResolveQuery(ctx context.Context, db Queryer, dialect, query, cursorColumn string) (*Table, error) {
	probe, err := ProbeQuery(dialect, query)
	if err != nil {
		return nil, err
	}
	return resolve(ctx, db, "", probe, strings.TrimSpace(cursorColumn))
}

func resolve(ctx context.Context, db Queryer, table, probe, cursorColumn string) (*Table, error) {
	if cursorColumn == "" {
		return nil, fmt.Errorf("%w: cursor column is required", ErrInvalidTarget)
	}

	rows, err := db.QueryContext(ctx, probe)
	if err != nil {
		return nil, fmt.Errorf("failed to probe columns: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}

	t := &Table{
		Name:          table,
		Columns:       make([]ColumnDescriptor, 0, len(types)),
		CursorOrdinal: -1,
	}
	for i, ct := range types {
		desc := ColumnDescriptor{
			Name:    ct.Name(),
			Type:    FromDatabaseTypeName(ct.DatabaseTypeName()),
			Ordinal: i,
		}
		t.Columns = append(t.Columns, desc)

		if t.CursorOrdinal < 0 && strings.EqualFold(desc.Name, cursorColumn) {
			t.CursorOrdinal = i
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to probe columns: %w", err)
	}

	if t.CursorOrdinal < 0 {
		return nil, fmt.Errorf("%w: %q has %d columns but none named %q",
			ErrCursorColumnNotFound, table, len(t.Columns), cursorColumn)
	}

	log.Debug().
		Str("table", table).
		Int("columns", len(t.Columns)).
		Str("cursor_column", t.Cursor().Name).
		Str("cursor_type", t.Cursor().Type.String()).
		Msg("Resolved column metadata")

	return t, nil
}
