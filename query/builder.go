// Package query builds the SQL text of each incremental poll.
//
// Every synthesized query orders by the cursor column ascending. Ordering is
// what makes the cursor monotonic: the last row read in a batch always holds
// the largest cursor value seen so far, so committing it never skips rows of
// an append-only table.
package query

import (
	"strings"

	"github.com/maxpert/auditsource/schema"
)

// Build returns the SQL for the next poll.
// An explicit query wins verbatim; otherwise
// SELECT * FROM table [WHERE column > literal] ORDER BY column.
func Build(explicit, table, column string, cursorType schema.SQLType, committed *string) string {
	if explicit != "" {
		return explicit
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(table)

	if committed != nil {
		b.WriteString(" WHERE ")
		b.WriteString(column)
		b.WriteString(" > ")
		b.WriteString(FormatLiteral(cursorType, *committed))
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(column)
	return b.String()
}

// FormatLiteral renders value as a SQL literal for a column of type t
func FormatLiteral(t schema.SQLType, value string) string {
	switch {
	case t.Unquoted():
		return value
	case t == schema.Timestamp:
		return "TIMESTAMP " + quote(value)
	default:
		return quote(value)
	}
}

func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
