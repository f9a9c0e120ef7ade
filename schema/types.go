// Package schema resolves the column layout of the polled table once at
// startup and classifies each column into one of the SQL type families the
// row mapper and the query builder know how to handle.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// SQLType is the type family of a column
type SQLType uint8

const (
	Text SQLType = iota
	Integer
	Boolean
	FloatingPoint
	Timestamp
)

var (
	// ErrUnknownType is returned when a configured type name is not recognized
	ErrUnknownType = errors.New("unknown column type")
	// ErrCursorColumnNotFound is returned when the cursor column is absent from the table
	ErrCursorColumnNotFound = errors.New("cursor column not found")
	// ErrInvalidTarget is returned when the table or cursor column name is missing
	ErrInvalidTarget = errors.New("invalid resolve target")
)

func (t SQLType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	case FloatingPoint:
		return "float"
	case Timestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// Unquoted reports whether literals of this type are emitted raw in SQL
func (t SQLType) Unquoted() bool {
	return t == Integer || t == Boolean || t == FloatingPoint
}

// configTypeNames are the names accepted for the cursor_column_type override
var configTypeNames = map[string]SQLType{
	"integer":     Integer,
	"int":         Integer,
	"bigint":      Integer,
	"smallint":    Integer,
	"long":        Integer,
	"numeric":     FloatingPoint,
	"number":      FloatingPoint,
	"decimal":     FloatingPoint,
	"float":       FloatingPoint,
	"double":      FloatingPoint,
	"real":        FloatingPoint,
	"boolean":     Boolean,
	"bool":        Boolean,
	"timestamp":   Timestamp,
	"timestamptz": Timestamp,
	"datetime":    Timestamp,
	"string":      Text,
	"text":        Text,
	"varchar":     Text,
	"char":        Text,
}

// ParseSQLType parses a configured type name (case-insensitive)
func ParseSQLType(name string) (SQLType, error) {
	t, ok := configTypeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Text, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// databaseTypeNames maps normalized driver type names to families.
// Anything absent is Text.
var databaseTypeNames = map[string]SQLType{
	// Integer family
	"INT":         Integer,
	"INTEGER":     Integer,
	"TINYINT":     Integer,
	"SMALLINT":    Integer,
	"MEDIUMINT":   Integer,
	"BIGINT":      Integer,
	"INT2":        Integer,
	"INT4":        Integer,
	"INT8":        Integer,
	"SERIAL":      Integer,
	"SMALLSERIAL": Integer,
	"BIGSERIAL":   Integer,

	// Boolean
	"BOOL":    Boolean,
	"BOOLEAN": Boolean,

	// Floating / numeric family
	"NUMERIC":          FloatingPoint,
	"DECIMAL":          FloatingPoint,
	"NUMBER":           FloatingPoint,
	"FLOAT":            FloatingPoint,
	"FLOAT4":           FloatingPoint,
	"FLOAT8":           FloatingPoint,
	"DOUBLE":           FloatingPoint,
	"DOUBLE PRECISION": FloatingPoint,
	"REAL":             FloatingPoint,
	"BINARY_FLOAT":     FloatingPoint,
	"BINARY_DOUBLE":    FloatingPoint,

	// Timestamp family, zone-qualified variants included
	"TIMESTAMP":                      Timestamp,
	"TIMESTAMPTZ":                    Timestamp,
	"DATETIME":                       Timestamp,
	"DATETIME2":                      Timestamp,
	"DATETIMEOFFSET":                 Timestamp,
	"TIMESTAMP WITH TIME ZONE":       Timestamp,
	"TIMESTAMP WITHOUT TIME ZONE":    Timestamp,
	"TIMESTAMP WITH LOCAL TIME ZONE": Timestamp,
}

// FromDatabaseTypeName classifies a driver-reported type name such as
// "INT8", "VARCHAR(20)", "BIGINT UNSIGNED" or "TIMESTAMP(6) WITH LOCAL TIME ZONE".
func FromDatabaseTypeName(name string) SQLType {
	if t, ok := databaseTypeNames[normalizeTypeName(name)]; ok {
		return t
	}
	return Text
}

func normalizeTypeName(name string) string {
	name = strings.ToUpper(name)

	// Drop precision/length qualifiers: VARCHAR(20), TIMESTAMP(6) ...
	var b strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if f == "UNSIGNED" || f == "SIGNED" {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// ColumnDescriptor describes one resolved column. Ordinal is 0-based.
type ColumnDescriptor struct {
	Name    string
	Type    SQLType
	Ordinal int
}

// Table is the resolved column layout of the polled relation
type Table struct {
	Name          string
	Columns       []ColumnDescriptor
	CursorOrdinal int
}

// Cursor returns the descriptor of the cursor column
func (t *Table) Cursor() ColumnDescriptor {
	return t.Columns[t.CursorOrdinal]
}

// Names returns the column names in ordinal order
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
