package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/maxpert/auditsource/schema"
)

// TimestampLayout is the normalized form of timestamp fields: millisecond
// precision, literal T separator, no zone. Go truncates fractions on Format.
const TimestampLayout = "2006-01-02T15:04:05.000"

// cursorTimeLayout renders time cursor values so they can be fed back into
// a TIMESTAMP '...' literal
const cursorTimeLayout = "2006-01-02 15:04:05.999999999"

// ErrConversion is returned when a column value cannot be converted
var ErrConversion = errors.New("column conversion failed")

// RowScanner is satisfied by *sql.Rows
type RowScanner interface {
	Scan(dest ...any) error
}

// Mapper converts rows of a resolved table into events
type Mapper struct {
	columns       []schema.ColumnDescriptor
	cursorOrdinal int
	include       []bool
}

// NewMapper builds a mapper. includePatterns are glob patterns over column
// names; empty means every column. The cursor value is extracted even when
// its column is projected out.
func NewMapper(columns []schema.ColumnDescriptor, cursorOrdinal int, includePatterns []string) (*Mapper, error) {
	if cursorOrdinal < 0 || cursorOrdinal >= len(columns) {
		return nil, fmt.Errorf("cursor ordinal %d out of range for %d columns", cursorOrdinal, len(columns))
	}

	globs := make([]glob.Glob, 0, len(includePatterns))
	for _, pattern := range includePatterns {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid column pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	include := make([]bool, len(columns))
	for i, c := range columns {
		include[i] = len(globs) == 0
		for _, g := range globs {
			if g.Match(strings.ToLower(c.Name)) {
				include[i] = true
				break
			}
		}
	}

	return &Mapper{
		columns:       columns,
		cursorOrdinal: cursorOrdinal,
		include:       include,
	}, nil
}

// Map scans one row and returns its event and the cursor value as text
func (m *Mapper) Map(row RowScanner) (Event, string, error) {
	raw := make([]any, len(m.columns))
	dest := make([]any, len(m.columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	if err := row.Scan(dest...); err != nil {
		return Event{}, "", fmt.Errorf("%w: scan: %w", ErrConversion, err)
	}

	return m.MapValues(raw)
}

// MapValues converts already scanned driver values
func (m *Mapper) MapValues(raw []any) (Event, string, error) {
	if len(raw) != len(m.columns) {
		return Event{}, "", fmt.Errorf("%w: got %d values for %d columns", ErrConversion, len(raw), len(m.columns))
	}

	e := Event{Fields: make([]Field, 0, len(m.columns))}
	for i, c := range m.columns {
		if !m.include[i] {
			continue
		}
		v, err := Convert(c.Type, raw[i])
		if err != nil {
			return Event{}, "", fmt.Errorf("%w: column %s: %w", ErrConversion, c.Name, err)
		}
		e.Add(c.Name, v)
	}

	cursorRaw := raw[m.cursorOrdinal]
	if cursorRaw == nil {
		return Event{}, "", fmt.Errorf("%w: cursor column %s is NULL", ErrConversion, m.columns[m.cursorOrdinal].Name)
	}
	cursor := NaturalText(cursorRaw)
	e.SetHeader(HeaderCursor, cursor)

	return e, cursor, nil
}

// Convert maps a driver value to the event value for a column of type t.
// NULL stays nil.
func Convert(t schema.SQLType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case schema.Integer:
		return toInt64(v)
	case schema.Boolean:
		return toBool(v)
	case schema.FloatingPoint:
		return toFloat64(v)
	case schema.Timestamp:
		return FormatTimestamp(v)
	default:
		return NaturalText(v), nil
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to integer", s)
	}
	return int64(f), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(x)))
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// timestampLayouts are tried in order for timestamps delivered as text.
// Fractional seconds are accepted by time.Parse even when absent from the layout.
var timestampLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05-07",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTimestamp normalizes a timestamp to YYYY-MM-DDTHH:MM:SS.sss using
// the wall clock as stored; zone or offset information is dropped.
func FormatTimestamp(v any) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return x.Format(TimestampLayout), nil
	case []byte:
		return formatTimestampText(string(x))
	case string:
		return formatTimestampText(x)
	default:
		return "", fmt.Errorf("cannot convert %T to timestamp", v)
	}
}

func formatTimestampText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, ok := parseTimestamp(s); ok {
		return t.Format(TimestampLayout), nil
	}

	// Named zones such as "2016-02-09 09:34:51.244507 Europe/Zurich"
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		if t, ok := parseTimestamp(s[:i]); ok {
			return t.Format(TimestampLayout), nil
		}
	}

	return "", fmt.Errorf("cannot parse timestamp %q", s)
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NaturalText returns the textual form of a driver value. It is used for
// Text fields and for cursor values, which round-trip through the checkpoint
// store as opaque strings.
func NaturalText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(cursorTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}
