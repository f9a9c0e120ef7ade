package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maxpert/auditsource/schema"
)

// Placeholder is substituted with the committed cursor value
const Placeholder = "{$committed_value}"

var ErrInvalidTemplate = errors.New("invalid query template")

// segment is a piece of template text; optional segments were bracketed
type segment struct {
	text     string
	optional bool
}

// Template is an explicit query with optional clauses, e.g.
//
//	SELECT * FROM t [WHERE c > '{$committed_value}'] ORDER BY c
//
// Bracketed clauses are dropped until a value has been committed. A query
// without the placeholder is used verbatim, brackets included.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate validates text. The placeholder may only appear inside a
// bracketed clause and brackets may not nest.
func ParseTemplate(text string) (*Template, error) {
	t := &Template{raw: text}
	if !strings.Contains(text, Placeholder) {
		return t, nil
	}

	var cur strings.Builder
	inClause := false
	for _, r := range text {
		switch r {
		case '[':
			if inClause {
				return nil, fmt.Errorf("%w: nested '[' in %q", ErrInvalidTemplate, text)
			}
			t.segments = append(t.segments, segment{text: cur.String()})
			cur.Reset()
			inClause = true
		case ']':
			if !inClause {
				return nil, fmt.Errorf("%w: unmatched ']' in %q", ErrInvalidTemplate, text)
			}
			t.segments = append(t.segments, segment{text: cur.String(), optional: true})
			cur.Reset()
			inClause = false
		default:
			cur.WriteRune(r)
		}
	}
	if inClause {
		return nil, fmt.Errorf("%w: unterminated '[' in %q", ErrInvalidTemplate, text)
	}
	t.segments = append(t.segments, segment{text: cur.String()})

	for _, s := range t.segments {
		if !s.optional && strings.Contains(s.text, Placeholder) {
			return nil, fmt.Errorf("%w: %s must be inside a [...] clause", ErrInvalidTemplate, Placeholder)
		}
	}
	return t, nil
}

// Templated reports whether the query carries a placeholder
func (t *Template) Templated() bool {
	return len(t.segments) > 0
}

// String returns the template text as configured
func (t *Template) String() string {
	return t.raw
}

// Render produces the SQL for the given committed value. Optional clauses
// are removed when committed is nil; otherwise their brackets become spaces.
// A placeholder the template already wraps in single quotes receives the raw
// value, a bare one receives the literal formatted for cursorType.
func (t *Template) Render(cursorType schema.SQLType, committed *string) string {
	if !t.Templated() {
		return t.raw
	}

	var b strings.Builder
	for _, s := range t.segments {
		if !s.optional {
			b.WriteString(s.text)
			continue
		}
		if committed == nil {
			continue
		}

		clause := strings.ReplaceAll(s.text, "'"+Placeholder+"'", quote(*committed))
		clause = strings.ReplaceAll(clause, Placeholder, FormatLiteral(cursorType, *committed))

		b.WriteByte(' ')
		b.WriteString(clause)
		b.WriteByte(' ')
	}
	return b.String()
}
