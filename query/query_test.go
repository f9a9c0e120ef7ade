package query

import (
	"testing"

	"github.com/maxpert/auditsource/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuild(t *testing.T) {
	tests := []struct {
		name       string
		table      string
		column     string
		cursorType schema.SQLType
		committed  *string
		expected   string
	}{
		{
			name:       "no committed value",
			table:      "table_name1",
			column:     "column_name1",
			cursorType: schema.Timestamp,
			expected:   "SELECT * FROM table_name1 ORDER BY column_name1",
		},
		{
			name:       "numeric",
			table:      "t",
			column:     "c",
			cursorType: schema.FloatingPoint,
			committed:  strPtr("244"),
			expected:   "SELECT * FROM t WHERE c > 244 ORDER BY c",
		},
		{
			name:       "integer",
			table:      "table_name3",
			column:     "column_name3",
			cursorType: schema.Integer,
			committed:  strPtr("244"),
			expected:   "SELECT * FROM table_name3 WHERE column_name3 > 244 ORDER BY column_name3",
		},
		{
			name:       "boolean",
			table:      "t",
			column:     "c",
			cursorType: schema.Boolean,
			committed:  strPtr("1"),
			expected:   "SELECT * FROM t WHERE c > 1 ORDER BY c",
		},
		{
			name:       "timestamp",
			table:      "t",
			column:     "c",
			cursorType: schema.Timestamp,
			committed:  strPtr("2016-02-09 09:34:51.244"),
			expected:   "SELECT * FROM t WHERE c > TIMESTAMP '2016-02-09 09:34:51.244' ORDER BY c",
		},
		{
			name:       "string",
			table:      "t",
			column:     "c",
			cursorType: schema.Text,
			committed:  strPtr("s"),
			expected:   "SELECT * FROM t WHERE c > 's' ORDER BY c",
		},
		{
			name:       "string with quote",
			table:      "t",
			column:     "c",
			cursorType: schema.Text,
			committed:  strPtr("o'neil"),
			expected:   "SELECT * FROM t WHERE c > 'o''neil' ORDER BY c",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Build("", tc.table, tc.column, tc.cursorType, tc.committed)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestBuildExplicitQuery(t *testing.T) {
	assert.Equal(t, "new query", Build("new query", "", "column", schema.Text, nil))
	assert.Equal(t, "new query", Build("new query", "table", "column", schema.Integer, strPtr("value")))
}

func TestTemplateRender(t *testing.T) {
	tmpl, err := ParseTemplate("SELECT * FROM table_name [WHERE column_name > '{$committed_value}'] ORDER BY column_name")
	require.NoError(t, err)
	assert.True(t, tmpl.Templated())

	assert.Equal(t, "SELECT * FROM table_name  ORDER BY column_name",
		tmpl.Render(schema.Text, nil))
	assert.Equal(t, "SELECT * FROM table_name  WHERE column_name > '12345'  ORDER BY column_name",
		tmpl.Render(schema.Text, strPtr("12345")))
}

func TestTemplateBarePlaceholderUsesCursorType(t *testing.T) {
	tmpl, err := ParseTemplate("SELECT * FROM t [WHERE c > {$committed_value}] ORDER BY c")
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM t  WHERE c > TIMESTAMP '2016-02-09 09:34:51.244'  ORDER BY c",
		tmpl.Render(schema.Timestamp, strPtr("2016-02-09 09:34:51.244")))
	assert.Equal(t, "SELECT * FROM t  WHERE c > 42  ORDER BY c",
		tmpl.Render(schema.Integer, strPtr("42")))
	assert.Equal(t, "SELECT * FROM t  WHERE c > 'x'  ORDER BY c",
		tmpl.Render(schema.Text, strPtr("x")))
}

func TestTemplateWithoutPlaceholderIsVerbatim(t *testing.T) {
	tmpl, err := ParseTemplate("SELECT [id] FROM [dbo].[audit]")
	require.NoError(t, err)
	assert.False(t, tmpl.Templated())
	assert.Equal(t, "SELECT [id] FROM [dbo].[audit]", tmpl.Render(schema.Integer, strPtr("1")))
	assert.Equal(t, "SELECT [id] FROM [dbo].[audit]", tmpl.String())
}

func TestParseTemplateErrors(t *testing.T) {
	bad := []string{
		"SELECT * FROM t WHERE c > {$committed_value}",
		"SELECT * FROM t [WHERE c > {$committed_value}",
		"SELECT * FROM t WHERE c > {$committed_value}]",
		"SELECT * FROM t [[WHERE c > {$committed_value}]]",
	}
	for _, text := range bad {
		_, err := ParseTemplate(text)
		assert.ErrorIs(t, err, ErrInvalidTemplate, text)
	}
}
