package publisher

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/maxpert/auditsource/checkpoint"
	"github.com/maxpert/auditsource/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTableReader opens a reader over an audit table holding ids
func newTableReader(t *testing.T, ids ...int) *reader.Reader {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(dir, "audit.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE audit_data_table (ID INTEGER, NAME VARCHAR(20))`)
	require.NoError(t, err)
	for _, id := range ids {
		_, err = db.Exec(`INSERT INTO audit_data_table (ID, NAME) VALUES (?, ?)`, id, "row")
		require.NoError(t, err)
	}

	r, err := reader.New(context.Background(), db, checkpoint.NewFileStore(filepath.Join(dir, checkpoint.DefaultPath)), nil, reader.Config{
		Table:        "audit_data_table",
		CursorColumn: "ID",
		Dialect:      "sqlite3",
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestProcessRedeliversAfterFailedDelivery(t *testing.T) {
	r := newTableReader(t, 1, 2, 3, 4)
	channel := &fakeChannel{err: errors.New("broker down")}
	s := newTestSource(t, r, channel, 2)
	ctx := context.Background()

	status, err := s.Process(ctx)
	require.Error(t, err)
	assert.Equal(t, Backoff, status)
	assert.Nil(t, r.Committed())
	assert.Equal(t, reader.Idle, r.State())

	// The failed rows come first, not the rows after them
	channel.err = nil
	status, err = s.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ready, status)
	assert.Equal(t, []string{"1", "2"}, channel.delivered())
	assert.Equal(t, "2", *r.Committed())

	_, err = s.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, channel.delivered())
	assert.Equal(t, "4", *r.Committed())
}

func TestProcessRereadsAfterFailureMidResultSet(t *testing.T) {
	r := newTableReader(t, 1, 2, 3)
	channel := &fakeChannel{}
	s := newTestSource(t, r, channel, 1)
	ctx := context.Background()

	_, err := s.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, reader.Streaming, r.State())

	// Fail delivery of row 2 while the result set is still open
	channel.err = errors.New("timeout")
	status, _ := s.Process(ctx)
	assert.Equal(t, Backoff, status)
	assert.Equal(t, "1", *r.Committed())

	channel.err = nil
	_, err = s.Process(ctx)
	require.NoError(t, err)
	_, err = s.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, channel.delivered())
	assert.Equal(t, "3", *r.Committed())
}
