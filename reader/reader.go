// Package reader turns an append-only table into a pull-based stream of
// events that resumes from the last committed cursor value.
//
// A Reader is not safe for concurrent use. At most one Reader may share a
// checkpoint location.
package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/maxpert/auditsource/checkpoint"
	"github.com/maxpert/auditsource/event"
	"github.com/maxpert/auditsource/query"
	"github.com/maxpert/auditsource/schema"
	"github.com/rs/zerolog/log"
)

// State of the reader's result sequence
type State uint8

const (
	// Idle has no open result set; the next read polls the database
	Idle State = iota
	// Streaming has an open result set that may hold more rows
	Streaming
	// Closed is terminal
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config selects what to poll
type Config struct {
	Table          string
	CursorColumn   string
	CursorType     *schema.SQLType // overrides the resolved cursor column type
	Query          string          // explicit query or template
	Dialect        string
	IncludeColumns []string
}

// Reader polls rows in ascending cursor order. Commit advances the durable
// checkpoint to the cursor of the last row read; rows read but not committed
// are read again by the next poll after a restart.
type Reader struct {
	db    *sql.DB
	conn  *sql.Conn
	store checkpoint.Store
	ser   event.Serializer

	table        string
	cursorColumn string
	cursorType   schema.SQLType
	template     *query.Template
	layout       *schema.Table
	mapper       *event.Mapper

	state     State
	rows      *sql.Rows
	committed *string
	pending   *string
	lastQuery string
}

// New validates cfg, loads the committed value from store and resolves the
// column layout. The reader takes ownership of store. ser may be nil, in
// which case events are serialized as JSON.
func New(ctx context.Context, db *sql.DB, store checkpoint.Store, ser event.Serializer, cfg Config) (*Reader, error) {
	cfg.Table = strings.TrimSpace(cfg.Table)
	cfg.CursorColumn = strings.TrimSpace(cfg.CursorColumn)
	cfg.Query = strings.TrimSpace(cfg.Query)

	if cfg.Table == "" && cfg.Query == "" {
		return nil, newError(ErrConfiguration, "new", errors.New("table name or query is required"))
	}
	if cfg.CursorColumn == "" {
		return nil, newError(ErrConfiguration, "new", errors.New("cursor column is required"))
	}
	if db == nil || store == nil {
		return nil, newError(ErrConfiguration, "new", errors.New("database and checkpoint store are required"))
	}

	tmpl, err := query.ParseTemplate(cfg.Query)
	if err != nil {
		return nil, newError(ErrConfiguration, "new", err)
	}

	committed, err := store.Load()
	if err != nil {
		return nil, newError(ErrIO, "load checkpoint", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, newError(ErrConnectivity, "ping", err)
	}

	var layout *schema.Table
	if cfg.Query != "" {
		// An explicit query decides its own columns; probe its first poll shape
		layout, err = schema.ResolveQuery(ctx, db, cfg.Dialect, tmpl.Render(schema.Text, nil), cfg.CursorColumn)
	} else {
		layout, err = schema.Resolve(ctx, db, cfg.Dialect, cfg.Table, cfg.CursorColumn)
	}
	if err != nil {
		return nil, newError(resolveKind(err), "resolve", err)
	}

	cursorType := layout.Cursor().Type
	if cfg.CursorType != nil {
		cursorType = *cfg.CursorType
	}

	mapper, err := event.NewMapper(layout.Columns, layout.CursorOrdinal, cfg.IncludeColumns)
	if err != nil {
		return nil, newError(ErrConfiguration, "new", err)
	}

	if ser == nil {
		ser = event.JSONSerializer{}
	}

	r := &Reader{
		db:           db,
		store:        store,
		ser:          ser,
		table:        cfg.Table,
		cursorColumn: cfg.CursorColumn,
		cursorType:   cursorType,
		template:     tmpl,
		layout:       layout,
		mapper:       mapper,
		state:        Idle,
		committed:    committed,
	}

	log.Info().
		Str("table", cfg.Table).
		Str("cursor_column", cfg.CursorColumn).
		Str("cursor_type", cursorType.String()).
		Str("committed", valueOrEmpty(committed)).
		Msg("Reader ready")

	return r, nil
}

// ReadOne returns the next event, polling the database when idle. It returns
// nil, nil once the current result set is drained; the following call polls again.
func (r *Reader) ReadOne(ctx context.Context) (*event.Event, error) {
	if r.state == Closed {
		return nil, newError(ErrIO, "read", ErrClosed)
	}

	if r.state == Idle {
		if err := r.poll(ctx); err != nil {
			return nil, err
		}
	}

	if !r.rows.Next() {
		err := r.rows.Err()
		r.release()
		if err != nil {
			r.pending = nil
			return nil, newError(classify(err), "read", err)
		}
		return nil, nil
	}

	e, cursor, err := r.mapper.Map(r.rows)
	if err != nil {
		r.abort()
		return nil, newError(ErrIO, "map", err)
	}

	if r.table != "" {
		e.SetHeader(event.HeaderTable, r.table)
	}

	e, err = r.ser.Process(e)
	if err != nil {
		r.abort()
		return nil, newError(ErrIO, "serialize", err)
	}

	r.pending = &cursor
	return &e, nil
}

// ReadBatch reads up to max events, stopping early when the result set drains
func (r *Reader) ReadBatch(ctx context.Context, max int) ([]event.Event, error) {
	if max <= 0 {
		return nil, newError(ErrConfiguration, "read", fmt.Errorf("batch size must be positive, got %d", max))
	}

	events := make([]event.Event, 0, max)
	for len(events) < max {
		e, err := r.ReadOne(ctx)
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		events = append(events, *e)
	}

	log.Debug().
		Str("table", r.table).
		Int("events", len(events)).
		Str("pending", valueOrEmpty(r.pending)).
		Msg("Read batch")

	return events, nil
}

// Commit persists the cursor of the last row read. It is a no-op when
// nothing was read since the previous commit.
func (r *Reader) Commit() error {
	if r.state == Closed {
		return newError(ErrIO, "commit", ErrClosed)
	}
	if r.pending == nil {
		return nil
	}

	if err := r.store.Save(*r.pending); err != nil {
		return newError(ErrIO, "commit", err)
	}

	r.committed = r.pending
	r.pending = nil

	log.Debug().Str("table", r.table).Str("committed", *r.committed).Msg("Committed cursor")
	return nil
}

// Close releases the result set, the pinned connection and the checkpoint
// store. Release failures are logged, never returned.
func (r *Reader) Close() error {
	if r.state == Closed {
		return nil
	}

	r.release()
	r.closeConn()
	if err := r.store.Close(); err != nil {
		log.Debug().Err(err).Msg("Unable to close checkpoint store")
	}

	r.state = Closed
	return nil
}

// Rewind drops the open result set and everything read since the last
// commit. The next read polls again from the committed value.
func (r *Reader) Rewind() {
	if r.state == Closed {
		return
	}
	if r.pending != nil {
		log.Debug().Str("table", r.table).Str("pending", *r.pending).Msg("Rewinding to committed cursor")
	}
	r.abort()
}

// State returns the current state
func (r *Reader) State() State {
	return r.state
}

// Committed returns the durable cursor value, nil when nothing was committed
func (r *Reader) Committed() *string {
	return copyValue(r.committed)
}

// Pending returns the cursor of the last row read since the previous commit
func (r *Reader) Pending() *string {
	return copyValue(r.pending)
}

// LastQuery returns the SQL of the most recent poll
func (r *Reader) LastQuery() string {
	return r.lastQuery
}

// Layout returns the resolved columns
func (r *Reader) Layout() *schema.Table {
	return r.layout
}

// NextQuery returns the SQL the next poll would execute
func (r *Reader) NextQuery() string {
	if r.template.Templated() {
		return r.template.Render(r.cursorType, r.committed)
	}
	return query.Build(r.template.String(), r.table, r.cursorColumn, r.cursorType, r.committed)
}

func (r *Reader) poll(ctx context.Context) error {
	conn, err := r.connection(ctx)
	if err != nil {
		return err
	}

	q := r.NextQuery()
	r.lastQuery = q
	log.Info().Str("table", r.table).Str("query", q).Msg("Polling")

	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		kind := classify(err)
		if kind == ErrConnectivity {
			r.closeConn()
		}
		return newError(kind, "query", err)
	}

	r.rows = rows
	r.state = Streaming
	return nil
}

// connection pins one pooled connection so a single query is in flight
func (r *Reader) connection(ctx context.Context) (*sql.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, newError(ErrConnectivity, "connect", err)
	}
	r.conn = conn
	return conn, nil
}

// abort drops the result set after a failed row; the next poll restarts
// from the committed value
func (r *Reader) abort() {
	r.release()
	r.pending = nil
}

func (r *Reader) release() {
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			log.Debug().Err(err).Msg("Unable to close result set")
		}
		r.rows = nil
	}
	if r.state == Streaming {
		r.state = Idle
	}
}

func (r *Reader) closeConn() {
	if r.conn == nil {
		return
	}
	if err := r.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Unable to release connection")
	}
	r.conn = nil
}

func copyValue(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func valueOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
