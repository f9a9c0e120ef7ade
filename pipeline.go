package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/checkpoint"
	"github.com/maxpert/auditsource/dedup"
	"github.com/maxpert/auditsource/event"
	"github.com/maxpert/auditsource/notify"
	"github.com/maxpert/auditsource/publisher"
	"github.com/maxpert/auditsource/reader"
	"github.com/rs/zerolog/log"
)

// pipeline is a configured reader, delivery channel and driver
type pipeline struct {
	db      *sql.DB
	reader  *reader.Reader
	channel *publisher.SinkChannel
	source  *publisher.Source
	wake    *notify.Hub
	unwake  func()
}

// openDatabase opens the configured database pool
func openDatabase(config *cfg.Configuration) (*sql.DB, error) {
	db, err := sql.Open(config.Database.Driver, config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Database.Driver, err)
	}
	if config.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.Database.MaxOpenConns)
	}
	return db, nil
}

// openStore opens the configured checkpoint store
func openStore(config *cfg.Configuration) (checkpoint.Store, error) {
	return checkpoint.Open(checkpoint.Options{
		Kind:      checkpoint.Kind(config.Checkpoint.Store),
		Path:      config.Checkpoint.Path,
		PebbleDir: config.Checkpoint.PebbleDir,
		Name:      config.Name,
	})
}

// openReader builds a reader over db; the store is closed if that fails
func openReader(ctx context.Context, config *cfg.Configuration, db *sql.DB) (*reader.Reader, error) {
	cursorType, err := config.CursorType()
	if err != nil {
		return nil, err
	}

	ser, err := event.NewSerializer(config.Source.Serializer, config.Source.Compression, event.SerializerOptions{
		Connector: config.Name,
		Table:     config.Source.Table,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(config)
	if err != nil {
		return nil, err
	}

	r, err := reader.New(ctx, db, store, ser, reader.Config{
		Table:          config.Source.Table,
		CursorColumn:   config.Source.CursorColumn,
		CursorType:     cursorType,
		Query:          config.Source.Query,
		Dialect:        config.Database.Dialect,
		IncludeColumns: config.Source.IncludeColumns,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return r, nil
}

// newPipeline wires database, reader, dedup, sink and driver from config
func newPipeline(ctx context.Context, config *cfg.Configuration) (*pipeline, error) {
	db, err := openDatabase(config)
	if err != nil {
		return nil, err
	}

	r, err := openReader(ctx, config, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	var interceptor *dedup.Interceptor
	if config.Dedup.Enabled {
		fields, err := dedup.ParseFields(config.Dedup.Fields)
		if err == nil {
			interceptor, err = dedup.NewInterceptor(config.Dedup.Capacity, fields)
		}
		if err != nil {
			r.Close()
			db.Close()
			return nil, err
		}
	}

	channel, err := publisher.NewChannel(config.Sink)
	if err != nil {
		r.Close()
		db.Close()
		return nil, err
	}

	hub := notify.NewHub()
	wake, unwake := hub.Subscribe(config.Name)

	source, err := publisher.NewSource(publisher.SourceConfig{
		Name:             config.Name,
		Reader:           r,
		Channel:          channel,
		Interceptor:      interceptor,
		BatchSize:        config.Source.BatchSize,
		MinCycleInterval: config.MinimumCycleInterval(),
		Wake:             wake,
	})
	if err != nil {
		unwake()
		channel.Close()
		r.Close()
		db.Close()
		return nil, err
	}

	return &pipeline{db: db, reader: r, channel: channel, source: source, wake: hub, unwake: unwake}, nil
}

// Close stops the driver and releases the sink and the database
func (p *pipeline) Close() {
	p.source.Stop()
	p.unwake()
	if err := p.channel.Close(); err != nil {
		log.Warn().Err(err).Msg("Unable to close sink")
	}
	if err := p.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Unable to close database")
	}
}
