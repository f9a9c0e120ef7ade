package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// DebeziumSerializer writes events in the Debezium JSON-with-schema format
// so they can be consumed by Kafka Connect style tooling. Every polled row is
// a create ("c") with no before image.
//
// The value schema is derived from the Go types of the event fields and
// cached per field layout.
type DebeziumSerializer struct {
	connector   string
	table       string
	now         func() time.Time
	schemaCache *xsync.MapOf[string, *debeziumEnvelopeSchema]
}

// NewDebeziumSerializer creates a Debezium serializer
func NewDebeziumSerializer(opts SerializerOptions) *DebeziumSerializer {
	connector := opts.Connector
	if connector == "" {
		connector = "auditsource"
	}
	table := opts.Table
	if table == "" {
		table = "query"
	}
	return &DebeziumSerializer{
		connector:   connector,
		table:       table,
		now:         time.Now,
		schemaCache: xsync.NewMapOf[string, *debeziumEnvelopeSchema](),
	}
}

type debeziumEnvelopeSchema struct {
	Type   string                `json:"type"`
	Name   string                `json:"name"`
	Fields []debeziumSchemaField `json:"fields"`
}

type debeziumSchemaField struct {
	Field    string                `json:"field"`
	Type     string                `json:"type"`
	Optional bool                  `json:"optional,omitempty"`
	Name     string                `json:"name,omitempty"`
	Fields   []debeziumSchemaField `json:"fields,omitempty"`
}

type debeziumMessage struct {
	Schema  *debeziumEnvelopeSchema `json:"schema"`
	Payload debeziumPayload         `json:"payload"`
}

type debeziumPayload struct {
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	Op     string         `json:"op"`
	TsMs   int64          `json:"ts_ms"`
	Source debeziumSource `json:"source"`
}

type debeziumSource struct {
	Connector string `json:"connector"`
	Table     string `json:"table"`
	Cursor    string `json:"cursor"`
}

func (d *DebeziumSerializer) Process(e Event) (Event, error) {
	after := make(map[string]any, len(e.Fields))
	for _, f := range e.Fields {
		after[f.Name] = f.Value
	}

	message := debeziumMessage{
		Schema: d.getOrBuildSchema(e.Fields),
		Payload: debeziumPayload{
			After: after,
			Op:    "c",
			TsMs:  d.now().UnixMilli(),
			Source: debeziumSource{
				Connector: d.connector,
				Table:     d.table,
				Cursor:    e.Headers[HeaderCursor],
			},
		},
	}

	data, err := json.Marshal(message)
	if err != nil {
		return e, fmt.Errorf("failed to marshal debezium message: %w", err)
	}

	e.Body = data
	e.SetHeader(HeaderContentType, "application/vnd.debezium+json")
	return e, nil
}

// getOrBuildSchema returns the envelope schema for this field layout
func (d *DebeziumSerializer) getOrBuildSchema(fields []Field) *debeziumEnvelopeSchema {
	columns := make([]debeziumSchemaField, len(fields))
	var key strings.Builder
	for i, f := range fields {
		columns[i] = debeziumSchemaField{
			Field:    f.Name,
			Type:     debeziumType(f.Value),
			Optional: true,
		}
		key.WriteString(f.Name)
		key.WriteByte(':')
		key.WriteString(columns[i].Type)
		key.WriteByte(';')
	}

	envelope, _ := d.schemaCache.LoadOrCompute(key.String(), func() *debeziumEnvelopeSchema {
		return d.buildEnvelopeSchema(columns)
	})
	return envelope
}

func (d *DebeziumSerializer) buildEnvelopeSchema(columns []debeziumSchemaField) *debeziumEnvelopeSchema {
	valueSchemaName := d.connector + "." + d.table + ".Value"
	envelopeName := d.connector + "." + d.table + ".Envelope"

	return &debeziumEnvelopeSchema{
		Type: "struct",
		Name: envelopeName,
		Fields: []debeziumSchemaField{
			{Field: "before", Type: "struct", Optional: true, Name: valueSchemaName, Fields: columns},
			{Field: "after", Type: "struct", Optional: true, Name: valueSchemaName, Fields: columns},
			{Field: "op", Type: "string"},
			{Field: "ts_ms", Type: "int64"},
			{
				Field: "source",
				Type:  "struct",
				Name:  "io.auditsource.Source",
				Fields: []debeziumSchemaField{
					{Field: "connector", Type: "string"},
					{Field: "table", Type: "string"},
					{Field: "cursor", Type: "string"},
				},
			},
		},
	}
}

// debeziumType maps event values to Debezium schema types. NULLs carry no
// type information and are declared as optional strings.
func debeziumType(v any) string {
	switch v.(type) {
	case int64:
		return "int64"
	case bool:
		return "boolean"
	case float64:
		return "double"
	default:
		return "string"
	}
}
