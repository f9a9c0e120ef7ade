package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/maxpert/auditsource/encoding"
	"github.com/puzpuzpuz/xsync/v3"
)

// Serializer turns a mapped event into its wire form by filling in Body and Headers
type Serializer interface {
	Process(e Event) (Event, error)
}

// SerializerOptions carries context some formats embed in the payload
type SerializerOptions struct {
	Connector string // name of this source
	Table     string // polled table (empty for explicit queries)
}

// SerializerFactory creates a Serializer for a format
type SerializerFactory func(opts SerializerOptions) Serializer

var serializerFactories = xsync.NewMapOf[string, SerializerFactory]()

// RegisterSerializer registers a serializer factory for a format name
func RegisterSerializer(format string, factory SerializerFactory) {
	serializerFactories.Store(format, factory)
}

func init() {
	RegisterSerializer("json", func(SerializerOptions) Serializer { return JSONSerializer{} })
	RegisterSerializer("msgpack", func(SerializerOptions) Serializer { return MsgpackSerializer{} })
	RegisterSerializer("debezium", func(opts SerializerOptions) Serializer { return NewDebeziumSerializer(opts) })
}

// NewSerializer creates the serializer registered for format, optionally
// wrapped with payload compression
func NewSerializer(format, compression string, opts SerializerOptions) (Serializer, error) {
	if format == "" {
		format = "json"
	}
	factory, ok := serializerFactories.Load(format)
	if !ok {
		return nil, fmt.Errorf("unknown serializer: %s", format)
	}
	ser := factory(opts)

	switch compression {
	case "", encoding.CompressionNone:
		return ser, nil
	case encoding.CompressionZstd:
		return CompressingSerializer{Inner: ser}, nil
	default:
		return nil, fmt.Errorf("unknown compression: %s", compression)
	}
}

// JSONSerializer writes the fields as a JSON object in column order, e.g.
// {"ID":2,"RETURN_CODE":48,"NAME":"name2"}
type JSONSerializer struct{}

func (JSONSerializer) Process(e Event) (Event, error) {
	body, err := MarshalFieldsJSON(e.Fields)
	if err != nil {
		return e, err
	}
	e.Body = body
	e.SetHeader(HeaderContentType, "application/json")
	return e, nil
}

// MarshalFieldsJSON encodes fields as an ordered JSON object
func MarshalFieldsJSON(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field name %q: %w", f.Name, err)
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MsgpackSerializer writes the fields as a msgpack map in column order
type MsgpackSerializer struct{}

func (MsgpackSerializer) Process(e Event) (Event, error) {
	entries := make([]encoding.KeyValue, len(e.Fields))
	for i, f := range e.Fields {
		entries[i] = encoding.KeyValue{Key: f.Name, Value: f.Value}
	}

	body, err := encoding.MarshalOrderedMap(entries)
	if err != nil {
		return e, fmt.Errorf("failed to marshal msgpack: %w", err)
	}
	e.Body = body
	e.SetHeader(HeaderContentType, "application/msgpack")
	return e, nil
}

// CompressingSerializer zstd-compresses the body produced by Inner
type CompressingSerializer struct {
	Inner Serializer
}

func (c CompressingSerializer) Process(e Event) (Event, error) {
	e, err := c.Inner.Process(e)
	if err != nil {
		return e, err
	}

	body, err := encoding.Compress(e.Body)
	if err != nil {
		return e, err
	}
	e.Body = body
	e.SetHeader(HeaderContentEncoding, encoding.CompressionZstd)
	return e, nil
}
