// Package event defines the portable event produced for each polled row,
// the mapper that builds it from a database row, and the serializers that
// turn it into a byte payload plus headers.
package event

// Header names set by serializers and the reader
const (
	HeaderContentType     = "content-type"
	HeaderContentEncoding = "content-encoding"
	HeaderTable           = "table"
	HeaderCursor          = "cursor"
)

// Field is one column of an event. Value is nil, int64, bool, float64 or string.
type Field struct {
	Name  string
	Value any
}

// Event is a mapped row. Fields keep column order. Body and Headers are
// filled in by a Serializer.
type Event struct {
	Fields  []Field
	Headers map[string]string
	Body    []byte
}

// Add appends a field
func (e *Event) Add(name string, value any) {
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}

// Get returns the value of the named field
func (e *Event) Get(name string) (any, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Len returns the number of fields
func (e *Event) Len() int {
	return len(e.Fields)
}

// SetHeader sets a header, allocating the map on first use
func (e *Event) SetHeader(key, value string) {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
}
