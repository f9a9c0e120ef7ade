// Package encoding holds the binary codecs shared by event serializers:
// msgpack for compact bodies and zstd for optional payload compression.
//
// Thread Safety: every function in this package is safe for concurrent use.
package encoding

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// KeyValue is one entry of an ordered map
type KeyValue struct {
	Key   string
	Value any
}

// Marshal encodes a value to msgpack format.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// MarshalOrderedMap encodes entries as a msgpack map, keeping their order.
// Go maps would randomize it.
func MarshalOrderedMap(entries []KeyValue) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeMapLen(len(entries)); err != nil {
		return nil, err
	}
	for _, kv := range entries {
		if err := enc.EncodeString(kv.Key); err != nil {
			return nil, err
		}
		if err := enc.Encode(kv.Value); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes msgpack data using loose interface decoding, so strings
// come back as Go strings and integers as int64.
func Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	return dec.Decode(v)
}
