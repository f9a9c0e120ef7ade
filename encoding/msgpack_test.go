package encoding

import (
	"bytes"
	"sync"
	"testing"
)

func TestMarshal_Basic(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{"string", "hello world"},
		{"int64", int64(9876543210)},
		{"float64", 3.14159},
		{"bool", true},
		{"nil", nil},
		{"map", map[string]interface{}{"name": "alice", "age": 30}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Marshal(tc.input)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if len(data) == 0 {
				t.Error("Expected non-empty result")
			}
		})
	}
}

func TestMarshalOrderedMap_KeepsOrder(t *testing.T) {
	entries := []KeyValue{
		{Key: "ID", Value: int64(2)},
		{Key: "RETURN_CODE", Value: int64(48)},
		{Key: "NAME", Value: "name2"},
		{Key: "OK", Value: true},
		{Key: "AMOUNT", Value: 1.5},
		{Key: "MISSING", Value: nil},
	}

	data, err := MarshalOrderedMap(entries)
	if err != nil {
		t.Fatalf("MarshalOrderedMap failed: %v", err)
	}

	// Keys must appear in the payload in insertion order
	last := -1
	for _, kv := range entries {
		idx := bytes.Index(data, []byte(kv.Key))
		if idx < 0 {
			t.Fatalf("key %q missing from payload", kv.Key)
		}
		if idx <= last {
			t.Errorf("key %q out of order", kv.Key)
		}
		last = idx
	}

	var decoded map[string]interface{}
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["ID"] != int64(2) {
		t.Errorf("expected ID int64(2), got %T %v", decoded["ID"], decoded["ID"])
	}
	if decoded["NAME"] != "name2" {
		t.Errorf("expected NAME name2, got %v", decoded["NAME"])
	}
	if decoded["OK"] != true {
		t.Errorf("expected OK true, got %v", decoded["OK"])
	}
	if decoded["AMOUNT"] != 1.5 {
		t.Errorf("expected AMOUNT 1.5, got %v", decoded["AMOUNT"])
	}
	if v, ok := decoded["MISSING"]; !ok || v != nil {
		t.Errorf("expected MISSING nil, got %v (present=%v)", v, ok)
	}
}

func TestMarshalOrderedMap_Empty(t *testing.T) {
	data, err := MarshalOrderedMap(nil)
	if err != nil {
		t.Fatalf("MarshalOrderedMap failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected empty map, got %v", decoded)
	}
}

func TestUnmarshal_StringNotBytes(t *testing.T) {
	original := "2016-02-09T09:34:51.244"
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result interface{}
	if err := Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	str, ok := result.(string)
	if !ok {
		t.Fatalf("Expected string type, got %T", result)
	}
	if str != original {
		t.Errorf("String mismatch: got %q, want %q", str, original)
	}
}

func TestCompress_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"ID":2,"RETURN_CODE":48,"NAME":"name2"}`), 64)

	compressed, err := Compress(payload)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(payload) {
		t.Errorf("expected compression, got %d >= %d bytes", len(compressed), len(payload))
	}

	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Error("round trip mismatch")
	}
}

func TestDecompress_Garbage(t *testing.T) {
	if _, err := Decompress([]byte("not zstd")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestCompress_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	payload := []byte("audit row payload")

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c, err := Compress(payload)
				if err != nil {
					t.Errorf("Compress failed: %v", err)
					return
				}
				out, err := Decompress(c)
				if err != nil || !bytes.Equal(out, payload) {
					t.Errorf("round trip failed: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()
}
