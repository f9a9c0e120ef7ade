package dedup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/maxpert/auditsource/event"
	"github.com/rs/zerolog/log"
)

// Fields selects which parts of an event make up its fingerprint
type Fields uint8

const (
	Both Fields = iota
	Headers
	Body
)

func (f Fields) String() string {
	switch f {
	case Headers:
		return "headers"
	case Body:
		return "body"
	default:
		return "both"
	}
}

// ParseFields parses headers, body or both. Empty means both.
func ParseFields(s string) (Fields, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return Both, nil
	case "headers":
		return Headers, nil
	case "body":
		return Body, nil
	default:
		return Both, fmt.Errorf("unknown dedup fields %q, expected headers, body or both", s)
	}
}

// Fingerprint hashes the selected parts of e. Headers are hashed in key
// order; with Both the header and body hashes are XORed.
func Fingerprint(e event.Event, f Fields) uint32 {
	switch f {
	case Headers:
		return hashHeaders(e.Headers)
	case Body:
		return hashBody(e.Body)
	default:
		return hashHeaders(e.Headers) ^ hashBody(e.Body)
	}
}

func hashHeaders(headers map[string]string) uint32 {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		d.WriteString(k)
		d.WriteString("=")
		d.WriteString(headers[k])
		d.WriteString("\n")
	}
	return uint32(d.Sum64())
}

func hashBody(body []byte) uint32 {
	return uint32(xxhash.Sum64(body))
}

// Interceptor filters events whose fingerprint was seen recently
type Interceptor struct {
	cache  *Cache
	fields Fields
}

// NewInterceptor creates an interceptor remembering capacity fingerprints
func NewInterceptor(capacity int, fields Fields) (*Interceptor, error) {
	cache, err := NewCache(capacity)
	if err != nil {
		return nil, err
	}
	return &Interceptor{cache: cache, fields: fields}, nil
}

// Intercept returns e and true when it is new, remembering it; false when it
// is a duplicate
func (i *Interceptor) Intercept(e event.Event) (event.Event, bool) {
	fp := Fingerprint(e, i.fields)
	if i.cache.Seen(fp) {
		log.Debug().
			Uint32("fingerprint", fp).
			Str("cursor", e.Headers[event.HeaderCursor]).
			Msg("Dropping duplicate event")
		return e, false
	}

	i.cache.Remember(fp)
	return e, true
}

// InterceptBatch returns the events of batch that are not duplicates, in order
func (i *Interceptor) InterceptBatch(batch []event.Event) []event.Event {
	out := make([]event.Event, 0, len(batch))
	for _, e := range batch {
		if e, ok := i.Intercept(e); ok {
			out = append(out, e)
		}
	}
	return out
}

// Forget removes the fingerprints of events that were intercepted but never
// delivered, so their re-read is not mistaken for a duplicate
func (i *Interceptor) Forget(batch []event.Event) {
	for _, e := range batch {
		i.cache.Forget(Fingerprint(e, i.fields))
	}
}

// Len returns the number of remembered fingerprints
func (i *Interceptor) Len() int {
	return i.cache.Len()
}

// Close clears the cache
func (i *Interceptor) Close() {
	i.cache.Clear()
}
