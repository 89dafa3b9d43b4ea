// Package persona holds the per-user persona document, the attribute records
// folded into it, and the merge policy between the two.
package persona

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// LastUpdatedKey is the reserved top-level key carrying the document timestamp.
const LastUpdatedKey = "lastUpdatedAt"

// timeLayout matches the millisecond UTC ISO-8601 form other docustore
// writers use, so documents written by either side compare cleanly.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrMalformedDocument = errors.New("malformed persona document")

// Document maps a provider namespace to that provider's last verified
// attribute object. Values are kept as compact raw JSON, so namespaces this
// service does not know about round-trip unchanged.
type Document struct {
	namespaces    map[string]json.RawMessage
	LastUpdatedAt time.Time
}

// Namespaces returns the namespace keys in sorted order.
func (d *Document) Namespaces() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.namespaces))
	for k := range d.namespaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a copy of the raw attribute object stored under namespace.
func (d *Document) Get(namespace string) (json.RawMessage, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.namespaces[namespace]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Len reports the number of namespaces.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.namespaces)
}

func (d *Document) clone() *Document {
	out := &Document{namespaces: make(map[string]json.RawMessage, d.Len()+1)}
	if d == nil {
		return out
	}
	out.LastUpdatedAt = d.LastUpdatedAt
	for k, v := range d.namespaces {
		out.namespaces[k] = v
	}
	return out
}

// MarshalJSON renders the flat form {"<namespace>": {...}, "lastUpdatedAt": "..."}.
// A zero LastUpdatedAt is omitted.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range d.Namespaces() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(d.namespaces[k])
	}
	if d != nil && !d.LastUpdatedAt.IsZero() {
		if !first {
			buf.WriteByte(',')
		}
		buf.WriteString(`"` + LastUpdatedKey + `":"`)
		buf.WriteString(d.LastUpdatedAt.UTC().Format(timeLayout))
		buf.WriteByte('"')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any JSON object. lastUpdatedAt, when present, must
// be an RFC 3339 string.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: not an object", ErrMalformedDocument)
	}

	out := Document{namespaces: make(map[string]json.RawMessage, len(raw))}
	for k, v := range raw {
		if k == LastUpdatedKey {
			var ts string
			if err := json.Unmarshal(v, &ts); err != nil {
				return fmt.Errorf("%w: %s is not a string", ErrMalformedDocument, LastUpdatedKey)
			}
			parsed, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformedDocument, LastUpdatedKey, err)
			}
			out.LastUpdatedAt = parsed.UTC()
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, v); err != nil {
			return fmt.Errorf("%w: namespace %q: %v", ErrMalformedDocument, k, err)
		}
		out.namespaces[k] = compact.Bytes()
	}
	*d = out
	return nil
}

// ParseDocument decodes a serialized document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteReceipt is the store's acknowledgement of an accepted write.
// Acceptance is not finality.
type WriteReceipt struct {
	TxHash      string
	Height      int64
	SubmittedAt time.Time
}
