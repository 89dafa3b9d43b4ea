package persona

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidRecord = errors.New("invalid attribute record")

// AttributeRecord is one provider's freshly verified attributes under its
// namespace. It is immutable once built.
type AttributeRecord struct {
	namespace string
	fields    json.RawMessage
}

// NewAttributeRecord marshals fields, which must encode to a JSON object.
func NewAttributeRecord(namespace string, fields any) (AttributeRecord, error) {
	if namespace == "" || namespace == LastUpdatedKey {
		return AttributeRecord{}, fmt.Errorf("%w: namespace %q is reserved or empty", ErrInvalidRecord, namespace)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return AttributeRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return AttributeRecord{}, fmt.Errorf("%w: fields must be a JSON object", ErrInvalidRecord)
	}
	return AttributeRecord{namespace: namespace, fields: raw}, nil
}

func (r AttributeRecord) Namespace() string {
	return r.namespace
}

// Fields returns a copy of the raw attribute object.
func (r AttributeRecord) Fields() json.RawMessage {
	return bytes.Clone(r.fields)
}

// IsZero reports whether r was never built.
func (r AttributeRecord) IsZero() bool {
	return r.namespace == ""
}

// Equal compares namespace and serialized fields.
func (r AttributeRecord) Equal(other AttributeRecord) bool {
	return r.namespace == other.namespace && bytes.Equal(r.fields, other.fields)
}
