package persona

import "time"

// Merge folds incoming into existing and returns a new document. A nil
// existing document is treated as empty. The incoming namespace replaces any
// previous value wholesale; every other namespace is carried forward.
// Neither input is modified.
func Merge(existing *Document, incoming AttributeRecord, now time.Time) *Document {
	out := existing.clone()
	if !incoming.IsZero() {
		out.namespaces[incoming.namespace] = incoming.Fields()
	}
	out.LastUpdatedAt = now.UTC()
	return out
}
