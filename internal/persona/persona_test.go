package persona

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2025, 2, 3, 4, 5, 6, 789_000_000, time.UTC)
)

func mustRecord(t *testing.T, ns string, fields map[string]any) AttributeRecord {
	t.Helper()
	rec, err := NewAttributeRecord(ns, fields)
	require.NoError(t, err)
	return rec
}

func mustDoc(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func marshal(t *testing.T, d *Document) string {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return string(b)
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	raw := `{"custom":{"nested":[1, 2, {"x":true}]},"github":{"publicRepos":3},"lastUpdatedAt":"2024-05-01T10:00:00.000Z"}`
	doc := mustDoc(t, raw)

	assert.Equal(t, []string{"custom", "github"}, doc.Namespaces())
	assert.Equal(t, t0, doc.LastUpdatedAt)
	assert.JSONEq(t, raw, marshal(t, doc))
	assert.Equal(t, `{"custom":{"nested":[1,2,{"x":true}]},"github":{"publicRepos":3},"lastUpdatedAt":"2024-05-01T10:00:00.000Z"}`, marshal(t, doc))
}

func TestDocument_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{`[]`, `"x"`, `{"lastUpdatedAt":5}`, `{"lastUpdatedAt":"yesterday"}`} {
		_, err := ParseDocument([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedDocument, raw)
	}
}

func TestDocument_GetReturnsCopy(t *testing.T) {
	doc := mustDoc(t, `{"twitter":{"followers":1}}`)
	v, ok := doc.Get("twitter")
	require.True(t, ok)
	v[2] = 'X'

	again, _ := doc.Get("twitter")
	assert.Equal(t, `{"followers":1}`, string(again))
}

func TestNewAttributeRecord(t *testing.T) {
	_, err := NewAttributeRecord("", map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = NewAttributeRecord(LastUpdatedKey, map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = NewAttributeRecord("twitter", []int{1})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	rec := mustRecord(t, "twitter", map[string]any{"followers": 120})
	fields := rec.Fields()
	fields[0] = '['
	assert.Equal(t, `{"followers":120}`, string(rec.Fields()))
}

func TestMerge_AbsentDocumentBootstrap(t *testing.T) {
	rec := mustRecord(t, "twitter", map[string]any{"followers": 120})

	out := Merge(nil, rec, t1)

	assert.Equal(t, []string{"twitter"}, out.Namespaces())
	assert.Equal(t, t1, out.LastUpdatedAt)
	assert.JSONEq(t, `{"twitter":{"followers":120},"lastUpdatedAt":"2025-02-03T04:05:06.789Z"}`, marshal(t, out))
}

func TestMerge_PreservesUnrelatedNamespaces(t *testing.T) {
	existing := mustDoc(t, `{"github":{"publicRepos":7},"custom":{"a":"b"},"lastUpdatedAt":"2024-05-01T10:00:00.000Z"}`)
	before := marshal(t, existing)
	rec := mustRecord(t, "twitter", map[string]any{"followers": 5})

	out := Merge(existing, rec, t1)

	assert.Equal(t, []string{"custom", "github", "twitter"}, out.Namespaces())
	for _, ns := range existing.Namespaces() {
		want, _ := existing.Get(ns)
		got, _ := out.Get(ns)
		assert.Equal(t, string(want), string(got), ns)
	}
	assert.Equal(t, t1, out.LastUpdatedAt)
	assert.Equal(t, before, marshal(t, existing), "existing document must not be mutated")
}

func TestMerge_ReplacesSameNamespaceWholesale(t *testing.T) {
	existing := mustDoc(t, `{"twitter":{"followers":1,"screenName":"old","extra":true}}`)
	rec := mustRecord(t, "twitter", map[string]any{"followers": 9})

	out := Merge(existing, rec, t1)

	got, ok := out.Get("twitter")
	require.True(t, ok)
	assert.Equal(t, string(rec.Fields()), string(got))
	assert.NotContains(t, string(got), "screenName")
}

// Property-style sweep: for every combination of existing namespaces and an
// incoming namespace, the merge keeps all other keys and installs the record.
func TestMerge_Properties(t *testing.T) {
	pool := []string{"twitter", "github", "binance", "linkedin"}
	for mask := 0; mask < 1<<len(pool); mask++ {
		var parts []string
		for i, ns := range pool {
			if mask&(1<<i) != 0 {
				parts = append(parts, fmt.Sprintf(`%q:{"v":%d}`, ns, i))
			}
		}
		existing := mustDoc(t, "{"+strings.Join(parts, ",")+"}")

		for _, incoming := range pool {
			rec := mustRecord(t, incoming, map[string]any{"v": "new"})
			out := Merge(existing, rec, t1)

			got, _ := out.Get(incoming)
			assert.Equal(t, `{"v":"new"}`, string(got))
			for _, ns := range existing.Namespaces() {
				if ns == incoming {
					continue
				}
				want, _ := existing.Get(ns)
				have, ok := out.Get(ns)
				assert.True(t, ok)
				assert.Equal(t, string(want), string(have))
			}
			expected := existing.Len()
			if _, had := existing.Get(incoming); !had {
				expected++
			}
			assert.Equal(t, expected, out.Len())
		}
	}
}

func TestParseUserKey(t *testing.T) {
	valid := []string{"user1", "xion1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu", "0xAbC", "a.b_c:d-e", "  padded  "}
	for _, raw := range valid {
		key, err := ParseUserKey(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, strings.TrimSpace(raw), key.String())
	}

	invalid := []string{"", "   ", "has space", "slash/key", "emoji✓", strings.Repeat("a", 129)}
	for _, raw := range invalid {
		_, err := ParseUserKey(raw)
		assert.ErrorIs(t, err, ErrInvalidUserKey, raw)
	}
}
