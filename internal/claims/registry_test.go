package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona/internal/persona"
	"persona/internal/proof"
)

const (
	twitterID = "e6fe962d-8b4e-4ce5-abcc-3d21c88bd64a"
	githubID  = "8ce3c937-b5d7-4034-8b65-92633011904a"
	signedAt  = int64(1735689600) // 2025-01-01T00:00:00Z
)

func newProof(providerID string, params map[string]string) *proof.Proof {
	p := &proof.Proof{ProviderID: providerID}
	p.ClaimData.TimestampS = signedAt
	p.ClaimData.Context.ExtractedParameters = params
	return p
}

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewDefaultRegistry(twitterID, githubID)
	require.NoError(t, err)
	return r
}

func TestRegistry_Twitter(t *testing.T) {
	r := defaultRegistry(t)

	rec, err := r.Extract(twitterID, newProof(twitterID, map[string]string{
		"screen_name":     "alice",
		"followers_count": "120",
		"created_at":      "Mon Jan 01 00:00:00 +0000 2018",
	}))
	require.NoError(t, err)
	assert.Equal(t, "twitter", rec.Namespace())
	assert.JSONEq(t, `{"screenName":"alice","followers":120,"createdAt":"Mon Jan 01 00:00:00 +0000 2018","verifiedAt":"2025-01-01T00:00:00.000Z"}`, string(rec.Fields()))
}

func TestRegistry_TwitterMinimal(t *testing.T) {
	rec, err := defaultRegistry(t).Extract(twitterID, newProof(twitterID, map[string]string{"followers_count": "120"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"followers":120,"verifiedAt":"2025-01-01T00:00:00.000Z"}`, string(rec.Fields()))
}

func TestRegistry_GitHub(t *testing.T) {
	r := defaultRegistry(t)

	rec, err := r.Extract(githubID, newProof(githubID, map[string]string{"username": "octo", "public_repos": "42"}))
	require.NoError(t, err)
	assert.Equal(t, "github", rec.Namespace())
	assert.JSONEq(t, `{"username":"octo","publicRepos":42,"verifiedAt":"2025-01-01T00:00:00.000Z"}`, string(rec.Fields()))

	rec, err = r.Extract(githubID, newProof(githubID, map[string]string{"public_repos": "1", "contributions": "900"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"publicRepos":1,"contributions":900,"verifiedAt":"2025-01-01T00:00:00.000Z"}`, string(rec.Fields()))
}

func TestRegistry_ExtractionIsIdempotent(t *testing.T) {
	r := defaultRegistry(t)
	p := newProof(twitterID, map[string]string{"followers_count": "7", "screen_name": "bob"})

	first, err := r.Extract(twitterID, p)
	require.NoError(t, err)
	for range 5 {
		again, err := r.Extract(twitterID, p)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := defaultRegistry(t)
	for _, id := range []string{"unknown-id", "", twitterID + "x"} {
		rec, err := r.Extract(id, newProof(id, map[string]string{"followers_count": "1"}))
		var unsupported *UnsupportedProviderError
		require.True(t, errors.As(err, &unsupported), "id %q", id)
		assert.Equal(t, id, unsupported.ProviderID)
		assert.True(t, rec.IsZero())
	}
}

func TestRegistry_MalformedClaims(t *testing.T) {
	r := defaultRegistry(t)

	cases := []struct {
		name     string
		provider string
		params   map[string]string
		field    string
	}{
		{"missing followers", twitterID, map[string]string{"screen_name": "alice"}, "followers_count"},
		{"blank followers", twitterID, map[string]string{"followers_count": "  "}, "followers_count"},
		{"non-numeric followers", twitterID, map[string]string{"followers_count": "lots"}, "followers_count"},
		{"hex followers", twitterID, map[string]string{"followers_count": "0x10"}, "followers_count"},
		{"fractional followers", twitterID, map[string]string{"followers_count": "1.5"}, "followers_count"},
		{"missing repos", githubID, map[string]string{"username": "octo"}, "public_repos"},
		{"bad contributions", githubID, map[string]string{"public_repos": "1", "contributions": "many"}, "contributions"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Extract(tc.provider, newProof(tc.provider, tc.params))
			var malformed *MalformedClaimError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, tc.field, malformed.Field)
			assert.Equal(t, tc.provider, malformed.ProviderID)
		})
	}
}

func TestRegistry_LeadingZeroIsDecimal(t *testing.T) {
	rec, err := defaultRegistry(t).Extract(twitterID, newProof(twitterID, map[string]string{"followers_count": "012"}))
	require.NoError(t, err)
	assert.Contains(t, string(rec.Fields()), `"followers":12`)
}

func TestRegistry_MissingTimestamp(t *testing.T) {
	p := newProof(twitterID, map[string]string{"followers_count": "1"})
	p.ClaimData.TimestampS = 0
	_, err := defaultRegistry(t).Extract(twitterID, p)
	var malformed *MalformedClaimError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "timestampS", malformed.Field)
}

func TestRegistry_IgnoresUnsignedTopLevelParameters(t *testing.T) {
	p := newProof(twitterID, map[string]string{"followers_count": "5"})
	p.ExtractedParameterValues = map[string]string{"followers_count": "5000000"}
	rec, err := defaultRegistry(t).Extract(twitterID, p)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Fields()), `"followers":5,`)

	p = newProof(githubID, map[string]string{"public_repos": "1"})
	p.ExtractedParameterValues = map[string]string{"contributions": "99999"}
	rec, err = defaultRegistry(t).Extract(githubID, p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"publicRepos":1,"verifiedAt":"2025-01-01T00:00:00.000Z"}`, string(rec.Fields()))
}

type stubExtractor struct{ ns string }

func (s stubExtractor) Namespace() string { return s.ns }
func (s stubExtractor) Extract(map[string]string, time.Time) (persona.AttributeRecord, error) {
	return persona.NewAttributeRecord(s.ns, map[string]any{})
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("p1", stubExtractor{ns: "one"}))

	assert.Error(t, r.Register("p1", stubExtractor{ns: "two"}), "duplicate provider")
	assert.Error(t, r.Register("p2", stubExtractor{ns: "one"}), "duplicate namespace")
	assert.Error(t, r.Register("p3", stubExtractor{ns: persona.LastUpdatedKey}), "reserved namespace")
	assert.Error(t, r.Register("", stubExtractor{ns: "three"}))
	assert.Error(t, r.Register("p4", nil))

	require.NoError(t, r.Register("p2", stubExtractor{ns: "two"}))
	assert.Equal(t, []string{"p1", "p2"}, r.Providers())
	assert.True(t, r.Supports("p2"))
	assert.False(t, r.Supports("p9"))
}

func TestNewDefaultRegistry_RejectsSameID(t *testing.T) {
	_, err := NewDefaultRegistry("same", "same")
	assert.Error(t, err)
}
