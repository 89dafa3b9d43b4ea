package test

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona/internal/claims"
	"persona/internal/persona/store"
	"persona/internal/platform/config"
	"persona/internal/proof"
	"persona/internal/proof/prooftest"
	"persona/internal/verification"
	"persona/internal/verification/handler"
	"persona/pkg/platform/audit/publisher"
	auditmemory "persona/pkg/platform/audit/store/memory"
	"persona/pkg/testutil"
)

func TestRouterScaffold(t *testing.T) {
	witness := prooftest.NewWitness(t)
	verifier, err := proof.NewReclaimVerifier([]string{witness.Address}, 1)
	require.NoError(t, err)
	registry, err := claims.NewDefaultRegistry(config.DefaultTwitterProviderID, config.DefaultGitHubProviderID)
	require.NoError(t, err)

	personas := store.NewMemory()
	auditStore := auditmemory.NewInMemoryStore()
	auditPub := publisher.NewPublisher(auditStore)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := verification.NewService(verifier, registry, personas,
		verification.WithLogger(logger),
		verification.WithAuditPublisher(auditPub),
	)
	require.NoError(t, err)

	router := chi.NewRouter()
	handler.New(svc, personas, logger, nil, handler.WithAuditPublisher(auditPub)).Register(router)

	post := func(t *testing.T, p *proof.Proof) *handler.ReceiveProofResponse {
		t.Helper()
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/receive-proof", string(prooftest.JSON(t, p)))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		return testutil.UnmarshalResponse[handler.ReceiveProofResponse](t, rr)
	}

	testutil.Given(t, "a user with no persona", func(t *testing.T) {
		testutil.When(t, "looking the persona up", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/api/personas/xion1alice", nil))

			testutil.Then(t, "it is not found", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusNotFound)
			})
		})

		testutil.When(t, "a signed twitter proof arrives", func(t *testing.T) {
			resp := post(t, prooftest.Build(t, prooftest.Spec{
				ProviderID:     config.DefaultTwitterProviderID,
				ContextAddress: "xion1alice",
				Parameters:     map[string]string{"followers_count": "120", "screen_name": "alice"},
			}, witness))

			testutil.Then(t, "it is accepted into the twitter namespace", func(t *testing.T) {
				assert.True(t, resp.Success)
				assert.Equal(t, "twitter", resp.Namespace)
				assert.Equal(t, "xion1alice", resp.UserKey)
				assert.True(t, strings.HasPrefix(resp.TransactionHash, "mem-"))
			})
		})

		testutil.When(t, "a signed github proof arrives", func(t *testing.T) {
			resp := post(t, prooftest.Build(t, prooftest.Spec{
				ProviderID:     config.DefaultGitHubProviderID,
				ContextAddress: "xion1alice",
				Parameters:     map[string]string{"public_repos": "4"},
			}, witness))

			testutil.Then(t, "it is accepted into the github namespace", func(t *testing.T) {
				assert.True(t, resp.Success)
				assert.Equal(t, "github", resp.Namespace)
				assert.False(t, resp.Replayed)
			})
		})

		testutil.When(t, "looking the persona up again", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/api/personas/xion1alice", nil))

			testutil.Then(t, "both providers are present", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				body := testutil.DecodeBody(t, rr)
				assert.Contains(t, body, "twitter")
				assert.Contains(t, body, "github")
				assert.Contains(t, body, "lastUpdatedAt")
			})
		})
	})

	testutil.Given(t, "a proof signed by an unknown witness", func(t *testing.T) {
		stranger := prooftest.NewWitness(t)
		p := prooftest.Build(t, prooftest.Spec{
			ProviderID:     config.DefaultTwitterProviderID,
			ContextAddress: "xion1mallory",
			Parameters:     map[string]string{"followers_count": "1000000"},
		}, stranger)

		testutil.When(t, "it is submitted", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/api/receive-proof", string(prooftest.JSON(t, p))))

			testutil.Then(t, "it is rejected and nothing is stored", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_proof")
				rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/api/personas/xion1mallory", nil))
				testutil.AssertStatus(t, rr, http.StatusNotFound)
			})
		})
	})

	testutil.Given(t, "the audit trail", func(t *testing.T) {
		auditPub.Close()
		events, err := auditStore.ListByUser(t.Context(), "xion1alice")
		require.NoError(t, err)

		testutil.Then(t, "each accepted proof was recorded", func(t *testing.T) {
			assert.Len(t, events, 2)
		})
		testutil.And(t, "the forged proof was recorded as rejected", func(t *testing.T) {
			rejected, err := auditStore.ListByUser(t.Context(), "xion1mallory")
			require.NoError(t, err)
			require.Len(t, rejected, 1)
			assert.Equal(t, "proof_rejected", rejected[0].Action)
			assert.Equal(t, "invalid_proof", rejected[0].Reason)
		})
	})
}
