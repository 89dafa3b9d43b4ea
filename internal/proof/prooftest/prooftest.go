// Package prooftest builds witness-signed proofs for tests.
package prooftest

import (
	"crypto/ecdsa"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"persona/internal/proof"
)

// Witness signs claims with a throwaway secp256k1 key.
type Witness struct {
	key     *ecdsa.PrivateKey
	Address string
}

func NewWitness(t testing.TB) *Witness {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &Witness{key: key, Address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

// Spec describes the proof to build.
type Spec struct {
	ProviderID     string
	ContextAddress string
	Parameters     map[string]string
	TimestampS     int64
	// SignedAddress overrides the contextAddress inside the signed claim.
	SignedAddress string
	// Unbound leaves contextAddress out of the signed claim context.
	Unbound bool
}

// Build returns a proof signed by each of the given witnesses, round-tripped
// through JSON the way it arrives over the wire.
func Build(t testing.TB, spec Spec, witnesses ...*Witness) *proof.Proof {
	t.Helper()

	signedAddress := spec.SignedAddress
	if signedAddress == "" {
		signedAddress = spec.ContextAddress
	}
	if spec.TimestampS == 0 {
		spec.TimestampS = 1735689600
	}
	signedCtx := map[string]any{
		"contextAddress":      signedAddress,
		"contextMessage":      "Proof of Persona Verification",
		"extractedParameters": spec.Parameters,
		"providerHash":        "0x" + strings.Repeat("ab", 32),
	}
	if spec.Unbound {
		delete(signedCtx, "contextAddress")
	}
	ctxBytes, err := json.Marshal(signedCtx)
	require.NoError(t, err)

	params := `{"method":"GET","url":"https://api.example.com/profile"}`
	identifier, err := proof.ClaimIdentifier(spec.ProviderID, params, string(ctxBytes))
	require.NoError(t, err)

	claim := map[string]any{
		"provider":   spec.ProviderID,
		"parameters": params,
		"owner":      "0x00000000000000000000000000000000000000aa",
		"timestampS": spec.TimestampS,
		"context":    string(ctxBytes),
		"identifier": identifier,
		"epoch":      1,
	}
	payload := proof.SignedClaimPayload(proof.ClaimData{
		Identifier: identifier,
		Owner:      "0x00000000000000000000000000000000000000aa",
		TimestampS: spec.TimestampS,
		Epoch:      1,
	})

	sigs := make([]string, 0, len(witnesses))
	ws := make([]map[string]string, 0, len(witnesses))
	for _, w := range witnesses {
		sig, err := crypto.Sign(accounts.TextHash(payload), w.key)
		require.NoError(t, err)
		sig[crypto.RecoveryIDOffset] += 27
		sigs = append(sigs, hexutil.Encode(sig))
		ws = append(ws, map[string]string{"id": w.Address, "url": "wss://witness.example/ws"})
	}

	body := map[string]any{
		"providerId": spec.ProviderID,
		"context": map[string]string{
			"contextAddress": spec.ContextAddress,
			"contextMessage": "Proof of Persona Verification",
		},
		"identifier": identifier,
		"claimData":  claim,
		"signatures": sigs,
		"witnesses":  ws,
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	var p proof.Proof
	require.NoError(t, json.Unmarshal(raw, &p))
	return &p
}

// JSON returns the wire form of p.
func JSON(t testing.TB, p *proof.Proof) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}
