// Package request prepares Reclaim proof requests for the mobile app and
// issues the session tokens that bind a callback to the request it answers.
package request

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
)

// ContextMessage is attached to every generated request and echoed back in
// the proof's context.
const ContextMessage = "Proof of Persona Verification"

const sdkVersion = "go-persona-1"

// Config holds the application credentials registered with Reclaim.
type Config struct {
	AppID        string
	AppSecret    string // hex secp256k1 key
	ShareBaseURL string
}

// Generator builds signed Reclaim request URLs.
type Generator struct {
	appID    string
	key      *ecdsa.PrivateKey
	shareURL string
	sessions *SessionIssuer
	now      func() time.Time
}

type GeneratorOption func(*Generator)

// WithGeneratorClock overrides time.Now for tests.
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator validates the credentials. The app ID must be the address of
// the secret key; Reclaim rejects requests signed by any other key.
func NewGenerator(cfg Config, sessions *SessionIssuer, opts ...GeneratorOption) (*Generator, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("reclaim app id and secret are required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.AppSecret), "0x"))
	if err != nil {
		return nil, fmt.Errorf("reclaim app secret: %w", err)
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey).Hex(); !strings.EqualFold(addr, cfg.AppID) {
		return nil, fmt.Errorf("reclaim app id %s does not match app secret address %s", cfg.AppID, addr)
	}
	share := cfg.ShareBaseURL
	if share == "" {
		share = "https://share.reclaimprotocol.org/verifier/"
	}
	g := &Generator{appID: cfg.AppID, key: key, shareURL: share, sessions: sessions, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Request is what the mobile app needs to start a verification.
type Request struct {
	ReclaimURL string `json:"reclaimUrl"`
	SessionID  string `json:"sessionId"`
}

// template mirrors the request object the Reclaim verifier app decodes.
type template struct {
	SessionID         string            `json:"sessionId"`
	ProviderID        string            `json:"providerId"`
	ApplicationID     string            `json:"applicationId"`
	Signature         string            `json:"signature"`
	Timestamp         string            `json:"timestamp"`
	CallbackURL       string            `json:"callbackUrl"`
	Context           string            `json:"context"`
	Parameters        map[string]string `json:"parameters"`
	RedirectURL       string            `json:"redirectUrl"`
	AcceptAIProviders bool              `json:"acceptAiProviders"`
	SDKVersion        string            `json:"sdkVersion"`
	JSONProofResponse bool              `json:"jsonProofResponse"`
}

// Generate builds the request URL for providerID bound to userAddress.
// callbackBase is the public origin that serves /api/receive-proof.
func (g *Generator) Generate(providerID, userAddress, callbackBase string) (*Request, error) {
	providerID = strings.TrimSpace(providerID)
	userAddress = strings.TrimSpace(userAddress)
	if providerID == "" || userAddress == "" {
		return nil, errors.New("providerId and userAddress are required")
	}

	timestamp := strconv.FormatInt(g.now().UnixMilli(), 10)
	signature, err := g.sign(providerID, timestamp)
	if err != nil {
		return nil, err
	}

	callback, err := url.Parse(strings.TrimRight(callbackBase, "/") + "/api/receive-proof")
	if err != nil {
		return nil, fmt.Errorf("callback url: %w", err)
	}

	sessionID := ""
	if g.sessions != nil {
		token, id, err := g.sessions.Issue(providerID, userAddress)
		if err != nil {
			return nil, err
		}
		sessionID = id
		q := callback.Query()
		q.Set("session", token)
		callback.RawQuery = q.Encode()
	}

	ctxJSON, err := marshalCanonical(map[string]string{
		"contextAddress": userAddress,
		"contextMessage": ContextMessage,
	})
	if err != nil {
		return nil, err
	}

	body, err := marshalCanonical(template{
		SessionID:     sessionID,
		ProviderID:    providerID,
		ApplicationID: g.appID,
		Signature:     signature,
		Timestamp:     timestamp,
		CallbackURL:   callback.String(),
		Context:       string(ctxJSON),
		Parameters:    map[string]string{},
		SDKVersion:    sdkVersion,
	})
	if err != nil {
		return nil, err
	}

	return &Request{
		ReclaimURL: g.shareURL + "?template=" + url.QueryEscape(string(body)),
		SessionID:  sessionID,
	}, nil
}

// sign produces the application signature Reclaim checks: an EIP-191
// signature over keccak256 of the canonical {providerId, timestamp} object.
func (g *Generator) sign(providerID, timestamp string) (string, error) {
	digest, err := AppSignatureMessage(providerID, timestamp)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(accounts.TextHash(digest), g.key)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// AppSignatureMessage returns the bytes the app signature commits to.
func AppSignatureMessage(providerID, timestamp string) ([]byte, error) {
	canonical, err := marshalCanonical(map[string]string{
		"providerId": providerID,
		"timestamp":  timestamp,
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(canonical), nil
}

// marshalCanonical encodes v in RFC 8785 form.
func marshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize request: %w", err)
	}
	return canonical, nil
}
