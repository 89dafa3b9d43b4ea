package proof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
)

var (
	ErrInvalidProof          = errors.New("invalid proof")
	ErrIdentifierMismatch    = fmt.Errorf("%w: claim identifier mismatch", ErrInvalidProof)
	ErrInsufficientSignature = fmt.Errorf("%w: not enough trusted witness signatures", ErrInvalidProof)
	ErrUntrustedSigner       = fmt.Errorf("%w: signature from untrusted witness", ErrInvalidProof)
	ErrContextMismatch       = fmt.Errorf("%w: context address differs from signed claim", ErrInvalidProof)
	ErrUnboundContext        = fmt.Errorf("%w: signed claim context has no address", ErrInvalidProof)
)

// ReclaimVerifier checks witness-signed claims: the identifier must hash the
// claim info, each signature must recover to a trusted witness, and the
// signed context must name an address the top-level context agrees with.
type ReclaimVerifier struct {
	witnesses     map[string]struct{}
	minSignatures int
}

// NewReclaimVerifier trusts the given witness addresses (0x-hex, any case).
func NewReclaimVerifier(witnesses []string, minSignatures int) (*ReclaimVerifier, error) {
	if len(witnesses) == 0 {
		return nil, errors.New("at least one witness is required")
	}
	if minSignatures < 1 {
		minSignatures = 1
	}
	set := make(map[string]struct{}, len(witnesses))
	for _, w := range witnesses {
		addr := strings.ToLower(strings.TrimSpace(w))
		if _, err := hexutil.Decode(addr); err != nil || len(addr) != 42 {
			return nil, fmt.Errorf("witness %q is not a 20-byte hex address", w)
		}
		set[addr] = struct{}{}
	}
	return &ReclaimVerifier{witnesses: set, minSignatures: minSignatures}, nil
}

func (v *ReclaimVerifier) Verify(ctx context.Context, p *Proof) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: empty proof", ErrInvalidProof)
	}
	claim := p.ClaimData
	if claim.Provider == "" || claim.Identifier == "" || claim.Owner == "" {
		return fmt.Errorf("%w: incomplete claim data", ErrInvalidProof)
	}

	identifier, err := ClaimIdentifier(claim.Provider, claim.Parameters, claim.Context.Raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if !strings.EqualFold(identifier, claim.Identifier) {
		return ErrIdentifierMismatch
	}
	if p.Identifier != "" && !strings.EqualFold(p.Identifier, claim.Identifier) {
		return ErrIdentifierMismatch
	}

	signers := make(map[string]struct{}, len(p.Signatures))
	payload := SignedClaimPayload(claim)
	for _, sig := range p.Signatures {
		addr, err := RecoverSigner(payload, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		if _, ok := v.witnesses[addr]; !ok {
			return ErrUntrustedSigner
		}
		signers[addr] = struct{}{}
	}
	if len(signers) < v.minSignatures {
		return ErrInsufficientSignature
	}

	signed := strings.TrimSpace(claim.Context.ContextAddress)
	if signed == "" {
		return ErrUnboundContext
	}
	if top := strings.TrimSpace(p.Context.ContextAddress); top != "" && top != signed {
		return ErrContextMismatch
	}
	return nil
}

// ClaimIdentifier is keccak256("<provider>\n<parameters>\n<canonical context>")
// as lowercase 0x-hex.
func ClaimIdentifier(provider, parameters, rawContext string) (string, error) {
	canonical := ""
	if strings.TrimSpace(rawContext) != "" {
		c, err := jcs.Transform([]byte(rawContext))
		if err != nil {
			return "", fmt.Errorf("canonicalize context: %w", err)
		}
		canonical = string(c)
	}
	sum := crypto.Keccak256([]byte(provider + "\n" + parameters + "\n" + canonical))
	return strings.ToLower(hexutil.Encode(sum)), nil
}

// SignedClaimPayload is the newline-joined string witnesses sign.
func SignedClaimPayload(c ClaimData) []byte {
	return []byte(strings.Join([]string{
		strings.ToLower(c.Identifier),
		strings.ToLower(c.Owner),
		strconv.FormatInt(c.TimestampS, 10),
		strconv.FormatInt(c.Epoch, 10),
	}, "\n"))
}

// RecoverSigner recovers the lowercase 0x address that produced an EIP-191
// personal signature over payload.
func RecoverSigner(payload []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	sig = bytes.Clone(sig)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(payload), sig)
	if err != nil {
		return "", fmt.Errorf("recover signer: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
