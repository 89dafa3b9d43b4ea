// Package ledger talks to the XION chain: it derives the signing account from
// a mnemonic, encodes and signs CosmWasm execute transactions, and queries
// contracts through the LCD REST gateway.
package ledger

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos addresses are defined over RIPEMD-160
)

const hardened = hdkeychain.HardenedKeyStart

// CosmosHDPath is m/44'/118'/0'/0/0, the default account of a Cosmos wallet.
var CosmosHDPath = []uint32{44 | hardened, 118 | hardened, 0 | hardened, 0, 0}

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidAddress  = errors.New("invalid bech32 address")
)

// Wallet is a single secp256k1 signing account.
type Wallet struct {
	key     *ecdsa.PrivateKey
	pubKey  []byte
	address string
}

// NewWalletFromMnemonic derives the account at CosmosHDPath and renders its
// address with the given bech32 prefix.
func NewWalletFromMnemonic(mnemonic, prefix string) (*Wallet, error) {
	seed, err := MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, err
	}
	key, err := DerivePrivateKey(seed, CosmosHDPath)
	if err != nil {
		return nil, err
	}
	return NewWallet(key, prefix)
}

// NewWallet wraps a raw private key.
func NewWallet(key *ecdsa.PrivateKey, prefix string) (*Wallet, error) {
	pub := crypto.CompressPubkey(&key.PublicKey)
	addr, err := AddressFromPubKey(pub, prefix)
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key, pubKey: pub, address: addr}, nil
}

func (w *Wallet) Address() string { return w.address }

// PubKey returns the 33-byte compressed public key.
func (w *Wallet) PubKey() []byte { return append([]byte(nil), w.pubKey...) }

// Sign returns the 64-byte r||s signature over sha256(signBytes).
func (w *Wallet) Sign(signBytes []byte) ([]byte, error) {
	digest := sha256.Sum256(signBytes)
	sig, err := crypto.Sign(digest[:], w.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig[:64], nil
}

// MnemonicToSeed validates an English BIP-39 mnemonic, checksum included,
// and returns its seed. Runs of whitespace between words are collapsed.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	words := strings.Fields(mnemonic)
	seed, err := bip39.NewSeedWithErrorChecking(strings.Join(words, " "), passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// DerivePrivateKey walks a BIP-32 path from seed on secp256k1.
func DerivePrivateKey(seed []byte, path []uint32) (*ecdsa.PrivateKey, error) {
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, index := range path {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return crypto.ToECDSA(priv.Serialize())
}

// AddressFromPubKey is bech32(prefix, ripemd160(sha256(compressed pubkey))).
func AddressFromPubKey(pubKey []byte, prefix string) (string, error) {
	sha := sha256.Sum256(pubKey)
	h := ripemd160.New()
	h.Write(sha[:])
	conv, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert address bits: %w", err)
	}
	return bech32.Encode(prefix, conv)
}

// ValidateAddress checks that addr is a bech32 account or contract address
// with the given prefix.
func ValidateAddress(addr, prefix string) error {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != prefix {
		return fmt.Errorf("%w: prefix %q, want %q", ErrInvalidAddress, hrp, prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return fmt.Errorf("%w: %d-byte payload", ErrInvalidAddress, len(raw))
	}
	return nil
}

// AddressPolicy returns a validator for user keys bound to prefix addresses.
func AddressPolicy(prefix string) func(string) error {
	return func(addr string) error {
		return ValidateAddress(addr, prefix)
	}
}
