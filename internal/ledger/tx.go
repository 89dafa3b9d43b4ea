package ledger

import (
	"fmt"
	"math/big"
	"regexp"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	typeMsgExecuteContract = "/cosmwasm.wasm.v1.MsgExecuteContract"
	typeSecp256k1PubKey    = "/cosmos.crypto.secp256k1.PubKey"
	signModeDirect         = 1
)

// Coin is an amount of one denom; Amount is a base-10 integer string.
type Coin struct {
	Denom  string
	Amount string
}

var gasPricePattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)([a-zA-Z][a-zA-Z0-9/:._-]{2,127})$`)

// FeeFor computes ceil(gasLimit * price) for a price like "0.001uxion".
func FeeFor(gasLimit uint64, gasPrice string) (Coin, error) {
	m := gasPricePattern.FindStringSubmatch(gasPrice)
	if m == nil {
		return Coin{}, fmt.Errorf("invalid gas price %q", gasPrice)
	}
	price, ok := new(big.Rat).SetString(m[1])
	if !ok {
		return Coin{}, fmt.Errorf("invalid gas price %q", gasPrice)
	}
	total := new(big.Rat).Mul(price, new(big.Rat).SetInt(new(big.Int).SetUint64(gasLimit)))
	q, r := new(big.Int).QuoRem(total.Num(), total.Denom(), new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return Coin{Denom: m[2], Amount: q.String()}, nil
}

// ExecuteTx is an unsigned single-message MsgExecuteContract transaction.
type ExecuteTx struct {
	Sender        string
	Contract      string
	Msg           []byte // JSON execute message
	Memo          string
	PubKey        []byte // compressed secp256k1
	Sequence      uint64
	AccountNumber uint64
	ChainID       string
	GasLimit      uint64
	Fee           Coin
}

// BodyBytes encodes cosmos.tx.v1beta1.TxBody.
func (t ExecuteTx) BodyBytes() []byte {
	var msg []byte
	msg = appendString(msg, 1, t.Sender)
	msg = appendString(msg, 2, t.Contract)
	msg = appendBytes(msg, 3, t.Msg)

	var body []byte
	body = appendBytes(body, 1, encodeAny(typeMsgExecuteContract, msg))
	body = appendString(body, 2, t.Memo)
	return body
}

// AuthInfoBytes encodes cosmos.tx.v1beta1.AuthInfo with one direct-mode signer.
func (t ExecuteTx) AuthInfoBytes() []byte {
	var pub []byte
	pub = appendBytes(pub, 1, t.PubKey)

	var single []byte
	single = appendVarint(single, 1, signModeDirect)
	var modeInfo []byte
	modeInfo = appendBytes(modeInfo, 1, single)

	var signer []byte
	signer = appendBytes(signer, 1, encodeAny(typeSecp256k1PubKey, pub))
	signer = appendBytes(signer, 2, modeInfo)
	signer = appendVarint(signer, 3, t.Sequence)

	var coin []byte
	coin = appendString(coin, 1, t.Fee.Denom)
	coin = appendString(coin, 2, t.Fee.Amount)
	var fee []byte
	if t.Fee.Denom != "" {
		fee = appendBytes(fee, 1, coin)
	}
	fee = appendVarint(fee, 2, t.GasLimit)

	var auth []byte
	auth = appendBytes(auth, 1, signer)
	auth = appendBytes(auth, 2, fee)
	return auth
}

// SignDoc encodes cosmos.tx.v1beta1.SignDoc for SIGN_MODE_DIRECT.
func SignDoc(bodyBytes, authInfoBytes []byte, chainID string, accountNumber uint64) []byte {
	var doc []byte
	doc = appendBytes(doc, 1, bodyBytes)
	doc = appendBytes(doc, 2, authInfoBytes)
	doc = appendString(doc, 3, chainID)
	doc = appendVarint(doc, 4, accountNumber)
	return doc
}

// TxRaw encodes cosmos.tx.v1beta1.TxRaw.
func TxRaw(bodyBytes, authInfoBytes []byte, signatures ...[]byte) []byte {
	var raw []byte
	raw = appendBytes(raw, 1, bodyBytes)
	raw = appendBytes(raw, 2, authInfoBytes)
	for _, sig := range signatures {
		raw = protowire.AppendTag(raw, 3, protowire.BytesType)
		raw = protowire.AppendBytes(raw, sig)
	}
	return raw
}

// Sign produces the broadcastable TxRaw bytes.
func (t ExecuteTx) Sign(w *Wallet) ([]byte, error) {
	body := t.BodyBytes()
	auth := t.AuthInfoBytes()
	sig, err := w.Sign(SignDoc(body, auth, t.ChainID, t.AccountNumber))
	if err != nil {
		return nil, err
	}
	return TxRaw(body, auth, sig), nil
}

func encodeAny(typeURL string, value []byte) []byte {
	var out []byte
	out = appendString(out, 1, typeURL)
	out = appendBytes(out, 2, value)
	return out
}

// proto3 omits default scalar values; the helpers follow that so encodings
// match what the chain re-serializes when checking signatures.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
