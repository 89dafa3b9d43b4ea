package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// fields decodes one level of a protobuf message into field number -> raw
// values (bytes for length-delimited, varint otherwise).
func fields(t *testing.T, b []byte) map[protowire.Number][]any {
	t.Helper()
	out := map[protowire.Number][]any{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, m, 0)
			out[num] = append(out[num], v)
			b = b[m:]
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, m, 0)
			out[num] = append(out[num], v)
			b = b[m:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
	return out
}

func sampleTx() ExecuteTx {
	return ExecuteTx{
		Sender:        "xion1sender",
		Contract:      "xion1contract",
		Msg:           []byte(`{"write":{}}`),
		PubKey:        make([]byte, 33),
		Sequence:      7,
		AccountNumber: 42,
		ChainID:       "xion-testnet-2",
		GasLimit:      400000,
		Fee:           Coin{Denom: "uxion", Amount: "400"},
	}
}

func TestExecuteTx_BodyBytes(t *testing.T) {
	body := fields(t, sampleTx().BodyBytes())
	require.Len(t, body[1], 1)

	anyMsg := fields(t, body[1][0].([]byte))
	assert.Equal(t, typeMsgExecuteContract, string(anyMsg[1][0].([]byte)))

	msg := fields(t, anyMsg[2][0].([]byte))
	assert.Equal(t, "xion1sender", string(msg[1][0].([]byte)))
	assert.Equal(t, "xion1contract", string(msg[2][0].([]byte)))
	assert.Equal(t, `{"write":{}}`, string(msg[3][0].([]byte)))
	assert.Empty(t, body[2], "empty memo is omitted")
}

func TestExecuteTx_AuthInfoBytes(t *testing.T) {
	auth := fields(t, sampleTx().AuthInfoBytes())

	signer := fields(t, auth[1][0].([]byte))
	pubAny := fields(t, signer[1][0].([]byte))
	assert.Equal(t, typeSecp256k1PubKey, string(pubAny[1][0].([]byte)))
	modeInfo := fields(t, signer[2][0].([]byte))
	single := fields(t, modeInfo[1][0].([]byte))
	assert.Equal(t, uint64(signModeDirect), single[1][0])
	assert.Equal(t, uint64(7), signer[3][0])

	fee := fields(t, auth[2][0].([]byte))
	coin := fields(t, fee[1][0].([]byte))
	assert.Equal(t, "uxion", string(coin[1][0].([]byte)))
	assert.Equal(t, "400", string(coin[2][0].([]byte)))
	assert.Equal(t, uint64(400000), fee[2][0])
}

func TestSignDocAndTxRaw(t *testing.T) {
	doc := fields(t, SignDoc([]byte{1}, []byte{2}, "xion-testnet-2", 42))
	assert.Equal(t, []byte{1}, doc[1][0])
	assert.Equal(t, []byte{2}, doc[2][0])
	assert.Equal(t, "xion-testnet-2", string(doc[3][0].([]byte)))
	assert.Equal(t, uint64(42), doc[4][0])

	raw := fields(t, TxRaw([]byte{1}, []byte{2}, []byte{3}, []byte{4}))
	assert.Len(t, raw[3], 2)
}

func TestExecuteTx_Sign(t *testing.T) {
	w, err := NewWalletFromMnemonic(testMnemonic, "xion")
	require.NoError(t, err)
	tx := sampleTx()
	tx.PubKey = w.PubKey()

	raw, err := tx.Sign(w)
	require.NoError(t, err)
	decoded := fields(t, raw)
	require.Len(t, decoded[3], 1)
	assert.Len(t, decoded[3][0], 64)
}

func TestFeeFor(t *testing.T) {
	cases := []struct {
		gas   uint64
		price string
		want  Coin
	}{
		{400000, "0.001uxion", Coin{Denom: "uxion", Amount: "400"}},
		{200001, "0.001uxion", Coin{Denom: "uxion", Amount: "201"}},
		{100, "2uxion", Coin{Denom: "uxion", Amount: "200"}},
		{0, "0.001uxion", Coin{Denom: "uxion", Amount: "0"}},
	}
	for _, tc := range cases {
		got, err := FeeFor(tc.gas, tc.price)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := FeeFor(1, "uxion")
	assert.Error(t, err)
	_, err = FeeFor(1, "0.1")
	assert.Error(t, err)
}
