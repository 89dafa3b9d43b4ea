package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"persona/pkg/platform/sentinel"
)

// ClientConfig configures the LCD client.
type ClientConfig struct {
	LCDEndpoint string
	ChainID     string
	GasLimit    uint64
	GasPrice    string
	Timeout     time.Duration
}

// TxResult is the chain's acknowledgement of a broadcast transaction.
// Height is zero for sync broadcasts, which return before inclusion.
type TxResult struct {
	TxHash string
	Height int64
}

// BroadcastError reports a transaction the node refused (non-zero code).
type BroadcastError struct {
	Code      uint32
	Codespace string
	Log       string
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast rejected: codespace=%s code=%d: %s", e.Codespace, e.Code, e.Log)
}

// QueryError reports a non-2xx answer from the LCD gateway.
type QueryError struct {
	Status  int
	Code    int
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("lcd query failed: status=%d code=%d: %s", e.Status, e.Code, e.Message)
}

// Client queries contracts and broadcasts transactions signed by one wallet.
// Broadcasts are serialized so the account sequence stays consistent.
type Client struct {
	http    *http.Client
	base    string
	chainID string
	gas     uint64
	fee     Coin
	wallet  *Wallet
	logger  *slog.Logger

	mu      sync.Mutex
	account *accountState
}

type accountState struct {
	number   uint64
	sequence uint64
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient builds a client. wallet may be nil for a read-only client.
func NewClient(cfg ClientConfig, wallet *Wallet, opts ...Option) (*Client, error) {
	if cfg.LCDEndpoint == "" {
		return nil, errors.New("lcd endpoint is required")
	}
	if _, err := url.Parse(cfg.LCDEndpoint); err != nil {
		return nil, fmt.Errorf("parse lcd endpoint: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		base:    strings.TrimRight(cfg.LCDEndpoint, "/"),
		chainID: cfg.ChainID,
		gas:     cfg.GasLimit,
		wallet:  wallet,
		logger:  slog.Default(),
	}
	if wallet != nil {
		if cfg.ChainID == "" || cfg.GasLimit == 0 {
			return nil, errors.New("chain id and gas limit are required for signing")
		}
		fee, err := FeeFor(cfg.GasLimit, cfg.GasPrice)
		if err != nil {
			return nil, err
		}
		c.fee = fee
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// QuerySmart runs a CosmWasm smart query and decodes the contract's response
// into out.
func (c *Client) QuerySmart(ctx context.Context, contract string, query any, out any) error {
	q, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}
	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s",
		url.PathEscape(contract), base64.URLEncoding.EncodeToString(q))

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(resp.Data) == 0 {
		return fmt.Errorf("%w: empty query response", sentinel.ErrUnavailable)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode query response: %w", err)
	}
	return nil
}

// Execute signs and broadcasts a MsgExecuteContract in sync mode. It makes
// one attempt; any failure drops the cached sequence so the next call
// refetches it.
func (c *Client) Execute(ctx context.Context, contract string, msg any) (*TxResult, error) {
	if c.wallet == nil {
		return nil, errors.New("client has no signing wallet")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal execute msg: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account == nil {
		acct, err := c.fetchAccount(ctx)
		if err != nil {
			return nil, err
		}
		c.account = acct
	}

	tx := ExecuteTx{
		Sender:        c.wallet.Address(),
		Contract:      contract,
		Msg:           payload,
		PubKey:        c.wallet.PubKey(),
		Sequence:      c.account.sequence,
		AccountNumber: c.account.number,
		ChainID:       c.chainID,
		GasLimit:      c.gas,
		Fee:           c.fee,
	}
	raw, err := tx.Sign(c.wallet)
	if err != nil {
		return nil, err
	}

	result, err := c.broadcast(ctx, raw)
	if err != nil {
		c.account = nil
		return nil, err
	}
	c.account.sequence++
	c.logger.DebugContext(ctx, "transaction broadcast",
		"tx_hash", result.TxHash,
		"sequence", tx.Sequence,
	)
	return result, nil
}

func (c *Client) fetchAccount(ctx context.Context) (*accountState, error) {
	var resp struct {
		Account struct {
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
			BaseAccount   *struct {
				AccountNumber string `json:"account_number"`
				Sequence      string `json:"sequence"`
			} `json:"base_account"`
		} `json:"account"`
	}
	path := "/cosmos/auth/v1beta1/accounts/" + url.PathEscape(c.wallet.Address())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}

	number, sequence := resp.Account.AccountNumber, resp.Account.Sequence
	if number == "" && resp.Account.BaseAccount != nil {
		number, sequence = resp.Account.BaseAccount.AccountNumber, resp.Account.BaseAccount.Sequence
	}
	n, err := parseUint(number)
	if err != nil {
		return nil, fmt.Errorf("account number: %w", err)
	}
	s, err := parseUint(sequence)
	if err != nil {
		return nil, fmt.Errorf("account sequence: %w", err)
	}
	return &accountState{number: n, sequence: s}, nil
}

func (c *Client) broadcast(ctx context.Context, txBytes []byte) (*TxResult, error) {
	req := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	}
	var resp struct {
		TxResponse struct {
			Height    string `json:"height"`
			TxHash    string `json:"txhash"`
			Code      uint32 `json:"code"`
			Codespace string `json:"codespace"`
			RawLog    string `json:"raw_log"`
		} `json:"tx_response"`
	}
	if err := c.do(ctx, http.MethodPost, "/cosmos/tx/v1beta1/txs", req, &resp); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	tr := resp.TxResponse
	if tr.Code != 0 {
		return nil, &BroadcastError{Code: tr.Code, Codespace: tr.Codespace, Log: tr.RawLog}
	}
	if tr.TxHash == "" {
		return nil, errors.New("broadcast: empty tx hash")
	}
	height, _ := strconv.ParseInt(tr.Height, 10, 64)
	return &TxResult{TxHash: tr.TxHash, Height: height}, nil
}

// do performs one LCD call. Transport failures and 5xx answers without a
// gRPC status wrap sentinel.ErrUnavailable; other non-2xx answers become
// *QueryError.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", sentinel.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var status struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &status) != nil || (status.Code == 0 && status.Message == "") {
			if resp.StatusCode >= 500 {
				return fmt.Errorf("%w: lcd status %d", sentinel.ErrUnavailable, resp.StatusCode)
			}
			status.Message = strings.TrimSpace(string(data))
		}
		return &QueryError{Status: resp.StatusCode, Code: status.Code, Message: status.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
