package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a chain LCD node. Message signing happens in the keyring
// sidecar the node URL points at; this client prepares the operation JSON,
// posts it, and decodes the verdict.
type Client struct {
	baseURL string
	chainID string
	http    *http.Client
}

func NewClient(baseURL, chainID string) *Client {
	return &Client{
		baseURL: baseURL,
		chainID: chainID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type broadcastRequest struct {
	ChainID  string `json:"chain_id"`
	Sender   string `json:"sender"`
	Contract string `json:"contract"`
	Msg      any    `json:"execute_msg"`
	Gas      uint64 `json:"gas"`
	Fee      []Coin `json:"fee"`
	Mode     string `json:"mode"`
}

func (c *Client) Broadcast(ctx context.Context, tx Tx) (TxResult, error) {
	req := broadcastRequest{
		ChainID:  c.chainID,
		Sender:   tx.Sender,
		Contract: tx.Contract,
		Msg:      map[OpKind]any{tx.Kind: tx.Msg},
		Gas:      tx.Fee.Gas,
		Fee:      tx.Fee.Amount,
		Mode:     "block",
	}
	var res TxResult
	if err := c.post(ctx, "/txs", req, &res); err != nil {
		return TxResult{}, err
	}
	return res, nil
}

type instantiateRequest struct {
	ChainID string `json:"chain_id"`
	Sender  string `json:"sender"`
	CodeID  uint64 `json:"code_id"`
	InitMsg any    `json:"init_msg"`
	Gas     uint64 `json:"gas"`
	Fee     []Coin `json:"fee"`
	Mode    string `json:"mode"`
}

func (c *Client) Instantiate(ctx context.Context, sender string, codeID uint64, fee Fee) (TxResult, error) {
	req := instantiateRequest{
		ChainID: c.chainID,
		Sender:  sender,
		CodeID:  codeID,
		InitMsg: struct{}{},
		Gas:     fee.Gas,
		Fee:     fee.Amount,
		Mode:    "block",
	}
	var res TxResult
	if err := c.post(ctx, "/txs/instantiate", req, &res); err != nil {
		return TxResult{}, err
	}
	return res, nil
}

func (c *Client) SmartQuery(ctx context.Context, contract string, query any, out any) error {
	msg, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	path := fmt.Sprintf("/wasm/contracts/%s/store?query_msg=%s", contract, url.QueryEscape(string(msg)))
	var wrapped struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.get(ctx, path, &wrapped); err != nil {
		return err
	}
	if err := json.Unmarshal(wrapped.Result, out); err != nil {
		return fmt.Errorf("decode query result: %w", err)
	}
	return nil
}

func (c *Client) Balance(ctx context.Context, address string) ([]Coin, error) {
	var wrapped struct {
		Result []Coin `json:"result"`
	}
	if err := c.get(ctx, "/bank/balances/"+address, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ledger unavailable: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ledger response: %w", err)
	}
	return nil
}
