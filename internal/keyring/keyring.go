package keyring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mochifi/internal/domain"
)

// Client generates and derives account keys through the keyring sidecar that
// also signs transactions for the LCD node. The mnemonic never leaves the
// operator's machines; this process only stores it in the sealed local store.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type keyResponse struct {
	Mnemonic string `json:"mnemonic"`
	Address  string `json:"address"`
}

func (c *Client) Generate() (domain.Key, error) {
	return c.post("/keys", nil)
}

func (c *Client) Derive(mnemonic string) (domain.Key, error) {
	return c.post("/keys/derive", map[string]string{"mnemonic": mnemonic})
}

func (c *Client) post(path string, body any) (domain.Key, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return domain.Key{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return domain.Key{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Key{}, fmt.Errorf("keyring request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Key{}, fmt.Errorf("keyring returned %s", resp.Status)
	}
	var out keyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Key{}, fmt.Errorf("decode keyring response: %w", err)
	}
	return domain.Key{Mnemonic: out.Mnemonic, Address: out.Address}, nil
}
