// Package custody adapts an external settlement service to the transfer
// capabilities the sale engine and ledger depend on. The service owns the
// actual asset movements; this client only requests them and reports the
// outcome.
package custody

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"novasale/crypto"
	"novasale/native/sale"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the custody service. It implements both sale.FundsCollector
// (purchase settlement) and sale.AssetTransferor (reward payouts).
type Client struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewClient constructs a custody client. When client is nil http.DefaultClient
// is used. The API key is optional and only attached when supplied.
func NewClient(client HTTPDoer, endpoint, apiKey string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		client:   client,
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   strings.TrimSpace(apiKey),
	}
}

type collectRequest struct {
	Asset          string `json:"asset"`
	From           string `json:"from"`
	Treasury       string `json:"treasury"`
	TreasuryAmount string `json:"treasuryAmount"`
	Custody        string `json:"custody"`
	CustodyAmount  string `json:"custodyAmount"`
}

type transferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Collect settles a purchase: the tendered funds leave the buyer in one call,
// split between the treasury and the custody account.
func (c *Client) Collect(asset string, from, treasury sale.Address, treasuryAmount *big.Int, custody sale.Address, custodyAmount *big.Int) error {
	payload := collectRequest{
		Asset:          asset,
		From:           bech32Addr(from),
		Treasury:       bech32Addr(treasury),
		TreasuryAmount: amountString(treasuryAmount),
		Custody:        bech32Addr(custody),
		CustodyAmount:  amountString(custodyAmount),
	}
	return c.post("/v1/collect", payload)
}

// Transfer pays out a claimed reward from the custody account.
func (c *Client) Transfer(asset string, to sale.Address, amount *big.Int) error {
	payload := transferRequest{
		Asset:  asset,
		To:     bech32Addr(to),
		Amount: amountString(amount),
	}
	return c.post("/v1/transfer", payload)
}

func (c *Client) post(path string, payload any) error {
	if c == nil || c.endpoint == "" {
		return fmt.Errorf("custody: client not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("custody: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func bech32Addr(addr sale.Address) string {
	return crypto.MustNewAddress(crypto.NovaPrefix, addr[:]).String()
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
