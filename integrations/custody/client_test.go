package custody

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"

	"novasale/native/sale"
)

type stubDoer struct {
	status   int
	body     string
	requests []*http.Request
	payloads []map[string]string
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	s.payloads = append(s.payloads, payload)
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func addr(b byte) sale.Address {
	var out sale.Address
	for i := range out {
		out[i] = b
	}
	return out
}

func TestCollect(t *testing.T) {
	doer := &stubDoer{}
	client := NewClient(doer, "http://custody.local/", "secret")

	err := client.Collect("USDT", addr(0x01), addr(0xAA), big.NewInt(85_000_000), addr(0xBB), big.NewInt(15_000_000))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	req := doer.requests[0]
	if req.URL.String() != "http://custody.local/v1/collect" {
		t.Fatalf("url = %s", req.URL)
	}
	if got := req.Header.Get("x-api-key"); got != "secret" {
		t.Fatalf("api key header = %q", got)
	}
	payload := doer.payloads[0]
	if payload["asset"] != "USDT" || payload["treasuryAmount"] != "85000000" || payload["custodyAmount"] != "15000000" {
		t.Fatalf("payload = %v", payload)
	}
	if !strings.HasPrefix(payload["from"], "nova1") || !strings.HasPrefix(payload["treasury"], "nova1") {
		t.Fatalf("addresses not bech32 encoded: %v", payload)
	}
}

func TestTransfer(t *testing.T) {
	doer := &stubDoer{}
	client := NewClient(doer, "http://custody.local", "")

	if err := client.Transfer("NOVA", addr(0x02), big.NewInt(111)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	req := doer.requests[0]
	if req.URL.String() != "http://custody.local/v1/transfer" {
		t.Fatalf("url = %s", req.URL)
	}
	if got := req.Header.Get("x-api-key"); got != "" {
		t.Fatalf("unexpected api key header %q", got)
	}
	payload := doer.payloads[0]
	if payload["asset"] != "NOVA" || payload["amount"] != "111" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestNon200IsError(t *testing.T) {
	doer := &stubDoer{status: http.StatusBadGateway, body: "settlement halted"}
	client := NewClient(doer, "http://custody.local", "")

	err := client.Transfer("USDT", addr(0x02), big.NewInt(1))
	if err == nil {
		t.Fatalf("Transfer accepted status 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "settlement halted") {
		t.Fatalf("error = %v", err)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient(nil, "", "")
	if err := client.Transfer("USDT", addr(0x02), big.NewInt(1)); err == nil {
		t.Fatalf("unconfigured client accepted request")
	}
}
