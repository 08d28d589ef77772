package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"novasale/crypto"
	"novasale/native/sale"
)

type nopCollector struct{}

func (nopCollector) Collect(asset string, from, treasury sale.Address, treasuryAmount *big.Int, custody sale.Address, custodyAmount *big.Int) error {
	return nil
}

func testAccount(t *testing.T) (sale.Address, string) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	encoded := key.PubKey().Address()
	var addr sale.Address
	copy(addr[:], encoded.Bytes())
	return addr, encoded.String()
}

func newTestServer(t *testing.T) (*httptest.Server, *sale.Engine) {
	t.Helper()
	t.Setenv("NOVASALE_RPC_TOKEN", "secret")

	params := &sale.Params{
		MinPurchase:   new(big.Int).Mul(big.NewInt(50), big.NewInt(1e18)),
		MaxAllocation: new(big.Int).Mul(big.NewInt(100000), big.NewInt(1e18)),
		AuthThreshold: new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)),
		PrimaryRate:   100,
	}
	ledger, err := sale.NewLedger(params)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	registry := sale.NewRegistry()
	if err := registry.Register(&sale.Currency{Symbol: "USDT", Decimals: 6, Fixed: true}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	engine := sale.NewEngine(ledger, registry)
	engine.SetCollector(nopCollector{})
	treasury, _ := testAccount(t)
	custody, _ := testAccount(t)
	engine.SetTreasury(treasury)
	engine.SetCustody(custody)
	engine.SetPriceMaxAge(time.Minute)

	server := httptest.NewServer(NewServer(engine, registry).Handler())
	t.Cleanup(server.Close)
	return server, engine
}

func call(t *testing.T, server *httptest.Server, token, method string, params interface{}) *RPCResponse {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func TestMutatingMethodsRequireToken(t *testing.T) {
	server, _ := newTestServer(t)
	_, user := testAccount(t)

	resp := call(t, server, "", "sale_purchase", purchaseParams{User: user, Asset: "USDT", Amount: "100000000"})
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("purchase without token = %+v", resp.Error)
	}
	resp = call(t, server, "wrong", "sale_activate", nil)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("activate with bad token = %+v", resp.Error)
	}
}

func TestPurchaseFlow(t *testing.T) {
	server, _ := newTestServer(t)
	_, user := testAccount(t)

	if resp := call(t, server, "secret", "sale_activate", nil); resp.Error != nil {
		t.Fatalf("sale_activate: %+v", resp.Error)
	}
	resp := call(t, server, "secret", "sale_configureRound", configureRoundParams{
		Price:  "45000000000000000",
		Supply: "1000000000000000000000000",
	})
	if resp.Error != nil {
		t.Fatalf("sale_configureRound: %+v", resp.Error)
	}
	if resp := call(t, server, "secret", "sale_startRound", roundIndexParams{Index: 0}); resp.Error != nil {
		t.Fatalf("sale_startRound: %+v", resp.Error)
	}

	resp = call(t, server, "secret", "sale_purchase", purchaseParams{User: user, Asset: "USDT", Amount: "100000000"})
	if resp.Error != nil {
		t.Fatalf("sale_purchase: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var receipt purchaseResult
	if err := json.Unmarshal(raw, &receipt); err != nil {
		t.Fatalf("unmarshal receipt: %v", err)
	}
	if receipt.UsdAmount != "100000000000000000000" {
		t.Fatalf("usd amount = %s", receipt.UsdAmount)
	}
	if receipt.AssetUnits != "2222222222222222222222" {
		t.Fatalf("asset units = %s", receipt.AssetUnits)
	}
	if receipt.Points != "600" {
		t.Fatalf("points = %s", receipt.Points)
	}

	resp = call(t, server, "", "sale_totalSold", nil)
	if resp.Error != nil {
		t.Fatalf("sale_totalSold: %+v", resp.Error)
	}
	raw, _ = json.Marshal(resp.Result)
	var total amountResult
	if err := json.Unmarshal(raw, &total); err != nil {
		t.Fatalf("unmarshal total: %v", err)
	}
	if total.Amount != "2222222222222222222222" {
		t.Fatalf("total sold = %s", total.Amount)
	}

	resp = call(t, server, "", "sale_balanceOf", balanceParams{Address: user, Round: 0})
	if resp.Error != nil {
		t.Fatalf("sale_balanceOf: %+v", resp.Error)
	}
	raw, _ = json.Marshal(resp.Result)
	var balance amountResult
	if err := json.Unmarshal(raw, &balance); err != nil {
		t.Fatalf("unmarshal balance: %v", err)
	}
	if balance.Amount != "2222222222222222222222" {
		t.Fatalf("balance = %s", balance.Amount)
	}
}

func TestPurchaseRejectionSurfacesError(t *testing.T) {
	server, _ := newTestServer(t)
	_, user := testAccount(t)

	if resp := call(t, server, "secret", "sale_activate", nil); resp.Error != nil {
		t.Fatalf("sale_activate: %+v", resp.Error)
	}
	// No round running yet.
	resp := call(t, server, "secret", "sale_purchase", purchaseParams{User: user, Asset: "USDT", Amount: "100000000"})
	if resp.Error == nil || resp.Error.Code != codeServerError {
		t.Fatalf("purchase without round = %+v", resp.Error)
	}
}

func TestInvalidRequests(t *testing.T) {
	server, _ := newTestServer(t)

	resp := call(t, server, "", "sale_unknown", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method = %+v", resp.Error)
	}
	resp = call(t, server, "", "sale_balanceOf", balanceParams{Address: "junk"})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("bad address = %+v", resp.Error)
	}
	resp = call(t, server, "", "sale_balanceOf", nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("missing params = %+v", resp.Error)
	}

	httpResp, err := http.Post(server.URL, "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer httpResp.Body.Close()
	decoded := &RPCResponse{}
	if err := json.NewDecoder(httpResp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != codeParseError {
		t.Fatalf("malformed body = %+v", decoded.Error)
	}
}

type recordingTransferor struct {
	calls []string
}

func (r *recordingTransferor) Transfer(asset string, to sale.Address, amount *big.Int) error {
	r.calls = append(r.calls, asset)
	return nil
}

func TestClaimReportsLedgerPayouts(t *testing.T) {
	server, engine := newTestServer(t)
	transferor := &recordingTransferor{}
	engine.Ledger().SetTransferor(transferor)
	_, user := testAccount(t)
	_, referrer := testAccount(t)

	if resp := call(t, server, "secret", "sale_activate", nil); resp.Error != nil {
		t.Fatalf("sale_activate: %+v", resp.Error)
	}
	resp := call(t, server, "secret", "sale_configureRound", configureRoundParams{
		Price:  "45000000000000000",
		Supply: "1000000000000000000000000",
	})
	if resp.Error != nil {
		t.Fatalf("sale_configureRound: %+v", resp.Error)
	}
	if resp := call(t, server, "secret", "sale_startRound", roundIndexParams{Index: 0}); resp.Error != nil {
		t.Fatalf("sale_startRound: %+v", resp.Error)
	}
	resp = call(t, server, "secret", "sale_purchase", purchaseParams{
		User: user, Referrer: referrer, Asset: "USDT", Amount: "100000000",
	})
	if resp.Error != nil {
		t.Fatalf("sale_purchase: %+v", resp.Error)
	}

	// The reported payouts must be the set the ledger actually paid:
	// 10% of 100 USDT, the zero-balance ETH bucket omitted.
	resp = call(t, server, "secret", "sale_claim", claimParams{Caller: referrer, Assets: []string{"USDT", "ETH"}})
	if resp.Error != nil {
		t.Fatalf("sale_claim: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var result struct {
		Payouts map[string]string `json:"payouts"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal claim result: %v", err)
	}
	if len(result.Payouts) != 1 || result.Payouts["USDT"] != "10000000" {
		t.Fatalf("payouts = %+v", result.Payouts)
	}
	if len(transferor.calls) != 1 || transferor.calls[0] != "USDT" {
		t.Fatalf("transfers = %+v", transferor.calls)
	}
}
