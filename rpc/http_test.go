package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stellavault/core"
	"stellavault/crypto"
	"stellavault/state"
	"stellavault/storage"
)

const testToken = "test-token"

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech(addr [20]byte) string {
	return crypto.NewAddress(crypto.VaultPrefix, addr[:]).String()
}

var (
	adminAddr     = testAddress(0x01)
	ownerAddr     = testAddress(0x02)
	authorityAddr = testAddress(0x03)
	strategyAddr  = testAddress(0x04)
)

func newTestServer(t *testing.T) (*httptest.Server, *core.Node) {
	t.Helper()
	node := core.NewNode(state.NewManager(storage.NewMemDB()), nil)
	if err := node.Bootstrap(adminAddr); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	srv := NewServer(node)
	srv.authToken = testToken
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, node
}

func call(t *testing.T, ts *httptest.Server, token, method string, params interface{}) (*RPCResponse, error) {
	t.Helper()
	var rawParams []json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		rawParams = []json.RawMessage{encoded}
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, err
	}
	return out, nil
}

func mustCall(t *testing.T, ts *httptest.Server, method string, params interface{}) interface{} {
	t.Helper()
	resp, err := call(t, ts, testToken, method, params)
	if err != nil {
		t.Fatalf("%s transport: %v", method, err)
	}
	if resp.Error != nil {
		t.Fatalf("%s failed: %+v", method, resp.Error)
	}
	return resp.Result
}

func TestVaultLifecycleOverRPC(t *testing.T) {
	ts, _ := newTestServer(t)

	mustCall(t, ts, "vault_create", map[string]string{
		"owner":     bech(ownerAddr),
		"authority": bech(authorityAddr),
		"baseAsset": "usdc",
	})
	mustCall(t, ts, "vault_addAsset", map[string]string{"owner": bech(ownerAddr), "asset": "ETH"})
	mustCall(t, ts, "svt_mint", map[string]string{
		"caller": bech(adminAddr),
		"to":     bech(ownerAddr),
		"asset":  "USDC",
		"amount": "5000",
	})
	mustCall(t, ts, "vault_deposit", map[string]string{
		"owner":  bech(ownerAddr),
		"asset":  "USDC",
		"amount": "3000",
	})

	result := mustCall(t, ts, "vault_get", map[string]string{"owner": bech(ownerAddr)})
	raw, _ := json.Marshal(result)
	var v vaultJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode vault: %v", err)
	}
	if v.BaseAsset != "USDC" {
		t.Fatalf("base asset not normalised: %q", v.BaseAsset)
	}
	if len(v.AllowedAssets) != 1 || v.AllowedAssets[0] != "ETH" {
		t.Fatalf("unexpected whitelist: %v", v.AllowedAssets)
	}

	holdings := mustCall(t, ts, "vault_holdings", map[string]string{"owner": bech(ownerAddr)})
	raw, _ = json.Marshal(holdings)
	var parsed []holdingJSON
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("decode holdings: %v", err)
	}
	found := false
	for _, h := range parsed {
		if h.Asset == "USDC" && h.Balance == "3000" {
			found = true
		}
	}
	if !found {
		t.Fatalf("custody balance missing from holdings: %+v", parsed)
	}

	mustCall(t, ts, "vault_withdraw", map[string]string{
		"owner":  bech(ownerAddr),
		"asset":  "USDC",
		"amount": "3000",
	})
}

func TestAllocationAndMockSwapOverRPC(t *testing.T) {
	ts, _ := newTestServer(t)

	mustCall(t, ts, "vault_create", map[string]string{
		"owner":     bech(ownerAddr),
		"authority": bech(authorityAddr),
		"baseAsset": "USDC",
	})
	mustCall(t, ts, "svt_mint", map[string]string{
		"caller": bech(adminAddr),
		"to":     bech(ownerAddr),
		"asset":  "USDC",
		"amount": "5000",
	})
	mustCall(t, ts, "vault_deposit", map[string]string{
		"owner":  bech(ownerAddr),
		"asset":  "USDC",
		"amount": "5000",
	})
	mustCall(t, ts, "alloc_create", map[string]string{
		"owner":    bech(ownerAddr),
		"strategy": bech(strategyAddr),
		"amount":   "2000",
	})
	mustCall(t, ts, "alloc_markInitialized", map[string]string{
		"caller":   bech(ownerAddr),
		"owner":    bech(ownerAddr),
		"strategy": bech(strategyAddr),
	})
	// Fee account: the admin needs a USDC account before a swap can pay in.
	mustCall(t, ts, "svt_mint", map[string]string{
		"caller": bech(adminAddr),
		"to":     bech(adminAddr),
		"asset":  "USDC",
		"amount": "1",
	})

	allocCustody := allocationCustody(t, ts)
	result := mustCall(t, ts, "trade_swap", map[string]interface{}{
		"caller":       bech(authorityAddr),
		"owner":        bech(ownerAddr),
		"strategy":     bech(strategyAddr),
		"amountIn":     "1000",
		"minAmountOut": "0",
		"executor":     mockExecutorAddress(),
		"input":        map[string]string{"holder": allocCustody, "asset": "USDC"},
		"output":       map[string]string{"holder": allocCustody, "asset": "USDC"},
		"feeAccount":   map[string]string{"holder": bech(adminAddr), "asset": "USDC"},
	})
	raw, _ := json.Marshal(result)
	var receipt receiptJSON
	if err := json.Unmarshal(raw, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Fee != "1" {
		t.Fatalf("fee = %s, want 1", receipt.Fee)
	}
	if receipt.SwapAmount != "999" {
		t.Fatalf("swap amount = %s, want 999", receipt.SwapAmount)
	}
}

func allocationCustody(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	result := mustCall(t, ts, "alloc_get", map[string]string{
		"owner":    bech(ownerAddr),
		"strategy": bech(strategyAddr),
	})
	raw, _ := json.Marshal(result)
	var alloc allocationJSON
	if err := json.Unmarshal(raw, &alloc); err != nil {
		t.Fatalf("decode allocation: %v", err)
	}
	return alloc.Custody
}

func mockExecutorAddress() string {
	return bech(mockExecutorID())
}

func mockExecutorID() [20]byte {
	return crypto.DeriveIdentity("executor/mock-v1")
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := call(t, ts, "", "vault_create", map[string]string{
		"owner":     bech(ownerAddr),
		"authority": bech(authorityAddr),
		"baseAsset": "USDC",
	})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	// Reads stay open.
	resp, err = call(t, ts, "", "platform_getConfig", nil)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("read should not require auth: %+v", resp.Error)
	}
}

func TestUnknownMethodAndErrorCodes(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := call(t, ts, testToken, "vault_selfDestruct", nil)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}

	resp, err = call(t, ts, testToken, "vault_get", map[string]string{"owner": bech(testAddress(0x77))})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeVaultNotFound {
		t.Fatalf("expected vault-not-found code, got %+v", resp.Error)
	}

	resp, err = call(t, ts, testToken, "vault_deposit", map[string]string{
		"owner":  bech(ownerAddr),
		"asset":  "USDC",
		"amount": "-5",
	})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params code, got %+v", resp.Error)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(fmt.Sprintf("%s/healthz", ts.URL))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
