package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"redbank/bank"
	"redbank/crypto"
	"redbank/rpc/modules"
	"redbank/storage"
)

const testToken = "secret-test-token"

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.BankPrefix, raw)
}

func newTestServer(t *testing.T) (*Server, crypto.Address) {
	t.Helper()
	owner := testAddr(0x01)
	collector := testAddr(0x02)
	engine := bank.NewEngine(owner, collector, bank.MustDecFromString("0.5"))
	db := storage.NewMemDB()
	engine.SetState(bank.NewStore(db))
	book := bank.NewBook(db)
	engine.SetLedger(book)
	module := modules.NewBankModule(engine, book)
	module.SetClock(func() int64 { return 1_700_000_000 })

	server := NewServer(module)
	server.authToken = testToken
	return server, owner
}

func rpcCall(t *testing.T, server *Server, token, method string, params interface{}) (*RPCResponse, int) {
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
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	resp := &RPCResponse{}
	if err := json.Unmarshal(recorder.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
	}
	return resp, recorder.Code
}

func mustSucceed(t *testing.T, resp *RPCResponse, status int) {
	t.Helper()
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("call failed: status %d, error %+v", status, resp.Error)
	}
}

func initTestMarket(t *testing.T, server *Server, owner crypto.Address, denom string) {
	t.Helper()
	resp, status := rpcCall(t, server, testToken, "bank_initAsset", map[string]interface{}{
		"caller": owner.String(),
		"denom":  denom,
		"params": map[string]interface{}{
			"maxLoanToValue":       "0.55",
			"liquidationThreshold": "0.674",
			"liquidationBonus":     "0.1",
			"reserveFactor":        "0.2",
			"active":               true,
			"depositEnabled":       true,
			"borrowEnabled":        true,
			"rateModel": map[string]interface{}{
				"linear": map[string]interface{}{
					"base":               "0.02",
					"slope1":             "0.08",
					"slope2":             "0.5",
					"optimalUtilization": "0.8",
				},
			},
		},
	})
	mustSucceed(t, resp, status)
	resp, status = rpcCall(t, server, testToken, "bank_setPrice", map[string]interface{}{
		"denom": denom,
		"price": "1.0",
	})
	mustSucceed(t, resp, status)
}

func TestRPCAuthRequired(t *testing.T) {
	server, owner := newTestServer(t)
	resp, status := rpcCall(t, server, "", "bank_initAsset", map[string]interface{}{
		"caller": owner.String(),
		"denom":  "uosmo",
	})
	if status != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got status %d, error %+v", status, resp.Error)
	}
	resp, status = rpcCall(t, server, "wrong-token", "bank_initAsset", map[string]interface{}{
		"caller": owner.String(),
		"denom":  "uosmo",
	})
	if status != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("expected unauthorized for bad token, got status %d", status)
	}
}

func TestRPCMethodNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	resp, status := rpcCall(t, server, "", "bank_doesNotExist", nil)
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got status %d, error %+v", status, resp.Error)
	}
}

func TestRPCRejectsInvalidEnvelope(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
	recorder = httptest.NewRecorder()
	server.handle(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", recorder.Code)
	}
}

func TestRPCDepositBorrowFlow(t *testing.T) {
	server, owner := newTestServer(t)
	alice := testAddr(0x0a)
	initTestMarket(t, server, owner, "uosmo")
	initTestMarket(t, server, owner, "uatom")

	resp, status := rpcCall(t, server, testToken, "bank_creditWallet", map[string]interface{}{
		"denom":   "uosmo",
		"address": alice.String(),
		"amount":  "300",
	})
	mustSucceed(t, resp, status)
	// Seed uatom liquidity from a second depositor.
	bob := testAddr(0x0b)
	resp, status = rpcCall(t, server, testToken, "bank_creditWallet", map[string]interface{}{
		"denom":   "uatom",
		"address": bob.String(),
		"amount":  "500",
	})
	mustSucceed(t, resp, status)
	resp, status = rpcCall(t, server, "", "bank_deposit", map[string]interface{}{
		"caller": bob.String(),
		"denom":  "uatom",
		"amount": "500",
	})
	mustSucceed(t, resp, status)

	resp, status = rpcCall(t, server, "", "bank_deposit", map[string]interface{}{
		"caller": alice.String(),
		"denom":  "uosmo",
		"amount": "300",
	})
	mustSucceed(t, resp, status)

	resp, status = rpcCall(t, server, "", "bank_borrow", map[string]interface{}{
		"caller": alice.String(),
		"denom":  "uatom",
		"amount": "100",
	})
	mustSucceed(t, resp, status)

	resp, status = rpcCall(t, server, "", "bank_getUserDebt", map[string]interface{}{
		"denom":   "uatom",
		"address": alice.String(),
	})
	mustSucceed(t, resp, status)
	encoded, _ := json.Marshal(resp.Result)
	var debt struct {
		Amount json.Number `json:"amount"`
	}
	if err := json.Unmarshal(encoded, &debt); err != nil {
		t.Fatalf("decode debt: %v", err)
	}
	if debt.Amount.String() != "100" {
		t.Fatalf("expected 100 debt, got %s", debt.Amount)
	}

	resp, status = rpcCall(t, server, "", "bank_getMarket", map[string]interface{}{"denom": "uatom"})
	mustSucceed(t, resp, status)
	encoded, _ = json.Marshal(resp.Result)
	var market struct {
		Denom     string      `json:"denom"`
		DebtTotal json.Number `json:"debtTotal"`
	}
	if err := json.Unmarshal(encoded, &market); err != nil {
		t.Fatalf("decode market: %v", err)
	}
	if market.Denom != "uatom" || market.DebtTotal.String() != "100" {
		t.Fatalf("unexpected market view: %+v", market)
	}

	// Borrowing with no collateral value fails cleanly with a server error
	// and the sent amount stays with the caller.
	carol := testAddr(0x0c)
	resp, status = rpcCall(t, server, "", "bank_borrow", map[string]interface{}{
		"caller": carol.String(),
		"denom":  "uatom",
		"amount": "10",
	})
	if status != http.StatusBadRequest || resp.Error == nil {
		t.Fatalf("expected borrow rejection, got status %d, error %+v", status, resp.Error)
	}
}

func TestRPCInvalidParams(t *testing.T) {
	server, _ := newTestServer(t)
	for _, tc := range []struct {
		method string
		params interface{}
	}{
		{"bank_deposit", map[string]interface{}{"caller": "garbage", "denom": "uosmo", "amount": "10"}},
		{"bank_deposit", map[string]interface{}{"caller": testAddr(1).String(), "denom": "uosmo", "amount": "ten"}},
		{"bank_getUserPosition", map[string]interface{}{"address": "garbage"}},
	} {
		resp, status := rpcCall(t, server, "", tc.method, tc.params)
		if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
			t.Fatalf("%s: expected invalid params, got status %d, error %+v", tc.method, status, resp.Error)
		}
	}
}
