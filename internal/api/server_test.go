package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"Intent-Solver/internal/intent"
	"Intent-Solver/internal/knowledge"
	"Intent-Solver/internal/llm"
	"Intent-Solver/internal/oracle"
	"Intent-Solver/internal/order"
	"Intent-Solver/internal/solver"
	"Intent-Solver/internal/storage/mysql"
)

type stubLLM struct {
	content string
	err     error
}

func (s *stubLLM) Complete(context.Context, llm.Request) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content}, nil
}

func newTestServer(t *testing.T, client llm.Client, authToken string) *Server {
	t.Helper()

	kb := knowledge.Default()
	repo, err := mysql.NewMemoryOrderRepository(t.TempDir())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	queue := solver.NewMemoryQueue(8)
	t.Cleanup(func() { _ = queue.Close() })

	intents := intent.NewService(
		intent.NewParser(kb, client),
		intent.NewNormalizer(kb, oracle.NewStatic(big.NewRat(3000, 1)), nil),
	)
	orders := solver.NewService(repo, queue, order.NewVerifier())
	return NewServer(":0", authToken, intents, order.NewEncoder(kb), orders)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleIntentsSuccess(t *testing.T) {
	client := &stubLLM{content: `{
		"intentType": "swap",
		"sourceChainId": 1,
		"destinationChainId": 8453,
		"inputTokenAddress": "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
		"inputAmount": "1",
		"outputTokenAddress": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		"recipient": ""
	}`}
	server := newTestServer(t, client, "")

	rec := postJSON(t, server.handleIntents, "/api/v1/intents", map[string]any{
		"prompt":         "swap 1 ETH on mainnet to USDC on base",
		"userAddress":    "0x1111111111111111111111111111111111111111",
		"currentChainId": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var got intent.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.MinOutputAmount != "2970.000000" {
		t.Fatalf("unexpected min output: %s", got.MinOutputAmount)
	}
	if got.Recipient != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("unexpected recipient: %s", got.Recipient)
	}
}

func TestHandleIntentsAmbiguity(t *testing.T) {
	client := &stubLLM{content: `{"status":"ambiguous","message":"which token do you want to receive?"}`}
	server := newTestServer(t, client, "")

	rec := postJSON(t, server.handleIntents, "/api/v1/intents", map[string]any{
		"prompt": "do something with my tokens",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var got intent.Ambiguity
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != intent.StatusAmbiguous {
		t.Fatalf("unexpected status field: %s", got.Status)
	}
}

func TestHandleIntentsFailureIsOpaque(t *testing.T) {
	server := newTestServer(t, &stubLLM{err: errors.New("upstream exploded")}, "")

	rec := postJSON(t, server.handleIntents, "/api/v1/intents", map[string]any{"prompt": "swap"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// 内部细节不得泄露给调用方。
	if got["error"] != "failed to parse intent" {
		t.Fatalf("unexpected error message: %q", got["error"])
	}
}

func TestHandleEncode(t *testing.T) {
	server := newTestServer(t, &stubLLM{}, "")
	ord := &intent.Order{
		IntentType:         intent.TypeSwap,
		SourceChainID:      1,
		DestinationChainID: 8453,
		InputToken:         knowledge.NativeToken,
		InputAmount:        "1",
		OutputToken:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		MinOutputAmount:    "2970.000000",
		Recipient:          "0x1111111111111111111111111111111111111111",
	}

	rec := postJSON(t, server.handleEncode, "/api/v1/orders/encode", map[string]any{
		"order":       ord,
		"userAddress": "0x1111111111111111111111111111111111111111",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var got order.SignableOrder
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.PrimaryType != order.PrimaryType {
		t.Fatalf("unexpected primary type: %s", got.PrimaryType)
	}

	// 未解析的域名不允许进入签名。
	ord.Recipient = "vitalik.eth"
	rec = postJSON(t, server.handleEncode, "/api/v1/orders/encode", map[string]any{
		"order":       ord,
		"userAddress": "0x1111111111111111111111111111111111111111",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandleSubmitAndListOrders(t *testing.T) {
	server := newTestServer(t, &stubLLM{}, "")

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey).Hex()
	ord := &intent.Order{
		IntentType:         intent.TypeSwap,
		SourceChainID:      1,
		DestinationChainID: 8453,
		InputToken:         knowledge.NativeToken,
		InputAmount:        "1",
		OutputToken:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		MinOutputAmount:    "2970.000000",
		Recipient:          signer,
	}
	signable, err := order.NewEncoder(knowledge.Default()).Encode(ord, signer)
	if err != nil {
		t.Fatalf("encode order: %v", err)
	}
	digest, _, err := apitypes.TypedDataAndHash(signable.TypedData())
	if err != nil {
		t.Fatalf("hash typed data: %v", err)
	}
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}

	rec := postJSON(t, server.handleOrders, "/api/v1/orders", map[string]any{
		"order":       ord,
		"signable":    signable,
		"signature":   hexutil.Encode(signature),
		"userAddress": signer,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5", nil)
	listRec := httptest.NewRecorder()
	server.handleOrders(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", listRec.Code)
	}
	var records []mysql.OrderRecord
	if err := json.Unmarshal(listRec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 1 || records[0].User != signer {
		t.Fatalf("unexpected records: %+v", records)
	}

	// 签名者不匹配时返回 401。
	rec = postJSON(t, server.handleOrders, "/api/v1/orders", map[string]any{
		"order":       ord,
		"signable":    signable,
		"signature":   hexutil.Encode(signature),
		"userAddress": "0x1111111111111111111111111111111111111111",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := newTestServer(t, &stubLLM{content: "{}"}, "secret-token")
	handler := server.withAuth(server.handleIntents)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", bytes.NewReader([]byte(`{"prompt":"x"}`)))
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/intents", bytes.NewReader([]byte(`{"prompt":"x"}`)))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/intents", bytes.NewReader([]byte(`{"prompt":"x"}`)))
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("expected request with valid token to pass auth")
	}
}
