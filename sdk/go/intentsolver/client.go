package intentsolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the intent solver REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// Order is the canonical cross-chain order produced by the pipeline.
type Order struct {
	IntentType         string `json:"intentType"`
	SourceChainID      uint64 `json:"sourceChainId"`
	DestinationChainID uint64 `json:"destinationChainId"`
	InputToken         string `json:"inputTokenAddress"`
	InputAmount        string `json:"inputAmount"`
	OutputToken        string `json:"outputTokenAddress"`
	MinOutputAmount    string `json:"minOutputAmount"`
	Recipient          string `json:"recipient"`
	Protocol           string `json:"protocol,omitempty"`
	APY                string `json:"apy,omitempty"`
}

// Ambiguity signals that an intent could not be resolved into an order.
type Ambiguity struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ResolveResult holds either a canonical order or an ambiguity signal.
type ResolveResult struct {
	Order     *Order
	Ambiguity *Ambiguity
}

// OrderRecord is a persisted, signed order as returned by the API.
type OrderRecord struct {
	ID                 string `json:"id"`
	IntentType         string `json:"intent_type"`
	SourceChainID      uint64 `json:"source_chain_id"`
	DestinationChainID uint64 `json:"destination_chain_id"`
	InputToken         string `json:"input_token"`
	InputAmount        string `json:"input_amount"`
	OutputToken        string `json:"output_token"`
	MinOutputAmount    string `json:"min_output_amount"`
	Recipient          string `json:"recipient"`
	User               string `json:"user"`
	Signature          string `json:"signature"`
	Status             string `json:"status"`
	CreatedAt          int64  `json:"created_at"`
	UpdatedAt          int64  `json:"updated_at"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("intentsolver api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the intent solver API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAuthToken stores a bearer token sent with subsequent requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

type resolveRequest struct {
	Prompt         string `json:"prompt"`
	UserAddress    string `json:"userAddress"`
	CurrentChainID uint64 `json:"currentChainId"`
}

// ResolveIntent sends a free-text intent and returns the canonical order or an
// ambiguity signal asking the user to rephrase.
func (c *Client) ResolveIntent(ctx context.Context, prompt, userAddress string, currentChainID uint64) (*ResolveResult, error) {
	var raw json.RawMessage
	req := resolveRequest{Prompt: prompt, UserAddress: userAddress, CurrentChainID: currentChainID}
	if err := c.post(ctx, "/api/v1/intents", req, &raw); err != nil {
		return nil, err
	}

	// The endpoint answers with either an order or an ambiguity payload.
	// Ambiguity responses always carry a status discriminator.
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if probe.Status != "" {
		var ambiguity Ambiguity
		if err := json.Unmarshal(raw, &ambiguity); err != nil {
			return nil, fmt.Errorf("decode ambiguity: %w", err)
		}
		return &ResolveResult{Ambiguity: &ambiguity}, nil
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &ResolveResult{Order: &order}, nil
}

type encodeRequest struct {
	Order       *Order `json:"order"`
	UserAddress string `json:"userAddress"`
}

// EncodeOrder asks the server for the EIP-712 typed data the wallet must sign.
// The payload is returned verbatim so it can be handed to a signer unchanged.
func (c *Client) EncodeOrder(ctx context.Context, order *Order, userAddress string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/api/v1/orders/encode", encodeRequest{Order: order, UserAddress: userAddress}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

type submitRequest struct {
	Order       *Order          `json:"order"`
	Signable    json.RawMessage `json:"signable"`
	Signature   string          `json:"signature"`
	UserAddress string          `json:"userAddress"`
}

// SubmitOrder uploads a signed order for verification and settlement.
func (c *Client) SubmitOrder(ctx context.Context, order *Order, signable json.RawMessage, signature, userAddress string) (*OrderRecord, error) {
	var record OrderRecord
	req := submitRequest{Order: order, Signable: signable, Signature: signature, UserAddress: userAddress}
	if err := c.post(ctx, "/api/v1/orders", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListOrders fetches the most recent submitted orders.
func (c *Client) ListOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	endpoint := "/api/v1/orders"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var records []OrderRecord
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
