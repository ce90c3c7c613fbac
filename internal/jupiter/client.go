// Package jupiter is the HTTP client for the trade aggregator. It builds
// unsigned transactions for swaps and limit orders, and runs DCA account
// creation/closing, which the aggregator finalizes on its own.
//
// The client never retries: by the time a request fails, the quoted route
// and price may already be stale, so retrying is a caller decision.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds an aggregator client for the given base URL. The API
// key is attached as a bearer token when non-empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// BuildSwap asks the aggregator for an unsigned swap transaction.
func (c *Client) BuildSwap(ctx context.Context, p SwapParams) (*Unsigned, error) {
	var resp swapResponse
	err := c.post(ctx, "/v6/swap", swapRequest{
		UserPublicKey: p.UserPublicKey,
		InputMint:     p.InputMint,
		OutputMint:    p.OutputMint,
		Amount:        p.Amount,
		SlippageBPS:   p.SlippageBPS,
		PriorityTier:  p.PriorityTier,
	}, &resp)
	if err != nil {
		return nil, err
	}

	tx, err := decodeTransaction(resp.SwapTransaction)
	if err != nil {
		return nil, err
	}
	return &Unsigned{Tx: tx}, nil
}

// BuildLimitOrder asks the aggregator for an unsigned limit-order
// transaction plus the co-signature of the aggregator-held order account.
func (c *Client) BuildLimitOrder(ctx context.Context, p LimitOrderParams) (*Unsigned, error) {
	var resp limitOrderResponse
	err := c.post(ctx, "/limit/v1/createOrder", limitOrderRequest{
		UserPublicKey: p.UserPublicKey,
		InputMint:     p.InputMint,
		OutputMint:    p.OutputMint,
		InAmount:      p.InAmount,
		OutAmount:     p.OutAmount,
	}, &resp)
	if err != nil {
		return nil, err
	}

	tx, err := decodeTransaction(resp.Transaction)
	if err != nil {
		return nil, err
	}
	if resp.Signature2 == "" {
		return nil, fmt.Errorf("limit order response missing co-signature")
	}
	coSig, err := solana.SignatureFromBase58(resp.Signature2)
	if err != nil {
		return nil, fmt.Errorf("invalid co-signature: %w", err)
	}
	return &Unsigned{Tx: tx, CoSignatures: []solana.Signature{coSig}}, nil
}

// CreateDCA opens a DCA account. The aggregator signs and finalizes this
// itself; the returned descriptor is terminal, nothing is signed locally.
func (c *Client) CreateDCA(ctx context.Context, p DCAParams) (*AccountDescriptor, error) {
	var resp AccountDescriptor
	err := c.post(ctx, "/dca/v1/create", createDCARequest{
		UserPublicKey:        p.UserPublicKey,
		InputMint:            p.InputMint,
		OutputMint:           p.OutputMint,
		TotalInAmount:        p.TotalInAmount,
		InAmountPerCycle:     p.InAmountPerCycle,
		CycleFrequency:       p.CycleFrequency,
		MinOutAmountPerCycle: p.MinOutAmountPerCycle,
		MaxOutAmountPerCycle: p.MaxOutAmountPerCycle,
		Start:                p.Start,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Account == "" {
		return nil, fmt.Errorf("create dca response missing account")
	}
	return &resp, nil
}

// CloseDCA closes an existing DCA account, again finalized aggregator-side.
func (c *Client) CloseDCA(ctx context.Context, dcaPubKey string) (*AccountDescriptor, error) {
	var resp AccountDescriptor
	err := c.post(ctx, "/dca/v1/close", closeDCARequest{DCAPubKey: dcaPubKey}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Account == "" {
		return nil, fmt.Errorf("close dca response missing account")
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("aggregator request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("aggregator response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("aggregator status %d: %s", resp.StatusCode, errorDetail(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode aggregator response: %w", err)
	}
	return nil
}

// errorDetail pulls a human-readable message out of an aggregator error
// body, falling back to the trimmed raw body.
func errorDetail(raw []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

func decodeTransaction(encoded string) (*solana.Transaction, error) {
	if encoded == "" {
		return nil, fmt.Errorf("response missing transaction payload")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("transaction payload not base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}
