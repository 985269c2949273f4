package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// HTTPKeysClient is a REST client for the external signing service
// (§6): the core hands it a CreateBlockchainTx descriptor and gets raw
// signed bytes back. It never constructs or inspects wire bytes itself
// (§1 Non-goals) — signing is entirely this collaborator's concern.
type HTTPKeysClient struct {
	HTTP       *http.Client
	BaseURL    string
	UserToken  string
	MaxRetries int
	BaseDelay  time.Duration
}

func NewHTTPKeysClient(baseURL, userToken string) *HTTPKeysClient {
	return &HTTPKeysClient{
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		BaseURL:    baseURL,
		UserToken:  userToken,
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
	}
}

type signRequest struct {
	Currency     string   `json:"currency"`
	FromAddress  string   `json:"from_address"`
	ToAddress    string   `json:"to_address"`
	Value        string   `json:"value"`
	FeePrice     string   `json:"fee_price"`
	UTXOs        []utxoDTO `json:"utxos,omitempty"`
	Nonce        uint64   `json:"nonce,omitempty"`
	ContractCall bool     `json:"contract_call,omitempty"`
}

type utxoDTO struct {
	TxID  string `json:"tx_id"`
	Index uint32 `json:"index"`
	Value string `json:"value"`
}

type signResponse struct {
	RawTransaction string `json:"raw_transaction"` // base64
}

func (c *HTTPKeysClient) SignTransaction(ctx context.Context, tx CreateBlockchainTx, role Role) ([]byte, error) {
	req := signRequest{
		Currency:     string(tx.Currency),
		FromAddress:  tx.FromAddress,
		ToAddress:    tx.ToAddress,
		Value:        tx.Value.String(),
		FeePrice:     tx.FeePrice.String(),
		Nonce:        tx.Nonce,
		ContractCall: tx.ContractCall,
	}
	for _, u := range tx.UTXOs {
		req.UTXOs = append(req.UTXOs, utxoDTO{TxID: u.TxID, Index: u.Index, Value: u.Value.String()})
	}

	var out signResponse
	if err := doRetryJSON(ctx, c.HTTP, c.MaxRetries, c.BaseDelay, http.MethodPost,
		fmt.Sprintf("%s/sign", c.BaseURL), c.UserToken, req, &out); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(out.RawTransaction)
	if err != nil {
		return nil, &nonRetryableError{fmt.Errorf("decode signed transaction: %w", err)}
	}
	return raw, nil
}

// doRetryJSON is the retrying JSON request helper HTTPKeysClient and
// HTTPBlockchainClient share — one bearer token, exponential backoff
// with jitter, ctx-cancellation aware. HTTPExchangeClient has its own
// equivalent loop (doJSON) with per-Role token selection.
func doRetryJSON(ctx context.Context, httpClient *http.Client, maxRetries int, baseDelay time.Duration, method, url, token string, body, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := attemptJSON(ctx, httpClient, method, url, token, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxRetries {
			break
		}
		delay := baseDelay * time.Duration(uint64(1)<<uint(attempt))
		jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(delay))
		select {
		case <-time.After(delay + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("http client: all retries failed: %w", lastErr)
}

func attemptJSON(ctx context.Context, httpClient *http.Client, method, url, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &nonRetryableError{err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &nonRetryableError{err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("remote returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &nonRetryableError{fmt.Errorf("remote returned %d: %s", resp.StatusCode, respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &nonRetryableError{err}
	}
	return nil
}
