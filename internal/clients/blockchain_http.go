package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/example/txengine/internal/money"
)

func bigFromDecimal(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func encodeRaw(raw []byte) string { return base64.StdEncoding.EncodeToString(raw) }

// HTTPBlockchainClient is a REST client for the chain-RPC gateway (§6):
// UTXO/nonce lookups and raw-transaction broadcast for Bitcoin and
// Ethereum, built on the same retrying-JSON pattern as the other HTTP
// clients in this package.
type HTTPBlockchainClient struct {
	HTTP       *http.Client
	BaseURL    string
	UserToken  string
	MaxRetries int
	BaseDelay  time.Duration
}

func NewHTTPBlockchainClient(baseURL, userToken string) *HTTPBlockchainClient {
	return &HTTPBlockchainClient{
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		BaseURL:    baseURL,
		UserToken:  userToken,
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
	}
}

func (c *HTTPBlockchainClient) GetBitcoinUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var out []utxoDTO
	if err := doRetryJSON(ctx, c.HTTP, c.MaxRetries, c.BaseDelay, http.MethodGet,
		fmt.Sprintf("%s/bitcoin/utxos?address=%s", c.BaseURL, address), c.UserToken, nil, &out); err != nil {
		return nil, err
	}
	utxos := make([]UTXO, 0, len(out))
	for _, u := range out {
		v, err := money.FromBigInt(bigFromDecimal(u.Value))
		if err != nil {
			return nil, &nonRetryableError{err}
		}
		utxos = append(utxos, UTXO{TxID: u.TxID, Index: u.Index, Value: v})
	}
	return utxos, nil
}

type nonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

func (c *HTTPBlockchainClient) GetEthereumNonce(ctx context.Context, address string) (uint64, error) {
	var out nonceResponse
	err := doRetryJSON(ctx, c.HTTP, c.MaxRetries, c.BaseDelay, http.MethodGet,
		fmt.Sprintf("%s/ethereum/nonce?address=%s", c.BaseURL, address), c.UserToken, nil, &out)
	return out.Nonce, err
}

type broadcastRequest struct {
	RawTransaction string `json:"raw_transaction"`
}

type broadcastResponse struct {
	TxID string `json:"tx_id"`
}

func (c *HTTPBlockchainClient) PostBitcoinTransaction(ctx context.Context, raw []byte) (string, error) {
	var out broadcastResponse
	err := doRetryJSON(ctx, c.HTTP, c.MaxRetries, c.BaseDelay, http.MethodPost,
		fmt.Sprintf("%s/bitcoin/broadcast", c.BaseURL), c.UserToken, broadcastRequest{RawTransaction: encodeRaw(raw)}, &out)
	return out.TxID, err
}

func (c *HTTPBlockchainClient) PostEthereumTransaction(ctx context.Context, raw []byte) (string, error) {
	var out broadcastResponse
	err := doRetryJSON(ctx, c.HTTP, c.MaxRetries, c.BaseDelay, http.MethodPost,
		fmt.Sprintf("%s/ethereum/broadcast", c.BaseURL), c.UserToken, broadcastRequest{RawTransaction: encodeRaw(raw)}, &out)
	return out.TxID, err
}
