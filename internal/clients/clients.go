// Package clients declares the three external collaborators §6 names
// (ExchangeClient, KeysClient, BlockchainClient) by the operations the
// core invokes, plus HTTP-backed implementations of all three
// grounded in the teacher's retrying HTTP client pattern.
package clients

import (
	"context"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
)

// Role selects which bearer token/credential a remote call authenticates
// with (§6 configuration: exchange-gateway user & system tokens).
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// RateInput/RateOutput back ExchangeClient.rate and .refresh_rate (§6).
type RateInput struct {
	From models.Currency
	To   models.Currency
}

type RateOutput struct {
	Rate float64
}

// ExchangeInput backs ExchangeClient.exchange (§4.4.2).
type ExchangeInput struct {
	ID            string
	From          models.Account
	To            models.Account
	Rate          float64
	ActualAmount  money.Value
	AmountCurrency models.Currency
}

// ExchangeClient is the external exchange gateway (§6).
type ExchangeClient interface {
	Rate(ctx context.Context, in RateInput, role Role) (RateOutput, error)
	Exchange(ctx context.Context, in ExchangeInput, role Role) error
	RefreshRate(ctx context.Context, in RateInput, role Role) (RateOutput, error)
}

// UTXO is one unspent Bitcoin output (§4.2 Bitcoin submission).
type UTXO struct {
	TxID  string
	Index uint32
	Value money.Value
}

// CreateBlockchainTx is the descriptor BlockchainService assembles and
// hands to KeysClient for signing (§4.2, §6). It intentionally carries
// no raw wire bytes: signing and byte-stream construction are
// KeysClient's job, out of the core's scope (§1 Non-goals).
type CreateBlockchainTx struct {
	Currency     models.Currency
	FromAddress  string
	ToAddress    string
	Value        money.Value
	FeePrice     money.Value
	UTXOs        []UTXO // Bitcoin only
	Nonce        uint64 // Ethereum/STQ only
	ContractCall bool   // true for an STQ ERC-20 transfer
}

// KeysClient is the external signing service (§6). It returns raw
// signed bytes ready to broadcast.
type KeysClient interface {
	SignTransaction(ctx context.Context, tx CreateBlockchainTx, role Role) ([]byte, error)
}

// BlockchainClient is the external chain-RPC gateway (§6).
type BlockchainClient interface {
	GetBitcoinUTXOs(ctx context.Context, address string) ([]UTXO, error)
	GetEthereumNonce(ctx context.Context, address string) (uint64, error)
	PostBitcoinTransaction(ctx context.Context, raw []byte) (string, error)
	PostEthereumTransaction(ctx context.Context, raw []byte) (string, error)
}
