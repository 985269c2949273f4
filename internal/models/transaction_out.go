package models

import (
	"time"

	"github.com/example/txengine/internal/money"
)

// TransactionOut is the caller-visible reconstruction of a posting
// group (§4.5).
type TransactionOut struct {
	GID       string
	UserID    int64
	GroupKind GroupKind
	Status    TransactionStatus

	FromAddress string
	FromValue   money.Value
	FromCurrency Currency

	ToAddress   string
	ToValue     money.Value
	ToCurrency  Currency

	Fee            money.Value
	FeeCurrency    Currency
	BlockchainTxID *string

	CreatedAt time.Time
}
