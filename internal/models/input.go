package models

import "github.com/example/txengine/internal/money"

// ToType distinguishes an account-id destination from a raw chain
// address destination (§4.3).
type ToType string

const (
	ToAccount ToType = "account"
	ToAddress ToType = "address"
)

// CreateTransactionInput is the caller's intent (§4.3). ID doubles as
// the idempotency key and, on success, the gid of the produced group
// (§5).
type CreateTransactionInput struct {
	ID             string
	UserID         int64
	From           int64
	To             string
	ToType         ToType
	ToCurrency     Currency
	Value          money.Value
	ValueCurrency  Currency
	Fee            money.Value
	ExchangeID     *string
	ExchangeRate   *float64
	HoldUntil      *int64
}

// ToAccountID parses To as an account id; only meaningful when
// ToType == ToAccount.
func (in CreateTransactionInput) ToAccountID() (int64, error) {
	return parseAccountID(in.To)
}

// AccountWithBalance is returned by get_account_balance (§4.6).
type AccountWithBalance struct {
	Account Account
	Balance money.Value
}
