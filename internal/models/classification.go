package models

// TransactionTypeTag names the four classifications §4.3 dispatches
// to. WithdrawalExchange and InternalExchange share a payload shape
// with their same-currency counterparts plus exchange fields.
type TransactionTypeTag string

const (
	TxInternal         TransactionTypeTag = "internal"
	TxInternalExchange TransactionTypeTag = "internal_exchange"
	TxWithdrawal       TransactionTypeTag = "withdrawal"
	TxWithdrawalExchange TransactionTypeTag = "withdrawal_exchange"
)

// TransactionType is the Classifier's verdict (§4.3), carrying exactly
// the fields its Tag needs. The Composer switches on Tag.
type TransactionType struct {
	Tag TransactionTypeTag

	From Account

	// Internal / InternalExchange
	To *Account

	// Withdrawal / WithdrawalExchange
	ToAddress  string
	ToCurrency Currency

	// InternalExchange / WithdrawalExchange
	ExchangeID   string
	ExchangeRate float64
}
