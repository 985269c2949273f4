// Package repo implements the repositories and db executor that §1 and
// §6 of the spec treat as external collaborators, to a level that
// satisfies exactly the operations the core invokes. Persistence is an
// in-process, mutex-guarded store rather than a SQL database: no SQL
// driver appears anywhere in the retrieved example pack to ground a
// concrete choice on (DESIGN.md), so the store follows the teacher's
// own in-memory database.go pattern instead of inventing a dependency.
package repo

import (
	"context"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
)

// Isolation mirrors the two isolation levels §5 distinguishes.
type Isolation string

const (
	Serializable Isolation = "serializable"
	ReadCommitted Isolation = "read_committed"
)

// Executor runs a function under a database transaction at the given
// isolation level (§5, §6 db_executor.execute_transaction_with_isolation).
type Executor interface {
	ExecuteTransaction(ctx context.Context, isolation Isolation, fn func(ctx context.Context) error) error
}

// AccountsRepo is the accounts_repo of §6.
type AccountsRepo interface {
	Get(ctx context.Context, id int64) (models.Account, error)
	GetByAddress(ctx context.Context, address string, currency models.Currency, kind models.AccountKind) (models.Account, bool, error)
	FilterByAddress(ctx context.Context, address string) ([]models.Account, error)
}

// WithdrawalTake is one element of get_accounts_for_withdrawal's result
// (§4.4.3): a source deposit account and the amount to take from it.
type WithdrawalTake struct {
	Account     models.Account
	TakeAmount  money.Value
}

// TransactionsRepo is the transactions_repo of §6.
type TransactionsRepo interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	Get(ctx context.Context, id int64) (models.Transaction, error)
	GetByGID(ctx context.Context, gid string) ([]models.Transaction, error)
	ListForUser(ctx context.Context, userID int64, offset, limit int) ([]models.Transaction, error)
	ListForAccount(ctx context.Context, accountID int64, offset, limit int) ([]models.Transaction, error)
	GetAccountsBalance(ctx context.Context, userID int64, accountIDs []int64) (money.Value, error)
	GetAccountBalance(ctx context.Context, accountID int64, kind models.AccountKind) (money.Value, error)
	GetAccountsForWithdrawal(ctx context.Context, value money.Value, currency models.Currency, userID int64, grossFee money.Value) ([]WithdrawalTake, error)
}

// PendingBlockchainTransactionsRepo is the pending_blockchain_transactions_repo of §6.
type PendingBlockchainTransactionsRepo interface {
	Create(ctx context.Context, p models.PendingBlockchainTransaction) error
	Get(ctx context.Context, hash string) (models.PendingBlockchainTransaction, bool, error)
}

// BlockchainTransactionsRepo is the blockchain_transactions_repo of §6.
type BlockchainTransactionsRepo interface {
	Get(ctx context.Context, hash string) (models.BlockchainTransaction, bool, error)
}

// KeyValuesRepo is the key_values_repo of §6, used for Ethereum nonce
// coordination (§4.2, §5).
type KeyValuesRepo interface {
	GetNonce(ctx context.Context, address string) (uint64, bool, error)
	SetNonce(ctx context.Context, address string, n uint64) error
}
