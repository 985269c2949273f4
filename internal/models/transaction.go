package models

import (
	"time"

	"github.com/example/txengine/internal/money"
)

// TransactionStatus is the lifecycle state of one posting (§3).
// Postings are append-only: status may move Pending -> Done but never
// reverses, and reconciliation (out of scope) is the only writer of
// that transition.
type TransactionStatus string

const (
	Pending TransactionStatus = "pending"
	Done    TransactionStatus = "done"
)

// TransactionKind is the per-posting role (§3).
type TransactionKind string

const (
	KindInternalPosting TransactionKind = "internal"
	KindWithdrawal      TransactionKind = "withdrawal"
	KindFee             TransactionKind = "fee"
	KindBlockchainFee   TransactionKind = "blockchain_fee"
	KindMultiFrom       TransactionKind = "multi_from"
	KindMultiTo         TransactionKind = "multi_to"
	KindDeposit         TransactionKind = "deposit"
	KindApproval        TransactionKind = "approval"
)

// GroupKind is the per-group classification shared by every posting
// under one gid (§3, Invariant 1).
type GroupKind string

const (
	GroupInternal         GroupKind = "internal"
	GroupWithdrawal       GroupKind = "withdrawal"
	GroupInternalMulti    GroupKind = "internal_multi"
	GroupWithdrawalMulti  GroupKind = "withdrawal_multi"
	GroupDeposit          GroupKind = "deposit"
	GroupApproval         GroupKind = "approval"
)

// Transaction is one immutable double-entry posting (§3).
type Transaction struct {
	ID              int64
	GID             string
	UserID          int64
	DrAccountID     int64
	CrAccountID     int64
	Currency        Currency
	Value           money.Value
	Status          TransactionStatus
	BlockchainTxID  *string
	Kind            TransactionKind
	GroupKind       GroupKind
	RelatedTx       *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BlockchainTransaction is a chain-observed fact (§3); the core only
// reads it, to recover addresses/status for the Converter.
type BlockchainTransaction struct {
	Hash          string
	FromAddress   string
	ToAddress     string
	Currency      Currency
	Confirmations int
	CreatedAt     time.Time
}

// PendingBlockchainTransaction is a locally recorded awaiting-
// confirmation row; the core only creates and reads these (§3).
type PendingBlockchainTransaction struct {
	Hash        string
	FromAddress string
	ToAddress   string
	Currency    Currency
	Value       money.Value
	CreatedAt   time.Time
}

// FoldStatuses derives a group's overall status from its postings: any
// Pending posting makes the whole group Pending (§8 scenario 4).
func FoldStatuses(postings []Transaction) TransactionStatus {
	for _, p := range postings {
		if p.Status == Pending {
			return Pending
		}
	}
	return Done
}
