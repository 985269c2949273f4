package repo

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
)

// Store is an in-process repository + executor implementation,
// following the teacher's internal/database/database.go: a single
// mutex-guarded struct with plain Go maps/slices standing in for
// tables. ExecuteTransaction's Serializable path takes a store-wide
// transaction lock (txMu, separate from the per-call data lock mu)
// exclusively for the duration of the callback, which is sufficient
// to make balance-check-then-insert linearizable across concurrent
// siblings (§5) — the primary guarantee spec.md asks a real
// serializable database transaction for.
//
// Store itself implements Executor and KeyValuesRepo directly; the
// other repo interfaces are exposed through thin adapters below
// (AccountsRepo, TransactionsRepo, PendingRepo, ChainTxRepo) because
// their method names collide across interfaces (e.g. accounts and
// transactions both have a Get(ctx, id)).
type Store struct {
	txMu sync.RWMutex
	mu   sync.RWMutex

	accounts  map[int64]models.Account
	byAddress map[string][]models.Account

	transactions []models.Transaction
	txByID       map[int64]int
	nextTxID     int64

	pending map[string]models.PendingBlockchainTransaction
	chainTx map[string]models.BlockchainTransaction
	nonces  map[string]uint64
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[int64]models.Account),
		byAddress: make(map[string][]models.Account),
		txByID:    make(map[int64]int),
		pending:   make(map[string]models.PendingBlockchainTransaction),
		chainTx:   make(map[string]models.BlockchainTransaction),
		nonces:    make(map[string]uint64),
		nextTxID:  1,
	}
}

// SeedAccount registers an account as if it had been created by the
// out-of-scope provisioning subsystem (§1 Non-goals).
func (s *Store) SeedAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.byAddress[a.Address] = append(s.byAddress[a.Address], a)
}

// SeedBlockchainTransaction registers a chain-observed fact (§3), used
// by Converter tests and by deposit reconstruction.
func (s *Store) SeedBlockchainTransaction(tx models.BlockchainTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainTx[tx.Hash] = tx
}

// ExecuteTransaction implements Executor.
func (s *Store) ExecuteTransaction(ctx context.Context, isolation Isolation, fn func(ctx context.Context) error) error {
	if isolation == Serializable {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	} else {
		s.txMu.RLock()
		defer s.txMu.RUnlock()
	}
	return fn(ctx)
}

// --- account storage ---

func (s *Store) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, models.Wrap(models.KindNotFound, fmt.Sprintf("account %d", id), models.ErrNotFound)
	}
	return a, nil
}

func (s *Store) AccountGetByAddress(ctx context.Context, address string, currency models.Currency, kind models.AccountKind) (models.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byAddress[address] {
		if a.Currency == currency && a.Kind == kind {
			return a, true, nil
		}
	}
	return models.Account{}, false, nil
}

func (s *Store) AccountFilterByAddress(ctx context.Context, address string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, len(s.byAddress[address]))
	copy(out, s.byAddress[address])
	return out, nil
}

// --- transaction storage ---

func (s *Store) CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	if tx.ID == 0 {
		tx.ID = s.nextTxID
	}
	if tx.ID >= s.nextTxID {
		s.nextTxID = tx.ID + 1
	}
	s.transactions = append(s.transactions, tx)
	s.txByID[tx.ID] = len(s.transactions) - 1
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.txByID[id]
	if !ok {
		return models.Transaction{}, models.Wrap(models.KindNotFound, fmt.Sprintf("transaction %d", id), models.ErrNotFound)
	}
	return s.transactions[idx], nil
}

func (s *Store) GetByGID(ctx context.Context, gid string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, t := range s.transactions {
		if t.GID == gid {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListForUser(ctx context.Context, userID int64, offset, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID {
			matched = append(matched, t)
		}
	}
	return paginate(matched, offset, limit), nil
}

func (s *Store) ListForAccount(ctx context.Context, accountID int64, offset, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Transaction
	for _, t := range s.transactions {
		if t.DrAccountID == accountID || t.CrAccountID == accountID {
			matched = append(matched, t)
		}
	}
	return paginate(matched, offset, limit), nil
}

func paginate(txs []models.Transaction, offset, limit int) []models.Transaction {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	if offset >= len(txs) {
		return nil
	}
	end := offset + limit
	if end > len(txs) || limit <= 0 {
		end = len(txs)
	}
	return txs[offset:end]
}

// GetAccountsBalance sums (credits - debits) over the given accounts,
// clamped at zero so a caller's "balance < value" pre-check reads as
// insufficient funds rather than a negative number (§4.4 create_base_tx).
func (s *Store) GetAccountsBalance(ctx context.Context, userID int64, accountIDs []int64) (money.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		set[id] = true
	}
	credit := big.NewInt(0)
	debit := big.NewInt(0)
	for _, t := range s.transactions {
		if set[t.CrAccountID] {
			credit.Add(credit, t.Value.BigInt())
		}
		if set[t.DrAccountID] {
			debit.Add(debit, t.Value.BigInt())
		}
	}
	net := new(big.Int).Sub(credit, debit)
	if net.Sign() < 0 {
		net.SetInt64(0)
	}
	return money.FromBigInt(net)
}

func (s *Store) GetAccountBalance(ctx context.Context, accountID int64, kind models.AccountKind) (money.Value, error) {
	return s.GetAccountsBalance(ctx, 0, []int64{accountID})
}

// GetAccountsForWithdrawal implements the repo-internal selection
// policy §4.4.3 treats as given: greedily consume the user's owned
// deposit (Dr) accounts for the currency, lowest id first, until value
// is covered.
func (s *Store) GetAccountsForWithdrawal(ctx context.Context, value money.Value, currency models.Currency, userID int64, grossFee money.Value) ([]WithdrawalTake, error) {
	s.mu.RLock()
	candidates := make([]models.Account, 0)
	for _, a := range s.accounts {
		if a.UserID == userID && a.Currency == currency && a.Kind == models.Dr {
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	s.mu.RUnlock()

	remaining := value.BigInt()
	var out []WithdrawalTake
	for _, a := range candidates {
		if remaining.Sign() <= 0 {
			break
		}
		bal, err := s.GetAccountsBalance(ctx, userID, []int64{a.ID})
		if err != nil {
			return nil, err
		}
		balBig := bal.BigInt()
		if balBig.Sign() <= 0 {
			continue
		}
		take := new(big.Int).Set(balBig)
		if take.Cmp(remaining) > 0 {
			take = new(big.Int).Set(remaining)
		}
		takeVal, err := money.FromBigInt(take)
		if err != nil {
			return nil, err
		}
		out = append(out, WithdrawalTake{Account: a, TakeAmount: takeVal})
		remaining.Sub(remaining, take)
	}
	if remaining.Sign() > 0 {
		return nil, models.ErrBalance
	}
	return out, nil
}

// --- pending blockchain transaction storage ---

func (s *Store) CreatePending(ctx context.Context, p models.PendingBlockchainTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.pending[p.Hash] = p
	return nil
}

func (s *Store) GetPending(ctx context.Context, hash string) (models.PendingBlockchainTransaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[hash]
	return p, ok, nil
}

// --- blockchain transaction storage ---

func (s *Store) GetChainTx(ctx context.Context, hash string) (models.BlockchainTransaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.chainTx[hash]
	return t, ok, nil
}

// --- key-value storage (Ethereum nonce coordination) ---

func (s *Store) GetNonce(ctx context.Context, address string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nonces[address]
	return n, ok, nil
}

func (s *Store) SetNonce(ctx context.Context, address string, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[address] = n
	return nil
}

// --- adapters satisfying the narrow repo interfaces ---

type accountsRepo struct{ s *Store }

func NewAccountsRepo(s *Store) AccountsRepo { return accountsRepo{s} }

func (r accountsRepo) Get(ctx context.Context, id int64) (models.Account, error) {
	return r.s.GetAccount(ctx, id)
}
func (r accountsRepo) GetByAddress(ctx context.Context, address string, currency models.Currency, kind models.AccountKind) (models.Account, bool, error) {
	return r.s.AccountGetByAddress(ctx, address, currency, kind)
}
func (r accountsRepo) FilterByAddress(ctx context.Context, address string) ([]models.Account, error) {
	return r.s.AccountFilterByAddress(ctx, address)
}

type transactionsRepo struct{ s *Store }

func NewTransactionsRepo(s *Store) TransactionsRepo { return transactionsRepo{s} }

func (r transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	return r.s.CreateTransaction(ctx, tx)
}
func (r transactionsRepo) Get(ctx context.Context, id int64) (models.Transaction, error) {
	return r.s.GetTransaction(ctx, id)
}
func (r transactionsRepo) GetByGID(ctx context.Context, gid string) ([]models.Transaction, error) {
	return r.s.GetByGID(ctx, gid)
}
func (r transactionsRepo) ListForUser(ctx context.Context, userID int64, offset, limit int) ([]models.Transaction, error) {
	return r.s.ListForUser(ctx, userID, offset, limit)
}
func (r transactionsRepo) ListForAccount(ctx context.Context, accountID int64, offset, limit int) ([]models.Transaction, error) {
	return r.s.ListForAccount(ctx, accountID, offset, limit)
}
func (r transactionsRepo) GetAccountsBalance(ctx context.Context, userID int64, accountIDs []int64) (money.Value, error) {
	return r.s.GetAccountsBalance(ctx, userID, accountIDs)
}
func (r transactionsRepo) GetAccountBalance(ctx context.Context, accountID int64, kind models.AccountKind) (money.Value, error) {
	return r.s.GetAccountBalance(ctx, accountID, kind)
}
func (r transactionsRepo) GetAccountsForWithdrawal(ctx context.Context, value money.Value, currency models.Currency, userID int64, grossFee money.Value) ([]WithdrawalTake, error) {
	return r.s.GetAccountsForWithdrawal(ctx, value, currency, userID, grossFee)
}

type pendingRepo struct{ s *Store }

func NewPendingRepo(s *Store) PendingBlockchainTransactionsRepo { return pendingRepo{s} }

func (r pendingRepo) Create(ctx context.Context, p models.PendingBlockchainTransaction) error {
	return r.s.CreatePending(ctx, p)
}
func (r pendingRepo) Get(ctx context.Context, hash string) (models.PendingBlockchainTransaction, bool, error) {
	return r.s.GetPending(ctx, hash)
}

type chainTxRepo struct{ s *Store }

func NewChainTxRepo(s *Store) BlockchainTransactionsRepo { return chainTxRepo{s} }

func (r chainTxRepo) Get(ctx context.Context, hash string) (models.BlockchainTransaction, bool, error) {
	return r.s.GetChainTx(ctx, hash)
}
