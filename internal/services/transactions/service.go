// Package transactions implements TransactionsService (§4.6), the
// public orchestrator: authenticates the caller, runs Classifier then
// Composer inside a DB transaction, then Converter, and exposes the
// five (six, with the SPEC_FULL refresh-rate passthrough) public
// operations.
package transactions

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/example/txengine/internal/clients"
	"github.com/example/txengine/internal/idgen"
	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/repo"
	"github.com/example/txengine/internal/services/composer"
	"github.com/example/txengine/internal/services/converter"
)

// Authenticator verifies a bearer token into a models.Token.
type Authenticator interface {
	Verify(raw string) (models.Token, error)
}

// Classifier is the capability interface ClassifierService implements
// (§9: traits exist only to permit test doubles; one production type
// at runtime).
type Classifier interface {
	Classify(ctx context.Context, in models.CreateTransactionInput) (models.TransactionType, error)
}

type Service struct {
	auth         Authenticator
	classifier   Classifier
	composer     *composer.Composer
	converter    *converter.Service
	executor     repo.Executor
	transactions repo.TransactionsRepo
	accounts     repo.AccountsRepo
	exchange     clients.ExchangeClient
	logger       zerolog.Logger
}

func New(
	auth Authenticator,
	classifier Classifier,
	comp *composer.Composer,
	conv *converter.Service,
	executor repo.Executor,
	transactions repo.TransactionsRepo,
	accounts repo.AccountsRepo,
	exchange clients.ExchangeClient,
	logger zerolog.Logger,
) *Service {
	return &Service{
		auth: auth, classifier: classifier, composer: comp, converter: conv,
		executor: executor, transactions: transactions, accounts: accounts,
		exchange: exchange, logger: logger,
	}
}

func (s *Service) authenticate(raw string) (models.Token, error) {
	return s.auth.Verify(raw)
}

// CreateTransaction implements §4.6 create_transaction.
func (s *Service) CreateTransaction(ctx context.Context, rawToken string, in models.CreateTransactionInput) (models.TransactionOut, error) {
	token, err := s.authenticate(rawToken)
	if err != nil {
		return models.TransactionOut{}, err
	}
	if in.UserID != 0 && in.UserID != token.UserID {
		return models.TransactionOut{}, models.ErrUnauthorized
	}
	in.UserID = token.UserID
	if in.ID == "" {
		in.ID = idgen.NewGID()
	}

	var out models.TransactionOut
	err = s.executor.ExecuteTransaction(ctx, repo.Serializable, func(ctx context.Context) error {
		if existing, err := s.transactions.GetByGID(ctx, in.ID); err == nil && len(existing) > 0 {
			// A replay of the same caller-supplied id reaching the DB is a
			// unique-key violation (§5 idempotency, §8 "unique group id").
			return models.ErrGidExists
		}
		tt, err := s.classifier.Classify(ctx, in)
		if err != nil {
			return err
		}
		postings, err := s.composer.Compose(ctx, in, tt)
		if err != nil {
			return err
		}
		out, err = s.converter.Convert(ctx, postings)
		return err
	})
	if err != nil {
		if existing, ok := s.replayExisting(ctx, err, in); ok {
			return existing, nil
		}
		return models.TransactionOut{}, err
	}
	return out, nil
}

// replayExisting implements the SPEC_FULL idempotent-replay supplement
// (4): when create_transaction fails because in.ID already names a
// stored group, and that group belongs to the same caller, re-run
// Converter on it and hand back the existing result instead of an
// error.
func (s *Service) replayExisting(ctx context.Context, createErr error, in models.CreateTransactionInput) (models.TransactionOut, bool) {
	if models.KindOf(createErr) != models.KindInternal {
		return models.TransactionOut{}, false
	}
	postings, err := s.transactions.GetByGID(ctx, in.ID)
	if err != nil || len(postings) == 0 {
		return models.TransactionOut{}, false
	}
	if postings[0].UserID != in.UserID {
		return models.TransactionOut{}, false
	}
	out, err := s.converter.Convert(ctx, postings)
	if err != nil {
		return models.TransactionOut{}, false
	}
	return out, true
}

// GetTransaction implements §4.6 get_transaction, preserving the
// original's 404-before-401 precedence (SPEC_FULL supplement 2):
// existence is checked before ownership.
func (s *Service) GetTransaction(ctx context.Context, rawToken string, gid string) (models.TransactionOut, error) {
	token, err := s.authenticate(rawToken)
	if err != nil {
		return models.TransactionOut{}, err
	}

	var out models.TransactionOut
	err = s.executor.ExecuteTransaction(ctx, repo.ReadCommitted, func(ctx context.Context) error {
		postings, err := s.transactions.GetByGID(ctx, gid)
		if err != nil {
			return err
		}
		if len(postings) == 0 {
			return models.ErrNotFound
		}
		if postings[0].UserID != token.UserID {
			return models.ErrUnauthorized
		}
		out, err = s.converter.Convert(ctx, postings)
		return err
	})
	if err != nil {
		return models.TransactionOut{}, err
	}
	return out, nil
}

// GetAccountBalance implements §4.6 get_account_balance.
func (s *Service) GetAccountBalance(ctx context.Context, rawToken string, accountID int64) (models.AccountWithBalance, error) {
	token, err := s.authenticate(rawToken)
	if err != nil {
		return models.AccountWithBalance{}, err
	}

	var out models.AccountWithBalance
	err = s.executor.ExecuteTransaction(ctx, repo.ReadCommitted, func(ctx context.Context) error {
		account, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if account.UserID != token.UserID {
			return models.ErrUnauthorized
		}
		balance, err := s.transactions.GetAccountBalance(ctx, account.ID, account.Kind)
		if err != nil {
			return err
		}
		out = models.AccountWithBalance{Account: account, Balance: balance}
		return nil
	})
	if err != nil {
		return models.AccountWithBalance{}, err
	}
	return out, nil
}

// GetTransactionsForUser and GetAccountTransactions both implement the
// §4.6 "fetch limit*3 raw postings, group by gid, Convert each,
// truncate to limit" listing procedure, differing only in the
// underlying repository query.
func (s *Service) GetTransactionsForUser(ctx context.Context, rawToken string, userID int64, offset, limit int) ([]models.TransactionOut, error) {
	token, err := s.authenticate(rawToken)
	if err != nil {
		return nil, err
	}
	if userID != token.UserID {
		return nil, models.ErrUnauthorized
	}

	var out []models.TransactionOut
	err = s.executor.ExecuteTransaction(ctx, repo.ReadCommitted, func(ctx context.Context) error {
		postings, err := s.transactions.ListForUser(ctx, userID, offset, limit*3)
		if err != nil {
			return err
		}
		out, err = s.convertGrouped(ctx, postings, limit)
		return err
	})
	return out, err
}

func (s *Service) GetAccountTransactions(ctx context.Context, rawToken string, accountID int64, offset, limit int) ([]models.TransactionOut, error) {
	token, err := s.authenticate(rawToken)
	if err != nil {
		return nil, err
	}

	var out []models.TransactionOut
	err = s.executor.ExecuteTransaction(ctx, repo.ReadCommitted, func(ctx context.Context) error {
		account, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if account.UserID != token.UserID {
			return models.ErrUnauthorized
		}
		postings, err := s.transactions.ListForAccount(ctx, accountID, offset, limit*3)
		if err != nil {
			return err
		}
		out, err = s.convertGrouped(ctx, postings, limit)
		return err
	})
	return out, err
}

func (s *Service) convertGrouped(ctx context.Context, postings []models.Transaction, limit int) ([]models.TransactionOut, error) {
	byGID := make(map[string][]models.Transaction)
	var order []string
	for _, p := range postings {
		if _, seen := byGID[p.GID]; !seen {
			order = append(order, p.GID)
		}
		byGID[p.GID] = append(byGID[p.GID], p)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return byGID[order[i]][0].CreatedAt.After(byGID[order[j]][0].CreatedAt)
	})

	out := make([]models.TransactionOut, 0, len(order))
	for _, gid := range order {
		if limit > 0 && len(out) >= limit {
			break
		}
		converted, err := s.converter.Convert(ctx, byGID[gid])
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

// RefreshExchangeRate is the SPEC_FULL refresh_rate passthrough
// (supplement 3): read-only, authentication-only, never part of a
// posting group.
func (s *Service) RefreshExchangeRate(ctx context.Context, rawToken string, from, to models.Currency) (clients.RateOutput, error) {
	if _, err := s.authenticate(rawToken); err != nil {
		return clients.RateOutput{}, err
	}
	return s.exchange.RefreshRate(ctx, clients.RateInput{From: from, To: to}, clients.RoleUser)
}
