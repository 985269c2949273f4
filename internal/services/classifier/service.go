// Package classifier implements ClassifierService (§4.3): validates a
// CreateTransactionInput and classifies it into one of the four
// models.TransactionType variants the Composer switches on.
package classifier

import (
	"context"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
	"github.com/example/txengine/internal/repo"
)

type Service struct {
	accounts     repo.AccountsRepo
	transactions repo.TransactionsRepo
}

func New(accounts repo.AccountsRepo, transactions repo.TransactionsRepo) *Service {
	return &Service{accounts: accounts, transactions: transactions}
}

// Classify implements §4.3's four-step procedure.
func (s *Service) Classify(ctx context.Context, in models.CreateTransactionInput) (models.TransactionType, error) {
	if err := models.ValidateCreateTransactionInput(in); err != nil {
		return models.TransactionType{}, err
	}

	from, err := s.accounts.Get(ctx, in.From)
	if err != nil {
		return models.TransactionType{}, models.Wrap(models.KindNotFound, "from account", err)
	}

	switch in.ToType {
	case models.ToAccount:
		return s.classifyAccount(ctx, in, from)
	case models.ToAddress:
		return s.classifyAddress(ctx, in, from)
	default:
		return models.TransactionType{}, models.Invalid("to_type: must be account or address")
	}
}

func (s *Service) classifyAccount(ctx context.Context, in models.CreateTransactionInput, from models.Account) (models.TransactionType, error) {
	toID, err := in.ToAccountID()
	if err != nil {
		return models.TransactionType{}, models.Wrap(models.KindMalformedInput, "to: not a valid account id", err)
	}
	to, err := s.accounts.Get(ctx, toID)
	if err != nil {
		return models.TransactionType{}, models.Wrap(models.KindNotFound, "to account", err)
	}
	if to.Currency != in.ToCurrency {
		return models.TransactionType{}, models.NewError(models.KindMalformedInput, "to account currency does not match to_currency")
	}

	if from.Currency == to.Currency {
		return models.TransactionType{Tag: models.TxInternal, From: from, To: &to}, nil
	}

	rate, exchangeID, err := requireExchange(in)
	if err != nil {
		return models.TransactionType{}, err
	}
	if in.ValueCurrency != from.Currency && in.ValueCurrency != to.Currency {
		return models.TransactionType{}, models.NewError(models.KindMalformedInput, "value_currency must match either account's currency")
	}

	return models.TransactionType{
		Tag: models.TxInternalExchange, From: from, To: &to,
		ExchangeID: exchangeID, ExchangeRate: rate,
	}, nil
}

func (s *Service) classifyAddress(ctx context.Context, in models.CreateTransactionInput, from models.Account) (models.TransactionType, error) {
	owned, found, err := s.accounts.GetByAddress(ctx, in.To, in.ToCurrency, models.Cr)
	if err != nil {
		return models.TransactionType{}, models.Wrap(models.KindInternal, "lookup address", err)
	}

	if found {
		if from.Currency == owned.Currency {
			return models.TransactionType{Tag: models.TxInternal, From: from, To: &owned}, nil
		}
		rate, exchangeID, err := requireExchange(in)
		if err != nil {
			return models.TransactionType{}, err
		}
		if in.ValueCurrency != from.Currency && in.ValueCurrency != owned.Currency {
			return models.TransactionType{}, models.NewError(models.KindMalformedInput, "value_currency must match either account's currency")
		}
		return models.TransactionType{
			Tag: models.TxInternalExchange, From: from, To: &owned,
			ExchangeID: exchangeID, ExchangeRate: rate,
		}, nil
	}

	others, err := s.accounts.FilterByAddress(ctx, in.To)
	if err != nil {
		return models.TransactionType{}, models.Wrap(models.KindInternal, "filter by address", err)
	}
	for _, other := range others {
		if other.Currency != in.ToCurrency {
			return models.TransactionType{}, models.NewError(models.KindMalformedInput,
				"address is already registered for a different currency")
		}
	}

	if err := s.checkWithdrawalBalance(ctx, from, in.Value); err != nil {
		return models.TransactionType{}, err
	}

	if from.Currency == in.ToCurrency {
		return models.TransactionType{
			Tag: models.TxWithdrawal, From: from, ToAddress: in.To, ToCurrency: in.ToCurrency,
		}, nil
	}

	rate, exchangeID, err := requireExchange(in)
	if err != nil {
		return models.TransactionType{}, err
	}
	return models.TransactionType{
		Tag: models.TxWithdrawalExchange, From: from, ToAddress: in.To, ToCurrency: in.ToCurrency,
		ExchangeID: exchangeID, ExchangeRate: rate,
	}, nil
}

func requireExchange(in models.CreateTransactionInput) (rate float64, id string, err error) {
	if in.ExchangeID == nil || in.ExchangeRate == nil {
		return 0, "", models.NewError(models.KindMalformedInput, "exchange_id and exchange_rate are required for a cross-currency transfer")
	}
	return *in.ExchangeRate, *in.ExchangeID, nil
}

// checkWithdrawalBalance is the SPEC_FULL supplement (5): a
// non-authoritative early balance check so an obviously-overdrawn
// request fails Balance before any blockchain side effect is
// attempted. The Composer's create_base_tx re-check under the
// serializable transaction remains the authoritative one (Invariant 6).
func (s *Service) checkWithdrawalBalance(ctx context.Context, from models.Account, value money.Value) error {
	balance, err := s.transactions.GetAccountBalance(ctx, from.ID, from.Kind)
	if err != nil {
		return models.Wrap(models.KindInternal, "check balance", err)
	}
	if balance.LessThan(value) {
		return models.ErrBalance
	}
	return nil
}
