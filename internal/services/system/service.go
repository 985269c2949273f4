// Package system implements SystemService (§4.1): resolving the
// process-wide system accounts (liquidity, fees, transfer) configured
// per currency.
package system

import (
	"context"
	"fmt"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/repo"
)

// AccountIDs is the §6 configuration: one account id per
// (currency, role) pair.
type AccountIDs struct {
	LiquidityCr map[models.Currency]int64
	FeesCr      map[models.Currency]int64
	TransferCr  map[models.Currency]int64
}

// Service is the single production implementation of SystemService.
// It holds no state of its own beyond configured ids (§4.1).
type Service struct {
	ids      AccountIDs
	accounts repo.AccountsRepo
}

func New(ids AccountIDs, accounts repo.AccountsRepo) *Service {
	return &Service{ids: ids, accounts: accounts}
}

func (s *Service) Liquidity(ctx context.Context, currency models.Currency) (models.Account, error) {
	return s.resolve(ctx, s.ids.LiquidityCr, currency, "liquidity")
}

func (s *Service) Fees(ctx context.Context, currency models.Currency) (models.Account, error) {
	return s.resolve(ctx, s.ids.FeesCr, currency, "fees")
}

func (s *Service) Transfer(ctx context.Context, currency models.Currency) (models.Account, error) {
	return s.resolve(ctx, s.ids.TransferCr, currency, "transfer")
}

func (s *Service) resolve(ctx context.Context, table map[models.Currency]int64, currency models.Currency, role string) (models.Account, error) {
	id, ok := table[currency]
	if !ok {
		return models.Account{}, models.Wrap(models.KindNotFound,
			fmt.Sprintf("no system %s account configured for %s", role, currency), models.ErrNotFound)
	}
	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		return models.Account{}, models.Wrap(models.KindNotFound,
			fmt.Sprintf("system %s account %d for %s", role, id, currency), err)
	}
	return acc, nil
}
