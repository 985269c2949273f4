// Package converter implements ConverterService (§4.5): the inverse of
// the Composer, reconstructing a caller-visible TransactionOut from a
// stored posting group.
package converter

import (
	"context"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
	"github.com/example/txengine/internal/repo"
)

type Service struct {
	accounts repo.AccountsRepo
	pending  repo.PendingBlockchainTransactionsRepo
	chainTx  repo.BlockchainTransactionsRepo
}

func New(accounts repo.AccountsRepo, pending repo.PendingBlockchainTransactionsRepo, chainTx repo.BlockchainTransactionsRepo) *Service {
	return &Service{accounts: accounts, pending: pending, chainTx: chainTx}
}

// Convert reconstructs a TransactionOut from a non-empty posting group
// sharing one gid. Any structural mismatch is always Internal (§4.5).
func (s *Service) Convert(ctx context.Context, postings []models.Transaction) (models.TransactionOut, error) {
	if len(postings) == 0 {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "empty posting group", nil)
	}
	gid := postings[0].GID
	groupKind := postings[0].GroupKind
	for _, p := range postings {
		if p.GID != gid || p.GroupKind != groupKind {
			return models.TransactionOut{}, models.Wrap(models.KindInternal, "posting group has mixed gid/group_kind", nil)
		}
	}

	switch groupKind {
	case models.GroupDeposit:
		return s.convertDeposit(ctx, gid, postings)
	case models.GroupInternal:
		return s.convertInternal(ctx, gid, postings)
	case models.GroupInternalMulti:
		return s.convertInternalMulti(ctx, gid, postings)
	case models.GroupWithdrawal:
		return s.convertWithdrawal(ctx, gid, postings)
	case models.GroupWithdrawalMulti:
		return s.convertWithdrawalMulti(ctx, gid, postings)
	default:
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "unknown group_kind", nil)
	}
}

func findByKind(postings []models.Transaction, kind models.TransactionKind) (models.Transaction, bool) {
	for _, p := range postings {
		if p.Kind == kind {
			return p, true
		}
	}
	return models.Transaction{}, false
}

func (s *Service) convertDeposit(ctx context.Context, gid string, postings []models.Transaction) (models.TransactionOut, error) {
	if len(postings) != 1 {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "deposit group must have exactly one posting", nil)
	}
	p := postings[0]
	if p.BlockchainTxID == nil {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "deposit posting missing blockchain_tx_id", nil)
	}
	chain, found, err := s.chainTx.Get(ctx, *p.BlockchainTxID)
	if err != nil {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "lookup deposit chain transaction", err)
	}
	if !found {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "deposit references unknown chain transaction", nil)
	}
	to, err := s.accounts.Get(ctx, p.CrAccountID)
	if err != nil {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "deposit credit account", err)
	}
	return models.TransactionOut{
		GID: gid, UserID: p.UserID, GroupKind: p.GroupKind, Status: p.Status,
		FromAddress: chain.FromAddress, FromValue: p.Value, FromCurrency: p.Currency,
		ToAddress: to.Address, ToValue: p.Value, ToCurrency: p.Currency,
		Fee: money.Zero(), FeeCurrency: p.Currency, BlockchainTxID: p.BlockchainTxID,
		CreatedAt: p.CreatedAt,
	}, nil
}

func (s *Service) convertInternal(ctx context.Context, gid string, postings []models.Transaction) (models.TransactionOut, error) {
	if len(postings) != 1 {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "internal group must have exactly one posting", nil)
	}
	p := postings[0]
	from, err := s.accounts.Get(ctx, p.DrAccountID)
	if err != nil {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "internal debit account", err)
	}
	to, err := s.accounts.Get(ctx, p.CrAccountID)
	if err != nil {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "internal credit account", err)
	}
	return models.TransactionOut{
		GID: gid, UserID: p.UserID, GroupKind: p.GroupKind, Status: p.Status,
		FromAddress: from.Address, FromValue: p.Value, FromCurrency: p.Currency,
		ToAddress: to.Address, ToValue: p.Value, ToCurrency: p.Currency,
		Fee: money.Zero(), FeeCurrency: p.Currency, BlockchainTxID: nil,
		CreatedAt: p.CreatedAt,
	}, nil
}

// convertInternalMultiRaw returns both the reconstructed out and the raw
// MultiFrom/MultiTo postings, so convertWithdrawalMulti can reuse it
// for the exchange half of a cross-currency withdrawal.
func (s *Service) convertInternalMultiRaw(ctx context.Context, postings []models.Transaction) (from, to models.Transaction, out models.TransactionOut, err error) {
	multiFrom, ok := findByKind(postings, models.KindMultiFrom)
	if !ok {
		err = models.Wrap(models.KindInternal, "internal_multi group missing multi_from posting", nil)
		return
	}
	multiTo, ok := findByKind(postings, models.KindMultiTo)
	if !ok {
		err = models.Wrap(models.KindInternal, "internal_multi group missing multi_to posting", nil)
		return
	}

	fromAccount, aerr := s.accounts.Get(ctx, multiFrom.DrAccountID)
	if aerr != nil {
		err = models.Wrap(models.KindInternal, "multi_from debit account", aerr)
		return
	}
	toAccount, aerr := s.accounts.Get(ctx, multiTo.DrAccountID)
	if aerr != nil {
		err = models.Wrap(models.KindInternal, "multi_to debit account", aerr)
		return
	}

	out = models.TransactionOut{
		UserID: multiFrom.UserID, GroupKind: multiFrom.GroupKind,
		Status:       models.FoldStatuses(postings),
		FromAddress:  fromAccount.Address, FromValue: multiFrom.Value, FromCurrency: multiFrom.Currency,
		ToAddress:    toAccount.Address, ToValue: multiTo.Value, ToCurrency: multiTo.Currency,
		CreatedAt: multiFrom.CreatedAt,
	}
	return multiFrom, multiTo, out, nil
}

func (s *Service) convertInternalMulti(ctx context.Context, gid string, postings []models.Transaction) (models.TransactionOut, error) {
	_, _, out, err := s.convertInternalMultiRaw(ctx, postings)
	if err != nil {
		return models.TransactionOut{}, err
	}
	out.GID = gid
	out.Fee = money.Zero()
	out.FeeCurrency = out.FromCurrency
	return out, nil
}

func (s *Service) convertWithdrawal(ctx context.Context, gid string, postings []models.Transaction) (models.TransactionOut, error) {
	withdrawal, ok := findByKind(postings, models.KindWithdrawal)
	if !ok {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "withdrawal group missing withdrawal posting", nil)
	}
	fee, ok := findByKind(postings, models.KindFee)
	if !ok {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "withdrawal group missing fee posting", nil)
	}

	from, err := s.accounts.Get(ctx, withdrawal.DrAccountID)
	if err != nil {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "withdrawal debit account", err)
	}

	toAddress, err := s.resolveDestinationAddress(ctx, withdrawal)
	if err != nil {
		return models.TransactionOut{}, err
	}

	return models.TransactionOut{
		GID: gid, UserID: withdrawal.UserID, GroupKind: withdrawal.GroupKind, Status: withdrawal.Status,
		FromAddress: from.Address, FromValue: withdrawal.Value, FromCurrency: withdrawal.Currency,
		ToAddress: toAddress, ToValue: withdrawal.Value, ToCurrency: withdrawal.Currency,
		Fee: fee.Value, FeeCurrency: fee.Currency, BlockchainTxID: withdrawal.BlockchainTxID,
		CreatedAt: withdrawal.CreatedAt,
	}, nil
}

func (s *Service) convertWithdrawalMulti(ctx context.Context, gid string, postings []models.Transaction) (models.TransactionOut, error) {
	var exchangeLeg, rest []models.Transaction
	for _, p := range postings {
		if p.Kind == models.KindMultiFrom || p.Kind == models.KindMultiTo {
			exchangeLeg = append(exchangeLeg, p)
		} else {
			rest = append(rest, p)
		}
	}

	_, _, fromOut, err := s.convertInternalMultiRaw(ctx, exchangeLeg)
	if err != nil {
		return models.TransactionOut{}, err
	}

	withdrawal, ok := findByKind(rest, models.KindWithdrawal)
	if !ok {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "withdrawal_multi group missing withdrawal posting", nil)
	}
	fee, ok := findByKind(rest, models.KindFee)
	if !ok {
		return models.TransactionOut{}, models.Wrap(models.KindInternal, "withdrawal_multi group missing fee posting", nil)
	}

	toAddress, err := s.resolveDestinationAddress(ctx, withdrawal)
	if err != nil {
		return models.TransactionOut{}, err
	}

	return models.TransactionOut{
		GID: gid, UserID: withdrawal.UserID, GroupKind: models.GroupWithdrawalMulti,
		Status:      models.FoldStatuses(postings),
		FromAddress: fromOut.FromAddress, FromValue: fromOut.FromValue, FromCurrency: fromOut.FromCurrency,
		ToAddress: toAddress, ToValue: withdrawal.Value, ToCurrency: withdrawal.Currency,
		Fee: fee.Value, FeeCurrency: fee.Currency, BlockchainTxID: withdrawal.BlockchainTxID,
		CreatedAt: withdrawal.CreatedAt,
	}, nil
}

// resolveDestinationAddress reads the withdrawal's target address back
// from whichever the broadcast actually produced: a confirmed
// BlockchainTransaction if one has landed, else the pending row
// recorded at broadcast time (§4.5).
func (s *Service) resolveDestinationAddress(ctx context.Context, withdrawal models.Transaction) (string, error) {
	if withdrawal.BlockchainTxID == nil {
		return "", models.Wrap(models.KindInternal, "withdrawal posting missing blockchain_tx_id", nil)
	}
	if chain, found, err := s.chainTx.Get(ctx, *withdrawal.BlockchainTxID); err != nil {
		return "", models.Wrap(models.KindInternal, "lookup withdrawal chain transaction", err)
	} else if found {
		return chain.ToAddress, nil
	}
	if pending, found, err := s.pending.Get(ctx, *withdrawal.BlockchainTxID); err != nil {
		return "", models.Wrap(models.KindInternal, "lookup pending withdrawal transaction", err)
	} else if found {
		return pending.ToAddress, nil
	}
	return "", models.Wrap(models.KindInternal, "withdrawal references unknown blockchain transaction", nil)
}
