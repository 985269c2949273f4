// Package composer implements the Composer (§4.4): it realizes a
// classified TransactionType as a group of double-entry postings
// sharing one gid, inside the serializable DB transaction the
// orchestrator already holds open.
package composer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/txengine/internal/clients"
	"github.com/example/txengine/internal/metrics"
	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
	"github.com/example/txengine/internal/repo"
	"github.com/example/txengine/internal/services/blockchain"
	"github.com/example/txengine/internal/services/system"
)

type Composer struct {
	transactions repo.TransactionsRepo
	system       *system.Service
	blockchain   *blockchain.Service
	exchange     clients.ExchangeClient
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

func New(
	transactions repo.TransactionsRepo,
	sys *system.Service,
	bc *blockchain.Service,
	exchange clients.ExchangeClient,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Composer {
	return &Composer{transactions: transactions, system: sys, blockchain: bc, exchange: exchange, logger: logger, metrics: m}
}

// Compose dispatches on tt.Tag and returns every posting the group
// produced, in insertion order (§5 ordering guarantees).
func (c *Composer) Compose(ctx context.Context, input models.CreateTransactionInput, tt models.TransactionType) ([]models.Transaction, error) {
	gid := input.ID
	switch tt.Tag {
	case models.TxInternal:
		return c.internal(ctx, gid, input, tt)
	case models.TxInternalExchange:
		return c.internalExchangeOnly(ctx, gid, input, tt)
	case models.TxWithdrawal:
		return c.withdrawal(ctx, gid, input.UserID, tt.From, tt.ToAddress, tt.ToCurrency,
			input.Value, input.Fee, tt.From.Currency, tt.From, models.GroupWithdrawal)
	case models.TxWithdrawalExchange:
		return c.withdrawalExchange(ctx, gid, input, tt)
	default:
		return nil, models.Wrap(models.KindInternal, "unknown transaction type tag", nil)
	}
}

// createBaseTx is §4.4's create_base_tx helper: asserts dr/cr share a
// currency, re-verifies the debited account's live balance, then
// inserts the posting (Invariant 6's explicit pre-check, on top of the
// serializable isolation the caller already holds).
func (c *Composer) createBaseTx(
	ctx context.Context, gid string, userID int64, dr, cr models.Account, value money.Value,
	kind models.TransactionKind, groupKind models.GroupKind, status models.TransactionStatus, blockchainTxID *string,
) (models.Transaction, error) {
	if dr.Currency != cr.Currency {
		return models.Transaction{}, models.Wrap(models.KindInternal, "dr/cr currency mismatch building posting", nil)
	}
	balance, err := c.transactions.GetAccountsBalance(ctx, userID, []int64{dr.ID})
	if err != nil {
		return models.Transaction{}, models.Wrap(models.KindInternal, "balance check", err)
	}
	if balance.LessThan(value) {
		return models.Transaction{}, models.ErrBalance
	}
	posting, err := c.transactions.Create(ctx, models.Transaction{
		GID: gid, UserID: userID, DrAccountID: dr.ID, CrAccountID: cr.ID,
		Currency: dr.Currency, Value: value, Status: status, BlockchainTxID: blockchainTxID,
		Kind: kind, GroupKind: groupKind,
	})
	if err == nil && c.metrics != nil {
		c.metrics.PostingsWrittenTotal.WithLabelValues(string(kind)).Inc()
	}
	return posting, err
}

// --- 4.4.1 Internal ---

func (c *Composer) internal(ctx context.Context, gid string, input models.CreateTransactionInput, tt models.TransactionType) ([]models.Transaction, error) {
	posting, err := c.createBaseTx(ctx, gid, input.UserID, tt.From, *tt.To, input.Value,
		models.KindInternalPosting, models.GroupInternal, models.Done, nil)
	if err != nil {
		return nil, err
	}
	return []models.Transaction{posting}, nil
}

// --- 4.4.2 InternalExchange ---

func (c *Composer) internalExchangeOnly(ctx context.Context, gid string, input models.CreateTransactionInput, tt models.TransactionType) ([]models.Transaction, error) {
	postings, _, err := c.composeInternalExchange(ctx, gid, input.UserID, tt.From, *tt.To,
		input.Value, input.ValueCurrency, tt.ExchangeRate, tt.ExchangeID, models.GroupInternalMulti)
	return postings, err
}

// composeInternalExchange builds the MultiFrom/MultiTo pair and calls
// ExchangeClient.Exchange once both postings are in. It returns the
// two postings and the MultiTo leg's value, which WithdrawalExchange
// (§4.4.4) reuses as the actual on-chain withdrawal amount.
func (c *Composer) composeInternalExchange(
	ctx context.Context, gid string, userID int64, from, to models.Account,
	value money.Value, valueCurrency models.Currency, rate float64, exchangeID string, groupKind models.GroupKind,
) ([]models.Transaction, money.Value, error) {
	var fromValue, toValue money.Value
	switch valueCurrency {
	case from.Currency:
		fromValue = value
		toValue = value.MulRat(rate)
	case to.Currency:
		toValue = value
		fromValue = value.MulRat(1.0 / rate)
	default:
		return nil, money.Zero(), models.NewError(models.KindInvalidInput,
			"value_currency must match either account's currency")
	}

	fromLiquidity, err := c.system.Liquidity(ctx, from.Currency)
	if err != nil {
		return nil, money.Zero(), err
	}
	toLiquidity, err := c.system.Liquidity(ctx, to.Currency)
	if err != nil {
		return nil, money.Zero(), err
	}

	multiFrom, err := c.createBaseTx(ctx, gid, userID, from, fromLiquidity, fromValue,
		models.KindMultiFrom, groupKind, models.Done, nil)
	if err != nil {
		return nil, money.Zero(), err
	}
	multiTo, err := c.createBaseTx(ctx, gid, userID, to, toLiquidity, toValue,
		models.KindMultiTo, groupKind, models.Done, nil)
	if err != nil {
		return nil, money.Zero(), err
	}

	if err := c.exchange.Exchange(ctx, clients.ExchangeInput{
		ID: exchangeID, From: from, To: to, Rate: rate,
		ActualAmount: value, AmountCurrency: valueCurrency,
	}, clients.RoleUser); err != nil {
		return nil, money.Zero(), models.Wrap(models.KindInternal, "exchange call failed", err)
	}

	return []models.Transaction{multiFrom, multiTo}, toValue, nil
}

// --- 4.4.3 Withdrawal ---

func (c *Composer) withdrawal(
	ctx context.Context, gid string, userID int64, fromAccount models.Account, toAddress string, currency models.Currency,
	value, fee money.Value, feeCurrency models.Currency, feePayer models.Account, groupKind models.GroupKind,
) ([]models.Transaction, error) {
	grossFee, feePrice, _, err := c.blockchain.EstimateWithdrawalFee(ctx, fee, feeCurrency, currency)
	if err != nil {
		return nil, err
	}

	takes, err := c.transactions.GetAccountsForWithdrawal(ctx, value, currency, userID, grossFee)
	if err != nil {
		return nil, err
	}

	sum := money.Zero()
	for _, t := range takes {
		balance, err := c.transactions.GetAccountsBalance(ctx, userID, []int64{t.Account.ID})
		if err != nil {
			return nil, models.Wrap(models.KindInternal, "recheck withdrawal source balance", err)
		}
		if balance.LessThan(t.TakeAmount) {
			return nil, models.ErrBalance
		}
		sum = sum.Add(t.TakeAmount)
	}
	if !sum.Equal(value) {
		return nil, models.NewError(models.KindInvalidInput, "withdrawal source takes do not sum to the requested value")
	}

	var postings []models.Transaction
	for i, t := range takes {
		txID, err := c.broadcast(ctx, currency, t.Account.Address, toAddress, t.TakeAmount, feePrice)
		if err != nil {
			if i == 0 {
				// Nothing broadcast yet: abort the whole group (§4.4.3.4).
				return nil, err
			}
			c.logger.Error().Err(err).Str("gid", gid).Int("leg", i).
				Msg("blockchain broadcast failed after earlier legs succeeded; committing partial withdrawal")
			break
		}

		posting, err := c.createBaseTx(ctx, gid, userID, fromAccount, t.Account, t.TakeAmount,
			models.KindWithdrawal, groupKind, models.Pending, &txID)
		if err != nil {
			// The chain fact is already final; losing the ledger row is
			// the same authoritative-chain situation BlockchainService's
			// own pending-row policy handles (§4.2) — log and continue.
			c.logger.Error().Err(err).Str("gid", gid).Str("blockchain_tx_id", txID).
				Msg("failed to persist withdrawal posting after successful broadcast")
			continue
		}
		postings = append(postings, posting)
	}

	feeAccount, err := c.system.Fees(ctx, feeCurrency)
	if err != nil {
		return nil, err
	}
	feePosting, err := c.createBaseTx(ctx, gid, userID, feePayer, feeAccount, fee,
		models.KindFee, groupKind, models.Done, nil)
	if err != nil {
		return nil, err
	}
	postings = append(postings, feePosting)

	return postings, nil
}

func (c *Composer) broadcast(ctx context.Context, currency models.Currency, from, to string, value, feePrice money.Value) (string, error) {
	switch currency {
	case models.BTC:
		return c.blockchain.CreateBitcoinTx(ctx, from, to, value, feePrice)
	case models.ETH, models.STQ:
		return c.blockchain.CreateEthereumTx(ctx, from, to, value, feePrice, currency)
	default:
		return "", models.NewError(models.KindInvalidInput, "unsupported withdrawal currency")
	}
}

// --- 4.4.4 WithdrawalExchange ---

func (c *Composer) withdrawalExchange(ctx context.Context, gid string, input models.CreateTransactionInput, tt models.TransactionType) ([]models.Transaction, error) {
	transferAccount, err := c.system.Transfer(ctx, tt.ToCurrency)
	if err != nil {
		return nil, err
	}

	exchangePostings, actualValue, err := c.composeInternalExchange(ctx, gid, input.UserID, tt.From, transferAccount,
		input.Value, input.ValueCurrency, tt.ExchangeRate, tt.ExchangeID, models.GroupWithdrawalMulti)
	if err != nil {
		return nil, err
	}

	withdrawalPostings, err := c.withdrawal(ctx, gid, input.UserID, transferAccount, tt.ToAddress, tt.ToCurrency,
		actualValue, input.Fee, tt.From.Currency, tt.From, models.GroupWithdrawalMulti)
	if err != nil {
		return nil, err
	}

	return append(exchangePostings, withdrawalPostings...), nil
}
