package transactions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/txengine/internal/clients"
	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
	"github.com/example/txengine/internal/repo"
	"github.com/example/txengine/internal/services/blockchain"
	"github.com/example/txengine/internal/services/classifier"
	"github.com/example/txengine/internal/services/composer"
	"github.com/example/txengine/internal/services/converter"
	"github.com/example/txengine/internal/services/system"
)

// fakeAuth maps the raw tokens "user-1" and "user-2" to user ids 1 and
// 2 and rejects anything else, so tests can authenticate without a
// real JWT.
type fakeAuth struct{}

func (fakeAuth) Verify(raw string) (models.Token, error) {
	switch raw {
	case "user-1":
		return models.Token{UserID: 1}, nil
	case "user-2":
		return models.Token{UserID: 2}, nil
	default:
		return models.Token{}, models.ErrUnauthorized
	}
}

type fakeExchange struct{}

func (fakeExchange) Rate(ctx context.Context, in clients.RateInput, role clients.Role) (clients.RateOutput, error) {
	return clients.RateOutput{Rate: 1}, nil
}
func (fakeExchange) Exchange(ctx context.Context, in clients.ExchangeInput, role clients.Role) error {
	return nil
}
func (fakeExchange) RefreshRate(ctx context.Context, in clients.RateInput, role clients.Role) (clients.RateOutput, error) {
	return clients.RateOutput{Rate: 1}, nil
}

func newHarness(t *testing.T) (*Service, *repo.Store) {
	t.Helper()
	store := repo.NewStore()
	accountsRepo := repo.NewAccountsRepo(store)
	transactionsRepo := repo.NewTransactionsRepo(store)
	pendingRepo := repo.NewPendingRepo(store)
	chainTxRepo := repo.NewChainTxRepo(store)

	sys := system.New(system.AccountIDs{
		LiquidityCr: map[models.Currency]int64{models.ETH: 900, models.BTC: 901},
		FeesCr:      map[models.Currency]int64{models.ETH: 910, models.BTC: 911},
		TransferCr:  map[models.Currency]int64{models.ETH: 920, models.BTC: 921},
	}, accountsRepo)
	store.SeedAccount(models.Account{ID: 900, Currency: models.ETH, Kind: models.Cr, Address: "liquidity-eth"})
	store.SeedAccount(models.Account{ID: 901, Currency: models.BTC, Kind: models.Cr, Address: "liquidity-btc"})
	store.SeedAccount(models.Account{ID: 910, Currency: models.ETH, Kind: models.Cr, Address: "fees-eth"})
	store.SeedAccount(models.Account{ID: 911, Currency: models.BTC, Kind: models.Cr, Address: "fees-btc"})
	store.SeedAccount(models.Account{ID: 920, Currency: models.ETH, Kind: models.Cr, Address: "transfer-eth"})
	store.SeedAccount(models.Account{ID: 921, Currency: models.BTC, Kind: models.Cr, Address: "transfer-btc"})

	bc := blockchain.New(
		fakeExchange{}, nil, nil, pendingRepo, store, sys,
		blockchain.FeesOptions{FeeUpside: 1, BTCTransactionSize: 1, ETHGasLimit: 1, STQGasLimit: 1},
		nil, zerolog.Nop(), nil,
	)

	classifierSvc := classifier.New(accountsRepo, transactionsRepo)
	composerSvc := composer.New(transactionsRepo, sys, bc, fakeExchange{}, zerolog.Nop(), nil)
	converterSvc := converter.New(accountsRepo, pendingRepo, chainTxRepo)

	svc := New(fakeAuth{}, classifierSvc, composerSvc, converterSvc, store, transactionsRepo, accountsRepo, fakeExchange{}, zerolog.Nop())
	return svc, store
}

func TestCreateTransactionInternalAndFetch(t *testing.T) {
	svc, store := newHarness(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.ETH, Kind: models.Cr, Address: "cr2"})
	// Fund account 1 with a deposit so the Internal transfer below passes its balance check.
	if _, err := store.CreateTransaction(context.Background(), models.Transaction{
		GID: "seed-deposit", CrAccountID: 1, Currency: models.ETH, Value: money.FromUint64(1000),
		Status: models.Done, Kind: models.KindDeposit, GroupKind: models.GroupDeposit,
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	in := models.CreateTransactionInput{
		ID: "gid-internal-1", From: 1, To: "2", ToType: models.ToAccount,
		ToCurrency: models.ETH, Value: money.FromUint64(100), ValueCurrency: models.ETH,
	}

	out, err := svc.CreateTransaction(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("CreateTransaction: unexpected error: %v", err)
	}
	if out.GID != "gid-internal-1" {
		t.Fatalf("unexpected gid: %s", out.GID)
	}

	fetched, err := svc.GetTransaction(context.Background(), "user-1", "gid-internal-1")
	if err != nil {
		t.Fatalf("GetTransaction: unexpected error: %v", err)
	}
	if fetched.ToAddress != "cr2" {
		t.Fatalf("unexpected fetched to_address: %s", fetched.ToAddress)
	}
}

func TestCreateTransactionIsIdempotentOnReplay(t *testing.T) {
	svc, store := newHarness(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.ETH, Kind: models.Cr, Address: "cr2"})
	if _, err := store.CreateTransaction(context.Background(), models.Transaction{
		GID: "seed-deposit", CrAccountID: 1, Currency: models.ETH, Value: money.FromUint64(1000),
		Status: models.Done, Kind: models.KindDeposit, GroupKind: models.GroupDeposit,
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	in := models.CreateTransactionInput{
		ID: "gid-replay-1", From: 1, To: "2", ToType: models.ToAccount,
		ToCurrency: models.ETH, Value: money.FromUint64(50), ValueCurrency: models.ETH,
	}

	first, err := svc.CreateTransaction(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("first CreateTransaction: unexpected error: %v", err)
	}
	second, err := svc.CreateTransaction(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("replayed CreateTransaction: unexpected error: %v", err)
	}
	if first.GID != second.GID || !first.FromValue.Equal(second.FromValue) {
		t.Fatalf("replay produced a different result: first=%+v second=%+v", first, second)
	}

	postings, err := store.GetByGID(context.Background(), "gid-replay-1")
	if err != nil {
		t.Fatalf("GetByGID: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected replay to leave exactly one posting, got %d", len(postings))
	}
}

func TestGetTransactionNotFoundBeforeUnauthorized(t *testing.T) {
	svc, _ := newHarness(t)
	_, err := svc.GetTransaction(context.Background(), "user-1", "does-not-exist")
	if models.KindOf(err) != models.KindNotFound {
		t.Fatalf("expected KindNotFound for a missing gid, got %v", err)
	}
}

func TestGetTransactionUnauthorizedForOtherUsersGroup(t *testing.T) {
	svc, store := newHarness(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.ETH, Kind: models.Cr, Address: "cr2"})
	if _, err := store.CreateTransaction(context.Background(), models.Transaction{
		GID: "seed-deposit", CrAccountID: 1, Currency: models.ETH, Value: money.FromUint64(1000),
		Status: models.Done, Kind: models.KindDeposit, GroupKind: models.GroupDeposit,
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	in := models.CreateTransactionInput{
		ID: "gid-owned-by-1", From: 1, To: "2", ToType: models.ToAccount,
		ToCurrency: models.ETH, Value: money.FromUint64(10), ValueCurrency: models.ETH,
	}
	if _, err := svc.CreateTransaction(context.Background(), "user-1", in); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	_, err := svc.GetTransaction(context.Background(), "user-2", "gid-owned-by-1")
	if models.KindOf(err) != models.KindUnauthorized {
		t.Fatalf("expected KindUnauthorized for another user's group, got %v", err)
	}
}

func TestCreateTransactionCrossUserRejected(t *testing.T) {
	svc, _ := newHarness(t)
	in := models.CreateTransactionInput{
		ID: "gid-x", UserID: 2, From: 1, To: "2", ToType: models.ToAccount,
		ToCurrency: models.ETH, Value: money.FromUint64(10), ValueCurrency: models.ETH,
	}
	_, err := svc.CreateTransaction(context.Background(), "user-1", in)
	if models.KindOf(err) != models.KindUnauthorized {
		t.Fatalf("expected KindUnauthorized when input.user_id doesn't match the token, got %v", err)
	}
}
