package classifier

import (
	"context"
	"testing"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
	"github.com/example/txengine/internal/repo"
)

func newTestService(t *testing.T) (*Service, *repo.Store) {
	t.Helper()
	store := repo.NewStore()
	svc := New(repo.NewAccountsRepo(store), repo.NewTransactionsRepo(store))
	return svc, store
}

func baseInput() models.CreateTransactionInput {
	return models.CreateTransactionInput{
		ID:            "gid-1",
		UserID:        1,
		From:          1,
		Value:         money.FromUint64(50),
		ValueCurrency: models.ETH,
	}
}

func TestClassifySameCurrencyAccountIsInternal(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.ETH, Kind: models.Cr, Address: "cr2"})

	in := baseInput()
	in.To = "2"
	in.ToType = models.ToAccount
	in.ToCurrency = models.ETH

	tt, err := svc.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tt.Tag != models.TxInternal {
		t.Fatalf("got tag %v, want TxInternal", tt.Tag)
	}
}

func TestClassifyCrossCurrencyAccountRequiresExchangeFields(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.BTC, Kind: models.Cr, Address: "cr2"})

	in := baseInput()
	in.To = "2"
	in.ToType = models.ToAccount
	in.ToCurrency = models.BTC

	if _, err := svc.Classify(context.Background(), in); models.KindOf(err) != models.KindMalformedInput {
		t.Fatalf("expected malformed-input error without exchange fields, got %v", err)
	}

	rate := 10.0
	exID := "ex-1"
	in.ExchangeRate = &rate
	in.ExchangeID = &exID
	tt, err := svc.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error with exchange fields: %v", err)
	}
	if tt.Tag != models.TxInternalExchange {
		t.Fatalf("got tag %v, want TxInternalExchange", tt.Tag)
	}
}

func TestClassifyAddressNotOwnedIsWithdrawal(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	// Fund account 1 so the early withdrawal balance check passes.
	if _, err := store.CreateTransaction(context.Background(), models.Transaction{
		GID: "seed-deposit", UserID: 1, CrAccountID: 1, Currency: models.ETH, Value: money.FromUint64(1000),
		Status: models.Done, Kind: models.KindDeposit, GroupKind: models.GroupDeposit,
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	in := baseInput()
	in.To = "0xdeadbeef"
	in.ToType = models.ToAddress
	in.ToCurrency = models.ETH

	tt, err := svc.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tt.Tag != models.TxWithdrawal {
		t.Fatalf("got tag %v, want TxWithdrawal", tt.Tag)
	}
}

func TestClassifyWithdrawalInsufficientBalanceFailsEarly(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})

	in := baseInput()
	in.Value = money.FromUint64(1_000_000)
	in.To = "0xdeadbeef"
	in.ToType = models.ToAddress
	in.ToCurrency = models.ETH

	_, err := svc.Classify(context.Background(), in)
	if models.KindOf(err) != models.KindBalance {
		t.Fatalf("expected KindBalance, got %v (%v)", models.KindOf(err), err)
	}
}

func TestClassifyAddressWrongCurrencyConflict(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 2, Currency: models.BTC, Kind: models.Cr, Address: "shared-addr"})

	in := baseInput()
	in.To = "shared-addr"
	in.ToType = models.ToAddress
	in.ToCurrency = models.ETH

	_, err := svc.Classify(context.Background(), in)
	if models.KindOf(err) != models.KindMalformedInput {
		t.Fatalf("expected malformed-input for currency conflict, got %v", err)
	}
}
