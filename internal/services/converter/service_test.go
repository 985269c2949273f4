package converter

import (
	"context"
	"testing"
	"time"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
	"github.com/example/txengine/internal/repo"
)

func newTestService(t *testing.T) (*Service, *repo.Store) {
	t.Helper()
	store := repo.NewStore()
	svc := New(repo.NewAccountsRepo(store), repo.NewPendingRepo(store), repo.NewChainTxRepo(store))
	return svc, store
}

func TestConvertInternal(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.ETH, Kind: models.Cr, Address: "cr2"})

	postings := []models.Transaction{
		{
			ID: 1, GID: "gid-1", UserID: 1, DrAccountID: 1, CrAccountID: 2,
			Currency: models.ETH, Value: money.FromUint64(100), Status: models.Done,
			Kind: models.KindInternalPosting, GroupKind: models.GroupInternal, CreatedAt: time.Now(),
		},
	}

	out, err := svc.Convert(context.Background(), postings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FromAddress != "dr1" || out.ToAddress != "cr2" {
		t.Fatalf("unexpected addresses: from=%s to=%s", out.FromAddress, out.ToAddress)
	}
	if !out.FromValue.Equal(money.FromUint64(100)) {
		t.Fatalf("unexpected value: %s", out.FromValue.String())
	}
	if out.Status != models.Done {
		t.Fatalf("expected Done status, got %v", out.Status)
	}
}

func TestConvertDeposit(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 2, UserID: 1, Currency: models.BTC, Kind: models.Cr, Address: "cr2"})
	store.SeedBlockchainTransaction(models.BlockchainTransaction{
		Hash: "hash-1", FromAddress: "chain-from", ToAddress: "cr2", Currency: models.BTC,
	})

	hash := "hash-1"
	postings := []models.Transaction{
		{
			ID: 1, GID: "gid-2", UserID: 1, DrAccountID: 0, CrAccountID: 2,
			Currency: models.BTC, Value: money.FromUint64(500), Status: models.Done,
			Kind: models.KindDeposit, GroupKind: models.GroupDeposit, BlockchainTxID: &hash, CreatedAt: time.Now(),
		},
	}

	out, err := svc.Convert(context.Background(), postings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FromAddress != "chain-from" {
		t.Fatalf("expected chain-observed from address, got %s", out.FromAddress)
	}
	if out.ToAddress != "cr2" {
		t.Fatalf("expected credit account address, got %s", out.ToAddress)
	}
}

func TestConvertWithdrawalResolvesPendingAddress(t *testing.T) {
	svc, store := newTestService(t)
	store.SeedAccount(models.Account{ID: 1, UserID: 1, Currency: models.ETH, Kind: models.Dr, Address: "dr1"})

	hash := "eth-hash"
	if err := store.CreatePending(context.Background(), models.PendingBlockchainTransaction{
		Hash: hash, FromAddress: "dr1", ToAddress: "0xabc", Currency: models.ETH, Value: money.FromUint64(10),
	}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	postings := []models.Transaction{
		{
			ID: 1, GID: "gid-3", UserID: 1, DrAccountID: 1, CrAccountID: 0,
			Currency: models.ETH, Value: money.FromUint64(10), Status: models.Done,
			Kind: models.KindWithdrawal, GroupKind: models.GroupWithdrawal, BlockchainTxID: &hash, CreatedAt: time.Now(),
		},
		{
			ID: 2, GID: "gid-3", UserID: 1, DrAccountID: 1, CrAccountID: 0,
			Currency: models.ETH, Value: money.FromUint64(1), Status: models.Done,
			Kind: models.KindFee, GroupKind: models.GroupWithdrawal, CreatedAt: time.Now(),
		},
	}

	out, err := svc.Convert(context.Background(), postings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ToAddress != "0xabc" {
		t.Fatalf("expected pending-resolved address, got %s", out.ToAddress)
	}
	if !out.Fee.Equal(money.FromUint64(1)) {
		t.Fatalf("expected fee posting value, got %s", out.Fee.String())
	}
}

func TestConvertEmptyGroupIsInternalError(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Convert(context.Background(), nil); models.KindOf(err) != models.KindInternal {
		t.Fatalf("expected KindInternal for empty group, got %v", err)
	}
}
