package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/txengine/internal/clients"
	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
)

type fakeService struct {
	createErr error
	out       models.TransactionOut
}

func (f *fakeService) CreateTransaction(ctx context.Context, rawToken string, in models.CreateTransactionInput) (models.TransactionOut, error) {
	if f.createErr != nil {
		return models.TransactionOut{}, f.createErr
	}
	return f.out, nil
}
func (f *fakeService) GetTransaction(ctx context.Context, rawToken, gid string) (models.TransactionOut, error) {
	if f.createErr != nil {
		return models.TransactionOut{}, f.createErr
	}
	return f.out, nil
}
func (f *fakeService) GetAccountBalance(ctx context.Context, rawToken string, accountID int64) (models.AccountWithBalance, error) {
	return models.AccountWithBalance{}, nil
}
func (f *fakeService) GetTransactionsForUser(ctx context.Context, rawToken string, userID int64, offset, limit int) ([]models.TransactionOut, error) {
	return nil, nil
}
func (f *fakeService) GetAccountTransactions(ctx context.Context, rawToken string, accountID int64, offset, limit int) ([]models.TransactionOut, error) {
	return nil, nil
}
func (f *fakeService) RefreshExchangeRate(ctx context.Context, rawToken string, from, to models.Currency) (clients.RateOutput, error) {
	return clients.RateOutput{Rate: 2}, nil
}

func TestCreateTransactionHandlerSuccess(t *testing.T) {
	svc := &fakeService{out: models.TransactionOut{
		GID: "gid-1", FromValue: money.FromUint64(10), ToValue: money.FromUint64(10),
		Fee: money.Zero(), CreatedAt: time.Now(),
	}}
	h := New(svc)
	mux := http.NewServeMux()
	h.Register(mux)

	body := strings.NewReader(`{"id":"gid-1","from":1,"to":"2","to_type":"account","to_currency":"ETH","value":"10","value_currency":"ETH","fee":"0"}`)
	req := httptest.NewRequest(http.MethodPost, "/transactions", body)
	req.Header.Set("Authorization", "Bearer user-1")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "gid-1") {
		t.Fatalf("expected response to contain gid, got %s", rec.Body.String())
	}
}

func TestCreateTransactionHandlerValidationFailure(t *testing.T) {
	svc := &fakeService{}
	h := New(svc)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty input, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetTransactionHandlerMapsNotFound(t *testing.T) {
	svc := &fakeService{createErr: models.ErrNotFound}
	h := New(svc)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/transactions/missing-gid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshExchangeRateHandler(t *testing.T) {
	svc := &fakeService{}
	h := New(svc)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/exchange/rate/refresh?from=BTC&to=ETH", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "2") {
		t.Fatalf("expected rate in response, got %s", rec.Body.String())
	}
}
