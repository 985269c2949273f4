package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/txengine/internal/clients"
	"github.com/example/txengine/internal/models"
)

// TransactionsService is the subset of services/transactions.Service
// each handler calls; declared here so handlers can be tested against
// a double instead of the concrete service.
type TransactionsService interface {
	CreateTransaction(ctx context.Context, rawToken string, in models.CreateTransactionInput) (models.TransactionOut, error)
	GetTransaction(ctx context.Context, rawToken string, gid string) (models.TransactionOut, error)
	GetAccountBalance(ctx context.Context, rawToken string, accountID int64) (models.AccountWithBalance, error)
	GetTransactionsForUser(ctx context.Context, rawToken string, userID int64, offset, limit int) ([]models.TransactionOut, error)
	GetAccountTransactions(ctx context.Context, rawToken string, accountID int64, offset, limit int) ([]models.TransactionOut, error)
	RefreshExchangeRate(ctx context.Context, rawToken string, from, to models.Currency) (clients.RateOutput, error)
}

type Handlers struct {
	service TransactionsService
}

func New(service TransactionsService) *Handlers {
	return &Handlers{service: service}
}

// Register wires every route onto mux using Go 1.22's method-and-path
// ServeMux patterns.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /transactions", h.CreateTransaction)
	mux.HandleFunc("GET /transactions/{gid}", h.GetTransaction)
	mux.HandleFunc("GET /users/{id}/transactions", h.GetUserTransactions)
	mux.HandleFunc("GET /accounts/{id}/transactions", h.GetAccountTransactions)
	mux.HandleFunc("GET /accounts/{id}/balance", h.GetAccountBalance)
	mux.HandleFunc("GET /exchange/rate/refresh", h.RefreshExchangeRate)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == header {
		return ""
	}
	return raw
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.Invalid("malformed request body", err.Error()))
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	// The body carries no user_id: the service takes it from the bearer
	// token. Every other rule is checked here with a placeholder owner.
	probe := in
	probe.UserID = 1
	if err := models.ValidateCreateTransactionInput(probe); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.service.CreateTransaction(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionOutResponse(out))
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	gid := r.PathValue("gid")
	out, err := h.service.GetTransaction(r.Context(), bearerToken(r), gid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionOutResponse(out))
}

func (h *Handlers) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, models.Invalid("id: must be an integer account id"))
		return
	}
	out, err := h.service.GetAccountBalance(r.Context(), bearerToken(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountBalanceResponse(out))
}

func (h *Handlers) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, models.Invalid("id: must be an integer user id"))
		return
	}
	offset, limit := pagination(r)
	out, err := h.service.GetTransactionsForUser(r.Context(), bearerToken(r), id, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionOutList(out))
}

func (h *Handlers) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, models.Invalid("id: must be an integer account id"))
		return
	}
	offset, limit := pagination(r)
	out, err := h.service.GetAccountTransactions(r.Context(), bearerToken(r), id, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionOutList(out))
}

func (h *Handlers) RefreshExchangeRate(w http.ResponseWriter, r *http.Request) {
	from := models.Currency(r.URL.Query().Get("from"))
	to := models.Currency(r.URL.Query().Get("to"))
	if !from.Valid() || !to.Valid() {
		writeError(w, models.Invalid("from/to: must each be one of BTC, ETH, STQ"))
		return
	}
	out, err := h.service.RefreshExchangeRate(r.Context(), bearerToken(r), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"rate": out.Rate})
}

func toTransactionOutList(in []models.TransactionOut) []transactionOutResponse {
	out := make([]transactionOutResponse, 0, len(in))
	for _, t := range in {
		out = append(out, toTransactionOutResponse(t))
	}
	return out
}

// pagination reads the offset/limit query parameters, defaulting to 0
// and 20 and replacing a limit outside 1..100 with 20. The limit*3
// safety multiple is applied by the service, not here.
func pagination(r *http.Request) (offset, limit int) {
	offset = queryInt(r, "offset", 0)
	limit = queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
