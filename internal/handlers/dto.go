// Package handlers exposes TransactionsService over HTTP: the five §6
// endpoints plus the SPEC_FULL refresh-rate passthrough, as thin JSON
// adapters that translate models.Error into HTTP status codes.
package handlers

import (
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/money"
)

type createTransactionRequest struct {
	ID            string  `json:"id"`
	From          int64   `json:"from"`
	To            string  `json:"to"`
	ToType        string  `json:"to_type"`
	ToCurrency    string  `json:"to_currency"`
	Value         string  `json:"value"`
	ValueCurrency string  `json:"value_currency"`
	Fee           string  `json:"fee"`
	ExchangeID    *string `json:"exchange_id,omitempty"`
	ExchangeRate  *float64 `json:"exchange_rate,omitempty"`
	HoldUntil     *int64  `json:"hold_until,omitempty"`
}

func (r createTransactionRequest) toInput() (models.CreateTransactionInput, error) {
	value, err := parseAmount(r.Value)
	if err != nil {
		return models.CreateTransactionInput{}, models.Invalid("value: " + err.Error())
	}
	fee, err := parseAmount(r.Fee)
	if err != nil {
		return models.CreateTransactionInput{}, models.Invalid("fee: " + err.Error())
	}
	return models.CreateTransactionInput{
		ID:            r.ID,
		From:          r.From,
		To:            r.To,
		ToType:        models.ToType(r.ToType),
		ToCurrency:    models.Currency(r.ToCurrency),
		Value:         value,
		ValueCurrency: models.Currency(r.ValueCurrency),
		Fee:           fee,
		ExchangeID:    r.ExchangeID,
		ExchangeRate:  r.ExchangeRate,
		HoldUntil:     r.HoldUntil,
	}, nil
}

func parseAmount(s string) (money.Value, error) {
	if s == "" {
		return money.Zero(), nil
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return money.Zero(), models.Invalid("not a valid integer amount")
	}
	return money.FromBigInt(i)
}

type transactionOutResponse struct {
	GID            string  `json:"gid"`
	UserID         int64   `json:"user_id"`
	GroupKind      string  `json:"group_kind"`
	Status         string  `json:"status"`
	FromAddress    string  `json:"from_address,omitempty"`
	FromValue      string  `json:"from_value"`
	FromCurrency   string  `json:"from_currency"`
	ToAddress      string  `json:"to_address,omitempty"`
	ToValue        string  `json:"to_value"`
	ToCurrency     string  `json:"to_currency"`
	Fee            string  `json:"fee"`
	FeeCurrency    string  `json:"fee_currency,omitempty"`
	BlockchainTxID *string `json:"blockchain_tx_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toTransactionOutResponse(out models.TransactionOut) transactionOutResponse {
	return transactionOutResponse{
		GID:            out.GID,
		UserID:         out.UserID,
		GroupKind:      string(out.GroupKind),
		Status:         string(out.Status),
		FromAddress:    out.FromAddress,
		FromValue:      out.FromValue.String(),
		FromCurrency:   string(out.FromCurrency),
		ToAddress:      out.ToAddress,
		ToValue:        out.ToValue.String(),
		ToCurrency:     string(out.ToCurrency),
		Fee:            out.Fee.String(),
		FeeCurrency:    string(out.FeeCurrency),
		BlockchainTxID: out.BlockchainTxID,
		CreatedAt:      out.CreatedAt,
	}
}

type accountBalanceResponse struct {
	AccountID int64  `json:"account_id"`
	UserID    int64  `json:"user_id"`
	Currency  string `json:"currency"`
	Kind      string `json:"kind"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
}

func toAccountBalanceResponse(a models.AccountWithBalance) accountBalanceResponse {
	return accountBalanceResponse{
		AccountID: a.Account.ID,
		UserID:    a.Account.UserID,
		Currency:  string(a.Account.Currency),
		Kind:      string(a.Account.Kind),
		Address:   a.Account.Address,
		Balance:   a.Balance.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// writeError maps models.Error's Kind to an HTTP status (§7).
func writeError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case models.KindUnauthorized:
		status = http.StatusUnauthorized
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindMalformedInput, models.KindInvalidInput:
		status = http.StatusBadRequest
	case models.KindBalance:
		status = http.StatusConflict
	}

	resp := errorResponse{Error: err.Error()}
	var merr *models.Error
	if e, ok := err.(*models.Error); ok {
		merr = e
	} else if as, ok := asModelsError(err); ok {
		merr = as
	}
	if merr != nil {
		resp.Error = merr.Msg
		resp.Details = merr.Details
	}
	writeJSON(w, status, resp)
}

func asModelsError(err error) (*models.Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*models.Error); ok {
			return e, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
