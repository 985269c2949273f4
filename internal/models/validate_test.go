package models

import (
	"testing"

	"github.com/example/txengine/internal/money"
)

func validInput() CreateTransactionInput {
	rate := 1.5
	exID := "ex-1"
	return CreateTransactionInput{
		ID:            "gid-1",
		UserID:        1,
		From:          10,
		To:            "20",
		ToType:        ToAccount,
		ToCurrency:    ETH,
		Value:         money.FromUint64(100),
		ValueCurrency: ETH,
		Fee:           money.FromUint64(1),
		ExchangeID:    &exID,
		ExchangeRate:  &rate,
	}
}

func TestValidateCreateTransactionInputOK(t *testing.T) {
	if err := ValidateCreateTransactionInput(validInput()); err != nil {
		t.Fatalf("expected valid input to pass, got %v", err)
	}
}

func TestValidateCreateTransactionInputMissingFields(t *testing.T) {
	in := CreateTransactionInput{}
	err := ValidateCreateTransactionInput(in)
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("expected KindInvalidInput, got %v", KindOf(err))
	}
	merr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(merr.Details) < 5 {
		t.Fatalf("expected aggregated violations, got %d: %v", len(merr.Details), merr.Details)
	}
}

func TestValidateExchangeFieldsMustComeTogether(t *testing.T) {
	in := validInput()
	in.ExchangeRate = nil
	err := ValidateCreateTransactionInput(in)
	if err == nil {
		t.Fatal("expected error when exchange_id is set without exchange_rate")
	}
}

func TestValidateNegativeExchangeRate(t *testing.T) {
	in := validInput()
	bad := -1.0
	in.ExchangeRate = &bad
	if err := ValidateCreateTransactionInput(in); err == nil {
		t.Fatal("expected error for non-positive exchange_rate")
	}
}
