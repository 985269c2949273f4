package models

// ValidateCreateTransactionInput runs the declarative structural
// checks §4.3 step 1 requires before any repository call, aggregating
// every violation instead of failing on the first one (SPEC_FULL
// supplement 1).
func ValidateCreateTransactionInput(in CreateTransactionInput) error {
	var details []string

	if in.ID == "" {
		details = append(details, "id: required")
	}
	if in.UserID <= 0 {
		details = append(details, "user_id: required")
	}
	if in.From <= 0 {
		details = append(details, "from: required")
	}
	if in.To == "" {
		details = append(details, "to: required")
	}
	switch in.ToType {
	case ToAccount, ToAddress:
	default:
		details = append(details, "to_type: must be account or address")
	}
	if !in.ToCurrency.Valid() {
		details = append(details, "to_currency: must be one of BTC, ETH, STQ")
	}
	if !in.Value.IsPositive() {
		details = append(details, "value: must be > 0")
	}
	if !in.ValueCurrency.Valid() {
		details = append(details, "value_currency: must be one of BTC, ETH, STQ")
	}
	if (in.ExchangeID == nil) != (in.ExchangeRate == nil) {
		details = append(details, "exchange_id and exchange_rate must be supplied together")
	}
	if in.ExchangeRate != nil && *in.ExchangeRate <= 0 {
		details = append(details, "exchange_rate: must be > 0")
	}

	if len(details) > 0 {
		return Invalid("invalid create-transaction input", details...)
	}
	return nil
}
