package models

// Token is the authenticated caller identity every TransactionsService
// operation requires (§4.6: "authenticates the token, fails
// Unauthorized"). It carries nothing beyond what access-control checks
// need.
type Token struct {
	UserID int64
}
