package common

// TokenTypeAccess and TokenTypeRefresh are the claim type discriminators.
// A token of one type must never be accepted where the other is expected.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)
