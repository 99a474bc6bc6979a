package models

import "time"

// SessionToken is one outstanding refresh-token record. TokenID stores the
// encrypted refresh token identifier; at most one row exists per user.
type SessionToken struct {
	ID        string
	TokenID   string
	UserID    string
	CreatedAt time.Time
}
