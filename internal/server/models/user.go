package models

import "time"

// AccountStatus is the lifecycle state of a user account. Closed accounts
// keep their row (and their authored content) and can be reactivated by a
// successful sign-in with the original credentials.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
)

// User is the joined users + users_info projection used by the identity
// flows. Password holds the keyed digest, never the clear value. TwoFa, when
// non-nil, is the base32 TOTP secret and implies 2FA is enabled.
type User struct {
	ID                string
	Email             string
	Password          string
	PersonalID        string
	TwoFa             *string
	Phone             *string
	Notify            bool
	Status            AccountStatus
	ClosedAt          *time.Time
	ChangedEmail      bool
	ChangedPasswordAt *time.Time
	Username          string
	CreatedAt         time.Time
}

// Closed reports whether the account is soft-deleted.
func (u *User) Closed() bool {
	return u.Status == AccountClosed
}

// TwoFaEnabled reports whether a two-factor secret is present.
func (u *User) TwoFaEnabled() bool {
	return u.TwoFa != nil && *u.TwoFa != ""
}

// Profile is the users_info row created together with the user at sign-up.
type Profile struct {
	ID          string
	UserID      string
	Username    string
	FirstName   *string
	LastName    *string
	Status      *string
	Company     *string
	Location    *string
	AboutMe     *string
	WebsiteLink *string
	Twitter     *string
	Github      *string
	Reputation  int
	ShowEmail   bool
	CreatedAt   time.Time
}

// PublicProfile is the projection safe to show to other users: no internal
// identifier, no email, no security flags.
type PublicProfile struct {
	PersonalID  string
	Username    string
	FirstName   *string
	LastName    *string
	Status      *string
	Company     *string
	Location    *string
	AboutMe     *string
	WebsiteLink *string
	Twitter     *string
	Github      *string
	Reputation  int
}

// SecuritySettings is the per-account security view returned to the owner.
type SecuritySettings struct {
	TwoFaEnabled      bool
	ChangedEmail      bool
	ChangedPasswordAt *time.Time
	Phone             *string
	Notify            bool
}
