// Package validation contains input validators for the identity API:
// emails, passwords, personal IDs, phone numbers, usernames, and the
// profile-field whitelist.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

// PasswordMinEntropyBits is the entropy floor applied on top of the
// composition rule. Kept modest: composition already demands mixed classes.
const PasswordMinEntropyBits = 30

var (
	emailRegexp      = regexp.MustCompile("^[a-z0-9!#$%&'*+/=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$")
	personalIDRegexp = regexp.MustCompile(`^\d{10}$`)
	phoneRegexp      = regexp.MustCompile(`^\+[1-9][0-9]{3,14}$`)
	usernameRegexp   = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)
)

// ValidEmail reports whether email looks like a deliverable address.
func ValidEmail(email string) bool {
	return emailRegexp.MatchString(strings.ToLower(email))
}

// ValidPassword enforces the composition rule (at least one upper-case, one
// lower-case, one digit, one special character, eight characters minimum)
// plus an entropy floor.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("#?!@$%^&*-", r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return false
	}
	return passwordvalidator.Validate(password, PasswordMinEntropyBits) == nil
}

// ValidPersonalID reports whether id is a 10-digit public identifier.
func ValidPersonalID(id string) bool {
	return personalIDRegexp.MatchString(id)
}

// ValidPhone reports whether phone is an E.164-style number.
func ValidPhone(phone string) bool {
	return phoneRegexp.MatchString(phone)
}

// ValidUsername reports whether username fits the allowed alphabet and length.
func ValidUsername(username string) bool {
	return usernameRegexp.MatchString(username)
}

// PersonalInformation carries the optional public profile fields a user may
// update. Nil fields are left untouched.
type PersonalInformation struct {
	FirstName   *string
	LastName    *string
	Status      *string
	Company     *string
	Location    *string
	AboutMe     *string
	WebsiteLink *string
	Twitter     *string
	Github      *string
	ShowEmail   *bool
}

// ValidatePersonalInformation checks the profile field limits:
// names up to 35 characters, status up to 200, about up to 600, and the
// github/twitter link prefixes. It returns a descriptive error for the first
// violation found.
func ValidatePersonalInformation(info PersonalInformation) error {
	check := func(field string, value *string, limit int) error {
		if value != nil && len(*value) > limit {
			return fmt.Errorf("%s exceeds %d characters", field, limit)
		}
		return nil
	}

	if err := check("first_name", info.FirstName, 35); err != nil {
		return err
	}
	if err := check("last_name", info.LastName, 35); err != nil {
		return err
	}
	if err := check("status", info.Status, 200); err != nil {
		return err
	}
	if err := check("company", info.Company, 100); err != nil {
		return err
	}
	if err := check("location", info.Location, 100); err != nil {
		return err
	}
	if err := check("about_me", info.AboutMe, 600); err != nil {
		return err
	}
	if info.Github != nil && *info.Github != "" && !strings.HasPrefix(*info.Github, "github.com") {
		return fmt.Errorf("github link must start with github.com")
	}
	if info.Twitter != nil && *info.Twitter != "" && !strings.HasPrefix(*info.Twitter, "t.co") {
		return fmt.Errorf("twitter link must start with t.co")
	}
	return nil
}
