package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.com", "alice@example.com", "first.last@sub.domain.org", "User@Example.COM"}
	invalid := []string{"", "a", "a@", "@b.com", "a b@c.com", "a@b", "a@@b.com"}

	for _, email := range valid {
		assert.True(t, ValidEmail(email), email)
	}
	for _, email := range invalid {
		assert.False(t, ValidEmail(email), email)
	}
}

func TestValidPassword(t *testing.T) {
	valid := []string{"Abc12345!", "Str0ng#Passw0rd", "xY9#aaaaQwe"}
	invalid := []string{
		"",
		"abc12345!", // no upper case
		"ABC12345!", // no lower case
		"Abcdefgh!", // no digit
		"Abc123456", // no special character
		"Ab1!",      // below minimum length
	}

	for _, password := range valid {
		assert.True(t, ValidPassword(password), password)
	}
	for _, password := range invalid {
		assert.False(t, ValidPassword(password), password)
	}
}

func TestValidPersonalID(t *testing.T) {
	assert.True(t, ValidPersonalID("0123456789"))
	assert.False(t, ValidPersonalID("123456789"))
	assert.False(t, ValidPersonalID("12345678901"))
	assert.False(t, ValidPersonalID("12345abc90"))
	assert.False(t, ValidPersonalID(""))
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+12025550123"))
	assert.True(t, ValidPhone("+48123456"))
	assert.False(t, ValidPhone("12025550123"))
	assert.False(t, ValidPhone("+0123"))
	assert.False(t, ValidPhone("+1"))
	assert.False(t, ValidPhone(""))
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("alice"))
	assert.True(t, ValidUsername("a_l-i2ce"))
	assert.False(t, ValidUsername("al"))
	assert.False(t, ValidUsername(strings.Repeat("a", 31)))
	assert.False(t, ValidUsername("bad name"))
}

func strPtr(s string) *string { return &s }

func TestValidatePersonalInformation(t *testing.T) {
	assert.NoError(t, ValidatePersonalInformation(PersonalInformation{}))
	assert.NoError(t, ValidatePersonalInformation(PersonalInformation{
		FirstName: strPtr("Alice"),
		Status:    strPtr("building things"),
		Github:    strPtr("github.com/alice"),
		Twitter:   strPtr("t.co/alice"),
	}))

	assert.Error(t, ValidatePersonalInformation(PersonalInformation{FirstName: strPtr(strings.Repeat("x", 36))}))
	assert.Error(t, ValidatePersonalInformation(PersonalInformation{Status: strPtr(strings.Repeat("x", 201))}))
	assert.Error(t, ValidatePersonalInformation(PersonalInformation{AboutMe: strPtr(strings.Repeat("x", 601))}))
	assert.Error(t, ValidatePersonalInformation(PersonalInformation{Github: strPtr("gitlab.com/alice")}))
	assert.Error(t, ValidatePersonalInformation(PersonalInformation{Twitter: strPtr("twitter.com/alice")}))
}
