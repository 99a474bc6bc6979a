package httpapi

import (
	"time"

	"github.com/mikhailbahdashych/identity-core/internal/server/models"
	"github.com/mikhailbahdashych/identity-core/internal/validation"
)

type signInRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TwoFaCode string `json:"twoFaCode,omitempty"`
}

type signInResponse struct {
	TwoFa       bool   `json:"twoFa,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	Reopened    string `json:"reopened,omitempty"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
	TwoFaCode       string `json:"twoFaCode,omitempty"`
}

type changeEmailRequest struct {
	NewEmail  string `json:"newEmail"`
	TwoFaCode string `json:"twoFaCode,omitempty"`
}

type deleteAccountRequest struct {
	Password  string `json:"password"`
	TwoFaCode string `json:"twoFaCode,omitempty"`
}

type twoFaSecretResponse struct {
	Secret string `json:"secret"`
}

type setTwoFaRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

type disableTwoFaRequest struct {
	Code string `json:"code"`
}

type updateSecuritySettingsRequest struct {
	Phone  *string `json:"phone"`
	Notify bool    `json:"notify"`
}

// outcomeResponse reports soft mutation outcomes: Applied is false when the
// request was valid but declined (cooldown window, spent allowance).
type outcomeResponse struct {
	Applied bool   `json:"applied"`
	Message string `json:"message"`
}

type userResponse struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	PersonalID   string `json:"personalId"`
	TwoFaEnabled bool   `json:"twoFaEnabled"`
	ChangedEmail bool   `json:"changedEmail"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		Email:        u.Email,
		Username:     u.Username,
		PersonalID:   u.PersonalID,
		TwoFaEnabled: u.TwoFaEnabled(),
		ChangedEmail: u.ChangedEmail,
	}
}

type publicProfileResponse struct {
	PersonalID  string  `json:"personalId"`
	Username    string  `json:"username"`
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Status      *string `json:"status,omitempty"`
	Company     *string `json:"company,omitempty"`
	Location    *string `json:"location,omitempty"`
	AboutMe     *string `json:"aboutMe,omitempty"`
	WebsiteLink *string `json:"websiteLink,omitempty"`
	Twitter     *string `json:"twitter,omitempty"`
	Github      *string `json:"github,omitempty"`
	Reputation  int     `json:"reputation"`
}

func newPublicProfileResponse(p *models.PublicProfile) publicProfileResponse {
	return publicProfileResponse{
		PersonalID:  p.PersonalID,
		Username:    p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Status:      p.Status,
		Company:     p.Company,
		Location:    p.Location,
		AboutMe:     p.AboutMe,
		WebsiteLink: p.WebsiteLink,
		Twitter:     p.Twitter,
		Github:      p.Github,
		Reputation:  p.Reputation,
	}
}

type securitySettingsResponse struct {
	TwoFaEnabled      bool       `json:"twoFaEnabled"`
	ChangedEmail      bool       `json:"changedEmail"`
	ChangedPasswordAt *time.Time `json:"changedPasswordAt,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	Notify            bool       `json:"notify"`
}

// updatePersonalInformationRequest reuses the validation-layer field set;
// absent JSON keys decode to nil and stay untouched.
type updatePersonalInformationRequest = validation.PersonalInformation

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
