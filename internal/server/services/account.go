package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/dbx"
	"github.com/mikhailbahdashych/identity-core/internal/server/models"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/users"
	"github.com/mikhailbahdashych/identity-core/internal/totp"
	"github.com/mikhailbahdashych/identity-core/internal/validation"
)

// ChangePassword applies the gated password change. The boolean result is
// false when the cooldown window since the previous change has not elapsed;
// that outcome is not an error, the request was understood and declined.
func (s *IdentityService) ChangePassword(ctx context.Context, encryptedUserID, current, next, confirm, twoFaCode string) (bool, error) {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return false, err
	}

	if next != confirm {
		return false, fmt.Errorf("%w: password confirmation mismatch", common.ErrorBadRequest)
	}
	if !validation.ValidPassword(next) {
		return false, fmt.Errorf("%w: weak password", common.ErrorBadRequest)
	}
	if !s.hasher.Compare(user.Password, current) {
		return false, common.ErrorUnauthorized
	}

	newDigest := s.hasher.Hash(next)
	if newDigest == user.Password {
		return false, common.ErrorPasswordUnchanged
	}

	if err := s.requireTwoFa(user, twoFaCode); err != nil {
		return false, err
	}

	if user.ChangedPasswordAt != nil && time.Since(*user.ChangedPasswordAt) < s.passwordCooldown {
		return false, nil
	}

	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, user.ID, newDigest, time.Now()); err != nil {
		return false, s.internalError(ctx, "change-password", err)
	}
	return true, nil
}

// ChangeEmail applies the once-per-account email change. The boolean result
// is false when the allowance was already spent.
func (s *IdentityService) ChangeEmail(ctx context.Context, encryptedUserID, newEmail, twoFaCode string) (bool, error) {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return false, err
	}

	if !validation.ValidEmail(newEmail) {
		return false, fmt.Errorf("%w: invalid email", common.ErrorBadRequest)
	}

	if err := s.requireTwoFa(user, twoFaCode); err != nil {
		return false, err
	}

	if user.ChangedEmail {
		return false, nil
	}

	if _, err := s.repomanager.Users(s.db).Find(ctx, users.Filter{Email: newEmail}); err == nil {
		return false, common.ErrorEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return false, s.internalError(ctx, "change-email", err)
	}

	if err := s.repomanager.Users(s.db).ChangeEmail(ctx, user.ID, newEmail); err != nil {
		return false, s.internalError(ctx, "change-email", err)
	}
	return true, nil
}

// DeleteAccount re-verifies the password, enforces the 2FA gate, closes the
// account, and revokes its session in one transaction. The row survives so
// the account can be reopened by signing in again.
func (s *IdentityService) DeleteAccount(ctx context.Context, encryptedUserID, password, twoFaCode string) error {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return err
	}

	if !s.hasher.Compare(user.Password, password) {
		return common.ErrorUnauthorized
	}
	if err := s.requireTwoFa(user, twoFaCode); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).SoftDelete(ctx, user.ID, time.Now()); err != nil {
			return fmt.Errorf("error closing account: %w", err)
		}
		if err := s.tokens.Revoke(ctx, tx, user.ID); err != nil {
			return fmt.Errorf("error revoking session: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.internalError(ctx, "delete-account", err)
	}
	return nil
}

// GenerateTwoFactorSecret mints a fresh shared secret for the enrollment
// flow. Nothing is persisted until the caller confirms it via EnrollTwoFactor.
func (s *IdentityService) GenerateTwoFactorSecret(ctx context.Context, encryptedUserID string) (string, error) {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return "", err
	}
	if user.TwoFaEnabled() {
		return "", fmt.Errorf("%w: two-factor already enabled", common.ErrorBadRequest)
	}
	secret, err := totp.GenerateSecret()
	if err != nil {
		return "", s.internalError(ctx, "generate-2fa-secret", err)
	}
	return secret, nil
}

// EnrollTwoFactor persists the candidate secret once the caller proves
// possession of it with a current code.
func (s *IdentityService) EnrollTwoFactor(ctx context.Context, encryptedUserID, secret, code string) error {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return err
	}
	if user.TwoFaEnabled() {
		return fmt.Errorf("%w: two-factor already enabled", common.ErrorBadRequest)
	}
	if !totp.Verify(secret, code) {
		return common.ErrorAccessForbidden
	}
	if err := s.repomanager.Users(s.db).SetTwoFa(ctx, user.ID, &secret); err != nil {
		return s.internalError(ctx, "set-2fa", err)
	}
	return nil
}

// DisableTwoFactor clears the stored secret after a valid current code.
func (s *IdentityService) DisableTwoFactor(ctx context.Context, encryptedUserID, code string) error {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return err
	}
	if !user.TwoFaEnabled() {
		return fmt.Errorf("%w: two-factor not enabled", common.ErrorBadRequest)
	}
	if !totp.Verify(*user.TwoFa, code) {
		return common.ErrorAccessForbidden
	}
	if err := s.repomanager.Users(s.db).SetTwoFa(ctx, user.ID, nil); err != nil {
		return s.internalError(ctx, "disable-2fa", err)
	}
	return nil
}

// UserByToken returns the caller's own account view.
func (s *IdentityService) UserByToken(ctx context.Context, encryptedUserID string) (*models.User, error) {
	return s.loadActiveUser(ctx, encryptedUserID)
}

// PublicProfile returns the profile projection exposed to other users,
// keyed by the opaque personal identifier.
func (s *IdentityService) PublicProfile(ctx context.Context, personalID string) (*models.PublicProfile, error) {
	if !validation.ValidPersonalID(personalID) {
		return nil, fmt.Errorf("%w: invalid personal id", common.ErrorBadRequest)
	}
	profile, err := s.repomanager.Users(s.db).FindByPersonalID(ctx, personalID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internalError(ctx, "public-profile", err)
	}
	return profile, nil
}

// UpdatePersonalInformation validates and applies the profile fields the
// caller supplied; absent fields stay untouched.
func (s *IdentityService) UpdatePersonalInformation(ctx context.Context, encryptedUserID string, info validation.PersonalInformation) error {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return err
	}
	if err := validation.ValidatePersonalInformation(info); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorBadRequest, err)
	}
	if err := s.repomanager.Users(s.db).UpdateProfile(ctx, user.ID, info); err != nil {
		return s.internalError(ctx, "update-personal-information", err)
	}
	return nil
}

// SecuritySettings returns the owner-facing security view.
func (s *IdentityService) SecuritySettings(ctx context.Context, encryptedUserID string) (*models.SecuritySettings, error) {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return nil, err
	}
	settings, err := s.repomanager.Users(s.db).SecuritySettings(ctx, user.ID)
	if err != nil {
		return nil, s.internalError(ctx, "security-settings", err)
	}
	return settings, nil
}

// UpdateSecuritySettings sets the recovery phone and notification flag.
func (s *IdentityService) UpdateSecuritySettings(ctx context.Context, encryptedUserID string, phone *string, notify bool) error {
	user, err := s.loadActiveUser(ctx, encryptedUserID)
	if err != nil {
		return err
	}
	if phone != nil && !validation.ValidPhone(*phone) {
		return fmt.Errorf("%w: invalid phone", common.ErrorBadRequest)
	}
	if err := s.repomanager.Users(s.db).SetPhone(ctx, user.ID, phone, notify); err != nil {
		return s.internalError(ctx, "update-security-settings", err)
	}
	return nil
}

// requireTwoFa enforces the code requirement on sensitive mutations for
// accounts with 2FA enabled. Exactly the current 30-second step is accepted.
func (s *IdentityService) requireTwoFa(user *models.User, code string) error {
	if !user.TwoFaEnabled() {
		return nil
	}
	if code == "" || !totp.Verify(*user.TwoFa, code) {
		return common.ErrorAccessForbidden
	}
	return nil
}

// loadActiveUser resolves the encrypted identifier and loads the account.
// A missing or closed account yields ErrorUnauthorized: the token may be
// syntactically valid but no longer represents a usable identity.
func (s *IdentityService) loadActiveUser(ctx context.Context, encryptedUserID string) (*models.User, error) {
	id, err := s.resolveUserID(encryptedUserID)
	if err != nil {
		return nil, err
	}
	user, err := s.repomanager.Users(s.db).Find(ctx, users.Filter{ID: id})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internalError(ctx, "load-user", err)
	}
	if user.Closed() {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}
