// Package services contains the server-side business logic. This file
// implements the sign-in, sign-up, and token-refresh flows; account
// mutations live in account.go.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/dbx"
	"github.com/mikhailbahdashych/identity-core/internal/logging"
	"github.com/mikhailbahdashych/identity-core/internal/personalid"
	"github.com/mikhailbahdashych/identity-core/internal/server/models"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/repomanager"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/users"
	"github.com/mikhailbahdashych/identity-core/internal/server/tokens"
	"github.com/mikhailbahdashych/identity-core/internal/totp"
	"github.com/mikhailbahdashych/identity-core/internal/validation"
)

// SignInThrottle is the failed-attempt limiter consulted by SignIn. The
// Redis implementation lives in the ratelimit package; a nil throttle
// disables limiting.
type SignInThrottle interface {
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// PasswordHasher produces and compares keyed password digests.
type PasswordHasher interface {
	Hash(password string) string
	Compare(digest, candidate string) bool
}

// SignInResult is the outcome of a successful credential check. When the
// account has 2FA enabled and no code was supplied, TwoFactorRequired is set
// and no tokens are issued; the client retries with a code. Reopened carries
// the username when this sign-in reactivated a closed account, and only then.
type SignInResult struct {
	TwoFactorRequired bool
	Reopened          string
	AccessToken       string
	RefreshToken      string
}

// IdentityService implements the identity flows: authentication, account
// lifecycle, and the sensitive mutations gated by 2FA.
type IdentityService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	tokens           *tokens.Service
	hasher           PasswordHasher
	throttle         SignInThrottle
	passwordCooldown time.Duration
	logger           logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, ts *tokens.Service,
	hasher PasswordHasher, throttle SignInThrottle, passwordCooldown time.Duration,
	logger logging.Logger) *IdentityService {
	return &IdentityService{
		db:               db,
		repomanager:      m,
		tokens:           ts,
		hasher:           hasher,
		throttle:         throttle,
		passwordCooldown: passwordCooldown,
		logger:           logger,
	}
}

// SignIn verifies the email/password pair, enforces the optional 2FA step,
// reopens a closed account, and rotates the session tokens. The same
// ErrorUnauthorized covers unknown email and wrong password so the response
// does not leak which part failed.
func (s *IdentityService) SignIn(ctx context.Context, email, password, twoFaCode string) (*SignInResult, error) {
	if err := s.checkThrottle(ctx, email); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).FindForSignIn(ctx, email, s.hasher.Hash(password))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.recordFailure(ctx, email)
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internalError(ctx, "sign-in", err)
	}

	if user.TwoFaEnabled() {
		if twoFaCode == "" {
			return &SignInResult{TwoFactorRequired: true}, nil
		}
		if !totp.Verify(*user.TwoFa, twoFaCode) {
			s.recordFailure(ctx, email)
			return nil, common.ErrorAccessForbidden
		}
	}

	result := &SignInResult{}
	if user.Closed() {
		result.Reopened = user.Username
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if user.Closed() {
			if err := s.repomanager.Users(tx).Reactivate(ctx, user.ID); err != nil {
				return fmt.Errorf("error reopening account: %w", err)
			}
		}
		pair, err := s.tokens.Rotate(ctx, tx, s.identityOf(user))
		if err != nil {
			return fmt.Errorf("error rotating tokens: %w", err)
		}
		result.AccessToken = pair.AccessToken
		result.RefreshToken = pair.RefreshToken
		return nil
	})
	if err != nil {
		return nil, s.internalError(ctx, "sign-in", err)
	}

	s.resetThrottle(ctx, email)
	return result, nil
}

// SignUp validates the registration input, checks both uniqueness
// dimensions separately, and creates the user row together with its profile.
func (s *IdentityService) SignUp(ctx context.Context, email, password, username string) error {
	if !validation.ValidEmail(email) {
		return fmt.Errorf("%w: invalid email", common.ErrorBadRequest)
	}
	if !validation.ValidPassword(password) {
		return fmt.Errorf("%w: weak password", common.ErrorBadRequest)
	}
	if !validation.ValidUsername(username) {
		return fmt.Errorf("%w: invalid username", common.ErrorBadRequest)
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.Find(ctx, users.Filter{Email: email}); err == nil {
		return common.ErrorEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return s.internalError(ctx, "sign-up", err)
	}

	if _, err := repo.Find(ctx, users.Filter{Username: username}); err == nil {
		return common.ErrorUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return s.internalError(ctx, "sign-up", err)
	}

	user := &models.User{
		Email:      email,
		Password:   s.hasher.Hash(password),
		PersonalID: personalid.Derive(email),
		Status:     models.AccountActive,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Users(tx)
		id, err := repoTx.Create(ctx, user)
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		if err := repoTx.CreateProfile(ctx, &models.Profile{UserID: id, Username: username}); err != nil {
			return fmt.Errorf("error creating profile: %w", err)
		}
		return nil
	})
	if err != nil {
		// A concurrent registration can slip past the lookups above and hit
		// the unique indexes instead; that is still a conflict, not a failure.
		if errors.Is(err, common.ErrorEmailTaken) || errors.Is(err, common.ErrorUsernameTaken) {
			return err
		}
		return s.internalError(ctx, "sign-up", err)
	}
	return nil
}

// Refresh validates a refresh token, requires its identifier to match the
// persisted session record, and rotates the pair transactionally. A token
// whose record was already rotated away is treated as unauthorized, which
// also covers replay of a stolen predecessor.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	record, err := s.repomanager.SessionTokens(s.db).Find(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internalError(ctx, "refresh", err)
	}

	user, err := s.repomanager.Users(s.db).Find(ctx, users.Filter{ID: record.UserID})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internalError(ctx, "refresh", err)
	}
	if user.Closed() {
		return nil, common.ErrorUnauthorized
	}

	var pair *tokens.Pair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var rotateErr error
		pair, rotateErr = s.tokens.Rotate(ctx, tx, s.identityOf(user))
		return rotateErr
	})
	if err != nil {
		return nil, s.internalError(ctx, "refresh", err)
	}
	return pair, nil
}

// Logout revokes the caller's session record. Outstanding access tokens
// stay valid until expiry; only refreshing is cut off.
func (s *IdentityService) Logout(ctx context.Context, encryptedUserID string) error {
	id, err := s.resolveUserID(encryptedUserID)
	if err != nil {
		return err
	}
	if err := s.tokens.Revoke(ctx, s.db, id); err != nil {
		return s.internalError(ctx, "logout", err)
	}
	return nil
}

func (s *IdentityService) identityOf(user *models.User) tokens.Identity {
	return tokens.Identity{UserID: user.ID, Username: user.Username, PersonalID: user.PersonalID}
}

// resolveUserID unwraps the encrypted identifier carried in access-token
// claims. Anything the cipher rejects cannot have come from our tokens.
func (s *IdentityService) resolveUserID(encrypted string) (string, error) {
	id, err := s.tokens.DecryptUserID(encrypted)
	if err != nil {
		return "", common.ErrorUnauthorized
	}
	return id, nil
}

// internalError records the underlying cause before it is collapsed to the
// generic sentinel; the response body never carries it.
func (s *IdentityService) internalError(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "internal failure", "op", op, "error", err)
	return common.ErrorInternal
}

func (s *IdentityService) checkThrottle(ctx context.Context, email string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.Check(ctx, email)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorRateLimited) {
		return err
	}
	// the limiter being down should not lock everyone out
	s.logger.Warn(ctx, "sign-in throttle check failed", "error", err)
	return nil
}

func (s *IdentityService) recordFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email); err != nil {
		s.logger.Warn(ctx, "sign-in throttle update failed", "error", err)
	}
}

func (s *IdentityService) resetThrottle(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		s.logger.Warn(ctx, "sign-in throttle reset failed", "error", err)
	}
}
