// Package tokens implements the token service: issuing, verifying, and
// rotating the RS256-signed access/refresh token pair. Internal user
// identifiers never appear in claims in the clear; they are wrapped with the
// deterministic identifier cipher first.
package tokens

import (
	"context"
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/cryptox"
	"github.com/mikhailbahdashych/identity-core/internal/dbx"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/repomanager"
)

// AccessClaims is the access-token claim set. UserID carries the encrypted
// internal identifier.
type AccessClaims struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	PersonalID string `json:"personalId"`
	Type       string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token claim set. ID carries the encrypted
// random token identifier that keys the persisted session record.
type RefreshClaims struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Identity is the minimal user projection needed to mint an access token.
// UserID is the plain internal identifier; the service encrypts it.
type Identity struct {
	UserID     string
	Username   string
	PersonalID string
}

// Pair bundles a freshly signed access and refresh token.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Service signs tokens with the private key and verifies with the public key.
type Service struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	cipher     *cryptox.Cipher
	rm         repomanager.RepositoryManager
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService constructs a token service from a pre-provisioned key pair.
func NewService(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, cipher *cryptox.Cipher,
	rm repomanager.RepositoryManager, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		privateKey: privateKey,
		publicKey:  publicKey,
		cipher:     cipher,
		rm:         rm,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// LoadKeyPair reads and parses the PEM-encoded RSA key pair from disk.
func LoadKeyPair(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privatePEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing private key: %w", err)
	}

	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing public key: %w", err)
	}

	return privateKey, publicKey, nil
}

// IssueAccessToken signs access-token claims for the given identity.
func (s *Service) IssueAccessToken(identity Identity) (string, error) {
	encryptedID, err := s.cipher.Encrypt(identity.UserID)
	if err != nil {
		return "", fmt.Errorf("encrypting user id: %w", err)
	}

	claims := AccessClaims{
		UserID:     encryptedID,
		Username:   identity.Username,
		PersonalID: identity.PersonalID,
		Type:       common.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken generates a fresh random token identifier, encrypts it,
// and signs refresh-token claims around it. The returned tokenID is the
// encrypted identifier that keys the persisted session record.
func (s *Service) IssueRefreshToken() (tokenID, signed string, err error) {
	tokenID, err = s.cipher.Encrypt(uuid.NewString())
	if err != nil {
		return "", "", fmt.Errorf("encrypting token id: %w", err)
	}

	claims := RefreshClaims{
		ID:   tokenID,
		Type: common.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.refreshTTL)),
		},
	}

	signed, err = jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", "", fmt.Errorf("signing refresh token: %w", err)
	}
	return tokenID, signed, nil
}

// Rotate issues a fresh pair and installs the new refresh record as the
// user's only session. Callers pass the transaction handle so the
// replacement commits atomically with the rest of the operation.
func (s *Service) Rotate(ctx context.Context, db dbx.DBTX, identity Identity) (*Pair, error) {
	accessToken, err := s.IssueAccessToken(identity)
	if err != nil {
		return nil, err
	}

	tokenID, refreshToken, err := s.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := s.rm.SessionTokens(db).Replace(ctx, tokenID, identity.UserID); err != nil {
		return nil, fmt.Errorf("replacing session record: %w", err)
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccess verifies signature and expiry and checks the type
// discriminator. Any failure yields common.ErrorInvalidToken.
func (s *Service) VerifyAccess(signed string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(signed, claims); err != nil {
		return nil, err
	}
	if claims.Type != common.TokenTypeAccess {
		return nil, fmt.Errorf("%w: wrong token type", common.ErrorInvalidToken)
	}
	return claims, nil
}

// VerifyRefresh is the refresh-side counterpart of VerifyAccess.
func (s *Service) VerifyRefresh(signed string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(signed, claims); err != nil {
		return nil, err
	}
	if claims.Type != common.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: wrong token type", common.ErrorInvalidToken)
	}
	return claims, nil
}

func (s *Service) parse(signed string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInvalidToken, err)
	}
	if !token.Valid {
		return common.ErrorInvalidToken
	}
	return nil
}

// Revoke deletes the user's session record; later refresh attempts fail.
func (s *Service) Revoke(ctx context.Context, db dbx.DBTX, userID string) error {
	return s.rm.SessionTokens(db).DeleteByUserID(ctx, userID)
}

// DecryptUserID unwraps an encrypted identifier from token claims.
func (s *Service) DecryptUserID(encrypted string) (string, error) {
	return s.cipher.Decrypt(encrypted)
}
