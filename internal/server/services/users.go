// Package services holds the application services between the transports
// (REST, Telegram) and the persistence and crypto layers.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/cryptox"
	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/auth"
	"github.com/barklabs/barkbot/internal/server/models"
	"github.com/barklabs/barkbot/internal/server/repositories/users"
)

const minPasswordLength = 8

// priorityTiers are the fee tiers the aggregator understands.
var priorityTiers = map[string]bool{
	"low": true, "medium": true, "high": true, "veryHigh": true,
}

// Codes issues and confirms one-time verification codes.
type Codes interface {
	Issue(ctx context.Context, telegramID int64) (string, error)
	Confirm(ctx context.Context, telegramID int64, code string) error
}

// TxRunner runs fn against a transaction-bound repository, committing on
// nil and rolling back otherwise. A nil TxRunner degrades to running fn
// on the service's own repository without a transaction.
type TxRunner func(ctx context.Context, fn func(r users.Repository) error) error

// UserService manages custodial accounts: registration, verification,
// wallet provisioning and trading preferences.
type UserService struct {
	repo      users.Repository
	inTx      TxRunner
	cipher    *cryptox.Cipher
	codes     Codes
	jwtSecret []byte
	tokenTTL  time.Duration
	log       logging.Logger
}

func NewUserService(repo users.Repository, inTx TxRunner, cipher *cryptox.Cipher, codes Codes, jwtSecret []byte, tokenTTL time.Duration, log logging.Logger) *UserService {
	s := &UserService{
		repo:      repo,
		inTx:      inTx,
		cipher:    cipher,
		codes:     codes,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
	}
	if s.inTx == nil {
		s.inTx = func(ctx context.Context, fn func(r users.Repository) error) error {
			return fn(s.repo)
		}
	}
	return s
}

// Get returns the account for the given Telegram id.
func (s *UserService) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetByTelegramID(ctx, telegramID)
}

// Register creates a new identity with email/password credentials for
// the REST API. Registration is unauthenticated, so it must never touch
// an existing row: a caller who merely knows someone's Telegram id could
// otherwise replace that account's credentials and drain its wallet.
// Existing identities attach credentials through SetCredentials, which
// only the Telegram transport reaches.
func (s *UserService) Register(ctx context.Context, telegramID int64, email, password string) (*models.User, error) {
	if telegramID == 0 || email == "" {
		return nil, fmt.Errorf("%w: telegram id and email are required", common.ErrorInvalidRequest)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorInvalidRequest, minPasswordLength)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", common.ErrorAlreadyExists)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByTelegramID(ctx, telegramID); err == nil {
		return nil, fmt.Errorf("%w: identity already registered", common.ErrorAlreadyExists)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, &models.User{
		TelegramID:   telegramID,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "account registered", "telegram_id", telegramID)
	return user, nil
}

// SetCredentials attaches or replaces REST API credentials on an
// existing identity. Only the Telegram transport calls this: there the
// caller has already proven control of the Telegram account, which the
// open REST registration endpoint cannot.
func (s *UserService) SetCredentials(ctx context.Context, telegramID int64, email, password string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrorInvalidRequest)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorInvalidRequest, minPasswordLength)
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing.TelegramID != telegramID {
		return fmt.Errorf("%w: email already registered", common.ErrorAlreadyExists)
	} else if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// two columns change together, keep them atomic
	err = s.inTx(ctx, func(r users.Repository) error {
		if err := r.SetEmail(ctx, telegramID, email); err != nil {
			return err
		}
		return r.SetPasswordHash(ctx, telegramID, hash)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "api credentials set", "telegram_id", telegramID)
	return nil
}

// Login verifies email/password credentials and mints an access token.
// All credential failures collapse into ErrorUnauthorized so callers
// cannot tell which emails exist.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return "", common.ErrorUnauthorized
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return "", common.ErrorUnauthorized
	}
	return auth.GenerateToken(user.TelegramID, s.jwtSecret, s.tokenTTL)
}

// BeginVerification records the user's email and issues a one-time code
// for delivery by the calling transport. This is the only path besides
// Register that creates an account row.
func (s *UserService) BeginVerification(ctx context.Context, telegramID int64, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("%w: email is required", common.ErrorInvalidRequest)
	}

	if _, err := s.repo.GetByTelegramID(ctx, telegramID); errors.Is(err, common.ErrorNotFound) {
		if _, err := s.repo.Create(ctx, &models.User{TelegramID: telegramID, Email: email}); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else if err := s.repo.SetEmail(ctx, telegramID, email); err != nil {
		return "", err
	}

	code, err := s.codes.Issue(ctx, telegramID)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "verification code issued", "telegram_id", telegramID)
	return code, nil
}

// ConfirmVerification consumes the pending code and marks the account
// verified on success.
func (s *UserService) ConfirmVerification(ctx context.Context, telegramID int64, code string) error {
	if err := s.codes.Confirm(ctx, telegramID, code); err != nil {
		return err
	}
	if err := s.repo.SetVerified(ctx, telegramID); err != nil {
		return err
	}
	s.log.Info(ctx, "account verified", "telegram_id", telegramID)
	return nil
}

// EnsureWallet generates a custodial keypair for the user if none exists
// yet and returns the account. Wallets are only provisioned for verified
// accounts. The plaintext private key lives only inside this call; what
// reaches the store is the AES-GCM blob.
func (s *UserService) EnsureWallet(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user.HasWallet() {
		return user, nil
	}
	if !user.Verified {
		return nil, fmt.Errorf("%w: account not verified", common.ErrorUnauthorized)
	}

	publicKey, privateKey, err := cryptox.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	defer common.Wipe(privateKey)

	blob, err := s.cipher.Encrypt(privateKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt key: %w", err)
	}
	if err := s.repo.UpdateWallet(ctx, telegramID, publicKey, blob); err != nil {
		return nil, err
	}

	user.PublicKey = publicKey
	user.EncryptedPrivateKey = blob
	s.log.Info(ctx, "wallet created", "telegram_id", telegramID, "public_key", publicKey)
	return user, nil
}

// ExportPrivateKey decrypts and returns the user's private key in base58
// for import into external wallets. The caller must deliver it over a
// private channel and never log it.
func (s *UserService) ExportPrivateKey(ctx context.Context, telegramID int64) (string, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if !user.HasWallet() {
		return "", fmt.Errorf("%w: no wallet on file", common.ErrorNotFound)
	}

	keyBytes, err := s.cipher.Decrypt(user.EncryptedPrivateKey)
	if err != nil {
		return "", err
	}
	defer common.Wipe(keyBytes)

	return solana.PrivateKey(keyBytes).String(), nil
}

// SetRPCEndpoint stores a user-supplied RPC endpoint after checking it is
// an absolute http(s) URL.
func (s *UserService) SetRPCEndpoint(ctx context.Context, telegramID int64, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint must be an absolute http(s) URL", common.ErrorInvalidRequest)
	}
	return s.repo.SetRPCEndpoint(ctx, telegramID, endpoint)
}

// SetSlippageBPS stores the user's default slippage in basis points.
func (s *UserService) SetSlippageBPS(ctx context.Context, telegramID int64, bps int64) error {
	if bps < 1 || bps > 10000 {
		return fmt.Errorf("%w: slippage must be between 1 and 10000 bps", common.ErrorInvalidRequest)
	}
	return s.repo.SetSlippageBPS(ctx, telegramID, bps)
}

// SetPriorityTier stores the user's default priority fee tier.
func (s *UserService) SetPriorityTier(ctx context.Context, telegramID int64, tier string) error {
	if !priorityTiers[tier] {
		return fmt.Errorf("%w: unknown priority tier", common.ErrorInvalidRequest)
	}
	return s.repo.SetPriorityTier(ctx, telegramID, tier)
}
