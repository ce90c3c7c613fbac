package users

import (
	"context"

	"github.com/barklabs/barkbot/internal/server/models"
)

// Repository is the persistence boundary for custodial user records.
//
// Setters that target an existing row (wallet, verification, preferences)
// return common.ErrorNotFound when the user is absent; rows are created
// only through Create. Storage failures are wrapped database errors and
// are never collapsed into "not found".
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateWallet overwrites both wallet fields at once, preserving the
	// all-or-nothing invariant.
	UpdateWallet(ctx context.Context, telegramID int64, publicKey string, encryptedPrivateKey []byte) error

	// SetVerified is idempotent; verifying twice is a no-op.
	SetVerified(ctx context.Context, telegramID int64) error

	SetEmail(ctx context.Context, telegramID int64, email string) error
	SetPasswordHash(ctx context.Context, telegramID int64, hash []byte) error

	SetRPCEndpoint(ctx context.Context, telegramID int64, endpoint string) error
	SetSlippageBPS(ctx context.Context, telegramID int64, bps int64) error
	SetPriorityTier(ctx context.Context, telegramID int64, tier string) error
}
