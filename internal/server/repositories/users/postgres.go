package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/dbx"
	"github.com/barklabs/barkbot/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, telegram_id, email, password_hash, verified, public_key, encrypted_private_key, rpc_endpoint, slippage_bps, priority_tier, created_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (telegram_id, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.TelegramID, nullString(user.Email), user.PasswordHash).Scan(&user.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, telegramID))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) UpdateWallet(ctx context.Context, telegramID int64, publicKey string, encryptedPrivateKey []byte) error {
	query :=
		`UPDATE users SET public_key = $2, encrypted_private_key = $3
		 WHERE telegram_id = $1
		 `
	return r.exec(ctx, query, telegramID, publicKey, encryptedPrivateKey)
}

func (r *PostgresRepository) SetVerified(ctx context.Context, telegramID int64) error {
	query := `UPDATE users SET verified = true WHERE telegram_id = $1`
	return r.exec(ctx, query, telegramID)
}

func (r *PostgresRepository) SetEmail(ctx context.Context, telegramID int64, email string) error {
	query := `UPDATE users SET email = $2 WHERE telegram_id = $1`
	return r.exec(ctx, query, telegramID, email)
}

func (r *PostgresRepository) SetPasswordHash(ctx context.Context, telegramID int64, hash []byte) error {
	query := `UPDATE users SET password_hash = $2 WHERE telegram_id = $1`
	return r.exec(ctx, query, telegramID, hash)
}

func (r *PostgresRepository) SetRPCEndpoint(ctx context.Context, telegramID int64, endpoint string) error {
	query := `UPDATE users SET rpc_endpoint = $2 WHERE telegram_id = $1`
	return r.exec(ctx, query, telegramID, endpoint)
}

func (r *PostgresRepository) SetSlippageBPS(ctx context.Context, telegramID int64, bps int64) error {
	query := `UPDATE users SET slippage_bps = $2 WHERE telegram_id = $1`
	return r.exec(ctx, query, telegramID, bps)
}

func (r *PostgresRepository) SetPriorityTier(ctx context.Context, telegramID int64, tier string) error {
	query := `UPDATE users SET priority_tier = $2 WHERE telegram_id = $1`
	return r.exec(ctx, query, telegramID, tier)
}

// exec runs an UPDATE targeting one user and maps "no row touched" to
// common.ErrorNotFound, keeping storage failures distinct.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		user         models.User
		email        sql.NullString
		publicKey    sql.NullString
		rpcEndpoint  sql.NullString
		slippageBPS  sql.NullInt64
		priorityTier sql.NullString
	)

	err := row.Scan(
		&user.ID, &user.TelegramID, &email, &user.PasswordHash, &user.Verified,
		&publicKey, &user.EncryptedPrivateKey,
		&rpcEndpoint, &slippageBPS, &priorityTier, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Email = email.String
	user.PublicKey = publicKey.String
	user.RPCEndpoint = rpcEndpoint.String
	user.SlippageBPS = slippageBPS.Int64
	user.PriorityTier = priorityTier.String

	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
