package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/barklabs/barkbot/internal/common"
)

// redisCmdable is the slice of the redis client the code store uses.
type redisCmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// VerificationCodes stores short-lived account verification codes in
// redis. A code is single-use: confirmation consumes it atomically with
// GETDEL, so a second attempt with the same code always fails.
type VerificationCodes struct {
	rdb redisCmdable
	ttl time.Duration
}

func NewVerificationCodes(rdb redisCmdable, ttl time.Duration) *VerificationCodes {
	return &VerificationCodes{rdb: rdb, ttl: ttl}
}

func codeKey(telegramID int64) string {
	return fmt.Sprintf("verify:%d", telegramID)
}

// Issue generates a fresh 6-digit code for the user, replacing any code
// still pending, and returns it for delivery.
func (v *VerificationCodes) Issue(ctx context.Context, telegramID int64) (string, error) {
	code, err := common.MakeRandDigitCode(6)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := v.rdb.Set(ctx, codeKey(telegramID), code, v.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Confirm consumes the pending code for the user and compares it against
// the submitted one. Expired or absent codes yield common.ErrCodeExpired,
// a wrong code common.ErrCodeMismatch. Either way the stored code is gone
// and the user must request a new one after a mismatch.
func (v *VerificationCodes) Confirm(ctx context.Context, telegramID int64, code string) error {
	stored, err := v.rdb.GetDel(ctx, codeKey(telegramID)).Result()
	if errors.Is(err, redis.Nil) {
		return common.ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if stored != code {
		return common.ErrCodeMismatch
	}
	return nil
}
