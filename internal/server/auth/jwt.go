// Package auth mints and verifies the HS256 JWTs that protect the REST
// surface. The token identity is the caller's Telegram id, which is also
// the credential store key.
package auth

import (
	"time"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims extends the registered claims with the caller identity.
type Claims struct {
	jwt.RegisteredClaims
	TelegramID int64 `json:"tid"`
}

// GenerateToken mints a signed access token for the given identity.
func GenerateToken(telegramID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		TelegramID: telegramID,
	})

	return token.SignedString(secretKey)
}

// TelegramIDFromToken verifies tokenString and extracts the caller
// identity. Expired or malformed tokens yield common.ErrInvalidToken.
func TelegramIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return 0, common.ErrInvalidToken
	}

	if !token.Valid || claims.TelegramID == 0 {
		return 0, common.ErrInvalidToken
	}

	return claims.TelegramID, nil
}
