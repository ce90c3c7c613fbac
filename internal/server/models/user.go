package models

import "time"

// User is one custodial account row.
//
// Wallet fields are all-or-nothing: either both PublicKey and
// EncryptedPrivateKey are set, or neither. EncryptedPrivateKey holds the
// AES-GCM blob produced by cryptox.Cipher and is never persisted or
// transmitted in plaintext.
type User struct {
	ID                  string
	TelegramID          int64
	Email               string
	PasswordHash        []byte
	Verified            bool
	PublicKey           string
	EncryptedPrivateKey []byte

	// Trading preferences; zero values mean "use the system default".
	RPCEndpoint  string
	SlippageBPS  int64
	PriorityTier string

	CreatedAt time.Time
}

// HasWallet reports whether a wallet has been generated for this user.
func (u *User) HasWallet() bool {
	return u.PublicKey != "" && len(u.EncryptedPrivateKey) > 0
}
