package cryptox

import (
	"github.com/gagliardetto/solana-go"
)

// GenerateKeypair produces a fresh wallet keypair from the system CSPRNG.
// The public key is the base58-encoded verifying key; the private part is
// the raw 64-byte ed25519 secret. Callers own the returned bytes and
// should wipe them once encrypted.
func GenerateKeypair() (publicKey string, privateKey []byte, err error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return "", nil, err
	}
	return key.PublicKey().String(), []byte(key), nil
}
