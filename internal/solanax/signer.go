// Package solanax wraps local transaction signing and JSON-RPC submission.
// Signing is pure and offline; submission talks to the configured RPC node.
package solanax

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrMalformedPayload marks an unsigned payload that cannot be signed:
// corrupt message bytes or a signer count that disagrees with the
// signatures being attached. This is a contract violation between the
// assembler and the signer, not a user error.
var ErrMalformedPayload = errors.New("malformed transaction payload")

// Sign signs the transaction's canonical message with key and attaches the
// user signature first, then extras in the order given. The message bytes
// are never modified, only the signature slots. Returns the fully signed
// transaction serialized for submission.
func Sign(tx *solana.Transaction, key solana.PrivateKey, extras ...solana.Signature) ([]byte, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrMalformedPayload)
	}
	if len(tx.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("%w: empty account list", ErrMalformedPayload)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if required != 1+len(extras) {
		return nil, fmt.Errorf("%w: message requires %d signatures, have %d",
			ErrMalformedPayload, required, 1+len(extras))
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	sig, err := key.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	sigs := make([]solana.Signature, 0, 1+len(extras))
	sigs = append(sigs, sig)
	sigs = append(sigs, extras...)
	tx.Signatures = sigs

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize signed transaction: %w", err)
	}
	return signed, nil
}
