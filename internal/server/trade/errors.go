package trade

import "errors"

// Error taxonomy for trading operations. Every failure inside an
// operation is wrapped with exactly one of these sentinels before it
// reaches the Result boundary; match with errors.Is.
var (
	// ErrPrecondition: caller is unverified, has no wallet, or supplied
	// an unusable parameter. User-correctable; raised before any
	// network I/O happens.
	ErrPrecondition = errors.New("precondition failed")

	// ErrStorage: the credential store is unavailable. Fatal to the
	// request. Distinct from "user not found".
	ErrStorage = errors.New("storage unavailable")

	// ErrDecryption: the stored key blob cannot be opened with the
	// process key. Implies key rotation gone wrong or tampering, so it
	// is logged at error level for operators.
	ErrDecryption = errors.New("key decryption failed")

	// ErrAssembly: the aggregator rejected or failed the build request.
	// Surfaced with upstream detail, never retried (quotes go stale).
	ErrAssembly = errors.New("transaction assembly failed")

	// ErrSigning: the unsigned payload violates the signer contract.
	// A bug signal, always fatal.
	ErrSigning = errors.New("transaction signing failed")

	// ErrSubmission: the RPC node rejected the signed transaction.
	// Surfaced with RPC detail verbatim, never retried here.
	ErrSubmission = errors.New("transaction submission rejected")
)

var taxonomy = []error{
	ErrPrecondition, ErrStorage, ErrDecryption, ErrAssembly, ErrSigning, ErrSubmission,
}

func isKnown(err error) bool {
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
