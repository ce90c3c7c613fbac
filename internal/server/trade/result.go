package trade

import "github.com/barklabs/barkbot/internal/jupiter"

// Result is the single shape every trading operation returns to the
// transport layers. On success exactly one of TransactionID (two-step
// operations) or Account (aggregator-finalized operations) is set. On
// failure ErrorMessage carries a human-readable cause; no internal error
// type crosses this boundary and no secret ever appears in the message.
type Result struct {
	Success       bool                       `json:"success"`
	TransactionID string                     `json:"transaction_id,omitempty"`
	Account       *jupiter.AccountDescriptor `json:"account,omitempty"`
	ErrorMessage  string                     `json:"error_message,omitempty"`
}

func submitted(txID string) Result {
	return Result{Success: true, TransactionID: txID}
}

func finalized(acc *jupiter.AccountDescriptor) Result {
	return Result{Success: true, Account: acc}
}

func failed(err error) Result {
	msg := "internal error"
	if isKnown(err) {
		msg = err.Error()
	}
	return Result{ErrorMessage: msg}
}
