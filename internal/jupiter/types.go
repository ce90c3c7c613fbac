package jupiter

import (
	"github.com/gagliardetto/solana-go"
)

// SwapParams describes one swap build request.
type SwapParams struct {
	UserPublicKey string
	InputMint     string
	OutputMint    string
	Amount        uint64
	SlippageBPS   uint64
	PriorityTier  string
}

// LimitOrderParams describes one limit-order build request.
type LimitOrderParams struct {
	UserPublicKey string
	InputMint     string
	OutputMint    string
	InAmount      uint64
	OutAmount     uint64
}

// DCAParams describes one DCA account creation request. The aggregator
// finalizes the account itself; no local signing follows.
type DCAParams struct {
	UserPublicKey        string
	InputMint            string
	OutputMint           string
	TotalInAmount        uint64
	InAmountPerCycle     uint64
	CycleFrequency       uint64
	MinOutAmountPerCycle uint64
	MaxOutAmountPerCycle uint64
	Start                int64
}

// Unsigned is an aggregator-built transaction that still needs the user's
// signature. CoSignatures carries any signatures the aggregator produced
// itself (program-custody co-signers on limit orders), in the order they
// must be attached after the user's own.
type Unsigned struct {
	Tx           *solana.Transaction
	CoSignatures []solana.Signature
}

// AccountDescriptor reports an account the aggregator created or closed
// on the caller's behalf.
type AccountDescriptor struct {
	Account string `json:"account"`
	Status  string `json:"status"`
	TxID    string `json:"txid,omitempty"`
}

// wire-format request/response bodies

type swapRequest struct {
	UserPublicKey string `json:"userPublicKey"`
	InputMint     string `json:"inputMint"`
	OutputMint    string `json:"outputMint"`
	Amount        uint64 `json:"amount"`
	SlippageBPS   uint64 `json:"slippageBps"`
	PriorityTier  string `json:"priorityTier,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

type limitOrderRequest struct {
	UserPublicKey string `json:"userPublicKey"`
	InputMint     string `json:"inputMint"`
	OutputMint    string `json:"outputMint"`
	InAmount      uint64 `json:"inAmount"`
	OutAmount     uint64 `json:"outAmount"`
}

type limitOrderResponse struct {
	Transaction string `json:"tx"`
	// Signature2 is the co-signature of the order account the aggregator
	// keeps custody of.
	Signature2 string `json:"signature2"`
}

type createDCARequest struct {
	UserPublicKey        string `json:"userPublicKey"`
	InputMint            string `json:"inputMint"`
	OutputMint           string `json:"outputMint"`
	TotalInAmount        uint64 `json:"totalInAmount"`
	InAmountPerCycle     uint64 `json:"inAmountPerCycle"`
	CycleFrequency       uint64 `json:"cycleFrequency"`
	MinOutAmountPerCycle uint64 `json:"minOutAmountPerCycle"`
	MaxOutAmountPerCycle uint64 `json:"maxOutAmountPerCycle"`
	Start                int64  `json:"start"`
}

type closeDCARequest struct {
	DCAPubKey string `json:"dcaPubKey"`
}
