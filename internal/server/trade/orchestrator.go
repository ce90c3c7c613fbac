// Package trade implements the custodial trading pipeline: load the
// caller's credentials, build a transaction through the aggregator,
// decrypt the stored key, sign, submit, and map every failure onto a
// small error taxonomy. Private key material exists in plaintext only
// inside a single operation call and is wiped before it returns.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/cryptox"
	"github.com/barklabs/barkbot/internal/jupiter"
	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/metrics"
	"github.com/barklabs/barkbot/internal/server/models"
	"github.com/barklabs/barkbot/internal/solanax"
)

// Assembler builds transactions through the trade aggregator.
type Assembler interface {
	BuildSwap(ctx context.Context, p jupiter.SwapParams) (*jupiter.Unsigned, error)
	BuildLimitOrder(ctx context.Context, p jupiter.LimitOrderParams) (*jupiter.Unsigned, error)
	CreateDCA(ctx context.Context, p jupiter.DCAParams) (*jupiter.AccountDescriptor, error)
	CloseDCA(ctx context.Context, dcaPubKey string) (*jupiter.AccountDescriptor, error)
}

// Chain submits signed transactions and serves chain queries.
type Chain interface {
	Submit(ctx context.Context, signed []byte, endpoint string) (string, error)
	Balance(ctx context.Context, pubKey string, endpoint string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string, endpoint string) (uint64, error)
	LatestBlockhash(ctx context.Context, endpoint string) (solana.Hash, error)
}

// Store loads custodial accounts by Telegram id.
type Store interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// Defaults fills in trading parameters a user has not overridden.
type Defaults struct {
	SlippageBPS  uint64
	PriorityTier string
}

// Orchestrator runs the end-to-end trading operations. It is safe for
// concurrent use.
type Orchestrator struct {
	store     Store
	cipher    *cryptox.Cipher
	assembler Assembler
	chain     Chain
	defaults  Defaults
	log       logging.Logger
	metrics   *metrics.Metrics
}

func NewOrchestrator(store Store, cipher *cryptox.Cipher, assembler Assembler, chain Chain, defaults Defaults, log logging.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:     store,
		cipher:    cipher,
		assembler: assembler,
		chain:     chain,
		defaults:  defaults,
		log:       log,
		metrics:   m,
	}
}

// SwapRequest is one market swap. SlippageBPS zero means "use the user's
// stored preference, then the system default".
type SwapRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBPS uint64
}

// LimitOrderRequest is one limit order placement.
type LimitOrderRequest struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
}

// DCARequest is one DCA schedule creation.
type DCARequest struct {
	InputMint            string
	OutputMint           string
	TotalInAmount        uint64
	InAmountPerCycle     uint64
	CycleFrequency       uint64
	MinOutAmountPerCycle uint64
	MaxOutAmountPerCycle uint64
	Start                int64
}

// WithdrawRequest moves SOL out of the custodial wallet.
type WithdrawRequest struct {
	Recipient string
	Lamports  uint64
}

// TokenWithdrawRequest moves SPL tokens out of the custodial wallet.
type TokenWithdrawRequest struct {
	Mint      string
	Recipient string
	Amount    uint64
}

// Swap executes a market swap for the given user.
func (o *Orchestrator) Swap(ctx context.Context, telegramID int64, req SwapRequest) Result {
	start := time.Now()
	txID, err := o.swap(ctx, telegramID, req)
	return o.finish(ctx, "swap", telegramID, start, txID, nil, err)
}

func (o *Orchestrator) swap(ctx context.Context, telegramID int64, req SwapRequest) (string, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return "", err
	}

	unsigned, err := o.assembler.BuildSwap(ctx, jupiter.SwapParams{
		UserPublicKey: user.PublicKey,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
		Amount:        req.Amount,
		SlippageBPS:   o.slippageFor(user, req.SlippageBPS),
		PriorityTier:  o.priorityFor(user),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	return o.signAndSubmit(ctx, user, unsigned)
}

// OpenLimitOrder places a limit order. The aggregator co-signs for the
// order account it keeps custody of; the user's signature goes first.
func (o *Orchestrator) OpenLimitOrder(ctx context.Context, telegramID int64, req LimitOrderRequest) Result {
	start := time.Now()
	txID, err := o.openLimitOrder(ctx, telegramID, req)
	return o.finish(ctx, "limit_order", telegramID, start, txID, nil, err)
}

func (o *Orchestrator) openLimitOrder(ctx context.Context, telegramID int64, req LimitOrderRequest) (string, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return "", err
	}

	unsigned, err := o.assembler.BuildLimitOrder(ctx, jupiter.LimitOrderParams{
		UserPublicKey: user.PublicKey,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
		InAmount:      req.InAmount,
		OutAmount:     req.OutAmount,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	return o.signAndSubmit(ctx, user, unsigned)
}

// CreateDCA opens a DCA schedule. The aggregator creates and finalizes
// the account itself, so no local signing or submission happens.
func (o *Orchestrator) CreateDCA(ctx context.Context, telegramID int64, req DCARequest) Result {
	start := time.Now()
	acc, err := o.createDCA(ctx, telegramID, req)
	return o.finish(ctx, "dca_create", telegramID, start, "", acc, err)
}

func (o *Orchestrator) createDCA(ctx context.Context, telegramID int64, req DCARequest) (*jupiter.AccountDescriptor, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	acc, err := o.assembler.CreateDCA(ctx, jupiter.DCAParams{
		UserPublicKey:        user.PublicKey,
		InputMint:            req.InputMint,
		OutputMint:           req.OutputMint,
		TotalInAmount:        req.TotalInAmount,
		InAmountPerCycle:     req.InAmountPerCycle,
		CycleFrequency:       req.CycleFrequency,
		MinOutAmountPerCycle: req.MinOutAmountPerCycle,
		MaxOutAmountPerCycle: req.MaxOutAmountPerCycle,
		Start:                req.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return acc, nil
}

// CloseDCA tears down a DCA schedule. Aggregator-finalized like CreateDCA.
func (o *Orchestrator) CloseDCA(ctx context.Context, telegramID int64, dcaPubKey string) Result {
	start := time.Now()
	acc, err := o.closeDCA(ctx, telegramID, dcaPubKey)
	return o.finish(ctx, "dca_close", telegramID, start, "", acc, err)
}

func (o *Orchestrator) closeDCA(ctx context.Context, telegramID int64, dcaPubKey string) (*jupiter.AccountDescriptor, error) {
	if _, err := o.loadEligible(ctx, telegramID); err != nil {
		return nil, err
	}
	if _, err := solana.PublicKeyFromBase58(dcaPubKey); err != nil {
		return nil, fmt.Errorf("%w: invalid DCA account address", ErrPrecondition)
	}

	acc, err := o.assembler.CloseDCA(ctx, dcaPubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return acc, nil
}

// WithdrawSOL transfers lamports from the custodial wallet to an external
// address, through the same sign-and-submit path as trades.
func (o *Orchestrator) WithdrawSOL(ctx context.Context, telegramID int64, req WithdrawRequest) Result {
	start := time.Now()
	txID, err := o.withdrawSOL(ctx, telegramID, req)
	return o.finish(ctx, "withdraw", telegramID, start, txID, nil, err)
}

func (o *Orchestrator) withdrawSOL(ctx context.Context, telegramID int64, req WithdrawRequest) (string, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return "", err
	}

	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return "", fmt.Errorf("%w: invalid recipient address", ErrPrecondition)
	}
	if req.Lamports == 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrPrecondition)
	}
	from := solana.MustPublicKeyFromBase58(user.PublicKey)

	blockhash, err := o.chain.LatestBlockhash(ctx, user.RPCEndpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	tx, err := solanax.BuildTransfer(from, recipient, req.Lamports, blockhash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	return o.signAndSubmit(ctx, user, &jupiter.Unsigned{Tx: tx})
}

// WithdrawToken transfers SPL tokens from the custodial wallet's
// associated token account to the recipient's, through the same
// sign-and-submit path as trades.
func (o *Orchestrator) WithdrawToken(ctx context.Context, telegramID int64, req TokenWithdrawRequest) Result {
	start := time.Now()
	txID, err := o.withdrawToken(ctx, telegramID, req)
	return o.finish(ctx, "withdraw_token", telegramID, start, txID, nil, err)
}

func (o *Orchestrator) withdrawToken(ctx context.Context, telegramID int64, req TokenWithdrawRequest) (string, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return "", err
	}

	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid mint address", ErrPrecondition)
	}
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return "", fmt.Errorf("%w: invalid recipient address", ErrPrecondition)
	}
	if req.Amount == 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrPrecondition)
	}
	from := solana.MustPublicKeyFromBase58(user.PublicKey)

	blockhash, err := o.chain.LatestBlockhash(ctx, user.RPCEndpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	tx, err := solanax.BuildTokenTransfer(from, recipient, mint, req.Amount, blockhash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	return o.signAndSubmit(ctx, user, &jupiter.Unsigned{Tx: tx})
}

// TokenBalance reports the custodial wallet's holdings of one mint.
func (o *Orchestrator) TokenBalance(ctx context.Context, telegramID int64, mint string) (uint64, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		return 0, fmt.Errorf("%w: invalid mint address", ErrPrecondition)
	}
	balance, err := o.chain.TokenBalance(ctx, user.PublicKey, mint, user.RPCEndpoint)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return balance, nil
}

// Balance reports the custodial wallet's lamport balance.
func (o *Orchestrator) Balance(ctx context.Context, telegramID int64) (uint64, error) {
	user, err := o.loadEligible(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	balance, err := o.chain.Balance(ctx, user.PublicKey, user.RPCEndpoint)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return balance, nil
}

// loadEligible fetches the user and checks every precondition that must
// hold before any network call is made.
func (o *Orchestrator) loadEligible(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := o.store.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: account not registered", ErrPrecondition)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !user.Verified {
		return nil, fmt.Errorf("%w: account not verified", ErrPrecondition)
	}
	if !user.HasWallet() {
		return nil, fmt.Errorf("%w: no wallet on file", ErrPrecondition)
	}
	return user, nil
}

// signAndSubmit decrypts the stored key, signs the transaction with the
// user first and any aggregator co-signatures after, and submits the raw
// bytes. The plaintext key is wiped before return on every path.
func (o *Orchestrator) signAndSubmit(ctx context.Context, user *models.User, unsigned *jupiter.Unsigned) (string, error) {
	keyBytes, err := o.cipher.Decrypt(user.EncryptedPrivateKey)
	if err != nil {
		return "", fmt.Errorf("%w: stored key cannot be opened", ErrDecryption)
	}
	defer common.Wipe(keyBytes)

	signed, err := solanax.Sign(unsigned.Tx, solana.PrivateKey(keyBytes), unsigned.CoSignatures...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}

	submitStart := time.Now()
	txID, err := o.chain.Submit(ctx, signed, user.RPCEndpoint)
	o.metrics.ObserveSubmit(time.Since(submitStart))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return txID, nil
}

func (o *Orchestrator) slippageFor(user *models.User, requested uint64) uint64 {
	if requested > 0 {
		return requested
	}
	if user.SlippageBPS > 0 {
		return uint64(user.SlippageBPS)
	}
	return o.defaults.SlippageBPS
}

func (o *Orchestrator) priorityFor(user *models.User) string {
	if user.PriorityTier != "" {
		return user.PriorityTier
	}
	return o.defaults.PriorityTier
}

// finish maps the internal outcome onto the public Result, records
// metrics and logs. Decryption failures are escalated to error level so
// operators notice a bad process key or tampered blob immediately.
func (o *Orchestrator) finish(ctx context.Context, op string, telegramID int64, start time.Time, txID string, acc *jupiter.AccountDescriptor, err error) Result {
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, ErrDecryption) {
			o.log.Error(ctx, "trade operation failed", "op", op, "telegram_id", telegramID, "error", err)
		} else {
			o.log.Warn(ctx, "trade operation failed", "op", op, "telegram_id", telegramID, "error", err)
		}
		o.metrics.ObserveOperation(op, "failure", elapsed)
		return failed(err)
	}

	o.metrics.ObserveOperation(op, "success", elapsed)
	if acc != nil {
		o.log.Info(ctx, "trade operation complete", "op", op, "telegram_id", telegramID, "account", acc.Account)
		return finalized(acc)
	}
	o.log.Info(ctx, "trade operation complete", "op", op, "telegram_id", telegramID, "tx", txID)
	return submitted(txID)
}
