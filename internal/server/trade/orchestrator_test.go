package trade

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/cryptox"
	"github.com/barklabs/barkbot/internal/jupiter"
	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/models"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }

type fakeStore struct {
	user  *models.User
	err   error
	calls int
}

func (s *fakeStore) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type fakeAssembler struct {
	unsigned *jupiter.Unsigned
	acc      *jupiter.AccountDescriptor
	err      error

	swapCalls, limitCalls, createCalls, closeCalls int

	lastSwap  jupiter.SwapParams
	lastLimit jupiter.LimitOrderParams
	lastDCA   jupiter.DCAParams
	lastClose string
}

func (a *fakeAssembler) BuildSwap(ctx context.Context, p jupiter.SwapParams) (*jupiter.Unsigned, error) {
	a.swapCalls++
	a.lastSwap = p
	return a.unsigned, a.err
}

func (a *fakeAssembler) BuildLimitOrder(ctx context.Context, p jupiter.LimitOrderParams) (*jupiter.Unsigned, error) {
	a.limitCalls++
	a.lastLimit = p
	return a.unsigned, a.err
}

func (a *fakeAssembler) CreateDCA(ctx context.Context, p jupiter.DCAParams) (*jupiter.AccountDescriptor, error) {
	a.createCalls++
	a.lastDCA = p
	return a.acc, a.err
}

func (a *fakeAssembler) CloseDCA(ctx context.Context, dcaPubKey string) (*jupiter.AccountDescriptor, error) {
	a.closeCalls++
	a.lastClose = dcaPubKey
	return a.acc, a.err
}

type fakeChain struct {
	txID         string
	submitErr    error
	balance      uint64
	tokenBalance uint64
	blockhash    solana.Hash

	submitCalls  int
	lastSigned   []byte
	lastEndpoint string
}

func (c *fakeChain) Submit(ctx context.Context, signed []byte, endpoint string) (string, error) {
	c.submitCalls++
	c.lastSigned = signed
	c.lastEndpoint = endpoint
	if c.submitErr != nil {
		return "", c.submitErr
	}
	return c.txID, nil
}

func (c *fakeChain) Balance(ctx context.Context, pubKey string, endpoint string) (uint64, error) {
	return c.balance, nil
}

func (c *fakeChain) TokenBalance(ctx context.Context, owner, mint string, endpoint string) (uint64, error) {
	return c.tokenBalance, nil
}

func (c *fakeChain) LatestBlockhash(ctx context.Context, endpoint string) (solana.Hash, error) {
	return c.blockhash, nil
}

type fixture struct {
	key   solana.PrivateKey
	user  *models.User
	store *fakeStore
	asm   *fakeAssembler
	chain *fakeChain
	orch  *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	cipher, err := cryptox.NewCipher(common.GenerateRandByteArray(32))
	require.NoError(t, err)
	blob, err := cipher.Encrypt([]byte(key))
	require.NoError(t, err)

	user := &models.User{
		TelegramID:          7,
		Verified:            true,
		PublicKey:           key.PublicKey().String(),
		EncryptedPrivateKey: blob,
	}

	store := &fakeStore{user: user}
	asm := &fakeAssembler{}
	chain := &fakeChain{txID: "sig123"}

	orch := NewOrchestrator(store, cipher, asm, chain,
		Defaults{SlippageBPS: 100, PriorityTier: "medium"}, nopLogger{}, nil)

	return &fixture{key: key, user: user, store: store, asm: asm, chain: chain, orch: orch}
}

// unsignedTx builds a minimal legacy transaction requiring the given signers.
func unsignedTx(t *testing.T, signers ...solana.PublicKey) *solana.Transaction {
	t.Helper()
	keys := append([]solana.PublicKey{}, signers...)
	keys = append(keys, solana.SystemProgramID)
	return &solana.Transaction{
		Message: solana.Message{
			Header: solana.MessageHeader{
				NumRequiredSignatures:       uint8(len(signers)),
				NumReadonlyUnsignedAccounts: 1,
			},
			AccountKeys:     keys,
			RecentBlockhash: solana.Hash{},
		},
	}
}

func decodeSigned(t *testing.T, raw []byte) *solana.Transaction {
	t.Helper()
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	return tx
}

func TestSwap_Success(t *testing.T) {
	f := newFixture(t)
	f.asm.unsigned = &jupiter.Unsigned{Tx: unsignedTx(t, f.key.PublicKey())}

	res := f.orch.Swap(context.Background(), 7, SwapRequest{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: "mint-out",
		Amount:     1_000_000,
	})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "sig123", res.TransactionID)
	assert.Equal(t, 1, f.asm.swapCalls)
	assert.Equal(t, 1, f.chain.submitCalls)

	// the submitted bytes carry exactly one valid user signature
	tx := decodeSigned(t, f.chain.lastSigned)
	require.Len(t, tx.Signatures, 1)
	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	pub := ed25519.PublicKey(f.key.PublicKey().Bytes())
	assert.True(t, ed25519.Verify(pub, msg, tx.Signatures[0][:]))
}

func TestSwap_SlippageResolution(t *testing.T) {
	f := newFixture(t)
	f.asm.unsigned = &jupiter.Unsigned{Tx: unsignedTx(t, f.key.PublicKey())}

	// explicit request value wins
	f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1, SlippageBPS: 300})
	assert.Equal(t, uint64(300), f.asm.lastSwap.SlippageBPS)

	// then the user's stored preference
	f.user.SlippageBPS = 250
	f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})
	assert.Equal(t, uint64(250), f.asm.lastSwap.SlippageBPS)

	// then the system default
	f.user.SlippageBPS = 0
	f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})
	assert.Equal(t, uint64(100), f.asm.lastSwap.SlippageBPS)
	assert.Equal(t, "medium", f.asm.lastSwap.PriorityTier)
}

func TestSwap_UnregisteredUser(t *testing.T) {
	f := newFixture(t)
	f.store.err = common.ErrorNotFound

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "not registered")
	assert.Zero(t, f.asm.swapCalls, "no aggregator call on failed precondition")
	assert.Zero(t, f.chain.submitCalls)
}

func TestSwap_UnverifiedUser(t *testing.T) {
	f := newFixture(t)
	f.user.Verified = false

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "not verified")
	assert.Zero(t, f.asm.swapCalls)
	assert.Zero(t, f.chain.submitCalls)
}

func TestSwap_NoWallet(t *testing.T) {
	f := newFixture(t)
	f.user.PublicKey = ""
	f.user.EncryptedPrivateKey = nil

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "no wallet")
	assert.Zero(t, f.asm.swapCalls)
}

func TestSwap_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("connection refused")

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "storage unavailable")
	assert.Zero(t, f.asm.swapCalls)
}

func TestSwap_DecryptionFailure(t *testing.T) {
	f := newFixture(t)
	f.asm.unsigned = &jupiter.Unsigned{Tx: unsignedTx(t, f.key.PublicKey())}

	// blob encrypted under a different key cannot be opened
	other, err := cryptox.NewCipher(common.GenerateRandByteArray(32))
	require.NoError(t, err)
	blob, err := other.Encrypt([]byte(f.key))
	require.NoError(t, err)
	f.user.EncryptedPrivateKey = blob

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "key decryption failed")
	assert.NotContains(t, res.ErrorMessage, string(blob))
	assert.Zero(t, f.chain.submitCalls, "nothing may be submitted after a decryption failure")
}

func TestSwap_AssemblyFailureSurfacesDetail(t *testing.T) {
	f := newFixture(t)
	f.asm.err = errors.New("aggregator status 422: slippage out of range")

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "transaction assembly failed")
	assert.Contains(t, res.ErrorMessage, "slippage out of range")
	assert.Zero(t, f.chain.submitCalls)
}

func TestSwap_SubmissionFailureNoRetry(t *testing.T) {
	f := newFixture(t)
	f.asm.unsigned = &jupiter.Unsigned{Tx: unsignedTx(t, f.key.PublicKey())}
	f.chain.submitErr = errors.New("Blockhash not found")

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "transaction submission rejected")
	assert.Contains(t, res.ErrorMessage, "Blockhash not found")
	assert.Equal(t, 1, f.chain.submitCalls, "a rejected submission is never retried")
}

func TestSwap_UsesUserRPCEndpoint(t *testing.T) {
	f := newFixture(t)
	f.asm.unsigned = &jupiter.Unsigned{Tx: unsignedTx(t, f.key.PublicKey())}
	f.user.RPCEndpoint = "https://rpc.example.com"

	res := f.orch.Swap(context.Background(), 7, SwapRequest{Amount: 1})

	require.True(t, res.Success)
	assert.Equal(t, "https://rpc.example.com", f.chain.lastEndpoint)
}

func TestOpenLimitOrder_CoSignatureOrder(t *testing.T) {
	f := newFixture(t)

	coSigner, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	tx := unsignedTx(t, f.key.PublicKey(), coSigner.PublicKey())
	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	coSig, err := coSigner.Sign(msg)
	require.NoError(t, err)
	f.asm.unsigned = &jupiter.Unsigned{Tx: tx, CoSignatures: []solana.Signature{coSig}}

	res := f.orch.OpenLimitOrder(context.Background(), 7, LimitOrderRequest{
		InputMint: "in", OutputMint: "out", InAmount: 10, OutAmount: 20,
	})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, 1, f.asm.limitCalls)

	signed := decodeSigned(t, f.chain.lastSigned)
	require.Len(t, signed.Signatures, 2)
	pub := ed25519.PublicKey(f.key.PublicKey().Bytes())
	assert.True(t, ed25519.Verify(pub, msg, signed.Signatures[0][:]), "user signature must come first")
	assert.Equal(t, coSig, signed.Signatures[1])
}

func TestCreateDCA_NeverSignsOrSubmits(t *testing.T) {
	f := newFixture(t)
	f.asm.acc = &jupiter.AccountDescriptor{Account: "dca-account", Status: "created", TxID: "agg-tx"}

	res := f.orch.CreateDCA(context.Background(), 7, DCARequest{
		InputMint:        "in",
		OutputMint:       "out",
		TotalInAmount:    100,
		InAmountPerCycle: 10,
		CycleFrequency:   3600,
	})

	require.True(t, res.Success, res.ErrorMessage)
	require.NotNil(t, res.Account)
	assert.Equal(t, "dca-account", res.Account.Account)
	assert.Empty(t, res.TransactionID)
	assert.Zero(t, f.chain.submitCalls, "DCA creation is finalized by the aggregator")
	assert.Equal(t, f.user.PublicKey, f.asm.lastDCA.UserPublicKey)
}

func TestCreateDCA_RequiresVerifiedWallet(t *testing.T) {
	f := newFixture(t)
	f.user.Verified = false

	res := f.orch.CreateDCA(context.Background(), 7, DCARequest{TotalInAmount: 100})

	assert.False(t, res.Success)
	assert.Zero(t, f.asm.createCalls)
}

func TestCloseDCA(t *testing.T) {
	f := newFixture(t)
	f.asm.acc = &jupiter.AccountDescriptor{Account: "dca-account", Status: "closed"}
	dca := solana.SystemProgramID.String()

	res := f.orch.CloseDCA(context.Background(), 7, dca)

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, dca, f.asm.lastClose)
	assert.Zero(t, f.chain.submitCalls)
}

func TestCloseDCA_InvalidAddress(t *testing.T) {
	f := newFixture(t)

	res := f.orch.CloseDCA(context.Background(), 7, "not-base58-0OIl")

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "invalid DCA account address")
	assert.Zero(t, f.asm.closeCalls)
}

func TestWithdrawSOL(t *testing.T) {
	f := newFixture(t)
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	res := f.orch.WithdrawSOL(context.Background(), 7, WithdrawRequest{
		Recipient: recipient.PublicKey().String(),
		Lamports:  5000,
	})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, 1, f.chain.submitCalls)

	tx := decodeSigned(t, f.chain.lastSigned)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, f.key.PublicKey(), tx.Message.AccountKeys[0], "custodial wallet pays and signs")
}

func TestWithdrawSOL_InvalidRecipient(t *testing.T) {
	f := newFixture(t)

	res := f.orch.WithdrawSOL(context.Background(), 7, WithdrawRequest{Recipient: "bogus", Lamports: 5000})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "invalid recipient address")
	assert.Zero(t, f.chain.submitCalls)
}

func TestWithdrawSOL_ZeroAmount(t *testing.T) {
	f := newFixture(t)
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	res := f.orch.WithdrawSOL(context.Background(), 7, WithdrawRequest{Recipient: recipient.PublicKey().String()})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "amount must be positive")
	assert.Zero(t, f.chain.submitCalls)
}

func TestWithdrawToken(t *testing.T) {
	f := newFixture(t)
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	res := f.orch.WithdrawToken(context.Background(), 7, TokenWithdrawRequest{
		Mint:      mint.PublicKey().String(),
		Recipient: recipient.PublicKey().String(),
		Amount:    1000,
	})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, 1, f.chain.submitCalls)

	tx := decodeSigned(t, f.chain.lastSigned)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, f.key.PublicKey(), tx.Message.AccountKeys[0], "custodial wallet pays and signs")
	assert.Contains(t, tx.Message.AccountKeys, solana.TokenProgramID)
}

func TestWithdrawToken_InvalidMint(t *testing.T) {
	f := newFixture(t)
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	res := f.orch.WithdrawToken(context.Background(), 7, TokenWithdrawRequest{
		Mint:      "bogus",
		Recipient: recipient.PublicKey().String(),
		Amount:    1000,
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "invalid mint address")
	assert.Zero(t, f.chain.submitCalls)
}

func TestTokenBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.tokenBalance = 42_000
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	got, err := f.orch.TokenBalance(context.Background(), 7, mint.PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, uint64(42_000), got)

	_, err = f.orch.TokenBalance(context.Background(), 7, "bogus")
	assert.True(t, errors.Is(err, ErrPrecondition))
}

func TestBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.balance = 123456

	got, err := f.orch.Balance(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), got)
}

func TestFailedResult_MasksUnknownErrors(t *testing.T) {
	res := failed(errors.New("pq: duplicate key value violates unique constraint"))
	assert.Equal(t, "internal error", res.ErrorMessage)
}
