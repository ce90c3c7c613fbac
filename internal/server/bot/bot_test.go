package bot

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/models"
	"github.com/barklabs/barkbot/internal/server/trade"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }

type fakeAPI struct {
	sent []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

type fakeAccounts struct {
	user       *models.User
	code       string
	confirmErr error
	exportKey  string
	prefErr    error

	verifiedEmail string
	confirmedWith string

	credEmail    string
	credPassword string
	credErr      error
}

func (f *fakeAccounts) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	if f.user == nil {
		return nil, common.ErrorNotFound
	}
	return f.user, nil
}

func (f *fakeAccounts) BeginVerification(ctx context.Context, telegramID int64, email string) (string, error) {
	f.verifiedEmail = email
	return f.code, nil
}

func (f *fakeAccounts) ConfirmVerification(ctx context.Context, telegramID int64, code string) error {
	f.confirmedWith = code
	return f.confirmErr
}

func (f *fakeAccounts) EnsureWallet(ctx context.Context, telegramID int64) (*models.User, error) {
	if f.user == nil {
		return nil, common.ErrorNotFound
	}
	return f.user, nil
}

func (f *fakeAccounts) SetCredentials(ctx context.Context, telegramID int64, email, password string) error {
	if f.credErr != nil {
		return f.credErr
	}
	f.credEmail = email
	f.credPassword = password
	return nil
}

func (f *fakeAccounts) ExportPrivateKey(ctx context.Context, telegramID int64) (string, error) {
	return f.exportKey, nil
}

func (f *fakeAccounts) SetRPCEndpoint(ctx context.Context, telegramID int64, endpoint string) error {
	return f.prefErr
}

func (f *fakeAccounts) SetSlippageBPS(ctx context.Context, telegramID int64, bps int64) error {
	return f.prefErr
}

func (f *fakeAccounts) SetPriorityTier(ctx context.Context, telegramID int64, tier string) error {
	return f.prefErr
}

type fakeTrader struct {
	result trade.Result

	swapCalls int
	lastSwap  trade.SwapRequest
	balance   uint64

	tokenBalance      uint64
	lastTokenWithdraw trade.TokenWithdrawRequest
	tokenWithdraws    int
}

func (f *fakeTrader) Swap(ctx context.Context, telegramID int64, req trade.SwapRequest) trade.Result {
	f.swapCalls++
	f.lastSwap = req
	return f.result
}

func (f *fakeTrader) OpenLimitOrder(ctx context.Context, telegramID int64, req trade.LimitOrderRequest) trade.Result {
	return f.result
}

func (f *fakeTrader) CreateDCA(ctx context.Context, telegramID int64, req trade.DCARequest) trade.Result {
	return f.result
}

func (f *fakeTrader) CloseDCA(ctx context.Context, telegramID int64, dcaPubKey string) trade.Result {
	return f.result
}

func (f *fakeTrader) WithdrawSOL(ctx context.Context, telegramID int64, req trade.WithdrawRequest) trade.Result {
	return f.result
}

func (f *fakeTrader) WithdrawToken(ctx context.Context, telegramID int64, req trade.TokenWithdrawRequest) trade.Result {
	f.tokenWithdraws++
	f.lastTokenWithdraw = req
	return f.result
}

func (f *fakeTrader) Balance(ctx context.Context, telegramID int64) (uint64, error) {
	return f.balance, nil
}

func (f *fakeTrader) TokenBalance(ctx context.Context, telegramID int64, mint string) (uint64, error) {
	return f.tokenBalance, nil
}

type recordingMailer struct {
	email, code string
}

func (m *recordingMailer) SendCode(ctx context.Context, email, code string) error {
	m.email = email
	m.code = code
	return nil
}

// command builds a Telegram message carrying one bot command.
func command(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
		Chat:     &tgbotapi.Chat{ID: 7},
		From:     &tgbotapi.User{ID: 7},
	}
}

func newTestBot(accounts *fakeAccounts, trader *fakeTrader, mailer Mailer) (*Bot, *fakeAPI) {
	api := &fakeAPI{}
	return New(api, accounts, trader, mailer, nopLogger{}), api
}

func TestBuy(t *testing.T) {
	trader := &fakeTrader{result: trade.Result{Success: true, TransactionID: "sig123"}}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/buy TokenMint111 0.5"))

	assert.Equal(t, 1, trader.swapCalls)
	assert.Equal(t, wrappedSOLMint, trader.lastSwap.InputMint, "buys spend SOL")
	assert.Equal(t, "TokenMint111", trader.lastSwap.OutputMint)
	assert.Equal(t, uint64(500_000_000), trader.lastSwap.Amount)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "sig123")
}

func TestBuy_InvalidAmount(t *testing.T) {
	trader := &fakeTrader{}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/buy TokenMint111 lots"))

	assert.Zero(t, trader.swapCalls)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Invalid amount")
}

func TestBuy_AmountTooLarge(t *testing.T) {
	trader := &fakeTrader{}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	// above the supply cap, would overflow the lamport conversion
	b.HandleCommand(context.Background(), command("/buy TokenMint111 99999999999999999999"))

	assert.Zero(t, trader.swapCalls)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Invalid amount")
}

func TestSell(t *testing.T) {
	trader := &fakeTrader{result: trade.Result{Success: true, TransactionID: "sig123"}}
	b, _ := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/sell TokenMint111 1000"))

	assert.Equal(t, wrappedSOLMint, trader.lastSwap.OutputMint, "sells receive SOL")
	assert.Equal(t, uint64(1000), trader.lastSwap.Amount)
}

func TestVerify_DeliversCodeByMail(t *testing.T) {
	accounts := &fakeAccounts{code: "654321"}
	mailer := &recordingMailer{}
	b, api := newTestBot(accounts, &fakeTrader{}, mailer)

	b.HandleCommand(context.Background(), command("/verify a@example.com"))

	assert.Equal(t, "a@example.com", accounts.verifiedEmail)
	assert.Equal(t, "654321", mailer.code)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "a@example.com")
	assert.NotContains(t, api.sent[0], "654321", "the code must not appear in the chat")
}

func TestVerify_BadEmail(t *testing.T) {
	accounts := &fakeAccounts{}
	b, api := newTestBot(accounts, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/verify not-an-email"))

	assert.Empty(t, accounts.verifiedEmail)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Usage")
}

func TestCode_VerifiesAndCreatesWallet(t *testing.T) {
	accounts := &fakeAccounts{user: &models.User{TelegramID: 7, PublicKey: "WalletPubKey"}}
	b, api := newTestBot(accounts, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/code 654321"))

	assert.Equal(t, "654321", accounts.confirmedWith)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "WalletPubKey")
}

func TestCode_Mismatch(t *testing.T) {
	accounts := &fakeAccounts{confirmErr: common.ErrCodeMismatch}
	b, api := newTestBot(accounts, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/code 000000"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Verification failed")
}

func TestExport_SendsKeyAndWarning(t *testing.T) {
	accounts := &fakeAccounts{exportKey: "Base58PrivateKey"}
	b, api := newTestBot(accounts, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/export"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, "Base58PrivateKey", api.sent[0])
	assert.Contains(t, api.sent[1], "private key")
}

func TestWallet_ShowsAddressAndBalance(t *testing.T) {
	accounts := &fakeAccounts{user: &models.User{TelegramID: 7, PublicKey: "WalletPubKey"}}
	trader := &fakeTrader{balance: 1_500_000_000}
	b, api := newTestBot(accounts, trader, nil)

	b.HandleCommand(context.Background(), command("/wallet"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "WalletPubKey")
	assert.Contains(t, api.sent[0], "1.5 SOL")
}

func TestStart_VerifiedShowsWalletAndLowBalanceWarning(t *testing.T) {
	accounts := &fakeAccounts{user: &models.User{TelegramID: 7, Verified: true, PublicKey: "WalletPubKey"}}
	trader := &fakeTrader{balance: 1_000_000} // under the fee threshold
	b, api := newTestBot(accounts, trader, nil)

	b.HandleCommand(context.Background(), command("/start"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "WalletPubKey")
	assert.Contains(t, api.sent[0], "too low")
}

func TestStart_FundedWalletNoWarning(t *testing.T) {
	accounts := &fakeAccounts{user: &models.User{TelegramID: 7, Verified: true, PublicKey: "WalletPubKey"}}
	trader := &fakeTrader{balance: 2_000_000_000}
	b, api := newTestBot(accounts, trader, nil)

	b.HandleCommand(context.Background(), command("/start"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "WalletPubKey")
	assert.Contains(t, api.sent[0], "2 SOL")
	assert.NotContains(t, api.sent[0], "too low")
}

func TestAPICommand_SetsCredentials(t *testing.T) {
	accounts := &fakeAccounts{}
	b, api := newTestBot(accounts, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/api a@example.com hunter2secret"))

	assert.Equal(t, "a@example.com", accounts.credEmail)
	assert.Equal(t, "hunter2secret", accounts.credPassword)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Delete your message")
}

func TestAPICommand_ErrorSurfaces(t *testing.T) {
	accounts := &fakeAccounts{credErr: common.ErrorAlreadyExists}
	b, api := newTestBot(accounts, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/api a@example.com hunter2secret"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Could not set API credentials")
}

func TestWithdrawToken(t *testing.T) {
	trader := &fakeTrader{result: trade.Result{Success: true, TransactionID: "sig456"}}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/withdrawtoken TokenMint111 DestAddr222 5000"))

	assert.Equal(t, 1, trader.tokenWithdraws)
	assert.Equal(t, "TokenMint111", trader.lastTokenWithdraw.Mint)
	assert.Equal(t, "DestAddr222", trader.lastTokenWithdraw.Recipient)
	assert.Equal(t, uint64(5000), trader.lastTokenWithdraw.Amount)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "sig456")
}

func TestWithdrawToken_InvalidAmount(t *testing.T) {
	trader := &fakeTrader{}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/withdrawtoken TokenMint111 DestAddr222 0"))

	assert.Zero(t, trader.tokenWithdraws)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Invalid amount")
}

func TestTokenBalanceCommand(t *testing.T) {
	trader := &fakeTrader{tokenBalance: 42_000}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/tokenbalance TokenMint111"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "42000")
}

func TestDCA_FailureSurfaces(t *testing.T) {
	trader := &fakeTrader{result: trade.Result{ErrorMessage: "precondition failed: account not verified"}}
	b, api := newTestBot(&fakeAccounts{}, trader, nil)

	b.HandleCommand(context.Background(), command("/dca MintA MintB 100 10 3600"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "not verified")
}

func TestUnknownCommand(t *testing.T) {
	b, api := newTestBot(&fakeAccounts{}, &fakeTrader{}, nil)

	b.HandleCommand(context.Background(), command("/dance"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "/help")
}
