// Package bot is the Telegram transport. Each command maps onto the same
// services and trading pipeline the REST API uses; the Telegram user id
// doubles as the account identity, so no extra login step exists here.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/models"
	"github.com/barklabs/barkbot/internal/server/trade"
)

// API is the slice of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Accounts is the account surface the bot needs.
type Accounts interface {
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	BeginVerification(ctx context.Context, telegramID int64, email string) (string, error)
	ConfirmVerification(ctx context.Context, telegramID int64, code string) error
	EnsureWallet(ctx context.Context, telegramID int64) (*models.User, error)
	SetCredentials(ctx context.Context, telegramID int64, email, password string) error
	ExportPrivateKey(ctx context.Context, telegramID int64) (string, error)
	SetRPCEndpoint(ctx context.Context, telegramID int64, endpoint string) error
	SetSlippageBPS(ctx context.Context, telegramID int64, bps int64) error
	SetPriorityTier(ctx context.Context, telegramID int64, tier string) error
}

// Trader runs trading operations on behalf of chat users.
type Trader interface {
	Swap(ctx context.Context, telegramID int64, req trade.SwapRequest) trade.Result
	OpenLimitOrder(ctx context.Context, telegramID int64, req trade.LimitOrderRequest) trade.Result
	CreateDCA(ctx context.Context, telegramID int64, req trade.DCARequest) trade.Result
	CloseDCA(ctx context.Context, telegramID int64, dcaPubKey string) trade.Result
	WithdrawSOL(ctx context.Context, telegramID int64, req trade.WithdrawRequest) trade.Result
	WithdrawToken(ctx context.Context, telegramID int64, req trade.TokenWithdrawRequest) trade.Result
	Balance(ctx context.Context, telegramID int64) (uint64, error)
	TokenBalance(ctx context.Context, telegramID int64, mint string) (uint64, error)
}

// Mailer delivers verification codes to the user's email address.
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// NoopMailer drops codes on the floor. Used when no mail backend is
// configured; verification then needs an operator to read the code out
// of the store.
type NoopMailer struct{}

func (NoopMailer) SendCode(context.Context, string, string) error { return nil }

// Bot wires Telegram updates to the account and trading services.
type Bot struct {
	api      API
	accounts Accounts
	trader   Trader
	mailer   Mailer
	log      logging.Logger
}

func New(api API, accounts Accounts, trader Trader, mailer Mailer, log logging.Logger) *Bot {
	if mailer == nil {
		mailer = NoopMailer{}
	}
	return &Bot{api: api, accounts: accounts, trader: trader, mailer: mailer, log: log}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	msg := update.Message
	b.log.Debug(ctx, "bot command", "command", msg.Command(), "telegram_id", msg.From.ID)
	b.HandleCommand(ctx, msg)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn(context.Background(), "telegram send failed", "error", err)
	}
}

func resultText(res trade.Result) string {
	if !res.Success {
		return "Operation failed: " + res.ErrorMessage
	}
	if res.Account != nil {
		return fmt.Sprintf("Done. Account %s is %s.", res.Account.Account, res.Account.Status)
	}
	return "Submitted. Transaction: " + res.TransactionID
}
