package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/barklabs/barkbot/internal/server/trade"
)

// wrappedSOLMint is the mint buy and sell trade against.
const wrappedSOLMint = "So11111111111111111111111111111111111111112"

const lamportsPerSOL = 1_000_000_000

// maxSOLAmount caps user-supplied SOL amounts well above total supply
// and well below where the float to lamports conversion overflows.
const maxSOLAmount = 600_000_000

// lowBalanceLamports is the threshold under which the welcome flow warns
// that the wallet cannot cover network fees.
const lowBalanceLamports = 6_900_000

const helpText = `Commands:
/verify <email> - start account verification
/code <code> - confirm the verification code
/wallet - show your wallet address and balance
/buy <mint> <amount_sol> - swap SOL into a token
/sell <mint> <amount> - swap a token back into SOL
/limit <in_mint> <out_mint> <in_amount> <out_amount> - place a limit order
/dca <in_mint> <out_mint> <total> <per_cycle> <freq_seconds> - start a DCA schedule
/closedca <account> - close a DCA schedule
/withdraw <address> <amount_sol> - send SOL to an external address
/withdrawtoken <mint> <address> <amount> - send tokens to an external address
/balance - show your SOL balance
/tokenbalance <mint> - show a token balance
/export - export your private key
/api <email> <password> - enable REST API access for this account
/setrpc <url> - use a custom RPC endpoint
/setslippage <bps> - set default slippage
/setpriority <low|medium|high|veryHigh> - set priority fee tier`

// HandleCommand dispatches one bot command. Exported for tests.
func (b *Bot) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	telegramID := msg.From.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, chatID, telegramID)
	case "help":
		b.reply(chatID, helpText)
	case "verify":
		b.handleVerify(ctx, chatID, telegramID, args)
	case "code":
		b.handleCode(ctx, chatID, telegramID, args)
	case "wallet":
		b.handleWallet(ctx, chatID, telegramID)
	case "buy":
		b.handleBuy(ctx, chatID, telegramID, args)
	case "sell":
		b.handleSell(ctx, chatID, telegramID, args)
	case "limit":
		b.handleLimit(ctx, chatID, telegramID, args)
	case "dca":
		b.handleDCA(ctx, chatID, telegramID, args)
	case "closedca":
		b.handleCloseDCA(ctx, chatID, telegramID, args)
	case "withdraw":
		b.handleWithdraw(ctx, chatID, telegramID, args)
	case "withdrawtoken":
		b.handleWithdrawToken(ctx, chatID, telegramID, args)
	case "balance":
		b.handleBalance(ctx, chatID, telegramID)
	case "tokenbalance":
		b.handleTokenBalance(ctx, chatID, telegramID, args)
	case "export":
		b.handleExport(ctx, chatID, telegramID)
	case "api":
		b.handleAPI(ctx, chatID, telegramID, args)
	case "setrpc":
		b.handleSetRPC(ctx, chatID, telegramID, args)
	case "setslippage":
		b.handleSetSlippage(ctx, chatID, telegramID, args)
	case "setpriority":
		b.handleSetPriority(ctx, chatID, telegramID, args)
	default:
		b.reply(chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID, telegramID int64) {
	user, err := b.accounts.Get(ctx, telegramID)
	switch {
	case err != nil:
		b.reply(chatID, "Welcome to BarkBot. Verify your account with /verify <email> to get started.")
	case !user.Verified:
		b.reply(chatID, "Welcome back. Your account is not verified yet; use /verify <email>.")
	default:
		user, err = b.accounts.EnsureWallet(ctx, telegramID)
		if err != nil {
			b.reply(chatID, "Welcome back. Use /wallet to see your address or /help for commands.")
			return
		}
		text := "Welcome back. Your wallet address:\n" + user.PublicKey
		if lamports, err := b.trader.Balance(ctx, telegramID); err == nil {
			text += fmt.Sprintf("\nBalance: %s SOL", formatSOL(lamports))
			if lamports < lowBalanceLamports {
				text += "\nYour balance is too low to cover network fees. Top up before trading."
			}
		}
		b.reply(chatID, text)
	}
}

func (b *Bot) handleVerify(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 || !strings.Contains(args[0], "@") {
		b.reply(chatID, "Usage: /verify <email>")
		return
	}
	email := args[0]

	code, err := b.accounts.BeginVerification(ctx, telegramID, email)
	if err != nil {
		b.reply(chatID, "Could not start verification: "+err.Error())
		return
	}
	if err := b.mailer.SendCode(ctx, email, code); err != nil {
		b.log.Error(ctx, "code delivery failed", "telegram_id", telegramID, "error", err)
		b.reply(chatID, "Could not deliver the verification code. Try again later.")
		return
	}
	b.reply(chatID, "A verification code was sent to "+email+". Confirm it with /code <code>.")
}

func (b *Bot) handleCode(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Usage: /code <code>")
		return
	}
	if err := b.accounts.ConfirmVerification(ctx, telegramID, args[0]); err != nil {
		b.reply(chatID, "Verification failed: "+err.Error())
		return
	}

	user, err := b.accounts.EnsureWallet(ctx, telegramID)
	if err != nil {
		b.reply(chatID, "Verified, but wallet creation failed. Try /wallet.")
		return
	}
	b.reply(chatID, "Account verified. Your wallet address:\n"+user.PublicKey)
}

func (b *Bot) handleWallet(ctx context.Context, chatID, telegramID int64) {
	user, err := b.accounts.EnsureWallet(ctx, telegramID)
	if err != nil {
		b.reply(chatID, "No account yet. Start with /verify <email>.")
		return
	}

	text := "Wallet address:\n" + user.PublicKey
	if lamports, err := b.trader.Balance(ctx, telegramID); err == nil {
		text += fmt.Sprintf("\nBalance: %s SOL", formatSOL(lamports))
	}
	b.reply(chatID, text)
}

func (b *Bot) handleBuy(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 2 {
		b.reply(chatID, "Usage: /buy <mint> <amount_sol>")
		return
	}
	lamports, err := parseSOL(args[1])
	if err != nil {
		b.reply(chatID, "Invalid amount: "+args[1])
		return
	}

	res := b.trader.Swap(ctx, telegramID, trade.SwapRequest{
		InputMint:  wrappedSOLMint,
		OutputMint: args[0],
		Amount:     lamports,
	})
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleSell(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 2 {
		b.reply(chatID, "Usage: /sell <mint> <amount>")
		return
	}
	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || amount == 0 {
		b.reply(chatID, "Invalid amount: "+args[1])
		return
	}

	res := b.trader.Swap(ctx, telegramID, trade.SwapRequest{
		InputMint:  args[0],
		OutputMint: wrappedSOLMint,
		Amount:     amount,
	})
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleLimit(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 4 {
		b.reply(chatID, "Usage: /limit <in_mint> <out_mint> <in_amount> <out_amount>")
		return
	}
	inAmount, err1 := strconv.ParseUint(args[2], 10, 64)
	outAmount, err2 := strconv.ParseUint(args[3], 10, 64)
	if err1 != nil || err2 != nil || inAmount == 0 || outAmount == 0 {
		b.reply(chatID, "Amounts must be positive integers.")
		return
	}

	res := b.trader.OpenLimitOrder(ctx, telegramID, trade.LimitOrderRequest{
		InputMint:  args[0],
		OutputMint: args[1],
		InAmount:   inAmount,
		OutAmount:  outAmount,
	})
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleDCA(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 5 {
		b.reply(chatID, "Usage: /dca <in_mint> <out_mint> <total> <per_cycle> <freq_seconds>")
		return
	}
	total, err1 := strconv.ParseUint(args[2], 10, 64)
	perCycle, err2 := strconv.ParseUint(args[3], 10, 64)
	freq, err3 := strconv.ParseUint(args[4], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || total == 0 || perCycle == 0 || freq == 0 {
		b.reply(chatID, "Amounts and frequency must be positive integers.")
		return
	}

	res := b.trader.CreateDCA(ctx, telegramID, trade.DCARequest{
		InputMint:        args[0],
		OutputMint:       args[1],
		TotalInAmount:    total,
		InAmountPerCycle: perCycle,
		CycleFrequency:   freq,
	})
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleCloseDCA(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Usage: /closedca <account>")
		return
	}
	res := b.trader.CloseDCA(ctx, telegramID, args[0])
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleWithdraw(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 2 {
		b.reply(chatID, "Usage: /withdraw <address> <amount_sol>")
		return
	}
	lamports, err := parseSOL(args[1])
	if err != nil {
		b.reply(chatID, "Invalid amount: "+args[1])
		return
	}

	res := b.trader.WithdrawSOL(ctx, telegramID, trade.WithdrawRequest{
		Recipient: args[0],
		Lamports:  lamports,
	})
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleWithdrawToken(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 3 {
		b.reply(chatID, "Usage: /withdrawtoken <mint> <address> <amount>")
		return
	}
	amount, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil || amount == 0 {
		b.reply(chatID, "Invalid amount: "+args[2])
		return
	}

	res := b.trader.WithdrawToken(ctx, telegramID, trade.TokenWithdrawRequest{
		Mint:      args[0],
		Recipient: args[1],
		Amount:    amount,
	})
	b.reply(chatID, resultText(res))
}

func (b *Bot) handleBalance(ctx context.Context, chatID, telegramID int64) {
	lamports, err := b.trader.Balance(ctx, telegramID)
	if err != nil {
		b.reply(chatID, "Could not fetch balance: "+err.Error())
		return
	}
	b.reply(chatID, fmt.Sprintf("Balance: %s SOL", formatSOL(lamports)))
}

func (b *Bot) handleTokenBalance(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Usage: /tokenbalance <mint>")
		return
	}
	amount, err := b.trader.TokenBalance(ctx, telegramID, args[0])
	if err != nil {
		b.reply(chatID, "Could not fetch token balance: "+err.Error())
		return
	}
	b.reply(chatID, fmt.Sprintf("Token balance: %d (raw units)", amount))
}

func (b *Bot) handleExport(ctx context.Context, chatID, telegramID int64) {
	key, err := b.accounts.ExportPrivateKey(ctx, telegramID)
	if err != nil {
		b.reply(chatID, "Could not export key: "+err.Error())
		return
	}
	b.reply(chatID, key)
	b.reply(chatID, "This is your private key. Anyone who sees it controls your funds. Delete the message above after importing it.")
}

// handleAPI attaches REST credentials to the chat user's account. The
// Telegram identity is already proven here, so no extra challenge is
// needed; the password travels through chat, hence the delete warning.
func (b *Bot) handleAPI(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 2 {
		b.reply(chatID, "Usage: /api <email> <password>")
		return
	}
	if err := b.accounts.SetCredentials(ctx, telegramID, args[0], args[1]); err != nil {
		b.reply(chatID, "Could not set API credentials: "+err.Error())
		return
	}
	b.reply(chatID, "API access enabled. Delete your message with the password now.")
}

func (b *Bot) handleSetRPC(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Usage: /setrpc <url>")
		return
	}
	if err := b.accounts.SetRPCEndpoint(ctx, telegramID, args[0]); err != nil {
		b.reply(chatID, "Could not set RPC endpoint: "+err.Error())
		return
	}
	b.reply(chatID, "RPC endpoint updated.")
}

func (b *Bot) handleSetSlippage(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Usage: /setslippage <bps>")
		return
	}
	bps, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(chatID, "Slippage must be a number of basis points.")
		return
	}
	if err := b.accounts.SetSlippageBPS(ctx, telegramID, bps); err != nil {
		b.reply(chatID, "Could not set slippage: "+err.Error())
		return
	}
	b.reply(chatID, fmt.Sprintf("Default slippage set to %d bps.", bps))
}

func (b *Bot) handleSetPriority(ctx context.Context, chatID, telegramID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Usage: /setpriority <low|medium|high|veryHigh>")
		return
	}
	if err := b.accounts.SetPriorityTier(ctx, telegramID, args[0]); err != nil {
		b.reply(chatID, "Could not set priority tier: "+err.Error())
		return
	}
	b.reply(chatID, "Priority tier set to "+args[0]+".")
}

// parseSOL converts a decimal SOL amount into lamports. Amounts above
// maxSOLAmount are rejected so the conversion stays inside uint64 range.
func parseSOL(s string) (uint64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > maxSOLAmount {
		return 0, fmt.Errorf("invalid SOL amount %q", s)
	}
	return uint64(v * lamportsPerSOL), nil
}

func formatSOL(lamports uint64) string {
	return strconv.FormatFloat(float64(lamports)/lamportsPerSOL, 'f', -1, 64)
}
