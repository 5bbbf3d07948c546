package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/models"
)

// view is a rendered message with an optional inline keyboard
type view struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

// Display precision of each asset
var precision = map[models.Asset]int32{
	models.BTC:  6,
	models.ETH:  4,
	models.SOL:  4,
	models.ADA:  2,
	models.DOT:  4,
	models.USDT: 2,
}

func (b *Bot) usd(d decimal.Decimal) string {
	return b.printer.Sprintf("$%.2f", d.InexactFloat64())
}

func amount(a models.Asset, d decimal.Decimal) string {
	return d.StringFixed(precision[a])
}

// webAppRow links to a web page. The id query parameter identifies the
// account when the page is opened outside the Telegram web view.
func (b *Bot) webAppRow(label, path string, telegramID int64) []tgbotapi.InlineKeyboardButton {
	if b.webAppURL == "" {
		return nil
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	link := b.webAppURL + path + sep + "id=" + strconv.FormatInt(telegramID, 10)
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(label, link))
}

func keyboard(rows ...[]tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	var kept [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		if len(row) > 0 {
			kept = append(kept, row)
		}
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kept...)
	return &markup
}

func (b *Bot) backKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return keyboard(tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu")))
}

func (b *Bot) start(ctx context.Context, from *tgbotapi.User) (view, error) {
	_, _, err := b.ledger.OpenAccount(ctx, models.Profile{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	})
	if err != nil {
		return view{}, err
	}
	return b.mainMenu(from.ID, from.FirstName), nil
}

func (b *Bot) mainMenu(telegramID int64, firstName string) view {
	var sb strings.Builder
	sb.WriteString("🚀 <b>Welcome to CryptoPro!</b>\n\n")
	if firstName != "" {
		fmt.Fprintf(&sb, "Hi, %s! ", html.EscapeString(firstName))
	}
	sb.WriteString("Trade BTC, ETH, SOL, ADA, DOT and USDT against your USD balance.\n\n")
	sb.WriteString("Choose an option below:")

	return view{
		text: sb.String(),
		keyboard: keyboard(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💰 Wallet", "wallet")),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Trade", "trade")),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📈 Portfolio", "portfolio")),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Exchange", "exchange")),
			b.webAppRow("🌐 Open Web App", "/", telegramID),
		),
	}
}

func (b *Bot) wallet(ctx context.Context, telegramID int64) (view, error) {
	acct, err := b.ledger.Account(ctx, telegramID)
	if err != nil {
		return view{}, err
	}
	total, err := b.ledger.TotalValue(*acct)
	if err != nil {
		return view{}, err
	}

	var sb strings.Builder
	sb.WriteString("💼 <b>Your wallet</b>\n\n")
	fmt.Fprintf(&sb, "USD: %s\n", b.usd(acct.Balances.USD))
	for _, a := range models.Assets {
		held, _ := acct.Balances.Get(a)
		fmt.Fprintf(&sb, "%s: %s\n", a, amount(a, held))
	}
	fmt.Fprintf(&sb, "\n💎 <b>Total value:</b> %s", b.usd(total))

	return view{
		text: sb.String(),
		keyboard: keyboard(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 History", "history"),
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
			),
			b.webAppRow("🌐 Web App", "/wallet", telegramID),
		),
	}, nil
}

func (b *Bot) tradingPairs(telegramID int64) view {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, a := range models.Assets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(string(a)+"/USD", "trade_"+string(a)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	rows = append(rows, row, b.webAppRow("🌐 Advanced trading", "/trading", telegramID))

	return view{
		text:     "📊 <b>Choose a trading pair:</b>",
		keyboard: keyboard(rows...),
	}
}

func (b *Bot) tradingPair(ctx context.Context, telegramID int64, symbol string) (view, error) {
	asset, err := models.ParseAsset(symbol)
	if err != nil {
		return view{}, err
	}
	acct, err := b.ledger.Account(ctx, telegramID)
	if err != nil {
		return view{}, err
	}
	held, _ := acct.Balances.Get(asset)
	info := b.ledger.Prices()[asset]

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%s/USD</b> (%s)\n\n", asset, html.EscapeString(info.Name))
	fmt.Fprintf(&sb, "Price: %s\n", b.usd(info.Price))
	fmt.Fprintf(&sb, "You hold: %s %s\n", amount(asset, held), asset)
	fmt.Fprintf(&sb, "Available: %s\n\n", b.usd(acct.Balances.USD))
	sb.WriteString("Orders are placed in the web app.")

	return view{
		text: sb.String(),
		keyboard: keyboard(
			b.webAppRow("🌐 Trade "+string(asset), "/trading?pair="+string(asset), telegramID),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📊 Pairs", "trade"),
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
			),
		),
	}, nil
}

func (b *Bot) portfolio(ctx context.Context, telegramID int64) (view, error) {
	acct, err := b.ledger.Account(ctx, telegramID)
	if err != nil {
		return view{}, err
	}
	holdings, err := ledger.Holdings(acct.Balances, b.ledger.Prices())
	if err != nil {
		return view{}, err
	}
	total, err := b.ledger.TotalValue(*acct)
	if err != nil {
		return view{}, err
	}

	var sb strings.Builder
	sb.WriteString("📈 <b>Your portfolio</b>\n\n")
	if len(holdings) == 0 {
		sb.WriteString("No crypto holdings yet.\n")
	}
	for _, h := range holdings {
		fmt.Fprintf(&sb, "%s: %s × %s = %s\n", h.Asset, amount(h.Asset, h.Amount), b.usd(h.Price), b.usd(h.Value))
	}
	fmt.Fprintf(&sb, "Cash: %s\n\n", b.usd(acct.Balances.USD))
	fmt.Fprintf(&sb, "💎 <b>Total value:</b> %s", b.usd(total))

	return view{text: sb.String(), keyboard: b.backKeyboard()}, nil
}

func (b *Bot) exchange() view {
	prices := b.ledger.Prices()

	var sb strings.Builder
	sb.WriteString("🔄 <b>Exchange rates</b>\n\n")
	for _, a := range models.Assets {
		info := prices[a]
		fmt.Fprintf(&sb, "%s (%s): %s\n", a, html.EscapeString(info.Name), b.usd(info.Price))
	}

	return view{
		text: sb.String(),
		keyboard: keyboard(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📊 Trade", "trade"),
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
			),
		),
	}
}

func (b *Bot) history(ctx context.Context, telegramID int64) (view, error) {
	entries, err := b.ledger.History(ctx, telegramID, HistorySize)
	if err != nil {
		return view{}, err
	}

	var sb strings.Builder
	sb.WriteString("🔄 <b>Recent transactions</b>\n\n")
	if len(entries) == 0 {
		sb.WriteString("No transactions yet.")
	}
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s %s @ %s = %s (%s)\n",
			strings.ToUpper(string(e.Type)), amount(e.Asset, e.Amount), e.Asset,
			b.usd(e.Price), b.usd(e.Total), e.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}

	return view{text: sb.String(), keyboard: b.backKeyboard()}, nil
}
