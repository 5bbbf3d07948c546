package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/models"
)

// HistorySize is the number of entries shown by the history view
const HistorySize = 10

// Sender is the part of *tgbotapi.BotAPI the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateRecorder counts handled updates
type UpdateRecorder interface {
	RecordBotUpdate(kind string)
}

// Bot renders ledger state as Telegram menus
type Bot struct {
	api       Sender
	ledger    *ledger.Ledger
	webAppURL string
	recorder  UpdateRecorder
	printer   *message.Printer
	log       *logrus.Entry
}

// Option configures a Bot
type Option func(*Bot)

// WithRecorder sets the update recorder
func WithRecorder(r UpdateRecorder) Option {
	return func(b *Bot) { b.recorder = r }
}

// New creates a bot. webAppURL is the base URL of the web dashboard; menus
// omit the web app button when it is empty.
func New(api Sender, l *ledger.Ledger, webAppURL string, log *logrus.Logger, opts ...Option) *Bot {
	b := &Bot{
		api:       api,
		ledger:    l,
		webAppURL: strings.TrimRight(webAppURL, "/"),
		printer:   message.NewPrinter(language.English),
		log:       log.WithField("component", "bot"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run handles updates until ctx is done or the channel closes
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches a single update. Failures are reported to the
// user and logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

// target is where a view is rendered: a new message or an edit in place
type target struct {
	chatID    int64
	messageID int
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	to := target{chatID: msg.Chat.ID}
	cmd := msg.Command()

	var v view
	var err error
	switch cmd {
	case "start":
		v, err = b.start(ctx, msg.From)
	case "wallet":
		v, err = b.wallet(ctx, msg.From.ID)
	case "trade":
		v = b.tradingPairs(msg.From.ID)
	case "history":
		v, err = b.history(ctx, msg.From.ID)
	default:
		cmd = "unknown"
		v = view{text: "Unknown command. Use /start to open the menu."}
	}
	b.record("command_" + cmd)
	b.render(to, v, err)
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.WithError(err).Warn("failed to answer callback")
	}
	if q.From == nil {
		return
	}

	to := target{chatID: q.From.ID}
	if q.Message != nil {
		to = target{chatID: q.Message.Chat.ID, messageID: q.Message.MessageID}
	}

	kind := q.Data
	var v view
	var err error
	switch {
	case q.Data == "menu":
		v = b.mainMenu(q.From.ID, q.From.FirstName)
	case q.Data == "wallet":
		v, err = b.wallet(ctx, q.From.ID)
	case q.Data == "trade":
		v = b.tradingPairs(q.From.ID)
	case q.Data == "portfolio":
		v, err = b.portfolio(ctx, q.From.ID)
	case q.Data == "exchange":
		v = b.exchange()
	case q.Data == "history":
		v, err = b.history(ctx, q.From.ID)
	case strings.HasPrefix(q.Data, "trade_"):
		kind = "trade_asset"
		v, err = b.tradingPair(ctx, q.From.ID, strings.TrimPrefix(q.Data, "trade_"))
	default:
		kind = "unknown"
		v = view{text: "This action is not available. Use /start to open the menu."}
	}
	b.record("callback_" + kind)
	b.render(to, v, err)
}

func (b *Bot) record(kind string) {
	if b.recorder != nil {
		b.recorder.RecordBotUpdate(kind)
	}
}

func (b *Bot) render(to target, v view, err error) {
	if err != nil {
		v = b.errorView(err)
	}

	var c tgbotapi.Chattable
	if to.messageID != 0 {
		edit := tgbotapi.NewEditMessageText(to.chatID, to.messageID, v.text)
		edit.ParseMode = tgbotapi.ModeHTML
		if v.keyboard != nil {
			edit.ReplyMarkup = v.keyboard
		}
		c = edit
	} else {
		msg := tgbotapi.NewMessage(to.chatID, v.text)
		msg.ParseMode = tgbotapi.ModeHTML
		if v.keyboard != nil {
			msg.ReplyMarkup = *v.keyboard
		}
		c = msg
	}

	if _, err := b.api.Send(c); err != nil {
		b.log.WithError(err).WithField("chat_id", to.chatID).Error("failed to send message")
	}
}

func (b *Bot) errorView(err error) view {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		return view{text: "Account not found. Use /start to create one."}
	case errors.Is(err, models.ErrInvalidAsset):
		return view{text: "Unknown trading pair.", keyboard: b.backKeyboard()}
	}
	b.log.WithError(err).Error("bot request failed")
	return view{text: "Something went wrong. Please try again later."}
}
