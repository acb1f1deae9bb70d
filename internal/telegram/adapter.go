// Package telegram connects the workflow engine to a Telegram bot.
//
// Updates are converted into workflow events and the returned directives are rendered as messages with inline
// keyboards. The status of the active case lives in a single pinned message per chat that is edited in place.
package telegram

import (
	"context"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/myrjola/casebot/internal/workflow"
	"log/slog"
	"net/http"
	"sync"
)

// Bot is the part of [tgbotapi.BotAPI] the adapter uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Handler consumes workflow events, usually a [workflow.Engine].
type Handler interface {
	Handle(ctx context.Context, ev workflow.Event) ([]workflow.Directive, error)
}

const msgTryAgain = "Something went wrong while handling your message. Please try again."

type Adapter struct {
	bot     Bot
	handler Handler
	client  *http.Client
	allowed map[int64]bool
	logger  *slog.Logger

	mu     sync.Mutex
	pinned map[int64]int
}

// NewAdapter creates an Adapter. An empty allowedUsers list lets everyone use the bot.
func NewAdapter(logger *slog.Logger, bot Bot, handler Handler, client *http.Client, allowedUsers []int64) *Adapter {
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Adapter{
		bot:     bot,
		handler: handler,
		client:  client,
		allowed: allowed,
		logger:  logger.With(slog.String("source", "TelegramAdapter")),
		mu:      sync.Mutex{},
		pinned:  map[int64]int{},
	}
}

// Process handles one update end to end. Updates must be processed one at a time in arrival order.
func (a *Adapter) Process(ctx context.Context, update tgbotapi.Update) {
	userID, chatID, ok := sender(update)
	if !ok {
		a.logger.LogAttrs(ctx, slog.LevelDebug, "ignoring update without sender", slog.Int("update_id", update.UpdateID))
		return
	}
	ctx = logging.WithAttrs(ctx, slog.Int("update_id", update.UpdateID), slog.Int64("chat_id", chatID))
	if len(a.allowed) > 0 && !a.allowed[userID] {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "ignoring update from unknown user", slog.Int64("user_id", userID))
		return
	}
	if q := update.CallbackQuery; q != nil {
		if _, err := a.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelWarn, "answer callback failed", errors.SlogError(err))
		}
	}

	ev, err := a.toEvent(ctx, update)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "could not convert update", errors.SlogError(err))
		if !errors.Is(err, ErrUnsupportedUpdate) {
			a.Deliver(ctx, chatID, []workflow.Directive{workflow.Warn{Text: msgTryAgain}})
		}
		return
	}

	directives, err := a.handler.Handle(ctx, ev)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "handling event failed", errors.SlogError(err))
	}
	a.Deliver(ctx, chatID, directives)
}

// Deliver renders directives into chatID. Failures are logged; the workflow state is already committed.
func (a *Adapter) Deliver(ctx context.Context, chatID int64, directives []workflow.Directive) {
	for _, d := range directives {
		if err := a.render(chatID, d); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelError, "delivering directive failed",
				slog.String("directive", directiveName(d)), errors.SlogError(err))
		}
	}
}

// Broadcast delivers directives to the private chat of every allowed user, e.g., the recovery directives at
// startup when no update has arrived yet.
func (a *Adapter) Broadcast(ctx context.Context, directives []workflow.Directive) {
	for id := range a.allowed {
		a.Deliver(ctx, id, directives)
	}
}

func (a *Adapter) render(chatID int64, d workflow.Directive) error {
	switch d := d.(type) {
	case workflow.ShowPrompt:
		msg := tgbotapi.NewMessage(chatID, d.Text)
		if len(d.Buttons) > 0 {
			msg.ReplyMarkup = keyboard(d.Buttons)
		}
		_, err := a.bot.Send(msg)
		return errors.Wrap(err, "send prompt")
	case workflow.Warn:
		_, err := a.bot.Send(tgbotapi.NewMessage(chatID, "⚠️ "+d.Text))
		return errors.Wrap(err, "send warning")
	case workflow.ShowLocation:
		_, err := a.bot.Send(tgbotapi.NewLocation(chatID, d.Latitude, d.Longitude))
		return errors.Wrap(err, "send location")
	case workflow.Pin:
		return a.pin(chatID, d.Text)
	case workflow.Unpin:
		return a.unpin(chatID)
	default:
		return errors.New("unknown directive", slog.String("directive", directiveName(d)))
	}
}

// pin edits the pinned status message, or sends and pins a new one.
func (a *Adapter) pin(chatID int64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if messageID, ok := a.pinned[chatID]; ok {
		if _, err := a.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err == nil {
			return nil
		}
		// The message was deleted or is too old to edit, pin a fresh one.
		delete(a.pinned, chatID)
	}
	msg, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return errors.Wrap(err, "send status")
	}
	if _, err = a.bot.Request(tgbotapi.PinChatMessageConfig{
		ChatID:              chatID,
		ChannelUsername:     "",
		MessageID:           msg.MessageID,
		DisableNotification: true,
	}); err != nil {
		return errors.Wrap(err, "pin status", slog.Int("message_id", msg.MessageID))
	}
	a.pinned[chatID] = msg.MessageID
	return nil
}

func (a *Adapter) unpin(chatID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pinned, chatID)
	if _, err := a.bot.Request(tgbotapi.UnpinAllChatMessagesConfig{ChatID: chatID, ChannelUsername: ""}); err != nil {
		return errors.Wrap(err, "unpin status")
	}
	return nil
}

func keyboard(buttons []workflow.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func directiveName(d workflow.Directive) string {
	switch d.(type) {
	case workflow.ShowPrompt:
		return "show_prompt"
	case workflow.ShowLocation:
		return "show_location"
	case workflow.Pin:
		return "pin"
	case workflow.Unpin:
		return "unpin"
	case workflow.Warn:
		return "warn"
	default:
		return "unknown"
	}
}
