// Package telegram adapts the bot transport: it parses incoming updates into
// a closed set of typed commands handled by a Handler, and exposes the
// outbound send primitives used by the notification loop.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"scoreboard-bot/internal/config"
	"scoreboard-bot/internal/constants"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Handler is the closed command set the bot dispatches to. Every method
// replies to the chat itself; ListFollowing additionally returns the
// subscriptions so the bot can render the unfollow keyboard.
type Handler interface {
	Status(ctx context.Context, chatID int64) error
	Top(ctx context.Context, chatID int64, n int) error
	Scoreboard(ctx context.Context, chatID int64, query string) error
	Follow(ctx context.Context, chatID int64, query string) error
	ListFollowing(ctx context.Context, chatID int64) ([]string, error)
	Unfollow(ctx context.Context, chatID int64, query string) error
	UnfollowAll(ctx context.Context, chatID int64) error
}

type Bot struct {
	api             *tgbotapi.BotAPI
	developerChatID int64
	handler         Handler
	logger          zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = false

	logger.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return &Bot{
		api:             api,
		developerChatID: cfg.DeveloperChatID,
		logger:          logger,
	}, nil
}

// SetHandler wires the command handler. Must be called before Run.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := b.handleMessage(ctx, upd.Message); err != nil {
					b.logger.Error().Err(err).Int64("chat_id", upd.Message.Chat.ID).Msg("failed to handle message")
				}
			} else if upd.CallbackQuery != nil {
				if err := b.handleCallback(ctx, upd.CallbackQuery); err != nil {
					b.logger.Error().Err(err).Msg("failed to handle callback")
				}
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	chatID := m.Chat.ID
	command, args := splitCommand(m.Text)

	switch command {
	case "/start", "/ayuda", "/help":
		return b.sendHelp(chatID)
	case "/estado":
		return b.handler.Status(ctx, chatID)
	case "/top":
		n := constants.DefaultTopN
		if parsed, err := strconv.Atoi(args); err == nil && parsed > 0 {
			n = parsed
		}
		return b.handler.Top(ctx, chatID, n)
	case "/scoreboard":
		return b.handler.Scoreboard(ctx, chatID, args)
	case "/seguir":
		if args == "" {
			return b.SendHTML(chatID, "Especifica una subcadena después de <code>/seguir</code>")
		}
		return b.handler.Follow(ctx, chatID, args)
	case "/siguiendo":
		return b.showFollowing(ctx, chatID, false)
	case "/dejar":
		return b.showFollowing(ctx, chatID, true)
	case "/dejartodo":
		return b.handler.UnfollowAll(ctx, chatID)
	default:
		return b.SendHTML(chatID, "No conozco ese comando, usa /ayuda para ver los comandos disponibles")
	}
}

// handleCallback unfollows the subscription chosen from the /dejar keyboard.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	ack := tgbotapi.NewCallback(q.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		b.logger.Warn().Err(err).Msg("failed to ack callback")
	}

	if q.Message == nil || q.Data == "" {
		return nil
	}
	return b.handler.Unfollow(ctx, q.Message.Chat.ID, q.Data)
}

func (b *Bot) showFollowing(ctx context.Context, chatID int64, withKeyboard bool) error {
	subscriptions, err := b.handler.ListFollowing(ctx, chatID)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return b.SendHTML(chatID, "No sigues a ningún equipo")
	}

	if !withKeyboard {
		lines := make([]string, 0, len(subscriptions))
		for _, s := range subscriptions {
			lines = append(lines, "• <code>"+s+"</code>")
		}
		return b.SendHTML(chatID, "Estás siguiendo:\n"+strings.Join(lines, "\n"))
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subscriptions))
	for _, s := range subscriptions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s, s)))
	}
	msg := tgbotapi.NewMessage(chatID, "Elige lo que deseas dejar de seguir:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.SendHTML(chatID, `¡Yo puedo ayudarte a mantenerte informado sobre el scoreboard del ICPC México!

/estado - Entérate del estado del concurso actual.
/top - Entérate del top 10 del scoreboard, agrega un entero para especificar cuántos equipos quieres ver. Por ejemplo, <code>/top 5</code>.
/scoreboard - Entérate del scoreboard filtrado por los equipos que estás siguiendo. Especifica una subcadena si quieres saber sobre algunos equipos solamente, por ejemplo, <code>/scoreboard itsur</code>.
/seguir - Comienza a seguir equipos cuyo nombre tenga la subcadena que especifiques, te notificaremos cuando estos equipos resuelvan un problema. Por ejemplo, <code>/seguir Culiacan</code>.
/siguiendo - Muestra lo que estás siguiendo.
/dejar - Deja de seguir equipos, sólo da click en la subcadena que quieras dejar de seguir.
/dejartodo - Deja de seguir todos los equipos y olvida tu registro.`)
}

// SendHTML delivers HTML-formatted text, truncating at the transport's
// message size limit.
func (b *Bot) SendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, truncate(text, constants.MessageSizeLimit))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendDeveloperHTML delivers text to the operator chat.
func (b *Bot) SendDeveloperHTML(text string) error {
	return b.SendHTML(b.developerChatID, text)
}

// IsBlocked reports whether a delivery error is a permanent rejection, i.e.
// the user blocked the bot or deactivated their account.
func IsBlocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "bot was blocked by the user") ||
		strings.Contains(msg, "user is deactivated") ||
		strings.Contains(msg, "chat not found")
}

// truncate cuts text to at most limit bytes, ending in "..." and never
// splitting a multi-byte rune. Telegram rejects invalid UTF-8 outright.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func splitCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	command, args, _ = strings.Cut(text, " ")
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	return command, strings.TrimSpace(args)
}

var Module = fx.Provide(New)
