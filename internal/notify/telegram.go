// Package notify is the Ops Notifier collaborator (C14 in SPEC_FULL.md): a
// best-effort, non-blocking sink for the execution director's events
// (execute failed, settlement found/not observed). Grounded on
// the teacher's bot.TelegramBot, trimmed to push-only — the core never
// blocks on delivery and never reads bot commands back.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Telegram sends operational events to a single chat. A failed send is
// logged and swallowed: notification delivery is never allowed to affect
// the auction pipeline.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram dials the bot API with token, targeting chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("ops notifier initialized")
	return &Telegram{api: api, chatID: chatID}, nil
}

// Notify pushes event to the configured chat from a background goroutine,
// so the caller never waits on delivery. Errors are logged at warn and
// otherwise ignored, satisfying execution.Notifier.
func (t *Telegram) Notify(ctx context.Context, event string) {
	msg := tgbotapi.NewMessage(t.chatID, event)
	go func() {
		if _, err := t.api.Send(msg); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("ops notifier send failed")
		}
	}()
}

// Noop discards every event. Used when Telegram credentials are not
// configured so the rest of the pipeline stays unconditional on them.
type Noop struct{}

// Notify implements execution.Notifier by doing nothing.
func (Noop) Notify(ctx context.Context, event string) {}
