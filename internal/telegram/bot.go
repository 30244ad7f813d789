// Package telegram connects the dialogue to the Telegram Bot API: long
// polling for inbound text and rate-limited replies with the menu keyboard.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"telegram-mood-diary/internal/logger"
	"telegram-mood-diary/internal/models"
	"telegram-mood-diary/internal/texts"
)

const pollTimeout = 60

// api is the subset of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api      api
	limiter  *rate.Limiter
	keyboard tgbotapi.ReplyKeyboardMarkup
	log      *logger.Logger
}

// New logs in with token. perSecond caps outgoing messages.
func New(token string, debug bool, tx *texts.Table, perSecond float64, log *logger.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	botAPI.Debug = debug
	log.Info("authorized on telegram", "account", botAPI.Self.UserName)
	return newBot(botAPI, tx, perSecond, log), nil
}

func newBot(a api, tx *texts.Table, perSecond float64, log *logger.Logger) *Bot {
	if perSecond <= 0 {
		perSecond = 25
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Bot{
		api:      a,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		keyboard: menuKeyboard(tx),
		log:      log,
	}
}

// menuKeyboard puts every command keyword on the reply keyboard, two per row.
func menuKeyboard(tx *texts.Table) tgbotapi.ReplyKeyboardMarkup {
	var (
		rows [][]tgbotapi.KeyboardButton
		row  []tgbotapi.KeyboardButton
	)
	for _, cmd := range models.AllCommands() {
		if cmd == models.CommandStart {
			continue
		}
		row = append(row, tgbotapi.NewKeyboardButton(tx.Keyword(cmd)))
		if len(row) == 2 {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// Updates long-polls Telegram and yields text messages until ctx is done.
func (b *Bot) Updates(ctx context.Context) <-chan models.Event {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	out := make(chan models.Event)
	go func() {
		defer close(out)
		defer b.api.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := toEvent(upd)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func toEvent(upd tgbotapi.Update) (models.Event, bool) {
	msg := upd.Message
	// photos, stickers and the like carry no text
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return models.Event{}, false
	}
	return models.Event{
		ID:         uuid.NewString(),
		UserID:     msg.Chat.ID,
		Text:       msg.Text,
		ReceivedAt: msg.Time(),
	}, true
}

// Send delivers text to chatID with the menu keyboard attached.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = b.keyboard
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
