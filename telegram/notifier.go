// Package telegram delivers match events to users as Telegram bot messages.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/mroshb/roommate_match/pkg/logger"
	"go.uber.org/zap"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatResolver maps a profile to its linked Telegram chat. 0 means none is linked.
type ChatResolver interface {
	GetTelegramChatID(ctx context.Context, profileID string) (int64, error)
}

const maxSendAttempts = 3

type Notifier struct {
	api        Sender
	chats      ChatResolver
	retryDelay time.Duration
	log        *zap.SugaredLogger
}

func NewNotifier(api Sender, chats ChatResolver) *Notifier {
	return &Notifier{
		api:        api,
		chats:      chats,
		retryDelay: time.Second,
		log:        logger.Named("telegram"),
	}
}

func (n *Notifier) Name() string { return "telegram" }

// Deliver sends the event to every recipient with a linked chat.
func (n *Notifier) Deliver(ctx context.Context, event models.Event) error {
	text, keyboard, ok := renderEvent(event)
	if !ok {
		return nil
	}

	var (
		failed  int
		lastErr error
	)
	for _, profileID := range event.Recipients {
		chatID, err := n.chats.GetTelegramChatID(ctx, profileID)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		if chatID == 0 {
			n.log.Debugw("Recipient has no linked chat", "profile_id", profileID, "type", event.Type)
			continue
		}

		if err := n.send(ctx, chatID, text, keyboard); err != nil {
			failed++
			lastErr = err
		}
	}

	if lastErr != nil {
		return errors.Wrap(lastErr, errors.ErrCodeExternalService,
			fmt.Sprintf("failed to notify %d of %d recipients", failed, len(event.Recipients)))
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string, keyboard interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb, ok := keyboard.(tgbotapi.InlineKeyboardMarkup); ok {
		msg.ReplyMarkup = kb
	}

	var err error
	for i := 0; i < maxSendAttempts; i++ {
		if _, err = n.api.Send(msg); err == nil {
			return nil
		}
		n.log.Errorw("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)

		if !isNetworkError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * n.retryDelay):
		}
	}
	return err
}

func isNetworkError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "network is unreachable")
}
