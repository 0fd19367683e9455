package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/roommate_match/internal/middleware"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/mroshb/roommate_match/pkg/logger"
	"go.uber.org/zap"
)

// Callback answer texts
const (
	MsgAcceptedByYou  = "✅ Accepted! A chat room is being prepared."
	MsgRejectedByYou  = "You declined the invitation."
	MsgNotLinked      = "Your Telegram account is not linked to a roommate profile."
	MsgAlreadySettled = "This invitation is no longer open."
	MsgSomethingWrong = "Something went wrong, please try again later."
	MsgMatchSummary   = "🏠 <b>Roommate match</b>\nStatus: <b>%s</b>\nCompatibility: <b>%d%%</b>"
	MsgSlowDown       = "Too many taps, please wait a moment."
)

type BotAPI interface {
	Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type ProfileFinder interface {
	GetProfileByTelegramChatID(ctx context.Context, chatID int64) (*models.Profile, error)
}

// MatchActions is the part of the match lifecycle reachable from buttons.
type MatchActions interface {
	AcceptMatch(ctx context.Context, matchID, actorUserID string) (*models.Match, error)
	RejectMatch(ctx context.Context, matchID, actorUserID string) (*models.Match, error)
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
}

// CallbackHandler answers the inline buttons attached to match notifications.
type CallbackHandler struct {
	api      BotAPI
	profiles ProfileFinder
	matches  MatchActions
	limiter  *middleware.RateLimiter
	log      *zap.SugaredLogger
}

func NewCallbackHandler(api BotAPI, profiles ProfileFinder, matches MatchActions) *CallbackHandler {
	return &CallbackHandler{
		api:      api,
		profiles: profiles,
		matches:  matches,
		log:      logger.Named("telegram_callbacks"),
	}
}

// WithRateLimit caps button presses per Telegram user.
func (h *CallbackHandler) WithRateLimit(rl *middleware.RateLimiter) *CallbackHandler {
	h.limiter = rl
	return h
}

// Listen consumes bot updates until ctx is done, restarting the update channel if it closes.
func (h *CallbackHandler) Listen(ctx context.Context, source UpdateSource) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		h.log.Infow("Starting update listener")
		updates := source.GetUpdatesChan(u)

	consume:
		for {
			select {
			case <-ctx.Done():
				source.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					break consume
				}
				if update.CallbackQuery != nil {
					h.Handle(ctx, update.CallbackQuery)
				}
			}
		}

		h.log.Warnw("Update channel closed. Restarting in 5 seconds...")
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// Handle processes one callback query and reports whether it was a match button.
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("Panic in callback handler", "error", r)
		}
	}()

	data := strings.TrimPrefix(query.Data, "btn:")
	var action, matchID string
	for _, prefix := range []string{CallbackAcceptMatch, CallbackRejectMatch, CallbackViewMatch} {
		if strings.HasPrefix(data, prefix) {
			action, matchID = prefix, strings.TrimPrefix(data, prefix)
			break
		}
	}
	if action == "" || matchID == "" {
		return false
	}

	if h.limiter != nil && !h.limiter.Allow(query.From.ID) {
		if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, MsgSlowDown)); err != nil {
			h.log.Warnw("Failed to answer callback", "error", err)
		}
		return true
	}

	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.log.Warnw("Failed to answer callback", "error", err)
	}

	chatID := query.From.ID
	if query.Message != nil {
		chatID = query.Message.Chat.ID
	}
	h.log.Debugw("Callback query", "data", query.Data, "chat_id", chatID)

	profile, err := h.profiles.GetProfileByTelegramChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			h.reply(chatID, MsgNotLinked, nil)
		} else {
			h.log.Errorw("Failed to resolve profile for chat", "chat_id", chatID, "error", err)
			h.reply(chatID, MsgSomethingWrong, nil)
		}
		return true
	}

	switch action {
	case CallbackAcceptMatch:
		_, err = h.matches.AcceptMatch(ctx, matchID, profile.UserID)
		h.answerTransition(query, chatID, err, MsgAcceptedByYou, MatchViewKeyboard(matchID))
	case CallbackRejectMatch:
		_, err = h.matches.RejectMatch(ctx, matchID, profile.UserID)
		h.answerTransition(query, chatID, err, MsgRejectedByYou, nil)
	case CallbackViewMatch:
		h.showMatch(ctx, chatID, matchID, profile.UserID)
	}
	return true
}

func (h *CallbackHandler) answerTransition(query *tgbotapi.CallbackQuery, chatID int64, err error, okText string, keyboard interface{}) {
	switch {
	case err == nil:
		h.clearKeyboard(query)
		h.reply(chatID, okText, keyboard)
	case errors.Is(err, errors.ErrCodeState), errors.Is(err, errors.ErrCodeNotFound):
		h.clearKeyboard(query)
		h.reply(chatID, MsgAlreadySettled, nil)
	default:
		h.log.Errorw("Match action failed", "data", query.Data, "error", err)
		h.reply(chatID, MsgSomethingWrong, nil)
	}
}

func (h *CallbackHandler) showMatch(ctx context.Context, chatID int64, matchID, userID string) {
	match, err := h.matches.GetMatch(ctx, matchID)
	if err != nil || !match.HasUser(userID) {
		h.reply(chatID, MsgAlreadySettled, nil)
		return
	}
	h.reply(chatID, fmt.Sprintf(MsgMatchSummary, match.Status, match.CompatibilityScore), nil)
}

// clearKeyboard removes the buttons so an answered invitation cannot be pressed again.
func (h *CallbackHandler) clearKeyboard(query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(query.Message.Chat.ID, query.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := h.api.Request(edit); err != nil {
		h.log.Warnw("Failed to clear keyboard", "error", err)
	}
}

func (h *CallbackHandler) reply(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb, ok := keyboard.(tgbotapi.InlineKeyboardMarkup); ok {
		msg.ReplyMarkup = kb
	}
	if _, err := h.api.Send(msg); err != nil {
		h.log.Errorw("Failed to send message", "error", err, "chat_id", chatID)
	}
}
