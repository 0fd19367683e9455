package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/roommate_match/internal/models"
)

// Callback data prefixes for match buttons
const (
	CallbackAcceptMatch = "match_accept_"
	CallbackRejectMatch = "match_reject_"
	CallbackViewMatch   = "match_view_"
)

// Notification texts
const (
	MsgMatchCreated   = "🏠 <b>New roommate invitation!</b>\nCompatibility: <b>%d%%</b>\nYou have 7 days to answer."
	MsgMutualMatch    = "🎉 <b>It's a match!</b>\nYou both liked each other. Compatibility: <b>%d%%</b>\nA chat room is ready for you."
	MsgMatchAccepted  = "✅ <b>Your invitation was accepted!</b>\nCompatibility: <b>%d%%</b>\nA chat room is ready for you."
	MsgMatchRejected  = "❌ Your roommate invitation was declined."
	MsgMatchUnmatched = "💔 A roommate match was ended by the other person."
	MsgProfileLiked   = "👀 Someone is interested in sharing a place with you."
)

// MatchInvitationKeyboard lets the recipient answer a pending invitation
func MatchInvitationKeyboard(matchID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Accept", CallbackAcceptMatch+matchID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Decline", CallbackRejectMatch+matchID),
		),
	)
}

// MatchViewKeyboard opens an accepted match
func MatchViewKeyboard(matchID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Open match", CallbackViewMatch+matchID),
		),
	)
}

// renderEvent returns the text and optional keyboard for an event. ok is false for events
// that are not shown to users.
func renderEvent(event models.Event) (text string, keyboard interface{}, ok bool) {
	switch event.Type {
	case models.EventMatchCreated:
		if event.MatchID == "" {
			return "", nil, false
		}
		// Mutual likes notify both parties; invitations only the recipient.
		if len(event.Recipients) > 1 {
			return fmt.Sprintf(MsgMutualMatch, event.Score), MatchViewKeyboard(event.MatchID), true
		}
		return fmt.Sprintf(MsgMatchCreated, event.Score), MatchInvitationKeyboard(event.MatchID), true
	case models.EventMatchAccepted:
		return fmt.Sprintf(MsgMatchAccepted, event.Score), MatchViewKeyboard(event.MatchID), true
	case models.EventMatchRejected:
		return MsgMatchRejected, nil, true
	case models.EventMatchUnmatched:
		return MsgMatchUnmatched, nil, true
	case models.EventProfileLiked:
		return MsgProfileLiked, nil, true
	}
	return "", nil, false
}
