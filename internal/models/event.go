package models

import (
	"time"
)

// Event types emitted by the match lifecycle
const (
	EventMatchCreated   = "match_created"
	EventMatchAccepted  = "match_accepted"
	EventMatchRejected  = "match_rejected"
	EventMatchUnmatched = "match_unmatched"
	EventProfileLiked   = "profile_liked"
)

// Event records that something happened. How and whether recipients are told is up to the sinks.
type Event struct {
	Type       string    `json:"type"`
	MatchID    string    `json:"matchId,omitempty"`
	ActorID    string    `json:"actorId"`
	Recipients []string  `json:"recipients"` // profile ids
	Score      int       `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
