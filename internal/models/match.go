package models

import (
	"time"

	"github.com/goccy/go-json"
)

type Match struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)"`
	UserA              string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_match_pair,priority:1"`
	UserB              string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_match_pair,priority:2;index"`
	ProfileA           string     `gorm:"type:varchar(36);not null;index"`
	ProfileB           string     `gorm:"type:varchar(36);not null;index"`
	CompatibilityScore int        `gorm:"not null;default:0"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	InitiatedBy        string     `gorm:"type:varchar(64);not null"`
	Message            string     `gorm:"type:text"`
	ExpiresAt          *time.Time `gorm:"index"`
	AcceptedAt         *time.Time
	RejectedAt         *time.Time
	UnmatchedAt        *time.Time
	UnmatchedBy        string `gorm:"type:varchar(64)"`
	UnmatchReason      string `gorm:"type:text"`
	ChatRoomID         string `gorm:"type:varchar(100)"`
	IsReported         bool   `gorm:"default:false;index"`
	ReportedBy         string `gorm:"type:varchar(64)"`
	ReportReason       string `gorm:"type:text"`
	ReportedAt         *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime;index"`
}

// Match status constants
const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
	MatchStatusExpired  = "expired"
)

// matchTransitions lists the only legal status moves. Nothing re-enters pending.
var matchTransitions = map[string][]string{
	MatchStatusPending:  {MatchStatusAccepted, MatchStatusRejected, MatchStatusExpired},
	MatchStatusAccepted: {MatchStatusRejected},
}

// CanTransition reports whether a match may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range matchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no transition leaves status.
func IsTerminalStatus(status string) bool {
	return len(matchTransitions[status]) == 0
}

func (Match) TableName() string {
	return "matches"
}

// Participant identifies one side of a pair.
type Participant struct {
	UserID    string
	ProfileID string
}

// CanonicalPair orders two participants so that the first user id sorts before the second.
// Both sides of a pair always resolve to the same (UserA, UserB) key.
func CanonicalPair(x, y Participant) (Participant, Participant) {
	if y.UserID < x.UserID {
		return y, x
	}
	return x, y
}

// NewMatch builds a Match for the pair with canonical ordering applied.
func NewMatch(id string, x, y Participant, initiatedBy, status string) *Match {
	a, b := CanonicalPair(x, y)
	return &Match{
		ID:          id,
		UserA:       a.UserID,
		UserB:       b.UserID,
		ProfileA:    a.ProfileID,
		ProfileB:    b.ProfileID,
		InitiatedBy: initiatedBy,
		Status:      status,
	}
}

// HasUser reports whether userID is one of the two parties.
func (m *Match) HasUser(userID string) bool {
	return m.UserA == userID || m.UserB == userID
}

// OtherUser returns the counterpart of userID.
func (m *Match) OtherUser(userID string) (string, bool) {
	switch userID {
	case m.UserA:
		return m.UserB, true
	case m.UserB:
		return m.UserA, true
	}
	return "", false
}

func (m *Match) Users() []string {
	return []string{m.UserA, m.UserB}
}

func (m *Match) Profiles() []string {
	return []string{m.ProfileA, m.ProfileB}
}

type matchFlags struct {
	IsReported   bool   `json:"isReported"`
	ReportedBy   string `json:"reportedBy,omitempty"`
	ReportReason string `json:"reportReason,omitempty"`
}

type matchDocument struct {
	ID                 string     `json:"id"`
	UserA              string     `json:"userA"`
	UserB              string     `json:"userB"`
	CompatibilityScore int        `json:"compatibilityScore"`
	Status             string     `json:"status"`
	InitiatedBy        string     `json:"initiatedBy"`
	Message            string     `json:"message,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	AcceptedAt         *time.Time `json:"acceptedAt,omitempty"`
	RejectedAt         *time.Time `json:"rejectedAt,omitempty"`
	UnmatchedAt        *time.Time `json:"unmatchedAt,omitempty"`
	UnmatchReason      string     `json:"unmatchReason,omitempty"`
	ChatRoomID         string     `json:"chatRoomId,omitempty"`
	Flags              matchFlags `json:"flags"`
}

// MarshalJSON renders the persisted shape other systems read.
func (m Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(matchDocument{
		ID:                 m.ID,
		UserA:              m.UserA,
		UserB:              m.UserB,
		CompatibilityScore: m.CompatibilityScore,
		Status:             m.Status,
		InitiatedBy:        m.InitiatedBy,
		Message:            m.Message,
		ExpiresAt:          m.ExpiresAt,
		AcceptedAt:         m.AcceptedAt,
		RejectedAt:         m.RejectedAt,
		UnmatchedAt:        m.UnmatchedAt,
		UnmatchReason:      m.UnmatchReason,
		ChatRoomID:         m.ChatRoomID,
		Flags: matchFlags{
			IsReported:   m.IsReported,
			ReportedBy:   m.ReportedBy,
			ReportReason: m.ReportReason,
		},
	})
}
