package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/roommate_match/internal/metrics"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/internal/scoring"
	"github.com/mroshb/roommate_match/internal/security"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/mroshb/roommate_match/pkg/logger"
	"go.uber.org/zap"
)

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	AddLiked(ctx context.Context, profileID, targetID string) (bool, error)
	HasLiked(ctx context.Context, profileID, targetID string) (bool, error)
	AddDisliked(ctx context.Context, profileID, targetID string) (bool, error)
	AddMatch(ctx context.Context, profileID, matchID string) (bool, error)
	RemoveMatch(ctx context.Context, profileID, matchID string) error
	RebuildMatchIndex(ctx context.Context) (int64, error)
}

type MatchStore interface {
	CreateIfAbsent(ctx context.Context, match *models.Match) (*models.Match, bool, error)
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	Transition(ctx context.Context, id, from, to string, fields map[string]interface{}) error
	ExpireIfDue(ctx context.Context, id string, now time.Time) (bool, error)
	SetChatRoomIfEmpty(ctx context.Context, id, roomID string) (bool, error)
	UpdateScore(ctx context.Context, id string, score int) error
	SetReport(ctx context.Context, id, reporterID, reason string, at time.Time) error
	ListMatchesByUser(ctx context.Context, userID string, statuses ...string) ([]models.Match, error)
	ListMatchesByProfile(ctx context.Context, profileID string, statuses ...string) ([]models.Match, error)
	EachActiveBatch(ctx context.Context, n int, fn func(batch []models.Match) error) error
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// ChatProvisioner opens and archives chat rooms in the external chat service.
type ChatProvisioner interface {
	CreateRoom(ctx context.Context, participants []string, matchID string) (string, error)
	ArchiveRoom(ctx context.Context, roomID string) error
}

// Notifier hands an event to delivery. Implementations must not block.
type Notifier interface {
	Notify(event models.Event)
}

type ExpirationScheduler interface {
	ScheduleExpiration(ctx context.Context, matchID string, runAt time.Time) error
}

type MatchServiceConfig struct {
	MatchExpiry   time.Duration
	MaxDistanceKm float64

	// Now and NewID default to UTC wall time and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// LikeResult reports the outcome of a like. Mutual is true when the pair now has an accepted
// match. Match is also set, with Mutual false, when both sides liked each other but their match
// had already been rejected or expired; such a match is never reopened.
type LikeResult struct {
	Mutual bool          `json:"mutual"`
	Match  *models.Match `json:"match,omitempty"`
}

const (
	sweepBatchSize       = 500
	recalculateBatchSize = 100
)

type MatchService struct {
	profiles  ProfileStore
	matches   MatchStore
	chat      ChatProvisioner
	notifier  Notifier
	scheduler ExpirationScheduler
	cfg       MatchServiceConfig
	log       *zap.SugaredLogger
}

// NewMatchService wires the lifecycle. chat, notifier and scheduler may be nil; the matching
// side effects are then skipped.
func NewMatchService(
	profiles ProfileStore,
	matches MatchStore,
	chat ChatProvisioner,
	notifier Notifier,
	scheduler ExpirationScheduler,
	cfg MatchServiceConfig,
) *MatchService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.MatchExpiry <= 0 {
		cfg.MatchExpiry = 7 * 24 * time.Hour
	}

	return &MatchService{
		profiles:  profiles,
		matches:   matches,
		chat:      chat,
		notifier:  notifier,
		scheduler: scheduler,
		cfg:       cfg,
		log:       logger.Named("match_service"),
	}
}

func (s *MatchService) scoringOptions() scoring.Options {
	return scoring.Options{MaxDistanceKm: s.cfg.MaxDistanceKm}
}

// loadPair fetches two distinct profiles that belong to different users and can be scored.
func (s *MatchService) loadPair(ctx context.Context, actorID, targetID string) (*models.Profile, *models.Profile, error) {
	if actorID == "" || targetID == "" {
		return nil, nil, errors.New(errors.ErrCodeValidation, "profile ids are required")
	}
	if actorID == targetID {
		return nil, nil, errors.New(errors.ErrCodeValidation, "a profile cannot target itself")
	}

	actor, err := s.profiles.GetProfile(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.profiles.GetProfile(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	if actor.UserID == target.UserID {
		return nil, nil, errors.New(errors.ErrCodeValidation, "both profiles belong to the same user")
	}
	if err := scoring.Validate(actor); err != nil {
		return nil, nil, err
	}
	if err := scoring.Validate(target); err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}

// RecordLike stores actor's interest in target. When the interest is mutual the pair is matched
// immediately; concurrent mutual likes converge on a single Match.
func (s *MatchService) RecordLike(ctx context.Context, actorProfileID, targetProfileID string) (res *LikeResult, err error) {
	defer func() { metrics.RecordLifecycleError("record_like", err) }()

	actor, target, err := s.loadPair(ctx, actorProfileID, targetProfileID)
	if err != nil {
		return nil, err
	}

	added, err := s.profiles.AddLiked(ctx, actor.ID, target.ID)
	if err != nil {
		return nil, err
	}

	mutual, err := s.profiles.HasLiked(ctx, target.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !added && !mutual {
		return nil, errors.New(errors.ErrCodeConflict, "profile already liked")
	}
	if !mutual {
		s.notify(models.EventProfileLiked, "", actor.UserID, 0, target.ID)
		return &LikeResult{Mutual: false}, nil
	}

	// From here a repeated like resumes an earlier attempt that stored the like but never
	// settled the match; every step below is idempotent.
	score, err := scoring.Compute(actor, target, s.scoringOptions())
	if err != nil {
		return nil, err
	}
	metrics.ScoreDistribution.Observe(float64(score.Score))

	now := s.cfg.Now()
	candidate := models.NewMatch(s.cfg.NewID(),
		models.Participant{UserID: actor.UserID, ProfileID: actor.ID},
		models.Participant{UserID: target.UserID, ProfileID: target.ID},
		actor.UserID, models.MatchStatusAccepted)
	candidate.CompatibilityScore = score.Score
	candidate.AcceptedAt = &now

	match, created, err := s.matches.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.MatchesCreated.WithLabelValues("mutual").Inc()
		metrics.MatchTransitions.WithLabelValues(models.MatchStatusAccepted).Inc()
		s.log.Infow("Mutual match created", "match_id", match.ID, "score", match.CompatibilityScore)
		s.completeAcceptance(ctx, match, models.EventMatchCreated, actor.UserID)
		return &LikeResult{Mutual: true, Match: match}, nil
	}

	switch {
	case !added && match.Status != models.MatchStatusPending:
		return nil, errors.New(errors.ErrCodeConflict, "profile already liked")
	case match.Status == models.MatchStatusAccepted:
		return &LikeResult{Mutual: true, Match: match}, nil
	case models.IsTerminalStatus(match.Status):
		return &LikeResult{Mutual: false, Match: match}, nil
	}

	// An open invitation between the two: mutual interest settles it.
	err = s.matches.Transition(ctx, match.ID, models.MatchStatusPending, models.MatchStatusAccepted, map[string]interface{}{
		"accepted_at":         now,
		"compatibility_score": score.Score,
	})
	if err != nil && !errors.Is(err, errors.ErrCodeState) {
		return nil, err
	}
	if err != nil {
		// Settled concurrently by someone else; report whatever it became.
		current, getErr := s.matches.GetMatch(ctx, match.ID)
		if getErr != nil {
			return nil, getErr
		}
		return &LikeResult{Mutual: current.Status == models.MatchStatusAccepted, Match: current}, nil
	}

	metrics.MatchTransitions.WithLabelValues(models.MatchStatusAccepted).Inc()
	match.Status = models.MatchStatusAccepted
	match.AcceptedAt = &now
	match.CompatibilityScore = score.Score
	match = s.reload(ctx, match)
	s.completeAcceptance(ctx, match, models.EventMatchAccepted, actor.UserID)
	return &LikeResult{Mutual: true, Match: match}, nil
}

// RecordDislike stores that actor passed on target.
func (s *MatchService) RecordDislike(ctx context.Context, actorProfileID, targetProfileID string) (err error) {
	defer func() { metrics.RecordLifecycleError("record_dislike", err) }()

	if actorProfileID == targetProfileID {
		return errors.New(errors.ErrCodeValidation, "a profile cannot target itself")
	}
	if _, err := s.profiles.GetProfile(ctx, actorProfileID); err != nil {
		return err
	}
	if _, err := s.profiles.GetProfile(ctx, targetProfileID); err != nil {
		return err
	}

	added, err := s.profiles.AddDisliked(ctx, actorProfileID, targetProfileID)
	if err != nil {
		return err
	}
	if !added {
		return errors.New(errors.ErrCodeConflict, "profile already disliked")
	}
	return nil
}

// CreateDirectMatch opens a pending invitation from initiator to recipient that expires after
// the configured window.
func (s *MatchService) CreateDirectMatch(ctx context.Context, initiatorProfileID, recipientProfileID, message string) (match *models.Match, err error) {
	defer func() { metrics.RecordLifecycleError("create_direct_match", err) }()

	initiator, recipient, err := s.loadPair(ctx, initiatorProfileID, recipientProfileID)
	if err != nil {
		return nil, err
	}

	score, err := scoring.Compute(initiator, recipient, s.scoringOptions())
	if err != nil {
		return nil, err
	}
	metrics.ScoreDistribution.Observe(float64(score.Score))

	expiresAt := s.cfg.Now().Add(s.cfg.MatchExpiry)
	candidate := models.NewMatch(s.cfg.NewID(),
		models.Participant{UserID: initiator.UserID, ProfileID: initiator.ID},
		models.Participant{UserID: recipient.UserID, ProfileID: recipient.ID},
		initiator.UserID, models.MatchStatusPending)
	candidate.CompatibilityScore = score.Score
	candidate.Message = security.SanitizeText(message, security.MaxMessageLength)
	candidate.ExpiresAt = &expiresAt

	match, created, err := s.matches.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errors.Newf(errors.ErrCodeConflict, "a match already exists for this pair (%s)", match.ID)
	}
	metrics.MatchesCreated.WithLabelValues("direct").Inc()

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleExpiration(ctx, match.ID, expiresAt); err != nil {
			// The periodic sweep still expires the match.
			s.log.Errorw("Failed to schedule match expiration", "match_id", match.ID, "error", err)
		}
	}

	s.notify(models.EventMatchCreated, match.ID, initiator.UserID, match.CompatibilityScore, recipient.ID)
	return match, nil
}

// AcceptMatch confirms a pending invitation on behalf of one of its parties.
func (s *MatchService) AcceptMatch(ctx context.Context, matchID, actorUserID string) (match *models.Match, err error) {
	defer func() { metrics.RecordLifecycleError("accept_match", err) }()

	match, err = s.partyMatch(ctx, matchID, actorUserID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusPending {
		return nil, errors.Newf(errors.ErrCodeState, "match is %s, only pending matches can be accepted", match.Status)
	}

	now := s.cfg.Now()
	if match.ExpiresAt != nil && !match.ExpiresAt.After(now) {
		if _, err := s.ExpireMatch(ctx, match.ID); err != nil {
			s.log.Warnw("Failed to expire overdue match", "match_id", match.ID, "error", err)
		}
		return nil, errors.New(errors.ErrCodeState, "match invitation has expired")
	}

	err = s.matches.Transition(ctx, match.ID, models.MatchStatusPending, models.MatchStatusAccepted, map[string]interface{}{
		"accepted_at": now,
	})
	if err != nil {
		return nil, err
	}
	metrics.MatchTransitions.WithLabelValues(models.MatchStatusAccepted).Inc()

	match.Status = models.MatchStatusAccepted
	match.AcceptedAt = &now
	match = s.reload(ctx, match)
	s.completeAcceptance(ctx, match, models.EventMatchAccepted, actorUserID)
	return match, nil
}

// RejectMatch declines a pending invitation on behalf of one of its parties.
func (s *MatchService) RejectMatch(ctx context.Context, matchID, actorUserID string) (match *models.Match, err error) {
	defer func() { metrics.RecordLifecycleError("reject_match", err) }()

	match, err = s.partyMatch(ctx, matchID, actorUserID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusPending {
		return nil, errors.Newf(errors.ErrCodeState, "match is %s, only pending matches can be rejected", match.Status)
	}

	now := s.cfg.Now()
	err = s.matches.Transition(ctx, match.ID, models.MatchStatusPending, models.MatchStatusRejected, map[string]interface{}{
		"rejected_at": now,
	})
	if err != nil {
		return nil, err
	}
	metrics.MatchTransitions.WithLabelValues(models.MatchStatusRejected).Inc()

	match.Status = models.MatchStatusRejected
	match.RejectedAt = &now
	match = s.reload(ctx, match)
	s.notify(models.EventMatchRejected, match.ID, actorUserID, 0, otherProfile(match, actorUserID))
	return match, nil
}

// Unmatch ends an accepted match. The record is kept with status rejected.
func (s *MatchService) Unmatch(ctx context.Context, matchID, actorUserID, reason string) (match *models.Match, err error) {
	defer func() { metrics.RecordLifecycleError("unmatch", err) }()

	match, err = s.partyMatch(ctx, matchID, actorUserID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusAccepted {
		return nil, errors.Newf(errors.ErrCodeState, "match is %s, only accepted matches can be unmatched", match.Status)
	}

	now := s.cfg.Now()
	reason = security.SanitizeText(reason, security.MaxReasonLength)
	err = s.matches.Transition(ctx, match.ID, models.MatchStatusAccepted, models.MatchStatusRejected, map[string]interface{}{
		"unmatched_at":   now,
		"unmatched_by":   actorUserID,
		"unmatch_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	metrics.MatchTransitions.WithLabelValues(models.MatchStatusRejected).Inc()

	match.Status = models.MatchStatusRejected
	match.UnmatchedAt = &now
	match.UnmatchedBy = actorUserID
	match.UnmatchReason = reason
	match = s.reload(ctx, match)

	if match.ChatRoomID != "" && s.chat != nil {
		if err := s.chat.ArchiveRoom(ctx, match.ChatRoomID); err != nil {
			s.log.Warnw("Failed to archive chat room", "match_id", match.ID, "room_id", match.ChatRoomID, "error", err)
		}
	}
	for _, profileID := range match.Profiles() {
		if err := s.profiles.RemoveMatch(ctx, profileID, match.ID); err != nil {
			s.log.Warnw("Failed to remove match from profile index", "match_id", match.ID, "profile_id", profileID, "error", err)
		}
	}

	s.notify(models.EventMatchUnmatched, match.ID, actorUserID, 0, otherProfile(match, actorUserID))
	return match, nil
}

// ReportMatch flags a match for moderation. It is allowed in every status and leaves it unchanged.
func (s *MatchService) ReportMatch(ctx context.Context, matchID, actorUserID, reason string) (match *models.Match, err error) {
	defer func() { metrics.RecordLifecycleError("report_match", err) }()

	match, err = s.partyMatch(ctx, matchID, actorUserID)
	if err != nil {
		return nil, err
	}

	reason = security.SanitizeText(reason, security.MaxReasonLength)
	if reason == "" {
		return nil, errors.New(errors.ErrCodeValidation, "a report reason is required")
	}

	if err := s.matches.SetReport(ctx, match.ID, actorUserID, reason, s.cfg.Now()); err != nil {
		return nil, err
	}

	s.log.Infow("Match reported", "match_id", match.ID, "reported_by", actorUserID)
	return s.matches.GetMatch(ctx, match.ID)
}

// ExpireMatch moves a pending match past its deadline to expired. Matches that are already
// settled or not yet due are left alone and reported as not expired.
func (s *MatchService) ExpireMatch(ctx context.Context, matchID string) (bool, error) {
	expired, err := s.matches.ExpireIfDue(ctx, matchID, s.cfg.Now())
	if err != nil {
		return false, err
	}
	if !expired {
		if _, err := s.matches.GetMatch(ctx, matchID); err != nil {
			return false, err
		}
		s.log.Debugw("Expiration skipped", "match_id", matchID)
		return false, nil
	}

	metrics.MatchTransitions.WithLabelValues(models.MatchStatusExpired).Inc()
	s.log.Infow("Match expired", "match_id", matchID)
	return true, nil
}

// SweepExpired expires every overdue pending match. It backs up expiration jobs that never ran.
func (s *MatchService) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.matches.FindOverdue(ctx, s.cfg.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.ExpireMatch(ctx, id)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		s.log.Infow("Swept overdue matches", "expired", expired)
	}
	return expired, nil
}

// RecalculateCompatibility rescores every pending or accepted match of a profile with the
// aggregate formula. Only the score column changes.
func (s *MatchService) RecalculateCompatibility(ctx context.Context, profileID string) (int, error) {
	profile, err := s.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return 0, err
	}

	matches, err := s.matches.ListMatchesByProfile(ctx, profile.ID, models.MatchStatusPending, models.MatchStatusAccepted)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	counterpartIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		counterpartIDs = append(counterpartIDs, counterpartProfile(&m, profile.ID))
	}
	counterparts, err := s.profiles.GetProfilesByIDs(ctx, counterpartIDs)
	if err != nil {
		return 0, err
	}
	counterparts[profile.ID] = profile

	return s.rescore(ctx, matches, counterparts)
}

// RecalculateAllActive rescores every pending or accepted match.
func (s *MatchService) RecalculateAllActive(ctx context.Context) (int, error) {
	total := 0
	err := s.matches.EachActiveBatch(ctx, recalculateBatchSize, func(batch []models.Match) error {
		ids := make([]string, 0, 2*len(batch))
		for _, m := range batch {
			ids = append(ids, m.ProfileA, m.ProfileB)
		}
		profiles, err := s.profiles.GetProfilesByIDs(ctx, ids)
		if err != nil {
			return err
		}

		n, err := s.rescore(ctx, batch, profiles)
		total += n
		return err
	})
	if err != nil {
		return total, err
	}

	s.log.Infow("Recalculated active matches", "updated", total)
	return total, nil
}

func (s *MatchService) rescore(ctx context.Context, matches []models.Match, profiles map[string]*models.Profile) (int, error) {
	updated := 0
	for _, m := range matches {
		a, b := profiles[m.ProfileA], profiles[m.ProfileB]
		if a == nil || b == nil {
			s.log.Warnw("Skipping recalculation, profile missing", "match_id", m.ID)
			continue
		}

		score, err := scoring.ComputeAggregate(a, b)
		if err != nil {
			s.log.Warnw("Skipping recalculation, profile invalid", "match_id", m.ID, "error", err)
			continue
		}
		if score == m.CompatibilityScore {
			continue
		}

		if err := s.matches.UpdateScore(ctx, m.ID, score); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// RebuildMatchIndex regenerates the per-profile match index from the matches table.
func (s *MatchService) RebuildMatchIndex(ctx context.Context) (int64, error) {
	written, err := s.profiles.RebuildMatchIndex(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Infow("Rebuilt profile match index", "entries", written)
	return written, nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return s.matches.GetMatch(ctx, matchID)
}

// ListMatches returns a user's matches, newest first, optionally limited to some statuses.
func (s *MatchService) ListMatches(ctx context.Context, userID string, statuses ...string) ([]models.Match, error) {
	for _, status := range statuses {
		switch status {
		case models.MatchStatusPending, models.MatchStatusAccepted, models.MatchStatusRejected, models.MatchStatusExpired:
		default:
			return nil, errors.Newf(errors.ErrCodeValidation, "unknown match status %q", status)
		}
	}
	return s.matches.ListMatchesByUser(ctx, userID, statuses...)
}

// partyMatch loads a match and checks that actorUserID is one of its two users.
func (s *MatchService) partyMatch(ctx context.Context, matchID, actorUserID string) (*models.Match, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(actorUserID) {
		return nil, errors.New(errors.ErrCodeState, "actor is not a party to this match")
	}
	return match, nil
}

// reload re-reads a match after a committed transition. When the read fails the caller's
// locally updated copy is returned instead, since the transition itself cannot be retried.
func (s *MatchService) reload(ctx context.Context, local *models.Match) *models.Match {
	current, err := s.matches.GetMatch(ctx, local.ID)
	if err != nil {
		s.log.Warnw("Failed to reload match after transition", "match_id", local.ID, "status", local.Status, "error", err)
		return local
	}
	return current
}

// completeAcceptance runs the side effects of a match becoming accepted. Failures are logged;
// they never undo the acceptance.
func (s *MatchService) completeAcceptance(ctx context.Context, match *models.Match, eventType, actorUserID string) {
	s.provisionChat(ctx, match)

	for _, profileID := range match.Profiles() {
		if _, err := s.profiles.AddMatch(ctx, profileID, match.ID); err != nil {
			s.log.Warnw("Failed to index match on profile", "match_id", match.ID, "profile_id", profileID, "error", err)
		}
	}

	s.notify(eventType, match.ID, actorUserID, match.CompatibilityScore, match.Profiles()...)
}

func (s *MatchService) provisionChat(ctx context.Context, match *models.Match) {
	if s.chat == nil || match.ChatRoomID != "" {
		return
	}

	roomID, err := s.chat.CreateRoom(ctx, match.Users(), match.ID)
	if err != nil {
		s.log.Warnw("Failed to provision chat room", "match_id", match.ID, "error", err)
		return
	}

	attached, err := s.matches.SetChatRoomIfEmpty(ctx, match.ID, roomID)
	if err != nil {
		s.log.Warnw("Failed to attach chat room", "match_id", match.ID, "room_id", roomID, "error", err)
		return
	}
	if !attached {
		if err := s.chat.ArchiveRoom(ctx, roomID); err != nil {
			s.log.Warnw("Failed to archive duplicate chat room", "match_id", match.ID, "room_id", roomID, "error", err)
		}
		return
	}
	match.ChatRoomID = roomID
}

func (s *MatchService) notify(eventType, matchID, actorID string, score int, recipients ...string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(models.Event{
		Type:       eventType,
		MatchID:    matchID,
		ActorID:    actorID,
		Recipients: recipients,
		Score:      score,
		OccurredAt: s.cfg.Now(),
	})
}

// otherProfile returns the profile id of the party that is not actorUserID.
func otherProfile(m *models.Match, actorUserID string) string {
	if m.UserA == actorUserID {
		return m.ProfileB
	}
	return m.ProfileA
}

func counterpartProfile(m *models.Match, profileID string) string {
	if m.ProfileA == profileID {
		return m.ProfileB
	}
	return m.ProfileA
}
