package models

// SessionType describes how a craving session is resolved.
type SessionType string

const (
	SessionTypeSolo         SessionType = "solo_challenge"
	SessionTypeInviteFriend SessionType = "invite_friend"
	SessionTypeRandomMatch  SessionType = "challenge_random"
	SessionTypeHealthyRoute SessionType = "healthy_route"
	SessionTypeSkip         SessionType = "skip"
)

// SessionTypes lists every valid session type.
func SessionTypes() []SessionType {
	return []SessionType{
		SessionTypeSolo,
		SessionTypeInviteFriend,
		SessionTypeRandomMatch,
		SessionTypeHealthyRoute,
		SessionTypeSkip,
	}
}

// ValidSessionType reports whether t is a known session type.
func ValidSessionType(t SessionType) bool {
	for _, known := range SessionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ChallengeStatus tracks a challenge through its lifecycle.
// Transitions: pending -> active -> completed, or pending/active -> expired.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeExpired   ChallengeStatus = "expired"
)

// InvitationStatus tracks a peer invitation. Exactly one transition away from
// pending is ever applied.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// QueueStatus tracks a matchmaking queue entry. Entries are immutable once
// they leave the waiting state.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueMatched   QueueStatus = "matched"
	QueueCancelled QueueStatus = "cancelled"
	QueueExpired   QueueStatus = "expired"
)

// MatchStatus tracks a competitive match between two users.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
)
