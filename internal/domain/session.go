package domain

import "time"

// SessionStatus is the lifecycle state of a verification session.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusVerified SessionStatus = "verified"
	StatusRemoved  SessionStatus = "removed"
)

// SessionKey identifies a verification session. At most one live session
// exists per key.
type SessionKey struct {
	UserID int64
	ChatID int64
}

// VerificationSession tracks a user from group join until a terminal
// transition. Verified and removed sessions leave the live set; the audit
// log is the only record of terminal outcomes.
type VerificationSession struct {
	UserID   int64
	ChatID   int64
	Username string

	// Token is embedded in the verification link handed to the user.
	Token string

	Status   SessionStatus
	JoinedAt time.Time
	Deadline time.Time

	// Set on the verified transition only.
	WalletAddress string
	NFTCount      int
}

// Key returns the session's store key.
func (s *VerificationSession) Key() SessionKey {
	return SessionKey{UserID: s.UserID, ChatID: s.ChatID}
}

// Expired reports whether the timeout deadline has passed.
func (s *VerificationSession) Expired(now time.Time) bool {
	return now.After(s.Deadline)
}
