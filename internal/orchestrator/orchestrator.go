// Package orchestrator drives the verification session state machine.
// It coordinates: group join → pending session → verified | removed.
// Terminal transitions race (result delivery vs timeout); the session
// store's atomic Remove decides the winner, so each session produces at
// most one terminal transition and one audit entry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nftgate/internal/audit"
	"nftgate/internal/domain"
	"nftgate/internal/observability"
	"nftgate/internal/storage"
)

// DefaultTimeout is how long a joined user has to complete verification.
const DefaultTimeout = 5 * time.Minute

// DefaultSweepInterval is how often Run scans for expired sessions that
// lost their in-process timer, e.g. after a restart on a shared store.
const DefaultSweepInterval = 30 * time.Second

// GroupAdmin performs group-side actions. Kick is ban immediately
// followed by unban, so the user may rejoin later.
type GroupAdmin interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	GetMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// Notifier delivers fire-and-forget admin notifications.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Orchestrator owns the verification session lifecycle for one group.
type Orchestrator struct {
	store    storage.SessionStore
	audit    *audit.Log
	admin    GroupAdmin
	notifier Notifier

	groupID       int64
	timeout       time.Duration
	sweepInterval time.Duration
	verifyBaseURL string

	logger *slog.Logger
	now    func() time.Time
}

// Options for creating an Orchestrator.
type Options struct {
	// Required collaborators.
	Store storage.SessionStore
	Audit *audit.Log
	Admin GroupAdmin

	// Optional admin notifications. Nil disables them.
	Notifier Notifier

	// GroupID is the single guarded chat.
	GroupID int64

	// VerifyBaseURL is where the verification front end lives; the
	// per-user link appends tg_id and token query parameters.
	VerifyBaseURL string

	Timeout       time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger

	// Clock override for tests.
	Clock func() time.Time
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:         opts.Store,
		audit:         opts.Audit,
		admin:         opts.Admin,
		notifier:      opts.Notifier,
		groupID:       opts.GroupID,
		timeout:       opts.Timeout,
		sweepInterval: opts.SweepInterval,
		verifyBaseURL: opts.VerifyBaseURL,
		logger:        opts.Logger,
		now:           opts.Clock,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.sweepInterval <= 0 {
		o.sweepInterval = DefaultSweepInterval
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// HandleJoin starts a verification session for a user who joined the
// group. Any live session for the same user is replaced, so a rejoin
// restarts the clock with a fresh token.
func (o *Orchestrator) HandleJoin(ctx context.Context, userID int64, username string) error {
	now := o.now()
	session := &domain.VerificationSession{
		UserID:   userID,
		ChatID:   o.groupID,
		Username: username,
		Token:    uuid.NewString(),
		Status:   domain.StatusPending,
		JoinedAt: now,
		Deadline: now.Add(o.timeout),
	}

	if err := o.store.Put(ctx, session); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	key := session.Key()
	token := session.Token
	time.AfterFunc(o.timeout, func() {
		o.expireSession(context.Background(), key, token)
	})

	link := fmt.Sprintf("%s?tg_id=%d&token=%s", o.verifyBaseURL, userID, session.Token)
	welcome := fmt.Sprintf(
		"Welcome %s! To stay in this group you need to verify NFT ownership within %d minutes: %s",
		displayName(username, userID), int(o.timeout.Minutes()), link)
	if err := o.admin.SendMessage(ctx, o.groupID, welcome); err != nil {
		o.logger.Error("sending welcome message failed", "user_id", userID, "error", err)
		observability.RecordGroupActionError()
	}

	o.notify(ctx, fmt.Sprintf("User %s joined, verification pending", displayName(username, userID)))
	o.logger.Info("verification session started",
		"user_id", userID,
		"username", username,
		"deadline", session.Deadline)
	return nil
}

// HandleLeave discards the session of a user who left on their own.
// No audit entry: leaving is not a verification outcome.
func (o *Orchestrator) HandleLeave(ctx context.Context, userID int64) {
	key := domain.SessionKey{UserID: userID, ChatID: o.groupID}
	if _, err := o.store.Remove(ctx, key); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.logger.Error("discarding session on leave failed", "user_id", userID, "error", err)
		}
		return
	}
	o.logger.Info("session discarded, user left", "user_id", userID)
}

// HandleResult applies a delivered verification result. Remove runs
// first: if no live session matches, the result is stale (duplicate
// delivery, or the timeout already won) and is dropped.
func (o *Orchestrator) HandleResult(ctx context.Context, res domain.VerificationResult) error {
	key := domain.SessionKey{UserID: res.UserID, ChatID: o.groupID}
	session, err := o.store.Remove(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordStaleDrop()
			o.logger.Info("stale verification result dropped", "user_id", res.UserID)
			return nil
		}
		return fmt.Errorf("remove session: %w", err)
	}

	username := session.Username
	if res.Username != "" {
		username = res.Username
	}

	if res.HasNFT {
		session.Status = domain.StatusVerified
		text := fmt.Sprintf("%s verified NFT ownership (%d found). Welcome aboard!",
			displayName(username, session.UserID), res.NFTCount)
		if err := o.admin.SendMessage(ctx, o.groupID, text); err != nil {
			o.logger.Error("sending success message failed", "user_id", session.UserID, "error", err)
			observability.RecordGroupActionError()
		}
		o.writeAudit(session, username, audit.StatusVerified, audit.ReasonNFTVerified, res.NFTCount, res.WalletAddress)
		o.notify(ctx, fmt.Sprintf("User %s verified (%d NFTs)", displayName(username, session.UserID), res.NFTCount))
		return nil
	}

	session.Status = domain.StatusRemoved
	text := fmt.Sprintf("%s does not own a required NFT and will be removed.",
		displayName(username, session.UserID))
	if err := o.admin.SendMessage(ctx, o.groupID, text); err != nil {
		o.logger.Error("sending removal message failed", "user_id", session.UserID, "error", err)
		observability.RecordGroupActionError()
	}
	o.kick(ctx, session.UserID)
	o.writeAudit(session, username, audit.StatusRemoved, audit.ReasonNoNFT, res.NFTCount, res.WalletAddress)
	o.notify(ctx, fmt.Sprintf("User %s removed: no required NFT", displayName(username, session.UserID)))
	return nil
}

// expireSession is the timer path for one join. The token pins the
// timer to the session it was armed for: a rejoin replaces the session
// under the same key with a fresh token and deadline, and the discarded
// session's timer must not touch the replacement.
func (o *Orchestrator) expireSession(ctx context.Context, key domain.SessionKey, token string) {
	current, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordStaleDrop()
			return
		}
		o.logger.Error("session lookup on timeout failed", "user_id", key.UserID, "error", err)
		return
	}
	if current.Token != token {
		observability.RecordStaleDrop()
		return
	}

	session, err := o.store.Remove(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordStaleDrop()
			return
		}
		o.logger.Error("removing session on timeout failed", "user_id", key.UserID, "error", err)
		return
	}
	if session.Token != token {
		// Lost a race with a rejoin between the check and the remove.
		// The replacement session owns the key; put it back untouched.
		if err := o.store.Put(ctx, session); err != nil {
			o.logger.Error("restoring replacement session failed", "user_id", key.UserID, "error", err)
		}
		return
	}

	o.finishTimeout(ctx, session)
}

// HandleTimeout drives a session whose deadline has passed through the
// timeout transition. Remove decides whether the timeout still owns the
// session; a session already finished by a result is a no-op. The sweep
// only passes keys whose deadline it checked, so no token pin is needed
// here.
func (o *Orchestrator) HandleTimeout(ctx context.Context, key domain.SessionKey) {
	session, err := o.store.Remove(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordStaleDrop()
			return
		}
		o.logger.Error("removing session on timeout failed", "user_id", key.UserID, "error", err)
		return
	}
	o.finishTimeout(ctx, session)
}

func (o *Orchestrator) finishTimeout(ctx context.Context, session *domain.VerificationSession) {
	session.Status = domain.StatusRemoved
	text := fmt.Sprintf("%s did not verify in time and will be removed.",
		displayName(session.Username, session.UserID))
	if err := o.admin.SendMessage(ctx, o.groupID, text); err != nil {
		o.logger.Error("sending timeout message failed", "user_id", session.UserID, "error", err)
		observability.RecordGroupActionError()
	}
	o.kick(ctx, session.UserID)
	o.writeAudit(session, session.Username, audit.StatusRemoved, audit.ReasonTimeout, 0, "")
	o.notify(ctx, fmt.Sprintf("User %s removed: verification timeout", displayName(session.Username, session.UserID)))
	o.logger.Info("verification timed out", "user_id", session.UserID)
}

// Run sweeps for expired sessions until the context is cancelled. The
// in-process AfterFunc timers cover the common case; the sweep catches
// sessions orphaned by a restart when the store is shared.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys, err := o.store.Expired(ctx, o.now())
			if err != nil {
				o.logger.Error("expired-session sweep failed", "error", err)
				continue
			}
			for _, key := range keys {
				o.HandleTimeout(ctx, key)
			}
		}
	}
}

// Pending returns the number of live sessions.
func (o *Orchestrator) Pending(ctx context.Context) (int, error) {
	return o.store.Count(ctx)
}

// kick removes a user from the group via ban followed by unban, leaving
// them free to rejoin and retry verification. Failures are logged; the
// terminal transition already happened and the audit entry still gets
// written.
func (o *Orchestrator) kick(ctx context.Context, userID int64) {
	if err := o.admin.BanMember(ctx, o.groupID, userID); err != nil {
		o.logger.Error("ban failed", "user_id", userID, "error", err)
		observability.RecordGroupActionError()
		return
	}
	if err := o.admin.UnbanMember(ctx, o.groupID, userID); err != nil {
		o.logger.Error("unban failed", "user_id", userID, "error", err)
		observability.RecordGroupActionError()
	}
}

func (o *Orchestrator) writeAudit(session *domain.VerificationSession, username, status, reason string, nftCount int, wallet string) {
	entry := audit.Entry{
		Timestamp:     o.now().Unix(),
		UserID:        session.UserID,
		Username:      username,
		Status:        status,
		Reason:        reason,
		NFTCount:      nftCount,
		WalletAddress: wallet,
	}
	if err := o.audit.Append(entry); err != nil {
		o.logger.Error("audit append failed", "user_id", session.UserID, "error", err)
	}
	observability.RecordVerification(reason)
}

func (o *Orchestrator) notify(ctx context.Context, text string) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, text)
}

func displayName(username string, userID int64) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("user %d", userID)
}
