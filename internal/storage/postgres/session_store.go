package postgres

import (
	"context"
	"fmt"
	"time"

	"nftgate/internal/domain"
	"nftgate/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL. Sharing
// the table between the verifier and group-admin processes removes the
// need for relay polling when both sides can reach the database.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Put stores the session, replacing any existing row for the key.
func (s *SessionStore) Put(ctx context.Context, sess *domain.VerificationSession) error {
	if sess == nil || sess.UserID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO verification_sessions (
			user_id, chat_id, username, token, status, joined_at, deadline, wallet_address, nft_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			token = EXCLUDED.token,
			status = EXCLUDED.status,
			joined_at = EXCLUDED.joined_at,
			deadline = EXCLUDED.deadline,
			wallet_address = EXCLUDED.wallet_address,
			nft_count = EXCLUDED.nft_count
	`

	_, err := s.pool.Exec(ctx, query,
		sess.UserID,
		sess.ChatID,
		sess.Username,
		sess.Token,
		string(sess.Status),
		sess.JoinedAt,
		sess.Deadline,
		sess.WalletAddress,
		sess.NFTCount,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Get retrieves a live session. Returns ErrNotFound if none exists.
func (s *SessionStore) Get(ctx context.Context, key domain.SessionKey) (*domain.VerificationSession, error) {
	query := `
		SELECT user_id, chat_id, username, token, status, joined_at, deadline, wallet_address, nft_count
		FROM verification_sessions
		WHERE user_id = $1 AND chat_id = $2
	`

	sess, err := scanSession(s.pool.QueryRow(ctx, query, key.UserID, key.ChatID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Remove atomically checks and removes the session via DELETE RETURNING,
// so exactly one concurrent caller receives the row.
func (s *SessionStore) Remove(ctx context.Context, key domain.SessionKey) (*domain.VerificationSession, error) {
	query := `
		DELETE FROM verification_sessions
		WHERE user_id = $1 AND chat_id = $2
		RETURNING user_id, chat_id, username, token, status, joined_at, deadline, wallet_address, nft_count
	`

	sess, err := scanSession(s.pool.QueryRow(ctx, query, key.UserID, key.ChatID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("remove session: %w", err)
	}
	return sess, nil
}

// Expired returns keys of sessions past their deadline.
func (s *SessionStore) Expired(ctx context.Context, now time.Time) ([]domain.SessionKey, error) {
	query := `
		SELECT user_id, chat_id
		FROM verification_sessions
		WHERE deadline < $1
	`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var keys []domain.SessionKey
	for rows.Next() {
		var key domain.SessionKey
		if err := rows.Scan(&key.UserID, &key.ChatID); err != nil {
			return nil, fmt.Errorf("scan expired session key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return keys, nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM verification_sessions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// rowScanner abstracts pgx.Row for session scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.VerificationSession, error) {
	var sess domain.VerificationSession
	var status string
	err := row.Scan(
		&sess.UserID,
		&sess.ChatID,
		&sess.Username,
		&sess.Token,
		&status,
		&sess.JoinedAt,
		&sess.Deadline,
		&sess.WalletAddress,
		&sess.NFTCount,
	)
	if err != nil {
		return nil, err
	}
	sess.Status = domain.SessionStatus(status)
	return &sess, nil
}
