package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix   = "tokens:"
	sessionKeyPrefix = "sessions-by-identity:"
	sessionTTL       = time.Hour
)

// Session is the record behind an issued bearer token.
type Session struct {
	IdentityID string `json:"id"`
	Role       string `json:"role"`
	ExpiresAt  int64  `json:"expiresAt"` // epoch ms
}

// SessionManager issues and validates opaque bearer tokens, keeping at most
// one live token per identity. It is the sole writer of token and
// sessions-by-identity keys in the ephemeral store. Expired tokens are not
// swept; invalidity is detected lazily at validation time.
type SessionManager struct {
	cache     *redis.Client
	now       func() time.Time
	ttl       time.Duration
	opTimeout time.Duration
}

// NewSessionManager builds the session manager on the shared ephemeral store.
func NewSessionManager(cache *redis.Client, opTimeout time.Duration) *SessionManager {
	return &SessionManager{
		cache:     cache,
		now:       time.Now,
		ttl:       sessionTTL,
		opTimeout: opTimeout,
	}
}

// Issue creates a fresh token for the identity. Any prior token found through
// the identity index is revoked first, so the new token supersedes it.
func (m *SessionManager) Issue(ctx context.Context, identityID, role string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	prior, err := m.cache.Get(ctx, sessionKey(identityID)).Result()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("load prior token: %w", err)
	}
	if err == nil && prior != "" {
		if err := m.cache.Del(ctx, tokenKey(prior)).Err(); err != nil {
			return "", fmt.Errorf("revoke prior token: %w", err)
		}
	}

	token := uuid.NewString()
	sess := Session{
		IdentityID: identityID,
		Role:       role,
		ExpiresAt:  m.now().Add(m.ttl).UnixMilli(),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	if err := m.cache.Set(ctx, tokenKey(token), payload, 0).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if err := m.cache.Set(ctx, sessionKey(identityID), token, 0).Err(); err != nil {
		return "", fmt.Errorf("index session: %w", err)
	}
	return token, nil
}

// Validate resolves a bearer token to its session. Unknown and expired tokens
// both report ErrSessionInvalid.
func (m *SessionManager) Validate(ctx context.Context, token string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	raw, err := m.cache.Get(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return Session{}, ErrSessionInvalid
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.ExpiresAt <= m.now().UnixMilli() {
		return Session{}, ErrSessionInvalid
	}
	return sess, nil
}

// RevokeAll drops the identity's current token mapping and the token record.
// Used on logout and security-sensitive changes.
func (m *SessionManager) RevokeAll(ctx context.Context, identityID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	token, err := m.cache.Get(ctx, sessionKey(identityID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load token index: %w", err)
	}

	if err := m.cache.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := m.cache.Del(ctx, sessionKey(identityID)).Err(); err != nil {
		return fmt.Errorf("drop token index: %w", err)
	}
	return nil
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func sessionKey(identityID string) string {
	return sessionKeyPrefix + identityID
}
