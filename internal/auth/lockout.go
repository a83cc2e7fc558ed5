package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginStatusKeyPrefix = "login-status:"
	blockWindow          = time.Minute
)

// Decision reports how the lockout state machine handled an attempt.
type Decision int

const (
	// DecisionCleared — successful attempt, status record removed.
	DecisionCleared Decision = iota
	// DecisionFailed — failed attempt recorded, no block yet.
	DecisionFailed
	// DecisionNowBlocked — failed attempt arrived inside the cooldown and
	// triggered the block window.
	DecisionNowBlocked
	// DecisionStillBlocked — block window active, attempt not evaluated.
	DecisionStillBlocked
)

type loginStatus struct {
	LastAttempt *int64 `json:"last_login_attempt"` // epoch ms, null once cleared
	SafeAfter   int    `json:"safe_login_after"`   // seconds
	Blocked     bool   `json:"is_blocked"`
}

// LockoutPolicy tracks failed credential attempts per phone number and
// escalates rapid repeats into a block window. It is the sole writer of
// login-status keys in the ephemeral store.
//
// The cooldown shrinks toward zero as time passes since the last failure:
// a patient user is never punished, while attempts faster than the computed
// cooldown trigger a full block.
type LockoutPolicy struct {
	cache     *redis.Client
	now       func() time.Time
	window    time.Duration
	opTimeout time.Duration
	locks     *keyLock
}

// NewLockoutPolicy builds the lockout state machine on the shared ephemeral store.
func NewLockoutPolicy(cache *redis.Client, opTimeout time.Duration) *LockoutPolicy {
	return &LockoutPolicy{
		cache:     cache,
		now:       time.Now,
		window:    blockWindow,
		opTimeout: opTimeout,
		locks:     newKeyLock(),
	}
}

// Gate rejects attempts while a block window is active. It must run before
// the credential itself is evaluated. A block whose window has elapsed is
// cleared here lazily (last attempt reset to null) rather than swept.
func (p *LockoutPolicy) Gate(ctx context.Context, phone string) error {
	release := p.locks.acquire(phone)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	st, ok, err := p.load(ctx, phone)
	if err != nil {
		return err
	}
	if ok && st.Blocked {
		return &BlockedError{RetryAfter: p.remaining(st)}
	}
	return nil
}

// RecordOutcome advances the state machine after a credential check. Success
// deletes the record entirely. A failure landing inside the cooldown of the
// previous attempt triggers the block window; any other failure records the
// attempt and recomputes the cooldown.
func (p *LockoutPolicy) RecordOutcome(ctx context.Context, phone string, succeeded bool) (Decision, error) {
	release := p.locks.acquire(phone)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	st, ok, err := p.load(ctx, phone)
	if err != nil {
		return 0, err
	}
	if ok && st.Blocked {
		return DecisionStillBlocked, &BlockedError{RetryAfter: p.remaining(st)}
	}

	if succeeded {
		if err := p.cache.Del(ctx, loginStatusKey(phone)).Err(); err != nil {
			return 0, fmt.Errorf("clear login status: %w", err)
		}
		return DecisionCleared, nil
	}

	now := p.now()
	next := loginStatus{}
	decision := DecisionFailed

	if ok && st.LastAttempt != nil {
		since := now.Sub(time.UnixMilli(*st.LastAttempt))
		if since < time.Duration(st.SafeAfter)*time.Second {
			// Rapid repeat failure: block for the full window.
			next.Blocked = true
			next.SafeAfter = 0
			decision = DecisionNowBlocked
		} else {
			safe := p.window - since
			if safe < 0 {
				safe = 0
			}
			next.SafeAfter = int(safe.Seconds())
		}
	}

	ms := now.UnixMilli()
	next.LastAttempt = &ms
	if err := p.store(ctx, phone, next); err != nil {
		return 0, err
	}
	return decision, nil
}

// load reads the status record and lazily clears a block whose window has
// elapsed, so the caller always observes either an active block or a
// ready-to-evaluate record.
func (p *LockoutPolicy) load(ctx context.Context, phone string) (loginStatus, bool, error) {
	raw, err := p.cache.Get(ctx, loginStatusKey(phone)).Result()
	if err == redis.Nil {
		return loginStatus{}, false, nil
	}
	if err != nil {
		return loginStatus{}, false, fmt.Errorf("load login status: %w", err)
	}

	var st loginStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return loginStatus{}, false, fmt.Errorf("decode login status: %w", err)
	}

	if st.Blocked && p.remaining(st) <= 0 {
		st = loginStatus{}
		if err := p.store(ctx, phone, st); err != nil {
			return loginStatus{}, false, err
		}
	}
	return st, true, nil
}

func (p *LockoutPolicy) store(ctx context.Context, phone string, st loginStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode login status: %w", err)
	}
	if err := p.cache.Set(ctx, loginStatusKey(phone), payload, 0).Err(); err != nil {
		return fmt.Errorf("store login status: %w", err)
	}
	return nil
}

func (p *LockoutPolicy) remaining(st loginStatus) time.Duration {
	if st.LastAttempt == nil {
		return 0
	}
	return p.window - p.now().Sub(time.UnixMilli(*st.LastAttempt))
}

func loginStatusKey(phone string) string {
	return loginStatusKeyPrefix + phone
}
