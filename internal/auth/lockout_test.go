package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestLockout(t *testing.T) (*LockoutPolicy, *redis.Client, *time.Time) {
	t.Helper()
	client, _ := newTestCache(t)
	p := NewLockoutPolicy(client, testOpTimeout)

	now := time.Now()
	p.now = func() time.Time { return now }
	return p, client, &now
}

func TestLockoutSingleFailureDoesNotBlock(t *testing.T) {
	p, _, _ := newTestLockout(t)
	ctx := context.Background()

	decision, err := p.RecordOutcome(ctx, "998901234567", false)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if decision != DecisionFailed {
		t.Fatalf("expected DecisionFailed, got %v", decision)
	}
	if err := p.Gate(ctx, "998901234567"); err != nil {
		t.Fatalf("gate after single failure: %v", err)
	}
}

func TestLockoutRapidFailuresTriggerBlock(t *testing.T) {
	p, _, now := newTestLockout(t)
	ctx := context.Background()

	if d, err := p.RecordOutcome(ctx, "998901234567", false); err != nil || d != DecisionFailed {
		t.Fatalf("first failure: decision=%v err=%v", d, err)
	}

	*now = now.Add(5 * time.Second)
	if d, err := p.RecordOutcome(ctx, "998901234567", false); err != nil || d != DecisionFailed {
		t.Fatalf("second failure: decision=%v err=%v", d, err)
	}

	*now = now.Add(5 * time.Second)
	d, err := p.RecordOutcome(ctx, "998901234567", false)
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if d != DecisionNowBlocked {
		t.Fatalf("expected DecisionNowBlocked on third rapid failure, got %v", d)
	}

	err = p.Gate(ctx, "998901234567")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError from gate, got %v", err)
	}
	if blocked.RetryAfter <= 0 || blocked.RetryAfter > time.Minute {
		t.Fatalf("retry-after out of range: %v", blocked.RetryAfter)
	}
}

func TestLockoutBlockHoldsUntilWindowElapses(t *testing.T) {
	p, _, now := newTestLockout(t)
	ctx := context.Background()
	phone := "998901234567"

	blockPhone(ctx, t, p, now, phone)

	*now = now.Add(30 * time.Second)
	var blocked *BlockedError
	if err := p.Gate(ctx, phone); !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError mid-window, got %v", err)
	}

	// RecordOutcome must refuse the attempt outright while blocked.
	d, err := p.RecordOutcome(ctx, phone, true)
	if d != DecisionStillBlocked || !errors.As(err, &blocked) {
		t.Fatalf("expected DecisionStillBlocked, got decision=%v err=%v", d, err)
	}

	*now = now.Add(31 * time.Second)
	if err := p.Gate(ctx, phone); err != nil {
		t.Fatalf("gate after window elapsed: %v", err)
	}
}

func TestLockoutExpiredBlockClearsLazily(t *testing.T) {
	p, _, now := newTestLockout(t)
	ctx := context.Background()
	phone := "998901234567"

	blockPhone(ctx, t, p, now, phone)

	// After the window the record resets on access: the next failure is
	// evaluated as if no prior attempt existed.
	*now = now.Add(61 * time.Second)
	d, err := p.RecordOutcome(ctx, phone, false)
	if err != nil {
		t.Fatalf("record outcome after window: %v", err)
	}
	if d != DecisionFailed {
		t.Fatalf("expected DecisionFailed after lazy clear, got %v", d)
	}
}

func TestLockoutSuccessDeletesRecord(t *testing.T) {
	p, client, now := newTestLockout(t)
	ctx := context.Background()
	phone := "998901234567"

	if _, err := p.RecordOutcome(ctx, phone, false); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	*now = now.Add(10 * time.Second)
	d, err := p.RecordOutcome(ctx, phone, true)
	if err != nil {
		t.Fatalf("record success: %v", err)
	}
	if d != DecisionCleared {
		t.Fatalf("expected DecisionCleared, got %v", d)
	}

	n, err := client.Exists(ctx, loginStatusKey(phone)).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected status record to be deleted")
	}
}

// blockPhone drives three rapid failures so the phone ends up blocked at *now.
func blockPhone(ctx context.Context, t *testing.T, p *LockoutPolicy, now *time.Time, phone string) {
	t.Helper()
	for i := 0; i < 2; i++ {
		if _, err := p.RecordOutcome(ctx, phone, false); err != nil {
			t.Fatalf("seed failure %d: %v", i, err)
		}
		*now = now.Add(5 * time.Second)
	}
	d, err := p.RecordOutcome(ctx, phone, false)
	if err != nil {
		t.Fatalf("blocking failure: %v", err)
	}
	if d != DecisionNowBlocked {
		t.Fatalf("expected DecisionNowBlocked, got %v", d)
	}
}
