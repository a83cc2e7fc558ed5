package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix = "otp:"
	otpTTL       = 2 * time.Minute
)

// CodeGenerator produces one-time login codes. Pluggable so tests can use a
// deterministic stand-in.
type CodeGenerator interface {
	Generate() (int, error)
}

// CryptoCodeGenerator draws a uniform six-digit code from crypto/rand.
type CryptoCodeGenerator struct{}

func (CryptoCodeGenerator) Generate() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return 0, fmt.Errorf("draw code: %w", err)
	}
	return int(n.Int64()) + 100000, nil
}

type otpRecord struct {
	Code      int   `json:"code"`
	ExpiresAt int64 `json:"expiresAt"`
}

// OTPService issues, stores, and validates one-time login codes. It is the
// sole writer of otp keys in the ephemeral store. Records carry their own
// expiry instant; the store applies no TTL of its own.
type OTPService struct {
	cache     *redis.Client
	gen       CodeGenerator
	now       func() time.Time
	ttl       time.Duration
	opTimeout time.Duration
	locks     *keyLock
}

// NewOTPService builds the one-time code service on the shared ephemeral store.
func NewOTPService(cache *redis.Client, opTimeout time.Duration) *OTPService {
	return &OTPService{
		cache:     cache,
		gen:       CryptoCodeGenerator{},
		now:       time.Now,
		ttl:       otpTTL,
		opTimeout: opTimeout,
		locks:     newKeyLock(),
	}
}

// Issue generates a fresh six-digit code for the phone number, overwriting
// any prior code. Delivery is the caller's concern.
func (s *OTPService) Issue(ctx context.Context, phone string) (int, error) {
	code, err := s.gen.Generate()
	if err != nil {
		return 0, err
	}

	release := s.locks.acquire(phone)
	defer release()

	rec := otpRecord{Code: code, ExpiresAt: s.now().Add(s.ttl).UnixMilli()}
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode code record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, otpKey(phone), payload, 0).Err(); err != nil {
		return 0, fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Validate checks a submitted code against the stored one. A matching code is
// consumed; an expired record is removed and reported as ErrExpiredOTP; a
// mismatch leaves the record in place. Absent records report ErrWrongOTP so
// "never issued" is indistinguishable from "wrong code".
func (s *OTPService) Validate(ctx context.Context, phone, submitted string) error {
	release := s.locks.acquire(phone)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, err := s.cache.Get(ctx, otpKey(phone)).Result()
	if err == redis.Nil {
		return ErrWrongOTP
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}

	var rec otpRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("decode code record: %w", err)
	}

	if rec.ExpiresAt <= s.now().UnixMilli() {
		if err := s.cache.Del(ctx, otpKey(phone)).Err(); err != nil {
			return fmt.Errorf("drop expired code: %w", err)
		}
		return ErrExpiredOTP
	}

	code, err := strconv.Atoi(strings.TrimSpace(submitted))
	if err != nil || code != rec.Code {
		return ErrWrongOTP
	}

	// One-time use: consume on success.
	if err := s.cache.Del(ctx, otpKey(phone)).Err(); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

func otpKey(phone string) string {
	return otpKeyPrefix + phone
}
