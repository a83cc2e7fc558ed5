package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/bozorly/bozorly_api/internal/identity"
	"github.com/bozorly/bozorly_api/internal/notification"
)

const (
	roleCustomer = "customer"

	minPasswordLen  = 6
	defaultLanguage = "uz"
)

// Service orchestrates registration and login on top of the core components.
type Service struct {
	repo     identity.Repository
	engine   *DecisionEngine
	otp      *OTPService
	lockout  *LockoutPolicy
	sessions *SessionManager
	hasher   CredentialHasher
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService wires the auth flows.
func NewService(repo identity.Repository, engine *DecisionEngine, otp *OTPService, lockout *LockoutPolicy, sessions *SessionManager, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		otp:      otp,
		lockout:  lockout,
		sessions: sessions,
		hasher:   BcryptHasher{},
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterInput carries the registration request.
type RegisterInput struct {
	Phone       string
	Password    string
	Name        string
	Language    string
	DeviceID    string
	TrustDevice bool
}

// Credentials carries a login attempt. Password or Code applies depending on
// the method the decision engine picks for the device.
type Credentials struct {
	Phone       string
	Password    string
	Code        string
	DeviceID    string
	TrustDevice bool
}

// AuthResult pairs the resolved identity with a freshly issued session token.
type AuthResult struct {
	Identity identity.Identity
	Token    string
}

// Register creates a brand-new identity and issues its first session token.
// Identity creation spans the relational store and the ephemeral session
// state with no cross-store transaction, so any failure after the identity
// record exists compensates by deleting it (best effort) before the original
// error surfaces.
func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	if err := in.validate(); err != nil {
		return AuthResult{}, err
	}

	if _, err := s.repo.FindByPhone(ctx, in.Phone); err == nil {
		return AuthResult{}, ErrAlreadyRegistered
	} else if !errors.Is(err, identity.ErrNotFound) {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	lang := in.Language
	if lang == "" {
		lang = defaultLanguage
	}
	ident := identity.Identity{
		ID:           uuid.NewString(),
		Phone:        in.Phone,
		Name:         in.Name,
		PasswordHash: hash,
		Language:     lang,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		if errors.Is(err, identity.ErrPhoneTaken) {
			return AuthResult{}, ErrAlreadyRegistered
		}
		return AuthResult{}, err
	}

	token, err := s.sessions.Issue(ctx, ident.ID, roleCustomer)
	if err != nil {
		s.compensateRegistration(ctx, ident.ID)
		return AuthResult{}, err
	}

	if in.TrustDevice && in.DeviceID != "" {
		if err := s.repo.TrustDevice(ctx, ident.ID, in.DeviceID); err != nil {
			s.compensateRegistration(ctx, ident.ID)
			return AuthResult{}, err
		}
	}

	return AuthResult{Identity: ident, Token: token}, nil
}

// compensateRegistration deletes a partially registered identity. Failures
// are logged, not retried, so the original error is never masked.
func (s *Service) compensateRegistration(ctx context.Context, identityID string) {
	if err := s.repo.Delete(ctx, identityID); err != nil {
		s.logger.Error("rollback identity create", "identity_id", identityID, "error", err)
	}
}

// LoginMethod resolves which credential the identity must present for the
// device. When the answer is otp a fresh code is issued and handed to the
// notifier for out-of-band delivery.
func (s *Service) LoginMethod(ctx context.Context, phone, deviceID string) (Method, error) {
	if _, err := s.repo.FindByPhone(ctx, phone); err != nil {
		return "", err
	}

	method, err := s.engine.Method(ctx, phone, deviceID)
	if err != nil {
		return "", err
	}

	if method == MethodOTP {
		code, err := s.otp.Issue(ctx, phone)
		if err != nil {
			return "", err
		}
		msg := notification.Message{
			Kind:        notification.KindLoginCode,
			Destination: phone,
			Body:        fmt.Sprintf("%06d", code),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("deliver login code", "phone", phone, "error", err)
		}
	}
	return method, nil
}

// Login gates the attempt through the lockout policy, verifies the credential
// the decision engine requires, and on success issues a session token that
// supersedes any prior one.
func (s *Service) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	ident, err := s.repo.FindByPhone(ctx, creds.Phone)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.lockout.Gate(ctx, creds.Phone); err != nil {
		return AuthResult{}, err
	}

	method, err := s.engine.Method(ctx, creds.Phone, creds.DeviceID)
	if err != nil {
		return AuthResult{}, err
	}

	var credErr error
	switch method {
	case MethodOTP:
		credErr = s.otp.Validate(ctx, creds.Phone, creds.Code)
	default:
		if err := s.hasher.Verify(ident.PasswordHash, creds.Password); err != nil {
			credErr = ErrWrongPassword
		}
	}

	if credErr != nil {
		decision, err := s.lockout.RecordOutcome(ctx, creds.Phone, false)
		if err != nil {
			var blocked *BlockedError
			if errors.As(err, &blocked) {
				return AuthResult{}, blocked
			}
			return AuthResult{}, err
		}
		if decision == DecisionNowBlocked {
			return AuthResult{}, &BlockedError{RetryAfter: blockWindow}
		}
		return AuthResult{}, credErr
	}

	if _, err := s.lockout.RecordOutcome(ctx, creds.Phone, true); err != nil {
		return AuthResult{}, err
	}

	token, err := s.sessions.Issue(ctx, ident.ID, roleCustomer)
	if err != nil {
		return AuthResult{}, err
	}

	if creds.TrustDevice && creds.DeviceID != "" && method == MethodPassword {
		if err := s.repo.TrustDevice(ctx, ident.ID, creds.DeviceID); err != nil {
			s.logger.Warn("trust device", "identity_id", ident.ID, "error", err)
		}
	}

	return AuthResult{Identity: ident, Token: token}, nil
}

// Logout revokes the identity's current session.
func (s *Service) Logout(ctx context.Context, identityID string) error {
	return s.sessions.RevokeAll(ctx, identityID)
}

func (in RegisterInput) validate() error {
	if len(in.Phone) < 9 || !digitsOnly(in.Phone) {
		return &ValidationError{Field: "phone", Reason: "must be a digits-only phone number"}
	}
	if len(in.Password) < minPasswordLen {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}
	return nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
