package identity

import "time"

// Identity represents a registered customer account.
type Identity struct {
	ID           string
	Phone        string
	Name         string
	PasswordHash []byte
	Gender       string
	BirthDate    *time.Time
	ImageKey     string
	Language     string
	CreatedAt    time.Time
}

// TrustedDevice associates a device identifier with an identity. Its presence
// routes subsequent logins for that device to the one-time-code method.
type TrustedDevice struct {
	IdentityID string
	DeviceID   string
	CreatedAt  time.Time
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	Name      *string
	Gender    *string
	BirthDate *time.Time
	Language  *string
}
