package auth

import "golang.org/x/crypto/bcrypt"

// CredentialHasher hashes and verifies passwords. Pluggable so tests can use
// a deterministic stand-in.
type CredentialHasher interface {
	Hash(plain string) ([]byte, error)
	Verify(hash []byte, plain string) error
}

// BcryptHasher is the production CredentialHasher.
type BcryptHasher struct{}

func (BcryptHasher) Hash(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

func (BcryptHasher) Verify(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
