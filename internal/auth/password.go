package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword means the plaintext didn't match the stored hash.
var ErrInvalidPassword = errors.New("auth: invalid password")

// defaultCost is the bcrypt work factor: roughly 250ms per hash on a modern
// server. Each +1 doubles it.
const defaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs would be silently
// truncated, so they are rejected instead. The limit applies to the password
// as hashed, which for API requests is the sanitized form: every / ' " < >
// grows it by several bytes.
const MaxPasswordBytes = 72

// PasswordService hashes and verifies passwords with bcrypt.
//
// Hash format:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost
//	 version
type PasswordService struct {
	cost int
}

// NewPasswordService uses the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest uses a custom cost, normally bcrypt.MinCost (4),
// so tests in other packages don't pay ~250ms per hash. Never use it in
// production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext, salt included.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrInvalidPassword when
// it doesn't. The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
