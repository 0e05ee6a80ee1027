package user

import "golang.org/x/crypto/bcrypt"

// PasswordChecker verifies a plaintext password against a stored hash.
// Implementations must not be timing-sensitive to the password contents.
type PasswordChecker interface {
	Verify(plaintext, storedHash string) bool
}

// bcryptChecker verifies bcrypt hashes.
type bcryptChecker struct{}

// NewBcryptChecker returns the default bcrypt password checker.
func NewBcryptChecker() PasswordChecker { return bcryptChecker{} }

// Verify implements PasswordChecker.
func (bcryptChecker) Verify(plaintext, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}

// HashPassword hashes a plaintext password for storage. Exposed for
// provisioning tooling and tests.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
