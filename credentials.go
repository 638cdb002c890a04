package govern

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString is returned when a credential to hash is empty
var ErrNoEmptyString = errors.New("password can't be an empty string")

// ErrMismatchedHashAndCredential is returned when a credential check fails
var ErrMismatchedHashAndCredential = errors.New("credential does not match hash")

// HashCredential digests a provisional account credential. Plaintext
// passwords handed in through source attributes are never stored.
func HashCredential(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

// CompareCredentialAndHash will validate the given cleartext
// credential matches the stored digest
func CompareCredentialAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndCredential
		}
		return err
	}
	return nil
}

// RandomCredentialHash is a temporary credential for accounts created
// without an explicit password attribute
func RandomCredentialHash() string {
	pwd := uuid.New()

	h, err := HashCredential(pwd.String())
	if err != nil {
		return RandomCredentialHash()
	}

	return h
}
