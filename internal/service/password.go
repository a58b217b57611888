package service

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier implements PasswordVerifier over bcrypt hashes.
//
// The dummy hash is generated once at construction from a random secret
// that is immediately discarded, so it can never match any real account.
type BcryptVerifier struct {
	dummyHash []byte
}

func NewBcryptVerifier() (*BcryptVerifier, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}

	dummyHash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &BcryptVerifier{dummyHash: dummyHash}, nil
}

func (v *BcryptVerifier) Verify(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func (v *BcryptVerifier) CompareDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(plain))
}

// Hash выдает bcrypt хеш для нового пароля. Сервис сам пароли не заводит,
// hasher нужен сидированию и тестам.
func (v *BcryptVerifier) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("generate hash: %w", err)
	}
	return string(hashed), nil
}
