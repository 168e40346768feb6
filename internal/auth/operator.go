package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// OperatorAuthenticator checks gate staff credentials against a configured
// login and bcrypt hash.
type OperatorAuthenticator struct {
	login        string
	passwordHash []byte
}

func NewOperatorAuthenticator(login, passwordHash string) *OperatorAuthenticator {
	return &OperatorAuthenticator{
		login:        strings.TrimSpace(login),
		passwordHash: []byte(strings.TrimSpace(passwordHash)),
	}
}

// Authenticate returns the operator id on success.
func (a *OperatorAuthenticator) Authenticate(login, password string) (string, error) {
	if a == nil || a.login == "" || len(a.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}
	login = strings.TrimSpace(login)
	loginOK := subtle.ConstantTimeCompare([]byte(login), []byte(a.login)) == 1
	// bcrypt runs on every attempt, matched login or not.
	pwErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !loginOK || pwErr != nil {
		return "", ErrInvalidCredentials
	}
	return a.login, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
