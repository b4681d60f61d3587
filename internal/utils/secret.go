package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost      = 12
	MinSecretLength = 16
)

// HashDeviceSecret hashes the enrollment secret a device presents when it is
// registered. Only the hash is stored.
func HashDeviceSecret(secret string) (string, error) {
	if len(secret) < MinSecretLength {
		return "", fmt.Errorf("device secret must be at least %d characters long", MinSecretLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckDeviceSecret(hashedSecret string, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret))
	return err == nil
}
