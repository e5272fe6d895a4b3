package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for passcode hashing
// Higher = more secure but slower (range: 4-31, default: 10)
const BcryptCost = 10

// HashPasscode hashes a share passcode with bcrypt.
// An empty passcode yields an empty hash, meaning no protection.
func HashPasscode(passcode string) (string, error) {
	if passcode == "" {
		return "", nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPasscode checks a passcode against a stored hash.
func VerifyPasscode(hash, passcode string) bool {
	// No stored hash means the item is open
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}
