package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GeneratePasscode returns a zero-padded numeric passcode with the requested
// number of digits, uniformly distributed over the full range. Rejection
// sampling avoids the modulo bias a plain reduction would introduce.
func GeneratePasscode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", errors.New("crypto: passcode digits must be between 1 and 18")
	}

	bound := uint64(math.Pow10(digits))
	limit := math.MaxUint64 - math.MaxUint64%bound

	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		value := binary.BigEndian.Uint64(buf[:])
		if value >= limit {
			continue
		}
		return fmt.Sprintf("%0*d", digits, value%bound), nil
	}
}

// ConstantTimeEquals reports whether two codes match without leaking where
// they diverge. Length is checked first; equal-length inputs are compared in
// constant time.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
