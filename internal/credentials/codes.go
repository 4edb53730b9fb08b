package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"regexp"
	"strings"
)

const (
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeDigits  = "0123456789"
)

var familyCodePattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{4}$`)

// GenerateFamilyCode returns a join code of four uppercase letters followed
// by four digits, e.g. "QWER1234"
func GenerateFamilyCode() (string, error) {
	code := make([]byte, 8)
	for i := range code {
		chars := codeLetters
		if i >= 4 {
			chars = codeDigits
		}
		c, err := randomChar(chars)
		if err != nil {
			return "", err
		}
		code[i] = c
	}
	return string(code), nil
}

// NormalizeFamilyCode upper-cases and trims a user-entered code
func NormalizeFamilyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidFamilyCode reports whether code has the join code shape
func ValidFamilyCode(code string) bool {
	return familyCodePattern.MatchString(code)
}

// GenerateShareToken returns a URL-safe random token for public board links
func GenerateShareToken() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// randomChar picks a random byte from chars
func randomChar(chars string) (byte, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
	if err != nil {
		return 0, err
	}
	return chars[num.Int64()], nil
}
