// Package internal holds secret-generation helpers shared by the engine.
package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// NewOTP returns a fixed-length numeric code with uniformly distributed
// digits from crypto/rand.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// NewVerificationToken returns a 32-hex-char opaque secret: a random UUID with
// the dashes stripped.
func NewVerificationToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
