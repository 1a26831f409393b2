package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	otpMin   = 100000
	otpRange = 900000
)

// NewOTP returns a uniformly random six-digit code in 100000..999999.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}
