package domain

import "time"

// Verification record types.
const (
	VerificationOTP      = "otp"
	VerificationVerified = "verified"
)

// Verification stores an OTP code or the verified flag for an email.
// PK: email, SK: type ("otp" | "verified").
// ExpiresAt is a Unix timestamp in milliseconds; zero means no expiry.
// TTL is the same instant rounded up to whole seconds for DynamoDB's TTL sweeper.
type Verification struct {
	Email     string `json:"email" dynamodbav:"email"`
	Type      string `json:"type" dynamodbav:"type"`
	Code      string `json:"-" dynamodbav:"code,omitempty"`
	Attempts  int    `json:"attempts" dynamodbav:"attempts"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at_ms,omitempty"`
	TTL       int64  `json:"-" dynamodbav:"expires_at,omitempty"`
}

// ExpiryAt returns the millisecond expiry for a record that lives for ttl from now.
func ExpiryAt(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).UnixMilli()
}

// Expired reports whether the record is past its expiry at now.
func (v *Verification) Expired(now time.Time) bool {
	return v.ExpiresAt != 0 && now.UnixMilli() > v.ExpiresAt
}

// TTLSeconds rounds ExpiresAt up to a whole Unix second, so the sweeper never
// removes a record before it has expired.
func (v *Verification) TTLSeconds() int64 {
	if v.ExpiresAt == 0 {
		return 0
	}
	return (v.ExpiresAt + 999) / 1000
}
