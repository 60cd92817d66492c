package auth

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	OTPLifetime = 10 * time.Minute
	otpIssuer   = "HR Portal"
)

// OTPIssuer derives one-time email verification codes from a per-user
// secret and the instant the code was issued. Only the secret and the issue
// time are persisted.
type OTPIssuer struct {
	Lifetime time.Duration
}

func NewOTPIssuer() OTPIssuer {
	return OTPIssuer{Lifetime: OTPLifetime}
}

func (o OTPIssuer) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(o.Lifetime / time.Second),
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (o OTPIssuer) NewSecret(email string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: strings.ToLower(strings.TrimSpace(email)),
		Period:      uint(o.Lifetime / time.Second),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

func (o OTPIssuer) Code(secret string, issuedAt time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, issuedAt, o.opts())
}

func (o OTPIssuer) Expired(issuedAt, now time.Time) bool {
	return now.After(issuedAt.Add(o.Lifetime))
}

// Verify checks code against the code issued at issuedAt.
func (o OTPIssuer) Verify(code, secret string, issuedAt time.Time) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, issuedAt, o.opts())
	return err == nil && ok
}
