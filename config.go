package authgate

import (
	"errors"
	"time"
)

// Config is the immutable process-wide configuration consumed at startup.
// Build validates it once; components receive what they need explicitly and
// never read ambient state afterwards.
type Config struct {
	Token   TokenConfig
	Session SessionConfig
	OTP     OTPConfig
	Mail    MailConfig
}

// TokenConfig controls the token codec.
type TokenConfig struct {
	// SigningSecret is the symmetric HS256 key shared by access and refresh
	// tokens.
	SigningSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// SessionConfig controls the refresh-record registry.
type SessionConfig struct {
	// RedisPrefix namespaces refresh records; the effective key is
	// prefix + accountID.
	RedisPrefix string
}

// OTPConfig controls the email verification flow.
type OTPConfig struct {
	// Digits is the one-time code length.
	Digits int
	// TTL bounds how long a sent code may be redeemed.
	TTL time.Duration
	// VerificationTTL bounds how long a redeemed code's verification token may
	// gate a sensitive mutation.
	VerificationTTL       time.Duration
	KeyPrefix             string
	VerificationKeyPrefix string
}

// MailConfig controls rendering of the one-time-code email.
type MailConfig struct {
	From    string
	Subject string
	// LogoPNG holds the raw logo image. When set it is resized once to
	// LogoTargetSize and inlined into every code email.
	LogoPNG        []byte
	LogoTargetSize int
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "RT:",
		},
		OTP: OTPConfig{
			Digits:                4,
			TTL:                   3 * time.Minute,
			VerificationTTL:       10 * time.Minute,
			KeyPrefix:             "auth:otp:",
			VerificationKeyPrefix: "auth:verification-token:",
		},
		Mail: MailConfig{
			Subject:        "[E202] Email verification code",
			LogoTargetSize: 160,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Token.SigningSecret != nil {
		out.Token.SigningSecret = append([]byte(nil), cfg.Token.SigningSecret...)
	}
	if cfg.Mail.LogoPNG != nil {
		out.Mail.LogoPNG = append([]byte(nil), cfg.Mail.LogoPNG...)
	}
	return out
}

// Validate rejects configurations the engine cannot run with. Zero durations
// and prefixes fall back to defaults before validation in Build.
func (c *Config) Validate() error {
	if len(c.Token.SigningSecret) < 32 {
		return errors.New("signing secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("invalid access TTL configuration")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("otp digits must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 || c.OTP.VerificationTTL <= 0 {
		return errors.New("invalid otp TTL configuration")
	}
	if c.Mail.LogoTargetSize <= 0 {
		return errors.New("invalid logo target size")
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.Token.AccessTTL == 0 {
		c.Token.AccessTTL = def.Token.AccessTTL
	}
	if c.Token.RefreshTTL == 0 {
		c.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if c.Session.RedisPrefix == "" {
		c.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if c.OTP.Digits == 0 {
		c.OTP.Digits = def.OTP.Digits
	}
	if c.OTP.TTL == 0 {
		c.OTP.TTL = def.OTP.TTL
	}
	if c.OTP.VerificationTTL == 0 {
		c.OTP.VerificationTTL = def.OTP.VerificationTTL
	}
	if c.OTP.KeyPrefix == "" {
		c.OTP.KeyPrefix = def.OTP.KeyPrefix
	}
	if c.OTP.VerificationKeyPrefix == "" {
		c.OTP.VerificationKeyPrefix = def.OTP.VerificationKeyPrefix
	}
	if c.Mail.Subject == "" {
		c.Mail.Subject = def.Mail.Subject
	}
	if c.Mail.LogoTargetSize == 0 {
		c.Mail.LogoTargetSize = def.Mail.LogoTargetSize
	}
}
