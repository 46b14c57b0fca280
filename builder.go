package authgate

import (
	"errors"
	"html/template"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/e202/authgate/password"
	"github.com/e202/authgate/session"
	"github.com/e202/authgate/token"
)

// Builder composes an [Engine] from explicit dependencies. All wiring happens
// here at process start; no component reaches for ambient globals afterwards.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts AccountProvider
	mailer   Mailer
	hasher   Hasher
	logger   *slog.Logger

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Zero-valued fields fall back
// to defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the credential-store client shared by the session registry
// and the verification flow.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccounts sets the external account storage.
func (b *Builder) WithAccounts(accounts AccountProvider) *Builder {
	b.accounts = accounts
	return b
}

// WithMailer sets the outbound email transport.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithHasher overrides the password hasher. Defaults to argon2id with the
// package defaults.
func (b *Builder) WithHasher(hasher Hasher) *Builder {
	b.hasher = hasher
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the engine. A Builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	cfg.applyDefaults()

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		var err error
		hasher, err = password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := token.NewCodec(cfg.Token.SigningSecret, cfg.Token.Issuer)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("otp-email").Parse(otpEmailTemplate)
	if err != nil {
		return nil, err
	}

	b.built = true

	return &Engine{
		config:        cfg,
		accounts:      b.accounts,
		mailer:        b.mailer,
		hasher:        hasher,
		logger:        logger,
		codec:         codec,
		sessions:      session.NewRegistry(b.redis, cfg.Session.RedisPrefix),
		otps:          newSecretStore(b.redis, cfg.OTP.KeyPrefix),
		verifications: newSecretStore(b.redis, cfg.OTP.VerificationKeyPrefix),
		emailTmpl:     tmpl,
	}, nil
}
