// Package token signs and verifies the compact, self-contained credentials
// used by the engine. Tokens are HS256 over a process-wide secret injected at
// construction; verification is a pure function of the input and that secret.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired marks a token whose signature verified but whose expiry has
// passed. Verify still returns the parsed claims alongside it because the
// renewal flow needs the subject of an expired token.
var ErrExpired = errors.New("token expired")

// ErrMalformed marks structurally corrupt input, an unexpected signing
// algorithm, or a signature that does not verify. No claims are returned.
var ErrMalformed = errors.New("token malformed")

// Claims are the engine's access- and refresh-token claims.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Codec mints and verifies tokens. A Codec is immutable and safe for
// concurrent use.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec returns a Codec signing with secret. secret must be at least 32
// bytes; issuer is optional and, when set, stamped into and required of every
// token.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	return &Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
	}, nil
}

// Mint produces a signed token with issuedAt=now and expiresAt=now+ttl. role
// may be empty (refresh tokens carry none).
func (c *Codec) Mint(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature and expiry. On success it returns the claims with a
// nil error. If the only defect is expiry it returns the claims together with
// an error matching [ErrExpired]; any other defect yields (nil, [ErrMalformed]).
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr, false)
	if err == nil {
		return claims, nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		// Expiry is the sole validation failure here: the signature already
		// verified, so the claims are trustworthy for the renewal path.
		expired, perr := c.parse(tokenStr, true)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, perr)
		}
		return expired, fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
}

// Parse returns the claims regardless of expiry. It fails only on structural
// or signature corruption.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, ignoreExpiry bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ignoreExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	}
	if c.issuer != "" && !ignoreExpiry {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
