package authgate

import (
	"errors"
	"net/http"

	"github.com/e202/authgate/token"
)

var (
	// ErrUnauthenticated is returned when no credential was supplied or the
	// supplied access token carries an invalid signature.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired is returned when an expired access token cannot be
	// silently renewed: the subject has no live refresh record, or the stored
	// refresh token is itself invalid.
	ErrSessionExpired = errors.New("session expired")
	// ErrTokenExpired marks an access token whose signature is valid but whose
	// expiry has passed. Callers entering the renewal flow match on it.
	ErrTokenExpired = token.ErrExpired
	// ErrTokenMalformed is returned when a token is structurally corrupt or
	// signed with the wrong key.
	ErrTokenMalformed = token.ErrMalformed
	// ErrOTPExpired is returned when no one-time code is stored for the email.
	ErrOTPExpired = errors.New("otp expired or not found")
	// ErrOTPMismatch is returned when the presented code does not match the
	// stored one. The stored code survives, so a correct retry remains possible
	// until its TTL.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrVerificationTokenExpired is returned when no verification token is
	// stored for the email.
	ErrVerificationTokenExpired = errors.New("verification token expired or not found")
	// ErrVerificationTokenMismatch is returned when the presented verification
	// token does not match the stored one.
	ErrVerificationTokenMismatch = errors.New("verification token mismatch")
	// ErrEmailSendFailed is returned when outbound delivery fails. The stored
	// OTP is not rolled back.
	ErrEmailSendFailed = errors.New("email send failed")
	// ErrAccountNotFound is returned when no account exists for the identifier
	// or email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned by signup when the email is already in use.
	ErrEmailTaken = errors.New("email already in use")
	// ErrInvalidCredentials is returned when the presented password does not
	// match the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRedisUnavailable marks credential-store connectivity failures. It is
	// infrastructure-fatal and distinct from the domain taxonomy above.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// ErrorCode is the stable machine-readable form of a domain error, suitable
// for transport boundaries.
type ErrorCode struct {
	Status int
	Code   string
}

var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrUnauthenticated, ErrorCode{http.StatusUnauthorized, "AUTH_UNAUTHORIZED"}},
	{ErrSessionExpired, ErrorCode{http.StatusUnauthorized, "E401-003"}},
	{ErrTokenExpired, ErrorCode{http.StatusUnauthorized, "E401-003"}},
	{ErrTokenMalformed, ErrorCode{http.StatusUnauthorized, "E401-002"}},
	{ErrOTPExpired, ErrorCode{http.StatusBadRequest, "E400-004"}},
	{ErrOTPMismatch, ErrorCode{http.StatusBadRequest, "E400-005"}},
	{ErrVerificationTokenExpired, ErrorCode{http.StatusBadRequest, "E400-006"}},
	{ErrVerificationTokenMismatch, ErrorCode{http.StatusBadRequest, "E400-007"}},
	{ErrEmailSendFailed, ErrorCode{http.StatusInternalServerError, "E500-003"}},
	{ErrAccountNotFound, ErrorCode{http.StatusNotFound, "E404-001"}},
	{ErrEmailTaken, ErrorCode{http.StatusConflict, "E409-001"}},
	{ErrInvalidCredentials, ErrorCode{http.StatusUnauthorized, "E401-001"}},
}

// Classify maps err onto its stable code. Unknown errors, including
// ErrRedisUnavailable wraps, collapse to a generic internal error so
// infrastructure detail never leaks to clients.
func Classify(err error) ErrorCode {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ErrorCode{http.StatusInternalServerError, "E500-001"}
}
