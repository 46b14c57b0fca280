package authgate

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync"

	"github.com/e202/authgate/session"
	"github.com/e202/authgate/token"
)

// roleUser is the role claim stamped into every access token. The engine has
// no role hierarchy; the claim exists so transports can build a principal
// without a store round trip.
const roleUser = "user"

// Engine is the authentication core: token lifecycle, session registry, and
// the OTP → verification-token exchange. Construct one with [Builder.Build];
// it is safe for concurrent use.
type Engine struct {
	config   Config
	accounts AccountProvider
	mailer   Mailer
	hasher   Hasher
	logger   *slog.Logger

	codec         *token.Codec
	sessions      *session.Registry
	otps          *secretStore
	verifications *secretStore

	emailTmpl *template.Template

	// logoMu guards the compute-once cell for the resized logo. Late readers
	// always re-read logoBytes under the lock, never a stale local copy.
	logoMu    sync.Mutex
	logoBytes []byte
}

// Login verifies the account's credentials, mints an access token, and opens
// a session by persisting a fresh refresh record under the account ID. Any
// prior record for the account is overwritten. The refresh token itself never
// leaves the server.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	l := e.logger.With("op", "login")

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Deleted {
		return nil, ErrAccountNotFound
	}

	ok, err := e.hasher.Verify(pass, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		l.Warn("password mismatch", "account_id", account.ID)
		return nil, ErrInvalidCredentials
	}

	accessToken, err := e.codec.Mint(account.ID, roleUser, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := e.codec.Mint(account.Email, "", e.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Open(ctx, account.ID, refreshToken, e.config.Token.RefreshTTL); err != nil {
		return nil, err
	}

	l.Info("session opened", "account_id", account.ID)
	return &LoginResult{
		AccountID:   account.ID,
		AccessToken: accessToken,
	}, nil
}

// Authenticate runs the per-request authentication state machine over a
// bearer access token.
//
// A valid token yields a principal directly. A token invalid for any reason
// other than expiry yields [ErrUnauthenticated]. An expired-but-correctly-
// signed token enters the renewal sub-flow: the subject recovered from the
// expired claims must hold a live, verifiable refresh record, in which case a
// brand-new access token is minted and returned in RenewedToken for the
// transport to surface to the client; otherwise [ErrSessionExpired].
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := e.codec.Verify(accessToken)
	if err == nil {
		return &AuthResult{
			AccountID: claims.Subject,
			Role:      claims.Role,
		}, nil
	}

	if !errors.Is(err, token.ErrExpired) {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	// Expiry is the only defect; the signature already verified, so the
	// subject in the expired claims is trustworthy.
	subject := claims.Subject

	refreshToken, err := e.sessions.Token(ctx, subject)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			e.logger.Warn("renewal rejected, no live session", "op", "authenticate", "account_id", subject)
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	if _, err := e.codec.Verify(refreshToken); err != nil {
		e.logger.Warn("renewal rejected, refresh token invalid", "op", "authenticate", "account_id", subject)
		return nil, ErrSessionExpired
	}

	renewed, err := e.codec.Mint(subject, claims.Role, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	e.logger.Info("access token renewed", "op", "authenticate", "account_id", subject)
	return &AuthResult{
		AccountID:    subject,
		Role:         claims.Role,
		RenewedToken: renewed,
	}, nil
}

// Refresh is the explicit rotation endpoint: given a possibly-expired access
// token it mints a new one when the subject's session is live, else returns
// [ErrSessionExpired]. It is the renewal sub-flow of [Engine.Authenticate]
// exposed as a standalone call for clients that rotate proactively.
func (e *Engine) Refresh(ctx context.Context, accessToken string) (string, error) {
	claims, err := e.codec.Parse(accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	live, err := e.sessions.IsLive(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if !live {
		return "", ErrSessionExpired
	}

	role := claims.Role
	if role == "" {
		role = roleUser
	}
	return e.codec.Mint(claims.Subject, role, e.config.Token.AccessTTL)
}

// Logout closes the subject's session. The access token only needs to parse;
// logging out with an expired token is allowed, and closing an already-closed
// session is a no-op.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	claims, err := e.codec.Parse(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if err := e.sessions.Close(ctx, claims.Subject); err != nil {
		return err
	}

	e.logger.Info("session closed", "op", "logout", "account_id", claims.Subject)
	return nil
}

// DeleteAccount closes the subject's session and soft-deletes the account.
func (e *Engine) DeleteAccount(ctx context.Context, accessToken string) error {
	claims, err := e.codec.Parse(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	account, err := e.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if err := e.sessions.Close(ctx, account.ID); err != nil {
		return err
	}
	if err := e.accounts.SoftDelete(ctx, account.ID); err != nil {
		return err
	}

	e.logger.Info("account deleted", "op", "delete_account", "account_id", account.ID)
	return nil
}
