package authgate

import "context"

// Account is the external account record referenced by the engine. The engine
// never owns account persistence; it reaches it only through [AccountProvider].
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Deleted      bool
}

// AccountProvider is the interface callers implement to wire their account
// database into the engine. Lookups return (nil, nil) for absence; an error
// means the backend itself failed.
type AccountProvider interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	UpdatePasswordHash(ctx context.Context, id, newHash string) error
	SoftDelete(ctx context.Context, id string) error
}

// Hasher is the opaque one-way credential capability. [password.Argon2]
// satisfies it; any PHC-style hasher will do.
type Hasher interface {
	Hash(raw string) (string, error)
	Verify(raw, encoded string) (bool, error)
}

// InlineAsset is an inline MIME part referenced from an HTML body by
// Content-ID (cid: URL).
type InlineAsset struct {
	CID         string
	ContentType string
	Content     []byte
}

// Mailer delivers a rendered HTML message. Implementations must treat a
// returned error as a delivery failure; the engine maps it to
// [ErrEmailSendFailed] without rolling back stored state.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, inline []InlineAsset) error
}

// LoginResult is returned by [Engine.Login]. Only the access token leaves the
// server; the refresh credential lives exclusively in the session registry.
type LoginResult struct {
	AccountID   string
	AccessToken string
}

// AuthResult is the outcome of the request-authentication state machine.
// RenewedToken is non-empty when the presented token was expired and a fresh
// one was minted against a live session; transports surface it to the client
// in a response header.
type AuthResult struct {
	AccountID    string
	Role         string
	RenewedToken string
}
