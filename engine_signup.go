package authgate

import "context"

// Signup creates an account for an email whose ownership was proven by the
// verification flow. The verification token is consumed before the insert, so
// a second signup attempt with the same token fails even if the first insert
// errored.
func (e *Engine) Signup(ctx context.Context, email, pass, verificationToken string) error {
	existing, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}

	if err := e.consumeVerificationToken(ctx, email, verificationToken); err != nil {
		return err
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return err
	}

	account := &Account{
		Email:        email,
		Username:     email,
		PasswordHash: hash,
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		return err
	}

	e.logger.Info("account created", "op", "signup", "account_id", account.ID)
	return nil
}

// CheckEmail reports whether the email is already in use. Public endpoint;
// requires no verification.
func (e *Engine) CheckEmail(ctx context.Context, email string) (bool, error) {
	existing, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}
