package authgate

import (
	"context"
	"fmt"
)

// ChangePassword rotates the credential of the authenticated subject. It
// requires the current password and a live verification token for the
// account's email, issued by [Engine.VerifyCode]. The token is consumed only
// after the current-password check passes.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, current, next, verificationToken string) error {
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

	ok, err := e.hasher.Verify(current, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := e.consumeVerificationToken(ctx, account.Email, verificationToken); err != nil {
		return err
	}

	return e.updateHash(ctx, account.ID, next)
}

// ResetPassword sets a new credential for an account whose owner proved
// control of the email via the verification flow. No session is required.
func (e *Engine) ResetPassword(ctx context.Context, email, next, verificationToken string) error {
	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if err := e.consumeVerificationToken(ctx, email, verificationToken); err != nil {
		return err
	}

	return e.updateHash(ctx, account.ID, next)
}

func (e *Engine) updateHash(ctx context.Context, accountID, next string) error {
	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return err
	}

	e.logger.Info("password updated", "op", "password", "account_id", accountID)
	return nil
}
