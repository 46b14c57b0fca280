package authgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/e202/authgate/internal"
)

// logoCID is the Content-ID under which the logo is inlined; the email
// template references it as cid:emailLogo.
const logoCID = "emailLogo"

// otpEmailTemplate renders the one-time-code email body. Parsed once at
// Build.
const otpEmailTemplate = `<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #222;">
    {{if .LogoCID}}<img src="cid:{{.LogoCID}}" alt="logo" width="160" height="160" />{{end}}
    <p>Your verification code is:</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
    <p>The code is valid for {{.ExpireMinutes}} minutes.</p>
    <p>If you did not request a code, you can ignore this email.</p>
  </body>
</html>
`

type otpEmailParams struct {
	Code          string
	ExpireMinutes int
	LogoCID       string
}

// SendCode generates a fresh one-time code for the email, stores it
// (overwriting any pending code), and hands the rendered message to the
// mailer. A mailer failure surfaces as [ErrEmailSendFailed] without rolling
// back the stored code: the recipient cannot redeem a code they never
// received, so the stale record simply ages out.
func (e *Engine) SendCode(ctx context.Context, email string) error {
	l := e.logger.With("op", "send_code")

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	if err := e.otps.Save(ctx, email, code, e.config.OTP.TTL); err != nil {
		return err
	}

	assets := e.inlineAssets(l)
	body, err := e.renderOTPEmail(code, assets)
	if err != nil {
		return err
	}

	if err := e.mailer.Send(ctx, email, e.config.Mail.Subject, body, assets); err != nil {
		l.Warn("delivery failed", "error", err)
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	l.Info("code sent")
	return nil
}

// VerifyCode redeems a pending one-time code. On a match the code is deleted
// atomically and a single-use verification token is minted and stored under
// the email with its own TTL; the opaque token string is returned for the
// client to present to a sensitive mutation. A mismatch leaves the code in
// place so a correct retry remains possible until its TTL.
func (e *Engine) VerifyCode(ctx context.Context, email, code string) (string, error) {
	if err := e.otps.Consume(ctx, email, code); err != nil {
		switch {
		case errors.Is(err, errSecretNotFound):
			return "", ErrOTPExpired
		case errors.Is(err, errSecretMismatch):
			return "", ErrOTPMismatch
		default:
			return "", err
		}
	}

	verificationToken := internal.NewVerificationToken()
	if err := e.verifications.Save(ctx, email, verificationToken, e.config.OTP.VerificationTTL); err != nil {
		return "", err
	}

	e.logger.Info("code verified", "op", "verify_code")
	return verificationToken, nil
}

// consumeVerificationToken redeems the second-stage secret exactly once.
// Sensitive mutations (signup, password change/reset) call it before touching
// account state.
func (e *Engine) consumeVerificationToken(ctx context.Context, email, presented string) error {
	err := e.verifications.Consume(ctx, email, presented)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errSecretNotFound):
		return ErrVerificationTokenExpired
	case errors.Is(err, errSecretMismatch):
		return ErrVerificationTokenMismatch
	default:
		return err
	}
}

func (e *Engine) renderOTPEmail(code string, assets []InlineAsset) (string, error) {
	params := otpEmailParams{
		Code:          code,
		ExpireMinutes: int(e.config.OTP.TTL.Minutes()),
	}
	if len(assets) > 0 {
		params.LogoCID = logoCID
	}

	var buf strings.Builder
	if err := e.emailTmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}
	return buf.String(), nil
}

func (e *Engine) inlineAssets(l *slog.Logger) []InlineAsset {
	if len(e.config.Mail.LogoPNG) == 0 {
		return nil
	}

	logo, err := e.logoAsset()
	if err != nil {
		// Undersized mail beats no mail: send the raw image instead.
		l.Warn("logo resize failed, inlining original", "error", err)
		logo = e.config.Mail.LogoPNG
	}

	return []InlineAsset{{
		CID:         logoCID,
		ContentType: "image/png",
		Content:     logo,
	}}
}

// logoAsset returns the resized logo bytes, computing them at most once for
// the process lifetime. The mutex-guarded cell means concurrent first callers
// may all find the cache empty, but only one performs the resize and every
// later reader observes the same bytes.
func (e *Engine) logoAsset() ([]byte, error) {
	e.logoMu.Lock()
	defer e.logoMu.Unlock()

	if e.logoBytes != nil {
		return e.logoBytes, nil
	}

	resized, err := resizeSquarePNG(e.config.Mail.LogoPNG, e.config.Mail.LogoTargetSize)
	if err != nil {
		return nil, err
	}

	e.logoBytes = resized
	return e.logoBytes, nil
}

func resizeSquarePNG(raw []byte, size int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
