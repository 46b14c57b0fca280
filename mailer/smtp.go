// Package mailer delivers engine emails. The SMTP implementation builds a
// multipart/related MIME message so inline assets (the resized logo) render
// inside the HTML body; the log implementation is for development wiring.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/e202/authgate"
)

// SMTP sends mail through a single relay with PLAIN auth. Safe for concurrent
// use; net/smtp opens a fresh connection per message.
type SMTP struct {
	addr string // host:port
	host string
	from string
	auth smtp.Auth
}

// NewSMTP returns a mailer relaying through addr ("host:port"). username may
// be empty for unauthenticated relays.
func NewSMTP(addr, host, from, username, pass string) *SMTP {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, pass, host)
	}
	return &SMTP{
		addr: addr,
		host: host,
		from: from,
		auth: auth,
	}
}

// Send builds the MIME message and hands it to the relay.
func (m *SMTP) Send(ctx context.Context, to, subject, htmlBody string, inline []authgate.InlineAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := BuildMessage(m.from, to, subject, htmlBody, inline)
	if err != nil {
		return err
	}

	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg)
}

// BuildMessage assembles an RFC 2387 multipart/related message: the HTML body
// first, then each inline asset as a base64 part addressable by cid.
func BuildMessage(from, to, subject, htmlBody string, inline []authgate.InlineAsset) ([]byte, error) {
	var buf bytes.Buffer

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", `text/html; charset="UTF-8"`)
	part, err := writer.CreatePart(htmlHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	for _, asset := range inline {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", asset.ContentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-ID", "<"+asset.CID+">")
		header.Set("Content-Disposition", `inline; filename="`+asset.CID+`"`)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, asset.Content); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%q; type=\"text/html\"\r\n", writer.Boundary())
	fmt.Fprintf(&buf, "\r\n")
	buf.Write(body.Bytes())

	return buf.Bytes(), nil
}

// base64LineLength is the RFC 2045 maximum for encoded body lines.
const base64LineLength = 76

// writeBase64 emits content as CRLF-separated base64 lines no longer than 76
// characters, so strict relays (998-octet SMTP line cap) accept the message.
func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 0 {
		n := base64LineLength
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := io.WriteString(w, encoded[:n]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

// Log is a Mailer that only logs, for local development without a relay.
type Log struct {
	Logger *slog.Logger
}

// Send logs the message metadata and drops the body.
func (m *Log) Send(ctx context.Context, to, subject, htmlBody string, inline []authgate.InlineAsset) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail suppressed",
		"to", to,
		"subject", subject,
		"body_bytes", len(htmlBody),
		"inline_assets", len(inline),
	)
	return nil
}
