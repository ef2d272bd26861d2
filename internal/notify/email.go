package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// EmailConfig holds SMTP settings and the fixed recipient lists.
type EmailConfig struct {
	Host         string
	Port         int
	From         string
	Password     string // empty with Host "localhost" selects relay mode
	To           []string
	Cc           []string
	Bcc          []string
	Timeout      time.Duration
	MaxPerSecond float64 // 0 means unthrottled
}

// Validate checks the settings needed to send anything.
func (c EmailConfig) Validate() error {
	var problems []string
	if c.Host == "" {
		problems = append(problems, "SMTP_SERVER is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, "SMTP_PORT must be 1-65535")
	}
	if c.From == "" {
		problems = append(problems, "EMAIL_SENDER is required")
	}
	if len(c.To) == 0 {
		problems = append(problems, "at least one EMAIL_RECIPIENTS address is required")
	}
	if ModeFor(c) == ModeAuthenticated && c.Password == "" {
		problems = append(problems, "EMAIL_PASSWORD is required for a non-local SMTP server")
	}
	if c.MaxPerSecond < 0 {
		problems = append(problems, "EMAIL_MAX_PER_SECOND must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid email config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Envelope is every RCPT TO address: To, then Cc, then Bcc.
func (c EmailConfig) Envelope() []string {
	out := make([]string, 0, len(c.To)+len(c.Cc)+len(c.Bcc))
	out = append(out, c.To...)
	out = append(out, c.Cc...)
	out = append(out, c.Bcc...)
	return out
}

// Mode is the SMTP transport style.
type Mode int

const (
	// ModeRelay is plain SMTP to a local relay: no TLS, no auth.
	ModeRelay Mode = iota
	// ModeAuthenticated requires STARTTLS and logs in as the sender.
	ModeAuthenticated
)

func (m Mode) String() string {
	if m == ModeRelay {
		return "relay"
	}
	return "authenticated"
}

// ModeFor picks relay mode only for host "localhost" without a password.
func ModeFor(c EmailConfig) Mode {
	if strings.EqualFold(c.Host, "localhost") && c.Password == "" {
		return ModeRelay
	}
	return ModeAuthenticated
}

// Message is a rendered email ready for the wire.
type Message struct {
	Subject string
	Plain   string
	HTML    string
}

// Mailer delivers one message to the configured recipients.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through net/smtp in relay or authenticated mode.
type SMTPMailer struct {
	cfg EmailConfig
	tls *tls.Config
	now func() time.Time
}

func NewSMTPMailer(cfg EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg: cfg,
		tls: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		now: time.Now,
	}
}

func (m *SMTPMailer) Mode() Mode { return ModeFor(m.cfg) }

// Send opens one connection per message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	body, err := m.build(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if m.Mode() == ModeAuthenticated {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("server does not offer STARTTLS; refusing to send credentials")
		}
		if err := c.StartTLS(m.tls); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
		auth := smtp.PlainAuth("", senderAddress(m.cfg.From), m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := c.Mail(senderAddress(m.cfg.From)); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range m.cfg.Envelope() {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return c.Quit()
}

// build renders headers and a multipart/alternative body. Bcc recipients
// only ever appear in the envelope.
func (m *SMTPMailer) build(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	h("From", m.cfg.From)
	h("To", strings.Join(m.cfg.To, ", "))
	if len(m.cfg.Cc) > 0 {
		h("Cc", strings.Join(m.cfg.Cc, ", "))
	}
	h("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	h("Date", m.now().Format(time.RFC1123Z))
	h("MIME-Version", "1.0")
	h("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	for _, part := range []struct{ ctype, text string }{
		{"text/plain; charset=utf-8", msg.Plain},
		{"text/html; charset=utf-8", msg.HTML},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("mime part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.text)); err != nil {
			return nil, fmt.Errorf("encode part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mime close: %w", err)
	}
	return buf.Bytes(), nil
}

// senderAddress strips a display name: "Monitoring <mon@x>" -> "mon@x".
func senderAddress(from string) string {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	return from
}
