package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
)

var (
	ErrSMTPHostPortRequired = errors.New("mail: smtp host and port are required")
	ErrNoRecipients         = errors.New("mail: no recipients")
	ErrNoSender             = errors.New("mail: no sender")
)

// SMTPConfig configures SMTP delivery. Auth is skipped when Username is empty.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP delivers through a plain SMTP relay.
type SMTP struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	s := &SMTP{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return s, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" {
		return ErrNoSender
	}

	rcpt := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	rcpt = append(append(append(rcpt, msg.To...), msg.Cc...), msg.Bcc...)
	if len(rcpt) == 0 {
		return ErrNoRecipients
	}

	raw, err := compose(msg)
	if err != nil {
		return err
	}

	return s.send(s.addr, s.auth, msg.From, rcpt, raw)
}

func (*SMTP) Close() error {
	return nil
}

func compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", msg.From)
	header("To", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		header("Cc", strings.Join(msg.Cc, ", "))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("MIME-Version", "1.0")

	if msg.HTMLBody == "" || msg.TextBody == "" {
		ct, body := "text/plain; charset=UTF-8", msg.TextBody
		if msg.HTMLBody != "" {
			ct, body = "text/html; charset=UTF-8", msg.HTMLBody
		}
		header("Content-Type", ct)
		buf.WriteString("\r\n" + body)

		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	for _, p := range []struct{ ct, body string }{
		{"text/plain; charset=UTF-8", msg.TextBody},
		{"text/html; charset=UTF-8", msg.HTMLBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.ct}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	buf.WriteString("\r\n")
	buf.Write(parts.Bytes())

	return buf.Bytes(), nil
}
