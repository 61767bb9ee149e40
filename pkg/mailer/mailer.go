// Package mailer composes plain-text mail and hands it to an SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/pkg/config"
)

// Email is a single plain-text message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers an Email.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// NewSender picks the SMTP sender when the relay is configured and a logging
// sender otherwise.
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.MailConfigured() {
		return &SMTPSender{cfg: cfg}
	}
	return NewLogSender(logger)
}

// NewLogSender returns a Sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Email) error {
	if s.logger != nil {
		s.logger.Info("mail delivery disabled, logging message",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
		)
	}
	return nil
}

// SMTPSender relays mail through an authenticated SMTP server.
type SMTPSender struct {
	cfg config.MailConfig
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Email) error {
	if len(msg.To) == 0 {
		return nil
	}
	raw, err := Compose(s.cfg.From, msg, time.Now())
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg.To, raw)
}

func (s *SMTPSender) deliver(ctx context.Context, rcpt []string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Port 465 speaks TLS from the first byte; other ports upgrade via STARTTLS.
	if s.cfg.UseTLS && s.cfg.Port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS && s.cfg.Port != 465 {
		ok, _ := client.Extension("STARTTLS")
		if !ok {
			return errors.New("smtp server does not offer STARTTLS")
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	for _, r := range rcpt {
		if err := client.Rcpt(strings.TrimSpace(r)); err != nil {
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// Compose renders msg as an RFC 5322 message with a UTF-8 text body.
func Compose(from string, msg Email, now time.Time) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse sender: %w", err)
	}
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: strings.TrimSpace(addr)})
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
