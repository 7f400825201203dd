package notification

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"scholarship-service/internal/config"
	"scholarship-service/internal/messaging"
)

// SMTPSender delivers messages straight to an SMTP relay.
type SMTPSender struct {
	addr string
	host string
	auth smtp.Auth
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	s := &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(s.addr, s.auth, msg.From, []string{msg.To}, buildMIME(msg))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const mimeBoundary = "scholarship-notification-boundary"

func buildMIME(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", mimeBoundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", mimeBoundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

// BrokerSender publishes the rendered message for an external mail worker.
type BrokerSender struct {
	publisher messaging.Publisher
	subject   string
}

func NewBrokerSender(publisher messaging.Publisher, subject string) *BrokerSender {
	return &BrokerSender{publisher: publisher, subject: subject}
}

func (s *BrokerSender) Name() string { return "broker:" + s.publisher.Transport() }

func (s *BrokerSender) Send(ctx context.Context, msg Message) error {
	return s.publisher.Publish(ctx, s.subject, msg.To, msg)
}

// LogSender only logs. It is the default for local runs.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email", "to", msg.To, "subject", msg.Subject, "template", msg.Template)
	return nil
}
