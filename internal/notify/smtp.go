package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/marcin-skalski/seatwatch/internal/config"
)

const smtpTimeout = 30 * time.Second

// SMTP sends one message per recipient over a single connection so that
// recipients never see each other's addresses.
type SMTP struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTP(cfg config.SMTPConfig, logger *slog.Logger) *SMTP {
	return &SMTP{cfg: cfg, logger: logger}
}

func (s *SMTP) Notify(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}

	msgs := make([]*mail.Msg, 0, len(recipients))
	for _, rcpt := range recipients {
		msg, err := s.message(rcpt, subject, body)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, msgs...); err != nil {
		return fmt.Errorf("send %q to %d recipients: %w", subject, len(recipients), err)
	}
	s.logger.Debug("mail sent", "subject", subject, "recipients", len(recipients), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *SMTP) message(rcpt, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, fmt.Errorf("set from %q: %w", s.cfg.From, err)
	}
	if err := msg.To(rcpt); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", rcpt, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(smtpTimeout),
	}
	if s.cfg.SSL != nil && *s.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
