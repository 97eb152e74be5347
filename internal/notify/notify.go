// Package notify delivers seat alerts and welcome notices to recipients.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marcin-skalski/seatwatch/internal/store"
)

// Notifier delivers one message to every recipient. Implementations are
// safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}

const WelcomeSubject = "Welcome to the Course Monitor"

const welcomeTemplate = `Welcome to the course monitor!

Your deactivation code is: %s

If you ever want to stop receiving alerts, please go to %s and enter this code to deactivate your email.

Alerts are sent whenever the number of available seats in one of your courses changes.

Good luck getting into classes!
`

func AlertSubject(courseName string) string {
	return fmt.Sprintf("[Course Monitor] %s Seating Changes", courseName)
}

func WelcomeBody(code, siteURL string) string {
	return fmt.Sprintf(welcomeTemplate, code, siteURL)
}

// Log writes notifications to the logger instead of sending them.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, recipients []string, subject, body string) error {
	l.logger.Info("notification (dry run)",
		"to", strings.Join(recipients, ","),
		"subject", subject,
		"body", body,
	)
	return nil
}

// Filtered drops recipients that have since deactivated every subscription.
type Filtered struct {
	next   Notifier
	active store.Suppressions
	logger *slog.Logger
}

func NewFiltered(next Notifier, active store.Suppressions, logger *slog.Logger) *Filtered {
	return &Filtered{next: next, active: active, logger: logger}
}

func (f *Filtered) Notify(ctx context.Context, recipients []string, subject, body string) error {
	allowed, err := f.active.ActiveAddresses(ctx, recipients)
	if err != nil {
		return fmt.Errorf("check deactivated recipients: %w", err)
	}
	if dropped := len(recipients) - len(allowed); dropped > 0 {
		f.logger.Debug("dropped deactivated recipients", "count", dropped, "subject", subject)
	}
	if len(allowed) == 0 {
		return nil
	}
	return f.next.Notify(ctx, allowed, subject, body)
}
