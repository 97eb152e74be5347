package worker

import (
	"context"

	"github.com/marcin-skalski/seatwatch/internal/notify"
	"github.com/marcin-skalski/seatwatch/internal/telemetry"
)

// alert sends body to the item's recipients. Delivery failures are logged
// and not retried; the snapshot keeps the new reading either way.
func (p *Poller) alert(ctx context.Context, body string) {
	subject := notify.AlertSubject(p.item.Name)

	err := p.notifier.Notify(ctx, p.item.Recipients, subject, body)
	p.metrics.RecordNotification(ctx, telemetry.KindAlert, err == nil)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("alert delivery failed", "recipients", len(p.item.Recipients), "err", err)
		}
		return
	}

	p.publish(func(s *Status) { s.Alerts++ })
	p.logger.Info("alert sent", "recipients", len(p.item.Recipients), "body", body)
}
