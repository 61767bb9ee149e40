package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/pkg/mailer"
)

// SentMarker records that a reservation's new-reservation mail went out.
type SentMarker interface {
	MarkNotificationSent(ctx context.Context, id string) error
}

// Recorder observes delivery outcomes.
type Recorder interface {
	RecordNotification(kind string, delivered bool)
}

// Deliverer sends one mail per recipient.
type Deliverer struct {
	sender  mailer.Sender
	marker  SentMarker
	metrics Recorder
	appName string
	logger  *zap.Logger
}

// NewDeliverer constructs a Deliverer. marker and metrics may be nil.
func NewDeliverer(sender mailer.Sender, marker SentMarker, metrics Recorder, appName string, logger *zap.Logger) *Deliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{sender: sender, marker: marker, metrics: metrics, appName: appName, logger: logger}
}

// Deliver sends msg to every recipient. Failures for individual recipients
// do not stop the others; the joined error is returned for logging.
func (d *Deliverer) Deliver(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		d.logger.Debug("notification has no recipients", zap.String("kind", string(msg.Kind)), zap.String("reservation_id", msg.ReservationID))
		return nil
	}

	var errs []error
	delivered := 0
	for _, to := range msg.Recipients {
		if err := d.sender.Send(ctx, msg.Render(d.appName, to)); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
			continue
		}
		delivered++
	}

	if d.metrics != nil {
		d.metrics.RecordNotification(string(msg.Kind), len(errs) == 0)
	}

	if delivered > 0 && msg.Kind == KindNewReservation && d.marker != nil {
		if err := d.marker.MarkNotificationSent(ctx, msg.ReservationID); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	d.logger.Info("notification delivered",
		zap.String("kind", string(msg.Kind)),
		zap.String("reservation_id", msg.ReservationID),
		zap.Int("recipients", delivered),
	)
	return nil
}
