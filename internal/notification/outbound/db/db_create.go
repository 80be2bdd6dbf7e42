package db

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
)

const queryCreateDelivery = `INSERT INTO notification_deliveries
	(id, user_id, trigger_key, channel, recipient, subject, status, data)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::jsonb))`

func (s *DB) CreateDelivery(ctx context.Context, d entity.CreateDelivery) (err error) {
	ctx, span := s.startSpan(ctx, "CreateDelivery")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, queryCreateDelivery,
		d.ID, d.UserID, d.TriggerKey.String(), int16(d.Channel), d.Recipient, d.Subject, int16(d.Status), d.Data)
	return s.mapError(err)
}
