package db

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/jackc/pgx/v5/pgtype"
)

const queryUpdateDeliveryStatus = `UPDATE notification_deliveries
SET status = $2,
	provider_response = COALESCE($3, '{}'::jsonb),
	next_retry_at = $4,
	attempts = attempts + 1,
	updated_at = now()
WHERE id = $1`

func (s *DB) UpdateDeliveryStatus(ctx context.Context, u entity.UpdateDelivery) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateDeliveryStatus")
	defer func() { s.endSpan(span, err) }()

	var next pgtype.Timestamptz
	if u.NextRetryAt != nil {
		next = pgtype.Timestamptz{Time: *u.NextRetryAt, Valid: true}
	}

	tag, err := s.conn.Exec(ctx, queryUpdateDeliveryStatus, u.ID, int16(u.Status), u.ProviderResponse, next)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}
