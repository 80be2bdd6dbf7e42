package entity

import (
	"time"

	"github.com/bloodsync/bloodsync/internal/pkg/valueobject"
)

type CreateDelivery struct {
	ID         int64
	UserID     int64
	TriggerKey TriggerKey
	Channel    Channel
	Recipient  string
	Subject    string
	Status     DeliveryStatus
	Data       valueobject.JSONMap
}

type UpdateDelivery struct {
	ID               int64
	Status           DeliveryStatus
	ProviderResponse valueobject.JSONMap
	NextRetryAt      *time.Time
}
