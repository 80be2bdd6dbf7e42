package entity

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 2
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	default:
		return "unknown"
	}
}

type DeliveryStatus int16

const (
	DeliveryStatusUnknown    DeliveryStatus = 0
	DeliveryStatusQueued     DeliveryStatus = 1
	DeliveryStatusProcessing DeliveryStatus = 2
	DeliveryStatusSent       DeliveryStatus = 3
	DeliveryStatusFailed     DeliveryStatus = 4
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryStatusQueued:
		return "queued"
	case DeliveryStatusProcessing:
		return "processing"
	case DeliveryStatusSent:
		return "sent"
	case DeliveryStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TriggerKey names the email template a delivery was rendered from.
type TriggerKey string

const (
	TriggerKeyAccountVerify   TriggerKey = "account_verify"
	TriggerKeyResetCode       TriggerKey = "password_reset_code"
	TriggerKeyPasswordChanged TriggerKey = "password_changed"
	TriggerKeyAccountApproved TriggerKey = "account_approved"
	TriggerKeyAccountRejected TriggerKey = "account_rejected"
	TriggerKeyAccountRevoked  TriggerKey = "account_revoked"
)

func (tk TriggerKey) String() string {
	return string(tk)
}
