package notification

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/notification/inbound"
	"github.com/bloodsync/bloodsync/internal/notification/outbound/db"
	"github.com/bloodsync/bloodsync/internal/notification/outbound/email"
	"github.com/bloodsync/bloodsync/internal/notification/usecase"
	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/goroutine"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/mail"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	DBConn     *pgxpool.Pool              `validate:"required"`
	Messaging  messaging.Consumer         `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`
}

// New wires the email notifications and starts their consumers on dep.Ctx.
func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	dbNotif := db.NewDB(dep.DBConn, dep.Instrument)
	repoMail := email.New(dep.Mail, dep.Config.GetString("modules.notification.from"), dep.Instrument)

	uc := usecase.NewNotification(usecase.Dependency{
		RepoDB:     dbNotif,
		RepoMail:   repoMail,
		Config:     dep.Config,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
	})

	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	return nil
}
