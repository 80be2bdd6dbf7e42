package usecase

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/mail"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.New("email").Option("missingkey=zero").ParseFS(templateFS, "templates/*.html"))

var subjects = map[entity.TriggerKey]string{
	entity.TriggerKeyAccountVerify:   "Verify your BloodSync account",
	entity.TriggerKeyResetCode:       "Your BloodSync password reset code",
	entity.TriggerKeyPasswordChanged: "Your BloodSync password was changed",
	entity.TriggerKeyAccountApproved: "Your BloodSync account is approved",
	entity.TriggerKeyAccountRejected: "Your BloodSync registration was not approved",
	entity.TriggerKeyAccountRevoked:  "Your BloodSync access was revoked",
}

type repoDB interface {
	CreateDelivery(ctx context.Context, d entity.CreateDelivery) error
	UpdateDeliveryStatus(ctx context.Context, u entity.UpdateDelivery) error
}

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Usecase struct {
	repoDB    repoDB
	repoMail  repoMail
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoDB     repoDB
	RepoMail   repoMail
	Config     config.Config
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		repoMail:  dep.RepoMail,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

func (s *Usecase) render(tk entity.TriggerKey, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, tk.String(), data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Usecase) baseEmailTemplateData() map[string]any {
	name := s.cfg.GetString("app.name")
	if name == "" {
		name = "BloodSync"
	}
	return map[string]any{
		"app_name":      name,
		"support_email": s.cfg.GetString("modules.notification.support_email"),
		"login_url":     s.cfg.GetString("app.web") + "/login",
		"year":          s.clock.Now().Format("2006"),
	}
}
