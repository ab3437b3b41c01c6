package emailsvc

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/quizmaster/backend/core"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer     dialer
	from       mail.Address
	subjPrefix string
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) (core.EmailService, error) {
	from, err := conf.DefaultFromEmail()
	if err != nil {
		return nil, err
	}
	mc := conf.Mail
	return &smtpService{
		dialer:     gomail.NewDialer(mc.SMTPHost, mc.SMTPPort, mc.SMTPUsername, mc.SMTPPassword),
		from:       from,
		subjPrefix: "[" + conf.AppName + "] ",
	}, nil
}

func (svc *smtpService) SendMessages(ctx context.Context, messages ...*core.EmailMessage) error {
	gms := make([]*gomail.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.HasRecipients() && msg.HasContent() {
			gms = append(gms, svc.prepare(*msg))
		}
	}
	if len(gms) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := svc.dialer.DialAndSend(gms...); err != nil {
		return errors.Wrap(err, "sending email over smtp")
	}
	return nil
}

func (svc *smtpService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", svc.from.Address, svc.from.Name)
	m.SetHeader("To", svc.formatAddresses(m, msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", svc.formatAddresses(m, msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", svc.formatAddresses(m, msg.Bcc)...)
	}
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	switch {
	case msg.TextContent != "" && msg.HTMLContent != "":
		m.SetBody("text/plain", msg.TextContent)
		m.AddAlternative("text/html", msg.HTMLContent)
	case msg.HTMLContent != "":
		m.SetBody("text/html", msg.HTMLContent)
	default:
		m.SetBody("text/plain", msg.TextContent)
	}
	return m
}

func (svc *smtpService) formatAddresses(m *gomail.Message, addrs []mail.Address) []string {
	formatted := make([]string, 0, len(addrs))
	for _, a := range addrs {
		formatted = append(formatted, m.FormatAddress(a.Address, a.Name))
	}
	return formatted
}
