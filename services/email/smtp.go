package emailsvc

import (
	"context"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/acadmeter/acadmeter/core"
)

// SMTPService delivers messages through an SMTP relay.
type SMTPService struct {
	dialer     *gomail.Dialer
	from       string
	subjPrefix string
}

var _ core.EmailService = (*SMTPService)(nil)

func NewSMTPService(conf *core.Config) *SMTPService {
	from := conf.DefaultFromEmail()
	return &SMTPService{
		dialer:     gomail.NewDialer(conf.SMTP.Host, conf.SMTP.Port, conf.SMTP.User, conf.SMTP.Password),
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc *SMTPService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", svc.from)
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	addrs := func(field string, list []string) {
		if len(list) > 0 {
			m.SetHeader(field, list...)
		}
	}
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, m.FormatAddress(a.Address, a.Name))
	}
	cc := make([]string, 0, len(msg.Cc))
	for _, a := range msg.Cc {
		cc = append(cc, m.FormatAddress(a.Address, a.Name))
	}
	bcc := make([]string, 0, len(msg.Bcc))
	for _, a := range msg.Bcc {
		bcc = append(bcc, a.Address)
	}
	addrs("To", to)
	addrs("Cc", cc)
	addrs("Bcc", bcc)

	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}
	return m
}

func (svc *SMTPService) SendMessages(ctx context.Context, messages ...*core.EmailMessage) error {
	batch := make([]*gomail.Message, 0, len(messages))
	for _, msg := range messages {
		if err := msg.Render(); err != nil {
			return errors.Wrap(err, "rendering email")
		}
		if msg.HasRecipients() && msg.HasContent() {
			batch = append(batch, svc.prepare(*msg))
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(svc.dialer.DialAndSend(batch...), "sending email")
}
