package emailsvc

import (
	"github.com/pkg/errors"
	gomail "gopkg.in/mail.v2"

	"github.com/trezcool/reportal/core"
)

type smtpService struct {
	dialer     *gomail.Dialer
	from       string
	subjPrefix string
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) core.EmailService {
	from := conf.DefaultFromEmail()
	return &smtpService{
		dialer:     gomail.NewDialer(conf.Email.SMTPHost, conf.Email.SMTPPort, conf.Email.SMTPUser, conf.Email.SMTPPassword),
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) error {
	msgs := make([]*gomail.Message, 0, len(messages))
	for _, msg := range messages {
		if err := msg.Render(); err != nil {
			return errors.Wrap(err, "rendering email")
		}
		if msg.HasRecipients() && msg.HasContent() {
			msgs = append(msgs, svc.prepare(*msg))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.Wrap(svc.dialer.DialAndSend(msgs...), "sending email")
}

func (svc smtpService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", svc.from)
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)
	m.SetHeader("To", addressList(msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addressList(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", addressList(msg.Bcc)...)
	}
	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}
	return m
}
