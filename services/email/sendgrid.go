package emailsvc

import (
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/reportal/core"
)

// sendgridService sends every message through the v3 mail send API.
// Templated messages are tagged with their template name as SendGrid category.
type sendgridService struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
	sandbox    bool
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		client:     sendgrid.NewSendClient(conf.Email.SendgridAPIKey),
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		sandbox:    conf.TestMode,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) error {
	for _, msg := range messages {
		if err := msg.Render(); err != nil {
			return errors.Wrap(err, "rendering email")
		}
		if !msg.HasRecipients() || !msg.HasContent() {
			continue
		}

		res, err := svc.client.Send(svc.build(msg))
		if err != nil {
			return errors.Wrap(err, "sending email")
		}
		if res.StatusCode >= http.StatusBadRequest {
			return errors.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
		}
	}
	return nil
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}

func (svc *sendgridService) build(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	p.AddCCs(sgEmails(msg.Cc)...)
	p.AddBCCs(sgEmails(msg.Bcc)...)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	if svc.sandbox {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}
	return m
}
