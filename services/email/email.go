// Package emailsvc implements core.EmailService: console (development and tests), SendGrid and SMTP.
package emailsvc

import (
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
)

// New returns the email service selected by the EMAIL_BACKEND config.
func New(conf *core.Config) (core.EmailService, error) {
	switch conf.Email.Backend {
	case "console", "":
		return NewConsoleService(conf), nil
	case "sendgrid":
		return NewSendgridService(conf), nil
	case "smtp":
		return NewSMTPService(conf), nil
	default:
		return nil, errors.Errorf("unknown email backend %q", conf.Email.Backend)
	}
}

func addressList(addrs []mail.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}
