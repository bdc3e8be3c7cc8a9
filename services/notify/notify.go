// Package notify sends the user and report notifications as templated emails.
package notify

import (
	"context"
	"net/mail"

	"github.com/kat-co/vala"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

type Notifier struct {
	email core.EmailService
}

var (
	_ user.Notifier   = (*Notifier)(nil)
	_ report.Notifier = (*Notifier)(nil)
)

func New(email core.EmailService) *Notifier {
	vala.BeginValidation().Validate(
		vala.IsNotNil(email, "email"),
	).CheckAndPanic()
	return &Notifier{email: email}
}

func address(usr user.User) mail.Address {
	return mail.Address{Name: usr.FullName(), Address: usr.Email}
}

func (n *Notifier) send(to user.User, subject, tmpl string, data map[string]interface{}) error {
	if to.Email == "" {
		return nil
	}
	return n.email.SendMessages(&core.EmailMessage{
		To:           []mail.Address{address(to)},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}

func (n *Notifier) RegistrationReceived(_ context.Context, usr user.User) error {
	return n.send(usr, "Registration received", "registration_received", map[string]interface{}{
		"Name":     usr.FullName(),
		"Username": usr.Username,
	})
}

func (n *Notifier) AccountCreated(_ context.Context, usr user.User, password string) error {
	return n.send(usr, "Your account credentials", "account_credentials", map[string]interface{}{
		"Name":     usr.FullName(),
		"Role":     usr.Role,
		"Username": usr.Username,
		"Password": password,
	})
}

func (n *Notifier) StudentApproved(_ context.Context, student, approver user.User) error {
	return n.send(student, "Registration approved", "student_approved", map[string]interface{}{
		"Name":       student.FullName(),
		"ApprovedBy": approver.FullName(),
	})
}

func (n *Notifier) StudentRejected(_ context.Context, student user.User) error {
	return n.send(student, "Registration rejected", "student_rejected", map[string]interface{}{
		"Name": student.FullName(),
	})
}

func (n *Notifier) PasswordReset(_ context.Context, usr user.User, uid, token string) error {
	return n.send(usr, "Password reset", "password_reset", map[string]interface{}{
		"Name":     usr.FullName(),
		"Username": usr.Username,
		"UID":      uid,
		"Token":    token,
	})
}

// ReportSubmitted sends one email per assigned evaluator.
func (n *Notifier) ReportSubmitted(_ context.Context, rep report.Report, student user.User, evaluators []user.User) error {
	msgs := make([]*core.EmailMessage, 0, len(evaluators))
	for _, ev := range evaluators {
		if ev.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{address(ev)},
			Subject:      "New report submitted: " + rep.Title,
			TemplateName: "report_submitted",
			TemplateData: map[string]interface{}{
				"EvaluatorName": ev.FullName(),
				"StudentName":   student.FullName(),
				"Title":         rep.Title,
				"Department":    rep.Department,
				"Batch":         rep.Batch,
				"ReportID":      rep.ID,
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return n.email.SendMessages(msgs...)
}

// FeedbackSaved tells the student once their report has a grade.
func (n *Notifier) FeedbackSaved(_ context.Context, rep report.Report, student user.User, fb report.Feedback) error {
	if rep.Status != report.StatusEvaluated || !fb.Grade.Valid {
		return nil
	}
	return n.send(student, "Your report has been evaluated", "report_evaluated", map[string]interface{}{
		"StudentName": student.FullName(),
		"Title":       rep.Title,
		"Grade":       fb.Grade.Float64,
		"MaxGrade":    fb.MaxGrade,
		"Percentage":  fb.GradePercentage(),
		"ReportID":    rep.ID,
	})
}
