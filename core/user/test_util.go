package user

import (
	"context"
	"sync"
)

// NotifierMock records the notifications it receives. Err, when set, is returned by every call.
type NotifierMock struct {
	mu    sync.Mutex
	Err   error
	Calls []NotifierCall
}

type NotifierCall struct {
	Kind     string
	User     User
	Password string
	Token    string
}

var _ Notifier = (*NotifierMock)(nil)

func (nm *NotifierMock) record(call NotifierCall) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.Calls = append(nm.Calls, call)
	return nm.Err
}

// Kinds returns the kinds of the recorded calls, in order.
func (nm *NotifierMock) Kinds() []string {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	kinds := make([]string, 0, len(nm.Calls))
	for _, c := range nm.Calls {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

func (nm *NotifierMock) RegistrationReceived(_ context.Context, usr User) error {
	return nm.record(NotifierCall{Kind: "registration_received", User: usr})
}

func (nm *NotifierMock) AccountCreated(_ context.Context, usr User, password string) error {
	return nm.record(NotifierCall{Kind: "account_credentials", User: usr, Password: password})
}

func (nm *NotifierMock) StudentApproved(_ context.Context, student, _ User) error {
	return nm.record(NotifierCall{Kind: "student_approved", User: student})
}

func (nm *NotifierMock) StudentRejected(_ context.Context, student User) error {
	return nm.record(NotifierCall{Kind: "student_rejected", User: student})
}

func (nm *NotifierMock) PasswordReset(_ context.Context, usr User, _, token string) error {
	return nm.record(NotifierCall{Kind: "password_reset", User: usr, Token: token})
}
