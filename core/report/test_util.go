package report

import (
	"context"
	"sync"

	"github.com/trezcool/reportal/core/user"
)

// NotifierMock records the notifications it receives. Err, when set, is returned by every call.
type NotifierMock struct {
	mu        sync.Mutex
	Err       error
	Submitted []Submission
	Evaluated []Feedback
}

type Submission struct {
	Report     Report
	Evaluators []user.User
}

var _ Notifier = (*NotifierMock)(nil)

func (nm *NotifierMock) ReportSubmitted(_ context.Context, rep Report, _ user.User, evaluators []user.User) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.Submitted = append(nm.Submitted, Submission{Report: rep, Evaluators: evaluators})
	return nm.Err
}

func (nm *NotifierMock) FeedbackSaved(_ context.Context, _ Report, _ user.User, fb Feedback) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.Evaluated = append(nm.Evaluated, fb)
	return nm.Err
}
