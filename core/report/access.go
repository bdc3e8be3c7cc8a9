package report

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/user"
)

// CanView: admins and evaluators can view any report, students only their own.
func CanView(actor user.User, rep Report) bool {
	switch {
	case actor.IsAdmin(), actor.IsEvaluator():
		return true
	case actor.IsStudent():
		return rep.StudentID == actor.ID
	}
	return false
}

// CanGrade: admins always, evaluators through an active report assignment
// or an active mapping with the report's student.
func (svc *service) CanGrade(ctx context.Context, actor user.User, rep Report) (bool, error) {
	switch {
	case actor.IsAdmin():
		return true, nil
	case !actor.IsEvaluator():
		return false, nil
	}

	assignments, err := svc.asgRepo.QueryReportAssignments(ctx, assignment.ReportFilter{
		ReportIDs:    []string{rep.ID},
		EvaluatorIDs: []string{actor.ID},
		ActiveOnly:   true,
	})
	if err != nil {
		return false, errors.Wrap(err, "querying report assignments")
	}
	if len(assignments) > 0 {
		return true, nil
	}

	mappings, err := svc.asgRepo.QueryStudentAssignments(ctx, assignment.StudentFilter{
		EvaluatorIDs: []string{actor.ID},
		StudentIDs:   []string{rep.StudentID},
		ActiveOnly:   true,
	})
	if err != nil {
		return false, errors.Wrap(err, "querying student assignments")
	}
	return len(mappings) > 0, nil
}

// CanDownload follows CanView for students and admins, and CanGrade for evaluators.
func (svc *service) CanDownload(ctx context.Context, actor user.User, rep Report) (bool, error) {
	if actor.IsEvaluator() {
		return svc.CanGrade(ctx, actor, rep)
	}
	return CanView(actor, rep), nil
}

// checkView hides the existence of other students' reports.
func checkView(actor user.User, rep Report) error {
	if !CanView(actor, rep) {
		if actor.IsStudent() {
			return ErrNotFound
		}
		return ErrForbidden
	}
	return nil
}

func (svc *service) checkGrade(ctx context.Context, actor user.User, rep Report) error {
	ok, err := svc.CanGrade(ctx, actor, rep)
	if err != nil {
		return err
	}
	if !ok {
		if actor.IsStudent() {
			return ErrNotFound
		}
		return ErrForbidden
	}
	return nil
}

func (svc *service) checkDownload(ctx context.Context, actor user.User, rep Report) error {
	if actor.IsEvaluator() {
		return svc.checkGrade(ctx, actor, rep)
	}
	return checkView(actor, rep)
}
