package report

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/user"
)

const (
	recentLimit   = 5
	filteredLimit = 20
)

// Admin dashboard filters
const (
	FilterAll         = "all"
	FilterRecent      = "recent"
	FilterPending     = "pending"
	FilterApproved    = "approved"
	FilterNeedsUpdate = "needs_update"
)

var latestFirst = []core.DBOrdering{{Field: "submitted_at"}}

type StudentDashboard struct {
	TotalReports     int      `json:"total_reports"`
	EvaluatedReports int      `json:"evaluated_reports"`
	PendingReports   int      `json:"pending_reports"`
	RecentReports    []Report `json:"recent_reports"`
}

type EvaluatorDashboard struct {
	TotalAssigned   int      `json:"total_assigned"`
	EvaluatedCount  int      `json:"evaluated_count"`
	PendingCount    int      `json:"pending_count"`
	AssignedReports []Report `json:"assigned_reports"`
}

type AdminFilter struct {
	Filter      string `query:"filter"`
	EvaluatorID string `query:"evaluator"`
	Status      string `query:"status"`
	Department  string `query:"department"`
	Batch       string `query:"batch"`
	StudentName string `query:"student"`
}

type EvaluatorStat struct {
	Evaluator      user.User `json:"evaluator"`
	AssignedCount  int       `json:"assigned_count"`
	EvaluatedCount int       `json:"evaluated_count"`
}

type AdminDashboard struct {
	TotalReports    int             `json:"total_reports"`
	TotalStudents   int             `json:"total_students"`
	TotalEvaluators int             `json:"total_evaluators"`
	RecentReports   []Report        `json:"recent_reports"`
	DepartmentStats []Count         `json:"department_stats"`
	StatusStats     []Count         `json:"status_stats"`
	EvaluatorStats  []EvaluatorStat `json:"evaluator_stats"`
	FilteredReports []Report        `json:"filtered_reports"`
	Filter          string          `json:"filter"`
}

func (svc *service) StudentDashboard(ctx context.Context, student user.User) (StudentDashboard, error) {
	if !student.IsStudent() {
		return StudentDashboard{}, ErrForbidden
	}
	reports, err := svc.repo.QueryReports(ctx, &QueryFilter{StudentIDs: []string{student.ID}}, latestFirst, core.Page{})
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "querying reports")
	}

	dash := StudentDashboard{TotalReports: len(reports)}
	for _, rep := range reports {
		switch rep.Status {
		case StatusEvaluated:
			dash.EvaluatedReports++
		case StatusSubmitted, StatusUnderReview:
			dash.PendingReports++
		}
	}
	if len(reports) > recentLimit {
		reports = reports[:recentLimit]
	}
	dash.RecentReports = reports
	return dash, nil
}

func (svc *service) EvaluatorDashboard(ctx context.Context, evaluator user.User) (EvaluatorDashboard, error) {
	if !evaluator.IsEvaluator() {
		return EvaluatorDashboard{}, ErrForbidden
	}
	ids, err := svc.assignedReportIDs(ctx, evaluator)
	if err != nil {
		return EvaluatorDashboard{}, err
	}
	reports, err := svc.repo.QueryReports(ctx, &QueryFilter{IDs: ids}, latestFirst, core.Page{})
	if err != nil {
		return EvaluatorDashboard{}, errors.Wrap(err, "querying assigned reports")
	}

	graded, err := svc.fbRepo.QueryFeedback(ctx, FeedbackFilter{
		ReportIDs:    ids,
		EvaluatorIDs: []string{evaluator.ID},
		GradedOnly:   true,
	})
	if err != nil {
		return EvaluatorDashboard{}, errors.Wrap(err, "querying feedback")
	}

	dash := EvaluatorDashboard{
		TotalAssigned:   len(reports),
		EvaluatedCount:  len(graded),
		AssignedReports: reports,
	}
	dash.PendingCount = dash.TotalAssigned - dash.EvaluatedCount
	return dash, nil
}

func (svc *service) AdminDashboard(ctx context.Context, admin user.User, af AdminFilter) (AdminDashboard, error) {
	if !admin.IsAdmin() {
		return AdminDashboard{}, ErrForbidden
	}

	var (
		dash AdminDashboard
		err  error
	)
	if dash.TotalReports, err = svc.repo.CountReports(ctx, &QueryFilter{}); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting reports")
	}
	if dash.TotalStudents, err = svc.usrRepo.CountUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleStudent}}); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting students")
	}
	if dash.RecentReports, err = svc.repo.QueryReports(ctx, &QueryFilter{}, latestFirst, core.Page{Number: 1, Size: recentLimit}); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "querying recent reports")
	}
	if dash.DepartmentStats, err = svc.repo.CountReportsBy(ctx, "department"); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting reports by department")
	}
	if dash.StatusStats, err = svc.repo.CountReportsBy(ctx, "status"); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting reports by status")
	}
	if dash.EvaluatorStats, err = svc.evaluatorStats(ctx); err != nil {
		return AdminDashboard{}, err
	}
	dash.TotalEvaluators = len(dash.EvaluatorStats)

	dash.Filter = af.Filter
	filter := &QueryFilter{
		Department:  af.Department,
		Batch:       af.Batch,
		StudentName: af.StudentName,
		EvaluatorID: af.EvaluatorID,
	}
	if af.Status != "" {
		filter.Status = []string{af.Status}
	}
	switch af.Filter {
	case FilterPending:
		filter.Status = intersectStatus(filter.Status, PendingStatuses)
	case FilterApproved:
		filter.Status = intersectStatus(filter.Status, []string{StatusEvaluated})
	case FilterNeedsUpdate:
		filter.Status = intersectStatus(filter.Status, []string{StatusRejected})
	case FilterRecent:
	default:
		dash.Filter = FilterAll
	}
	if dash.FilteredReports, _, err = svc.Query(ctx, admin, filter, latestFirst, core.Page{Number: 1, Size: filteredLimit}); err != nil {
		return AdminDashboard{}, err
	}
	return dash, nil
}

// evaluatorStats counts, per evaluator, the active report assignments and the feedback given.
func (svc *service) evaluatorStats(ctx context.Context) ([]EvaluatorStat, error) {
	evaluators, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleEvaluator}},
		[]core.DBOrdering{{Field: "username", Ascending: true}}, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluators")
	}
	stats := make([]EvaluatorStat, 0, len(evaluators))
	if len(evaluators) == 0 {
		return stats, nil
	}
	ids := userIDs(evaluators)

	assignments, err := svc.asgRepo.QueryReportAssignments(ctx, assignment.ReportFilter{EvaluatorIDs: ids, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying report assignments")
	}
	feedback, err := svc.fbRepo.QueryFeedback(ctx, FeedbackFilter{EvaluatorIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}

	assigned := make(map[string]int, len(evaluators))
	for _, a := range assignments {
		assigned[a.EvaluatorID]++
	}
	evaluated := make(map[string]int, len(evaluators))
	for _, fb := range feedback {
		evaluated[fb.EvaluatorID]++
	}
	for _, ev := range evaluators {
		stats = append(stats, EvaluatorStat{
			Evaluator:      ev,
			AssignedCount:  assigned[ev.ID],
			EvaluatedCount: evaluated[ev.ID],
		})
	}
	return stats, nil
}

// intersectStatus keeps an explicit status filter only when it agrees with the dashboard filter.
func intersectStatus(explicit, statuses []string) []string {
	if len(explicit) == 0 {
		return statuses
	}
	kept := make([]string, 0, len(explicit))
	for _, s := range explicit {
		if core.ContainsString(statuses, s) {
			kept = append(kept, s)
		}
	}
	return kept
}
