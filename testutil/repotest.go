package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

// Repos is a full set of repositories sharing one store.
type Repos struct {
	DB         core.Transactor
	Users      user.Repository
	Assignment assignment.Repository
	Reports    report.Repository
	Feedback   report.FeedbackRepository
}

// TestRepositories runs the behaviour every repository implementation must have.
// newRepos must return repositories on an empty store.
func TestRepositories(t *testing.T, newRepos func(t *testing.T) Repos) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepos(t)) })
	t.Run("reports", func(t *testing.T) { testReports(t, newRepos(t)) })
	t.Run("assignments", func(t *testing.T) { testAssignments(t, newRepos(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newRepos(t)) })
}

func usernames(users []user.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

func testUsers(t *testing.T, r Repos) {
	ctx := context.Background()
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	ada := CreateUser(t, r.Users, user.RoleEvaluator, "ada", WithName("Ada", "Lovelace"), WithDepartment("Computer Science"), CreatedAt(base))
	grace := CreateUser(t, r.Users, user.RoleStudent, "grace", WithName("Grace", "Hopper"), WithDepartment("computer science"), CreatedAt(base.Add(time.Hour)))
	linus := CreateUser(t, r.Users, user.RoleStudent, "linus", Pending(), CreatedAt(base.Add(2*time.Hour)))

	assert.Equal(t, user.ErrUsernameExists, errors.Cause(r.Users.CheckUniqueness(ctx, "ada", "", "", nil)))
	assert.Equal(t, user.ErrEmailExists, errors.Cause(r.Users.CheckUniqueness(ctx, "", "grace@reportal.test", "", nil)))
	assert.Equal(t, user.ErrStudentIDExists, errors.Cause(r.Users.CheckUniqueness(ctx, "", "", "ST-grace", nil)))
	assert.NoError(t, r.Users.CheckUniqueness(ctx, "", "grace@reportal.test", "ST-grace", []user.User{grace}))
	assert.NoError(t, r.Users.CheckUniqueness(ctx, "newbie", "newbie@reportal.test", "", nil))

	_, err := r.Users.CreateUser(ctx, user.User{Username: "ada", Email: "other@reportal.test", Role: user.RoleAdmin})
	assert.Error(t, err, "duplicate username")

	got, err := r.Users.GetUser(ctx, user.GetFilter{UsernameOrEmail: "grace@reportal.test"})
	require.NoError(t, err)
	assert.Equal(t, grace.ID, got.ID)
	assert.Equal(t, "Hopper", got.LastName)
	got, err = r.Users.GetUser(ctx, user.GetFilter{StudentID: "ST-linus"})
	require.NoError(t, err)
	assert.Equal(t, linus.ID, got.ID)
	_, err = r.Users.GetUser(ctx, user.GetFilter{ID: uuid.NewString()})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	_, err = r.Users.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	active := true
	tests := []struct {
		name   string
		filter *user.QueryFilter
		want   []string
	}{
		{"all, newest first", nil, []string{"linus", "grace", "ada"}},
		{"search", &user.QueryFilter{Search: "hop"}, []string{"grace"}},
		{"name", &user.QueryFilter{Name: "ADA"}, []string{"ada"}},
		{"roles", &user.QueryFilter{Roles: []string{user.RoleStudent}}, []string{"linus", "grace"}},
		{"no roles", &user.QueryFilter{Roles: []string{}}, []string{}},
		{"department", &user.QueryFilter{Department: "COMPUTER science"}, []string{"grace", "ada"}},
		{"active", &user.QueryFilter{IsActive: &active}, []string{"grace", "ada"}},
		{"approval", &user.QueryFilter{ApprovalStatus: []string{user.ApprovalPending}}, []string{"linus"}},
		{"created from", &user.QueryFilter{CreatedFrom: base.Add(30 * time.Minute)}, []string{"linus", "grace"}},
		{"ids", &user.QueryFilter{IDs: []string{ada.ID, linus.ID, "not-a-uuid"}}, []string{"linus", "ada"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := r.Users.QueryUsers(ctx, tt.filter, []core.DBOrdering{{Field: "created_at"}}, core.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, usernames(users))
			cnt, err := r.Users.CountUsers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), cnt)
		})
	}

	users, err := r.Users.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "username", Ascending: true}}, core.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"linus"}, usernames(users))

	grace.Batch = "2023"
	grace.LastLogin = null.TimeFrom(base.Add(24 * time.Hour))
	updated, err := r.Users.UpdateUser(ctx, grace)
	require.NoError(t, err)
	assert.Equal(t, "2023", updated.Batch)
	assert.True(t, updated.LastLogin.Time.Equal(base.Add(24*time.Hour)))

	cnt, err := r.Users.SetUsersActive(ctx, []string{ada.ID, grace.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
	got, err = r.Users.GetUser(ctx, user.GetFilter{Username: "ada"})
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	cnt, err = r.Users.DeleteUsersByID(ctx, []string{linus.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	_, err = r.Users.GetUser(ctx, user.GetFilter{ID: linus.ID})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func newReport(student user.User, title, dept, batch string, at time.Time) report.Report {
	return report.Report{
		StudentID:        student.ID,
		Title:            title,
		Department:       dept,
		Batch:            batch,
		FileName:         "reports/" + uuid.NewString() + ".pdf",
		OriginalFilename: title + ".pdf",
		FileSize:         42,
		Status:           report.StatusSubmitted,
		SubmittedAt:      at,
		UpdatedAt:        at,
	}
}

func testReports(t *testing.T, r Repos) {
	ctx := context.Background()
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	student := CreateUser(t, r.Users, user.RoleStudent, "jroe")
	evaluator := CreateUser(t, r.Users, user.RoleEvaluator, "mentor")

	r1, err := r.Reports.CreateReport(ctx, newReport(student, "Alpha", "CS", "2021-A", base))
	require.NoError(t, err)
	r2, err := r.Reports.CreateReport(ctx, newReport(student, "Beta", "CS", "2022-B", base.Add(time.Hour)))
	require.NoError(t, err)
	r3, err := r.Reports.CreateReport(ctx, newReport(student, "Gamma", "Maths", "2022-B", base.Add(2*time.Hour)))
	require.NoError(t, err)

	got, err := r.Reports.GetReport(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beta", got.Title)
	assert.Equal(t, "Beta.pdf", got.OriginalFilename)
	assert.Equal(t, int64(42), got.FileSize)
	_, err = r.Reports.GetReport(ctx, uuid.NewString())
	assert.Equal(t, report.ErrNotFound, errors.Cause(err))

	r3.Status = report.StatusEvaluated
	r3.UpdatedAt = base.Add(3 * time.Hour)
	_, err = r.Reports.UpdateReportStatus(ctx, r3)
	require.NoError(t, err)

	titles := func(reports []report.Report) []string {
		out := make([]string, 0, len(reports))
		for _, rep := range reports {
			out = append(out, rep.Title)
		}
		return out
	}
	tests := []struct {
		name   string
		filter *report.QueryFilter
		want   []string
	}{
		{"all", &report.QueryFilter{}, []string{"Gamma", "Beta", "Alpha"}},
		{"status", &report.QueryFilter{Status: []string{report.StatusSubmitted}}, []string{"Beta", "Alpha"}},
		{"no status", &report.QueryFilter{Status: []string{}}, []string{}},
		{"department", &report.QueryFilter{Department: "CS"}, []string{"Beta", "Alpha"}},
		{"batch", &report.QueryFilter{Batch: "22-b"}, []string{"Gamma", "Beta"}},
		{"ids", &report.QueryFilter{IDs: []string{r1.ID, r3.ID}}, []string{"Gamma", "Alpha"}},
		{"students", &report.QueryFilter{StudentIDs: []string{evaluator.ID}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := r.Reports.QueryReports(ctx, tt.filter, []core.DBOrdering{{Field: "submitted_at"}}, core.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(reports))
			cnt, err := r.Reports.CountReports(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), cnt)
		})
	}

	counts, err := r.Reports.CountReportsBy(ctx, "department")
	require.NoError(t, err)
	assert.Equal(t, []report.Count{{Key: "CS", Count: 2}, {Key: "Maths", Count: 1}}, counts)
	counts, err = r.Reports.CountReportsBy(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, []report.Count{{Key: report.StatusSubmitted, Count: 2}, {Key: report.StatusEvaluated, Count: 1}}, counts)
	_, err = r.Reports.CountReportsBy(ctx, "title; DROP TABLE users")
	assert.Error(t, err)

	// feedback
	fb, created, err := r.Feedback.GetOrCreateFeedback(ctx, report.Feedback{
		ReportID: r1.ID, EvaluatorID: evaluator.ID, MaxGrade: 100, CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)
	assert.True(t, created)
	same, created, err := r.Feedback.GetOrCreateFeedback(ctx, report.Feedback{
		ReportID: r1.ID, EvaluatorID: evaluator.ID, MaxGrade: 50, CreatedAt: base, UpdatedAt: base,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fb.ID, same.ID)
	assert.Equal(t, 100.0, same.MaxGrade)

	fb.Comments = "Nice"
	fb.Grade = null.Float64From(17.5)
	fb.MaxGrade = 20
	fb, err = r.Feedback.UpdateFeedback(ctx, fb)
	require.NoError(t, err)
	assert.Equal(t, 17.5, fb.Grade.Float64)

	_, _, err = r.Feedback.GetOrCreateFeedback(ctx, report.Feedback{
		ReportID: r2.ID, EvaluatorID: evaluator.ID, MaxGrade: 100, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)

	all, err := r.Feedback.QueryFeedback(ctx, report.FeedbackFilter{EvaluatorIDs: []string{evaluator.ID}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r2.ID, all[0].ReportID, "newest first")
	graded, err := r.Feedback.QueryFeedback(ctx, report.FeedbackFilter{GradedOnly: true})
	require.NoError(t, err)
	require.Len(t, graded, 1)
	assert.Equal(t, "Nice", graded[0].Comments)

	cnt, err := r.Feedback.DeleteFeedback(ctx, report.FeedbackFilter{})
	require.NoError(t, err)
	assert.Zero(t, cnt, "an empty filter deletes nothing")
	cnt, err = r.Feedback.DeleteFeedback(ctx, report.FeedbackFilter{ReportIDs: []string{r1.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	cnt, err = r.Reports.DeleteReports(ctx, []string{r1.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	_, err = r.Reports.GetReport(ctx, r1.ID)
	assert.Equal(t, report.ErrNotFound, errors.Cause(err))
}

func testAssignments(t *testing.T, r Repos) {
	ctx := context.Background()
	now := time.Now().UTC()
	student := CreateUser(t, r.Users, user.RoleStudent, "jroe")
	other := CreateUser(t, r.Users, user.RoleStudent, "other")
	ev1 := CreateUser(t, r.Users, user.RoleEvaluator, "ev1")
	ev2 := CreateUser(t, r.Users, user.RoleEvaluator, "ev2")
	rep, err := r.Reports.CreateReport(ctx, newReport(student, "Thesis", "CS", "2022", now))
	require.NoError(t, err)

	ra, created, err := r.Assignment.GetOrCreateReportAssignment(ctx, assignment.ReportAssignment{
		ReportID: rep.ID, EvaluatorID: ev1.ID, AssignedBy: null.StringFrom(student.ID), AssignedAt: now, IsActive: true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := r.Assignment.GetOrCreateReportAssignment(ctx, assignment.ReportAssignment{
		ReportID: rep.ID, EvaluatorID: ev1.ID, AssignedAt: now, IsActive: true,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ra.ID, again.ID)
	_, _, err = r.Assignment.GetOrCreateReportAssignment(ctx, assignment.ReportAssignment{
		ReportID: rep.ID, EvaluatorID: ev2.ID, AssignedAt: now, IsActive: true,
	})
	require.NoError(t, err)

	assignments, err := r.Assignment.QueryReportAssignments(ctx, assignment.ReportFilter{ReportIDs: []string{rep.ID}})
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
	assignments, err = r.Assignment.QueryReportAssignments(ctx, assignment.ReportFilter{EvaluatorIDs: []string{ev2.ID}, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	assignments, err = r.Assignment.QueryReportAssignments(ctx, assignment.ReportFilter{ReportIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, assignments)

	for _, s := range []user.User{student, other} {
		_, created, err = r.Assignment.GetOrCreateStudentAssignment(ctx, assignment.StudentAssignment{
			EvaluatorID: ev1.ID, StudentID: s.ID, CreatedAt: now, IsActive: true,
		})
		require.NoError(t, err)
		assert.True(t, created)
	}
	_, created, err = r.Assignment.GetOrCreateStudentAssignment(ctx, assignment.StudentAssignment{
		EvaluatorID: ev1.ID, StudentID: student.ID, CreatedAt: now, IsActive: true,
	})
	require.NoError(t, err)
	assert.False(t, created)

	mappings, err := r.Assignment.QueryStudentAssignments(ctx, assignment.StudentFilter{EvaluatorIDs: []string{ev1.ID}, ActiveOnly: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{student.ID, other.ID}, assignment.StudentIDs(mappings))

	cnt, err := r.Assignment.DeleteReportAssignments(ctx, assignment.ReportFilter{ReportIDs: []string{rep.ID}, EvaluatorIDs: []string{ev2.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	cnt, err = r.Assignment.DeleteUserAssignments(ctx, []string{ev1.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, cnt, "one report assignment and two mappings")
	mappings, err = r.Assignment.QueryStudentAssignments(ctx, assignment.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func testTransactions(t *testing.T, r Repos) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.DB.Transact(ctx, func(exec core.DBExecutor) error {
		usr := user.User{Username: "ghost", Email: "ghost@reportal.test", Role: user.RoleAdmin, ApprovalStatus: user.ApprovalApproved}
		if _, err := r.Users.CreateUser(ctx, usr, exec); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, errors.Cause(err))
	_, err = r.Users.GetUser(ctx, user.GetFilter{Username: "ghost"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err), "rolled back")

	err = r.DB.Transact(ctx, func(exec core.DBExecutor) error {
		usr := user.User{Username: "kept", Email: "kept@reportal.test", Role: user.RoleAdmin, ApprovalStatus: user.ApprovalApproved}
		_, err := r.Users.CreateUser(ctx, usr, exec)
		return err
	})
	require.NoError(t, err)
	_, err = r.Users.GetUser(ctx, user.GetFilter{Username: "kept"})
	assert.NoError(t, err)
}
