package report_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
	logsvc "github.com/trezcool/reportal/services/logger"
	dummydb "github.com/trezcool/reportal/storage/database/dummy"
	"github.com/trezcool/reportal/storage/files"
	"github.com/trezcool/reportal/testutil"
)

type fixture struct {
	ctx      context.Context
	db       *dummydb.DB
	usrRepo  user.Repository
	asgRepo  assignment.Repository
	repo     report.Repository
	fbRepo   report.FeedbackRepository
	fs       afero.Fs
	notifier *report.NotifierMock
	usrSvc   user.Service
	svc      report.Service
	validate *validator.Validate
}

func setup(t *testing.T) *fixture {
	t.Helper()
	validate, _ := testutil.Validator()
	db := dummydb.Open()
	logger := logsvc.NewNopLogger()
	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		usrRepo:  dummydb.NewUserRepository(db),
		asgRepo:  dummydb.NewAssignmentRepository(db),
		repo:     dummydb.NewReportRepository(db),
		fbRepo:   dummydb.NewFeedbackRepository(db),
		fs:       afero.NewMemMapFs(),
		notifier: new(report.NotifierMock),
		validate: validate,
	}
	f.usrSvc = user.NewService(db, f.usrRepo, f.asgRepo, new(user.NotifierMock), logger, testutil.Config())
	f.svc = report.NewService(db, f.repo, f.fbRepo, f.asgRepo, f.usrRepo, files.NewAferoStorage(f.fs), f.notifier, logger)
	f.usrSvc.AddCleaners(f.svc)

	// distinct, increasing timestamps
	now := time.Date(2022, 6, 1, 8, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	t.Cleanup(func() { user.NowFunc = time.Now })
	return f
}

func upload(name, content string) *report.Upload {
	return &report.Upload{Filename: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

func (f *fixture) submit(t *testing.T, student user.User, title string) report.Report {
	t.Helper()
	nr := report.NewReport{Title: title, File: upload(title+".pdf", "%PDF-"+title)}
	require.NoError(t, nr.Validate(student, f.validate))
	rep, err := f.svc.Submit(f.ctx, student, nr)
	require.NoError(t, err)
	return rep
}

func (f *fixture) mapStudent(t *testing.T, evaluator, student user.User) {
	t.Helper()
	_, _, err := f.asgRepo.GetOrCreateStudentAssignment(f.ctx, assignment.StudentAssignment{
		EvaluatorID: evaluator.ID,
		StudentID:   student.ID,
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	})
	require.NoError(t, err)
}

func (f *fixture) assignedEvaluators(t *testing.T, rep report.Report) []string {
	t.Helper()
	assignments, err := f.asgRepo.QueryReportAssignments(f.ctx, assignment.ReportFilter{ReportIDs: []string{rep.ID}})
	require.NoError(t, err)
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.EvaluatorID)
	}
	return ids
}

func TestNewReport_Validate(t *testing.T) {
	f := setup(t)
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))

	nr := report.NewReport{Title: "  Thesis ", File: upload("thesis.pdf", "x")}
	require.NoError(t, nr.Validate(student, f.validate))
	assert.Equal(t, "Thesis", nr.Title)
	assert.Equal(t, "CS", nr.Department, "defaults to the student's")
	assert.Equal(t, "2022", nr.Batch)

	nr = report.NewReport{Title: "  ", File: upload("thesis.pdf", "x")}
	err := nr.Validate(student, f.validate)
	require.IsType(t, validator.ValidationErrors{}, err)
	assert.Equal(t, "title", err.(validator.ValidationErrors)[0].Field())

	nr = report.NewReport{Title: "Thesis", File: upload("thesis.exe", "x")}
	err = nr.Validate(student, f.validate)
	require.IsType(t, &core.ValidationError{}, err)
	assert.Equal(t, "report_file", err.(*core.ValidationError).Fields[0].Field)

	nobody := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "nodept")
	nr = report.NewReport{Title: "Thesis", File: upload("thesis.pdf", "x")}
	err = nr.Validate(nobody, f.validate)
	require.IsType(t, validator.ValidationErrors{}, err)
}

func TestSubmit_AutoAssignment(t *testing.T) {
	t.Run("no mapping and no department evaluator", func(t *testing.T) {
		f := setup(t)
		testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "physicist", testutil.WithDepartment("Physics"))
		student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))

		rep := f.submit(t, student, "Thesis")
		assert.Equal(t, report.StatusSubmitted, rep.Status)
		assert.Empty(t, f.assignedEvaluators(t, rep))
		assert.Empty(t, f.notifier.Submitted, "nobody to notify")

		exists, err := afero.Exists(f.fs, rep.FileName)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "Thesis.pdf", rep.OriginalFilename)
	})

	t.Run("mapped evaluators", func(t *testing.T) {
		f := setup(t)
		ev1 := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev1", testutil.WithDepartment("Physics"))
		ev2 := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev2")
		testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev3", testutil.WithDepartment("CS"))
		student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))
		f.mapStudent(t, ev1, student)
		f.mapStudent(t, ev2, student)

		rep := f.submit(t, student, "Thesis")
		assert.ElementsMatch(t, []string{ev1.ID, ev2.ID}, f.assignedEvaluators(t, rep), "mappings win over the department")

		require.Len(t, f.notifier.Submitted, 1)
		assert.Len(t, f.notifier.Submitted[0].Evaluators, 2)

		admin := testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
		_, created, err := f.svc.AssignEvaluator(f.ctx, admin, rep.ID, ev1.ID)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Len(t, f.assignedEvaluators(t, rep), 2, "no duplicate")
	})

	t.Run("department evaluators", func(t *testing.T) {
		f := setup(t)
		ev := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev", testutil.WithDepartment("computer science"))
		testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "retired", testutil.WithDepartment("Computer Science"), testutil.Inactive())
		student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("Computer Science"), testutil.WithBatch("2022"))

		rep := f.submit(t, student, "Thesis")
		assert.Equal(t, []string{ev.ID}, f.assignedEvaluators(t, rep))
	})

	t.Run("only students submit", func(t *testing.T) {
		f := setup(t)
		ev := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev")
		_, err := f.svc.Submit(f.ctx, ev, report.NewReport{Title: "x", File: upload("x.pdf", "x")})
		assert.Equal(t, report.ErrForbidden, err)
	})
}

func TestAccess(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
	mentor := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "mentor")
	assigned := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "assigned")
	stranger := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "stranger")
	owner := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "owner", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))
	other := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "other", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))

	rep := f.submit(t, owner, "Thesis")
	f.mapStudent(t, mentor, owner)
	_, _, err := f.svc.AssignEvaluator(f.ctx, admin, rep.ID, assigned.ID)
	require.NoError(t, err)

	tests := []struct {
		name         string
		actor        user.User
		wantView     error
		wantGrade    bool
		wantDownload error
	}{
		{"owner", owner, nil, false, nil},
		{"other student", other, report.ErrNotFound, false, report.ErrNotFound},
		{"admin", admin, nil, true, nil},
		{"mapped evaluator", mentor, nil, true, nil},
		{"assigned evaluator", assigned, nil, true, nil},
		{"unrelated evaluator", stranger, nil, false, report.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dtl, err := f.svc.Get(f.ctx, tt.actor, rep.ID)
			assert.Equal(t, tt.wantView, err)
			if err == nil {
				assert.Equal(t, owner.ID, dtl.Student.ID)
				assert.Equal(t, tt.wantGrade, dtl.CanGrade)
			}

			canGrade, err := f.svc.CanGrade(f.ctx, tt.actor, rep)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGrade, canGrade)

			_, rc, err := f.svc.Open(f.ctx, tt.actor, rep.ID)
			assert.Equal(t, tt.wantDownload, err)
			if err == nil {
				data, err := io.ReadAll(rc)
				_ = rc.Close()
				require.NoError(t, err)
				assert.Equal(t, "%PDF-Thesis", string(data))
			}
		})
	}

	_, err = f.svc.Get(f.ctx, owner, "missing")
	assert.Equal(t, report.ErrNotFound, err)

	// a lost file is reported as not retrievable
	require.NoError(t, f.fs.Remove(rep.FileName))
	_, _, err = f.svc.Open(f.ctx, owner, rep.ID)
	assert.Equal(t, report.ErrFileNotRetrievable, err)
}

func TestFeedback(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
	mentor := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "mentor")
	stranger := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "stranger")
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))
	f.mapStudent(t, mentor, student)
	rep := f.submit(t, student, "Thesis")

	_, err := f.svc.OpenFeedback(f.ctx, stranger, rep.ID)
	assert.Equal(t, report.ErrForbidden, err)
	_, err = f.svc.OpenFeedback(f.ctx, student, rep.ID)
	assert.Equal(t, report.ErrNotFound, err)

	fb, err := f.svc.OpenFeedback(f.ctx, mentor, rep.ID)
	require.NoError(t, err)
	assert.False(t, fb.Grade.Valid)
	assert.Equal(t, report.DefaultMaxGrade, fb.MaxGrade)
	again, err := f.svc.OpenFeedback(f.ctx, mentor, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, fb.ID, again.ID, "get or create")

	uf := report.UpdateFeedback{Comments: " Good work ", Grade: null.Float64From(85), MaxGrade: 100}
	require.NoError(t, uf.Validate(f.validate))
	fb, err = f.svc.SaveFeedback(f.ctx, mentor, rep.ID, uf)
	require.NoError(t, err)
	assert.Equal(t, "Good work", fb.Comments)
	assert.Equal(t, 85.0, fb.GradePercentage())

	rep, err = f.repo.GetReport(f.ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusEvaluated, rep.Status)
	require.Len(t, f.notifier.Evaluated, 1)

	// a later ungraded save puts the report back under review
	uf = report.UpdateFeedback{Comments: "Reviewing", MaxGrade: 20}
	require.NoError(t, uf.Validate(f.validate))
	_, err = f.svc.SaveFeedback(f.ctx, admin, rep.ID, uf)
	require.NoError(t, err)
	rep, err = f.repo.GetReport(f.ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusUnderReview, rep.Status)
	assert.Len(t, f.notifier.Evaluated, 1, "not notified")

	dtl, err := f.svc.Get(f.ctx, mentor, rep.ID)
	require.NoError(t, err)
	assert.Len(t, dtl.Feedback, 2)
	require.NotNil(t, dtl.UserFeedback)
	assert.Equal(t, "Good work", dtl.UserFeedback.Comments)

	// the student sees the feedback, not the assignments
	dtl, err = f.svc.Get(f.ctx, student, rep.ID)
	require.NoError(t, err)
	assert.Len(t, dtl.Feedback, 2)
	assert.Empty(t, dtl.Assignments)
}

func TestUpdateFeedback_Validate(t *testing.T) {
	validate, translator := testutil.Validator()
	tests := []struct {
		name    string
		uf      report.UpdateFeedback
		wantFld string
	}{
		{"default max grade", report.UpdateFeedback{Grade: null.Float64From(100)}, ""},
		{"no grade", report.UpdateFeedback{MaxGrade: 50}, ""},
		{"grade above max", report.UpdateFeedback{Grade: null.Float64From(21), MaxGrade: 20}, "grade"},
		{"negative grade", report.UpdateFeedback{Grade: null.Float64From(-1)}, "grade"},
		{"negative max grade", report.UpdateFeedback{MaxGrade: -5}, "max_grade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uf := tt.uf
			err := uf.Validate(validate)
			if tt.wantFld == "" {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "%v", err)
			assert.Contains(t, core.TranslateErrors(vErrs, translator), tt.wantFld)
		})
	}
}

func TestAssignEvaluator(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
	ev1 := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev1")
	ev2 := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev2")
	testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "ev3", testutil.Inactive())
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))
	rep := f.submit(t, student, "Thesis")

	_, _, err := f.svc.AssignEvaluator(f.ctx, ev1, rep.ID, ev1.ID)
	assert.Equal(t, report.ErrForbidden, err)

	_, _, err = f.svc.AssignEvaluator(f.ctx, admin, rep.ID, student.ID)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "%v", err)
	assert.Equal(t, "evaluator_id", vErr.Fields[0].Field)

	_, _, err = f.svc.AssignEvaluator(f.ctx, admin, rep.ID, "missing")
	assert.IsType(t, &core.ValidationError{}, err)

	_, _, err = f.svc.AssignEvaluator(f.ctx, admin, "missing", ev1.ID)
	assert.Equal(t, report.ErrNotFound, err)

	available, err := f.svc.AvailableEvaluators(f.ctx, admin, rep.ID)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "ev1", available[0].Username)

	ra, created, err := f.svc.AssignEvaluator(f.ctx, admin, rep.ID, ev1.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, admin.ID, ra.AssignedBy.String)

	available, err = f.svc.AvailableEvaluators(f.ctx, admin, rep.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, ev2.ID, available[0].ID)

	_, err = f.svc.AvailableEvaluators(f.ctx, ev1, rep.ID)
	assert.Equal(t, report.ErrForbidden, err)
}

func TestQuery(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
	mentor := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "mentor")
	ada := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "ada", testutil.WithName("Ada", "Lovelace"), testutil.WithDepartment("CS"), testutil.WithBatch("2021-A"))
	alan := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "alan", testutil.WithName("Alan", "Turing"), testutil.WithDepartment("Maths"), testutil.WithBatch("2022-B"))

	r1 := f.submit(t, ada, "Engines")
	r2 := f.submit(t, ada, "Notes")
	r3 := f.submit(t, alan, "Computability")
	_, _, err := f.svc.AssignEvaluator(f.ctx, admin, r3.ID, mentor.ID)
	require.NoError(t, err)

	ids := func(reports []report.Report) []string {
		out := make([]string, 0, len(reports))
		for _, r := range reports {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		actor  user.User
		filter report.QueryFilter
		want   []string
	}{
		{"student sees own, latest first", ada, report.QueryFilter{}, []string{r2.ID, r1.ID}},
		{"student cannot widen", alan, report.QueryFilter{StudentName: "ada"}, []string{r3.ID}},
		{"admin sees all", admin, report.QueryFilter{}, []string{r3.ID, r2.ID, r1.ID}},
		{"department", admin, report.QueryFilter{Department: "Maths"}, []string{r3.ID}},
		{"batch icontains", admin, report.QueryFilter{Batch: "21-a"}, []string{r2.ID, r1.ID}},
		{"student name", mentor, report.QueryFilter{StudentName: "LOVE"}, []string{r2.ID, r1.ID}},
		{"unknown student name", admin, report.QueryFilter{StudentName: "nobody"}, []string{}},
		{"evaluator", admin, report.QueryFilter{EvaluatorID: mentor.ID}, []string{r3.ID}},
		{"assigned queue", mentor, report.QueryFilter{Assigned: true}, []string{r3.ID}},
		{"status", admin, report.QueryFilter{Status: []string{report.StatusEvaluated}}, []string{}},
		{"blank status", admin, report.QueryFilter{Status: []string{" "}}, []string{r3.ID, r2.ID, r1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			reports, total, err := f.svc.Query(f.ctx, tt.actor, &filter, nil, core.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(reports))
			assert.Equal(t, len(tt.want), total)
		})
	}

	reports, total, err := f.svc.Query(f.ctx, admin, nil, []core.DBOrdering{{Field: "title", Ascending: true}}, core.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{r3.ID, r1.ID}, ids(reports))
}

func TestCleanUpUserData(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
	mentor := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "mentor")
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))
	other := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "other", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))
	f.mapStudent(t, mentor, student)
	f.mapStudent(t, mentor, other)

	rep := f.submit(t, student, "Thesis")
	kept := f.submit(t, other, "Kept")
	for _, r := range []report.Report{rep, kept} {
		_, err := f.svc.SaveFeedback(f.ctx, mentor, r.ID, report.UpdateFeedback{Grade: null.Float64From(10), MaxGrade: 20})
		require.NoError(t, err)
	}

	cnt, err := f.usrSvc.Delete(f.ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	_, err = f.repo.GetReport(f.ctx, rep.ID)
	assert.Equal(t, report.ErrNotFound, err)
	exists, err := afero.Exists(f.fs, rep.FileName)
	require.NoError(t, err)
	assert.False(t, exists, "file deleted after commit")

	feedback, err := f.fbRepo.QueryFeedback(f.ctx, report.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, feedback, 1)
	assert.Equal(t, kept.ID, feedback[0].ReportID)

	// deleting the evaluator removes the feedback they gave and their assignments
	cnt, err = f.usrSvc.Delete(f.ctx, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	feedback, err = f.fbRepo.QueryFeedback(f.ctx, report.FeedbackFilter{})
	require.NoError(t, err)
	assert.Empty(t, feedback)
	assert.Empty(t, f.assignedEvaluators(t, kept))

	dtl, err := f.svc.Get(f.ctx, admin, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusEvaluated, dtl.Status)
}

func TestSubmit_RollbackRemovesFile(t *testing.T) {
	f := setup(t)
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("CS"), testutil.WithBatch("2022"))

	// the student is gone: creating the report fails
	ghost := student
	ghost.ID = "ghost"
	nr := report.NewReport{Title: "Thesis", Department: "CS", Batch: "2022", File: upload("t.pdf", "x")}
	_, err := f.svc.Submit(f.ctx, ghost, nr)
	require.Error(t, err)
	assert.NotEqual(t, report.ErrForbidden, errors.Cause(err))

	files, err := afero.ReadDir(f.fs, "reports")
	if err == nil {
		assert.Empty(t, files)
	}
}
