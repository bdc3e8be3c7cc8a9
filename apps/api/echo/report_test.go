package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
	emailsvc "github.com/trezcool/reportal/services/email"
	"github.com/trezcool/reportal/testutil"
)

var pdfContent = []byte("%PDF-1.4 final year project")

type reportFixture struct {
	*fixture
	admin, mentor, outsider, student, other user.User
}

func setupReports(t *testing.T) *reportFixture {
	t.Helper()
	f := &reportFixture{fixture: setup(t)}
	f.admin = testutil.CreateUser(t, f.usrRepo, user.RoleAdmin, "admin")
	f.mentor = testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "mentor", testutil.WithDepartment("Computer Science"))
	f.outsider = testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "outsider", testutil.WithDepartment("Maths"))
	f.student = testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jdoe", testutil.WithDepartment("Computer Science"))
	f.other = testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jroe", testutil.WithDepartment("Computer Science"))
	return f
}

func (f *reportFixture) submitReport(t *testing.T) report.Report {
	t.Helper()
	rec := f.submit(t, getToken(t, f.student), "Distributed caches", "Final Report.pdf", pdfContent)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rep report.Report
	unmarshal(t, rec, &rep)
	return rep
}

func Test_reportApi_submit(t *testing.T) {
	f := setupReports(t)
	studentToken := getToken(t, f.student)

	t.Run("students only", func(t *testing.T) {
		rec := f.submit(t, getToken(t, f.mentor), "Title", "report.pdf", pdfContent)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := f.submit(t, studentToken, "Title", "", nil)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"report_file":"this field is required"}`),
		}, rec)
	})

	t.Run("invalid extension", func(t *testing.T) {
		rec := f.submit(t, studentToken, "Title", "report.exe", pdfContent)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"report_file":"only PDF, DOCX and XLSX files are allowed"}`),
		}, rec)
	})

	t.Run("empty file", func(t *testing.T) {
		rec := f.submit(t, studentToken, "Title", "report.pdf", []byte{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blank title", func(t *testing.T) {
		rec := f.submit(t, studentToken, "   ", "report.pdf", pdfContent)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var errs map[string]string
		unmarshal(t, rec, &errs)
		assert.Contains(t, errs, "title")
	})

	t.Run("success", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		rep := f.submitReport(t)

		assert.Equal(t, report.StatusSubmitted, rep.Status)
		assert.Equal(t, f.student.ID, rep.StudentID)
		assert.Equal(t, "Final Report.pdf", rep.OriginalFilename)
		assert.Equal(t, int64(len(pdfContent)), rep.FileSize)

		// assigned to the active evaluators of the department
		asgs, err := f.asgRepo.QueryReportAssignments(f.ctx, assignment.ReportFilter{ReportIDs: []string{rep.ID}})
		require.NoError(t, err)
		require.Len(t, asgs, 1)
		assert.Equal(t, f.mentor.ID, asgs[0].EvaluatorID)

		msgs := emailsvc.GetSentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, f.mentor.Email, msgs[0].To[0].Address)
	})
}

func Test_reportApi_access(t *testing.T) {
	f := setupReports(t)
	rep := f.submitReport(t)
	path := "/api/reports/" + rep.ID

	tests := []httpTest{
		{name: "owner", path: path, token: getToken(t, f.student), wantCode: http.StatusOK},
		{name: "other student", path: path, token: getToken(t, f.other), wantCode: http.StatusNotFound},
		{name: "any evaluator views", path: path, token: getToken(t, f.outsider), wantCode: http.StatusOK},
		{name: "admin", path: path, token: getToken(t, f.admin), wantCode: http.StatusOK},
		{name: "unknown report", path: "/api/reports/" + f.admin.ID, token: getToken(t, f.admin), wantCode: http.StatusNotFound},
		{name: "owner downloads", path: path + "/download", token: getToken(t, f.student), wantCode: http.StatusOK},
		{name: "other student downloads", path: path + "/download", token: getToken(t, f.other), wantCode: http.StatusNotFound},
		{name: "assigned evaluator downloads", path: path + "/download", token: getToken(t, f.mentor), wantCode: http.StatusOK},
		{name: "unassigned evaluator downloads", path: path + "/download", token: getToken(t, f.outsider), wantCode: http.StatusForbidden},
		{name: "unassigned evaluator grades", path: path + "/feedback", token: getToken(t, f.outsider), wantCode: http.StatusForbidden},
		{name: "student grades", path: path + "/feedback", token: getToken(t, f.student), wantCode: http.StatusForbidden},
		{name: "evaluators list", path: path + "/evaluators", token: getToken(t, f.mentor), wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			f.run(t, tt)
		})
	}
}

func Test_reportApi_serveFile(t *testing.T) {
	f := setupReports(t)
	rep := f.submitReport(t)
	token := getToken(t, f.student)

	tests := []struct {
		path            string
		wantDisposition string
	}{
		{"/download", `attachment; filename="Final Report.pdf"`},
		{"/view", `inline; filename="Final Report.pdf"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/api/reports/"+rep.ID+tt.path, token)
			f.serve(req, rec)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantDisposition, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
			assert.Equal(t, pdfContent, rec.Body.Bytes())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		require.NoError(t, f.fs.RemoveAll("reports"))
		f.run(t, httpTest{
			method:   http.MethodGet,
			path:     "/api/reports/" + rep.ID + "/download",
			token:    token,
			wantCode: http.StatusNotFound,
		})
	})
}

func Test_reportApi_query(t *testing.T) {
	f := setupReports(t)
	rep := f.submitReport(t)
	rec := f.submit(t, getToken(t, f.other), "Compilers", "compilers.docx", pdfContent)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type page struct {
		Count   int             `json:"count"`
		Results []report.Report `json:"results"`
	}
	query := func(t *testing.T, usr user.User, path string) page {
		rec := f.run(t, httpTest{method: http.MethodGet, path: path, token: getToken(t, usr), wantCode: http.StatusOK})
		var p page
		unmarshal(t, rec, &p)
		return p
	}

	t.Run("students see their own", func(t *testing.T) {
		p := query(t, f.student, "/api/reports")
		assert.Equal(t, 1, p.Count)
		require.Len(t, p.Results, 1)
		assert.Equal(t, rep.ID, p.Results[0].ID)
	})

	t.Run("admin sees all", func(t *testing.T) {
		p := query(t, f.admin, "/api/reports?ordering=title")
		assert.Equal(t, 2, p.Count)
		require.Len(t, p.Results, 2)
		assert.Equal(t, "Compilers", p.Results[0].Title)
	})

	t.Run("status filter", func(t *testing.T) {
		p := query(t, f.admin, "/api/reports?status=evaluated")
		assert.Equal(t, 0, p.Count)
		assert.Empty(t, p.Results)
	})

	t.Run("student name filter", func(t *testing.T) {
		p := query(t, f.mentor, "/api/reports?student=jroe")
		assert.Equal(t, 1, p.Count)
	})
}

func Test_reportApi_feedback(t *testing.T) {
	f := setupReports(t)
	rep := f.submitReport(t)
	mentorToken := getToken(t, f.mentor)
	path := "/api/reports/" + rep.ID + "/feedback"

	status := func(t *testing.T) string {
		got, err := f.repRepo.GetReport(f.ctx, rep.ID)
		require.NoError(t, err)
		return got.Status
	}

	rec := f.run(t, httpTest{method: http.MethodGet, path: path, token: mentorToken, wantCode: http.StatusOK})
	var fb report.Feedback
	unmarshal(t, rec, &fb)
	assert.Equal(t, f.mentor.ID, fb.EvaluatorID)
	assert.Equal(t, report.DefaultMaxGrade, fb.MaxGrade)
	assert.False(t, fb.Grade.Valid)
	assert.Equal(t, report.StatusSubmitted, status(t))

	tests := []struct {
		httpTest
		wantStatus string
	}{
		{
			httpTest: httpTest{
				name:     "grade above max",
				body:     []byte(`{"grade":120,"max_grade":100}`),
				wantCode: http.StatusBadRequest,
			},
			wantStatus: report.StatusSubmitted,
		},
		{
			httpTest: httpTest{
				name:     "comments only",
				body:     []byte(`{"comments":"  needs a conclusion  "}`),
				wantCode: http.StatusOK,
			},
			wantStatus: report.StatusUnderReview,
		},
		{
			httpTest: httpTest{
				name:     "graded",
				body:     []byte(`{"comments":"good work","grade":85,"max_grade":100}`),
				wantCode: http.StatusOK,
			},
			wantStatus: report.StatusEvaluated,
		},
		{
			httpTest: httpTest{
				name:     "grade removed",
				body:     []byte(`{"comments":"regraded","grade":null}`),
				wantCode: http.StatusOK,
			},
			wantStatus: report.StatusUnderReview,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path, tt.token = http.MethodPut, path, mentorToken
			f.run(t, tt.httpTest)
			assert.Equal(t, tt.wantStatus, status(t))
		})
	}

	t.Run("student is told about the grade", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		rec := f.run(t, httpTest{
			method:   http.MethodPut,
			path:     path,
			token:    mentorToken,
			body:     []byte(`{"comments":"well done","grade":45,"max_grade":90}`),
			wantCode: http.StatusOK,
		})
		var saved map[string]interface{}
		unmarshal(t, rec, &saved)
		assert.Equal(t, "well done", saved["comments"])
		assert.Equal(t, 50.0, saved["grade_percentage"])

		msgs := emailsvc.GetSentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, f.student.Email, msgs[0].To[0].Address)
	})

	t.Run("detail", func(t *testing.T) {
		rec := f.run(t, httpTest{method: http.MethodGet, path: "/api/reports/" + rep.ID, token: mentorToken, wantCode: http.StatusOK})
		var dtl report.Detail
		unmarshal(t, rec, &dtl)
		assert.True(t, dtl.CanGrade)
		require.NotNil(t, dtl.UserFeedback)
		assert.Equal(t, "well done", dtl.UserFeedback.Comments)
		assert.Len(t, dtl.Feedback, 1)
		assert.Equal(t, f.student.ID, dtl.Student.ID)
	})
}

func Test_reportApi_assignEvaluator(t *testing.T) {
	f := setupReports(t)
	rep := f.submitReport(t)
	adminToken := getToken(t, f.admin)
	path := "/api/reports/" + rep.ID

	rec := f.run(t, httpTest{method: http.MethodGet, path: path + "/evaluators", token: adminToken, wantCode: http.StatusOK})
	var available []user.User
	unmarshal(t, rec, &available)
	require.Len(t, available, 1)
	assert.Equal(t, f.outsider.ID, available[0].ID)

	tests := []httpTest{
		{
			name:     "not an evaluator",
			body:     marchallObj(t, map[string]string{"evaluator_id": f.student.ID}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"evaluator_id":"selected user is not an evaluator"}`),
		},
		{
			name:     "missing evaluator",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"evaluator_id":"this field is required"}`),
		},
		{name: "assigned", body: marchallObj(t, map[string]string{"evaluator_id": f.outsider.ID}), wantCode: http.StatusCreated},
		{name: "already assigned", body: marchallObj(t, map[string]string{"evaluator_id": f.outsider.ID}), wantCode: http.StatusOK},
		{name: "non admin", token: getToken(t, f.mentor), body: marchallObj(t, map[string]string{"evaluator_id": f.outsider.ID}), wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, path+"/assign"
			if tt.token == "" {
				tt.token = adminToken
			}
			f.run(t, tt)
		})
	}

	// the assigned evaluator can now grade
	f.run(t, httpTest{method: http.MethodGet, path: path + "/feedback", token: getToken(t, f.outsider), wantCode: http.StatusOK})
}
