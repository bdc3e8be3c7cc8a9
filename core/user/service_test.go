package user_test

import (
	"context"
	"fmt"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/user"
	appfs "github.com/trezcool/reportal/fs"
	emailsvc "github.com/trezcool/reportal/services/email"
	logsvc "github.com/trezcool/reportal/services/logger"
	"github.com/trezcool/reportal/services/notify"
	dummydb "github.com/trezcool/reportal/storage/database/dummy"
	"github.com/trezcool/reportal/testutil"
)

type fixture struct {
	ctx      context.Context
	db       *dummydb.DB
	repo     user.Repository
	asgRepo  assignment.Repository
	notifier *user.NotifierMock
	svc      user.Service
	validate *validator.Validate
}

func setup(t *testing.T) *fixture {
	t.Helper()
	validate, _ := testutil.Validator()
	db := dummydb.Open()
	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		repo:     dummydb.NewUserRepository(db),
		asgRepo:  dummydb.NewAssignmentRepository(db),
		notifier: new(user.NotifierMock),
		validate: validate,
	}
	f.svc = user.NewService(db, f.repo, f.asgRepo, f.notifier, logsvc.NewNopLogger(), testutil.Config())
	return f
}

func newStudent(uname string) user.NewStudent {
	return user.NewStudent{
		Username:        uname,
		Email:           uname + "@uni.test",
		FirstName:       "Jane",
		LastName:        "Roe",
		StudentID:       "S-" + uname,
		Department:      "Computer Science",
		Batch:           "2022",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
}

func (f *fixture) register(t *testing.T, uname string) user.User {
	t.Helper()
	ns := newStudent(uname)
	require.NoError(t, ns.Validate(f.ctx, f.validate, f.svc))
	usr, err := f.svc.Register(f.ctx, ns)
	require.NoError(t, err)
	return usr
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	_, translator := testutil.Validator()
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		return core.TranslateErrors(e, translator)
	case *core.ValidationError:
		flds := make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			flds[fe.Field] = fe.Error
		}
		return flds
	}
	t.Fatalf("not a validation error: %v", err)
	return nil
}

func TestNewStudent_Validate(t *testing.T) {
	f := setup(t)
	f.register(t, "taken")

	tests := []struct {
		name    string
		mutate  func(ns *user.NewStudent)
		wantFld string
		wantMsg string
	}{
		{"missing student id", func(ns *user.NewStudent) { ns.StudentID = " " }, "student_id", "this field is required"},
		{"bad username", func(ns *user.NewStudent) { ns.Username = "jane doe" }, "username", "only alphanumeric characters and underscores are allowed"},
		{"bad email", func(ns *user.NewStudent) { ns.Email = "nope" }, "email", ""},
		{"passwords mismatch", func(ns *user.NewStudent) { ns.PasswordConfirm = "other" }, "password_confirm", ""},
		{"short password", func(ns *user.NewStudent) { ns.Password, ns.PasswordConfirm = "Ab1!", "Ab1!" }, "password", "password must contain at least 8 characters"},
		{"numeric password", func(ns *user.NewStudent) { ns.Password, ns.PasswordConfirm = "12345678", "12345678" }, "password", "password cannot be entirely numeric"},
		{"whitespace", func(ns *user.NewStudent) { ns.Password, ns.PasswordConfirm = "Abc 123!xy", "Abc 123!xy" }, "password", "password must not contain whitespace"},
		{"simple password", func(ns *user.NewStudent) { ns.Password, ns.PasswordConfirm = "abcdefgh1", "abcdefgh1" }, "password", ""},
		{"similar to username", func(ns *user.NewStudent) {
			ns.Username = "wonderwoman"
			ns.Password, ns.PasswordConfirm = "W0nderwoman!", "W0nderwoman!"
		}, "password", "password cannot be similar to user attributes"},
		{"duplicate username", func(ns *user.NewStudent) { ns.Username = "TAKEN" }, "username", user.ErrUsernameExists.Error()},
		{"duplicate email", func(ns *user.NewStudent) { ns.Email = "taken@uni.test" }, "email", user.ErrEmailExists.Error()},
		{"duplicate student id", func(ns *user.NewStudent) { ns.StudentID = "S-taken" }, "student_id", user.ErrStudentIDExists.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := newStudent("fresh")
			tt.mutate(&ns)
			err := ns.Validate(f.ctx, f.validate, f.svc)
			require.Error(t, err)
			flds := fieldErrors(t, err)
			require.Contains(t, flds, tt.wantFld)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, flds[tt.wantFld])
			}
		})
	}
}

func TestRegisterApproveLogin(t *testing.T) {
	f := setup(t)
	evaluator := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "mentor")

	student := f.register(t, "jroe")
	assert.Equal(t, user.ApprovalPending, student.ApprovalStatus)
	assert.False(t, student.IsActive)
	assert.Equal(t, []string{"registration_received"}, f.notifier.Kinds())

	_, err := f.svc.Authenticate(f.ctx, "jroe", testutil.Password)
	assert.Equal(t, user.ErrPendingApproval, err)
	assert.Equal(t, "your account is pending approval by an evaluator", err.Error())

	pending, err := f.svc.QueryPending(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, student.ID, pending[0].ID)

	approved, err := f.svc.Approve(f.ctx, evaluator, student.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsActive)
	assert.Equal(t, user.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, evaluator.ID, approved.ApprovedBy.String)
	assert.True(t, approved.ApprovalDate.Valid)
	assert.Equal(t, []string{"registration_received", "student_approved"}, f.notifier.Kinds())

	mappings, err := f.asgRepo.QueryStudentAssignments(f.ctx, assignment.StudentFilter{EvaluatorIDs: []string{evaluator.ID}, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, student.ID, mappings[0].StudentID)

	usr, err := f.svc.Authenticate(f.ctx, "JRoe@uni.test", testutil.Password)
	require.NoError(t, err)
	assert.True(t, usr.LastLogin.Valid)

	_, err = f.svc.Approve(f.ctx, evaluator, student.ID)
	assert.Equal(t, user.ErrNotPending, err)

	pending, err = f.svc.QueryPending(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReject(t *testing.T) {
	f := setup(t)
	evaluator := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "mentor")
	other := testutil.CreateUser(t, f.repo, user.RoleStudent, "other")
	student := f.register(t, "jroe")

	_, err := f.svc.Reject(f.ctx, other, student.ID)
	assert.Equal(t, user.ErrForbidden, err)

	rejected, err := f.svc.Reject(f.ctx, evaluator, student.ID)
	require.NoError(t, err)
	assert.False(t, rejected.IsActive)
	assert.Equal(t, user.ApprovalRejected, rejected.ApprovalStatus)
	assert.Contains(t, f.notifier.Kinds(), "student_rejected")

	_, err = f.svc.Authenticate(f.ctx, "jroe", testutil.Password)
	assert.Equal(t, user.ErrRegistrationRejected, err)
	assert.Equal(t, "your registration has been rejected", err.Error())

	_, err = f.svc.Approve(f.ctx, evaluator, student.ID)
	assert.Equal(t, user.ErrNotPending, err, "rejection is permanent")

	_, err = f.svc.Reject(f.ctx, evaluator, evaluator.ID)
	assert.Equal(t, user.ErrNotFound, err, "only students")
}

func TestAuthenticate(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	testutil.CreateUser(t, f.repo, user.RoleEvaluator, "retired", testutil.Inactive())

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{"unknown user", "nobody", testutil.Password, user.ErrInvalidCredentials},
		{"wrong password", "admin", "wrong", user.ErrInvalidCredentials},
		{"deactivated", "retired", testutil.Password, user.ErrAccountDeactivated},
		{"by username", " Admin ", testutil.Password, nil},
		{"by email", "admin@reportal.test", testutil.Password, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Authenticate(f.ctx, tt.uname, tt.pwd)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestCreate(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	evaluator := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "mentor")

	nu := user.NewUser{Username: "prof", Email: "prof@uni.test", Role: user.RoleEvaluator, Department: "Physics"}
	require.NoError(t, nu.Validate(f.ctx, f.validate, f.svc))

	_, err := f.svc.Create(f.ctx, evaluator, nu)
	assert.Equal(t, user.ErrForbidden, err)

	acc, err := f.svc.Create(f.ctx, admin, nu)
	require.NoError(t, err)
	assert.True(t, acc.EmailSent)
	assert.Empty(t, acc.Password)
	assert.True(t, acc.User.IsActive)
	assert.Equal(t, user.ApprovalApproved, acc.User.ApprovalStatus)

	require.Len(t, f.notifier.Calls, 1)
	sentPwd := f.notifier.Calls[0].Password
	assert.NotEmpty(t, sentPwd)
	_, err = f.svc.Authenticate(f.ctx, "prof", sentPwd)
	assert.NoError(t, err)

	// the password is handed back when the credentials email fails
	f.notifier.Err = errors.New("smtp down")
	nu = user.NewUser{Username: "prof2", Email: "prof2@uni.test", Role: user.RoleEvaluator}
	require.NoError(t, nu.Validate(f.ctx, f.validate, f.svc))
	acc, err = f.svc.Create(f.ctx, admin, nu)
	require.NoError(t, err)
	assert.False(t, acc.EmailSent)
	require.NotEmpty(t, acc.Password)
	_, err = f.svc.Authenticate(f.ctx, "prof2", acc.Password)
	assert.NoError(t, err)
}

func TestCreateStudent(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	evaluator := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "mentor", testutil.WithDepartment("Maths"))

	nu := user.NewUser{Username: "kid", Email: "kid@uni.test", StudentID: "S-1"}
	require.NoError(t, nu.Validate(f.ctx, f.validate, f.svc))

	_, err := f.svc.CreateStudent(f.ctx, admin, nu)
	assert.Equal(t, user.ErrForbidden, err)

	acc, err := f.svc.CreateStudent(f.ctx, evaluator, nu)
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, acc.User.Role)
	assert.Equal(t, "Maths", acc.User.Department)
	assert.Equal(t, evaluator.ID, acc.User.ApprovedBy.String)
	assert.True(t, acc.User.IsActive)

	students, err := f.svc.QueryStudents(f.ctx, evaluator)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, acc.User.ID, students[0].ID)

	_, err = f.svc.CreateStudent(f.ctx, evaluator, user.NewUser{Username: "nosid", Email: "nosid@uni.test"})
	assert.Contains(t, fieldErrors(t, err), "student_id")
}

func TestQueryStudents(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	ev1 := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "ev1")
	ev2 := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "ev2")
	s1 := testutil.CreateUser(t, f.repo, user.RoleStudent, "s1")
	s2 := testutil.CreateUser(t, f.repo, user.RoleStudent, "s2")
	testutil.CreateUser(t, f.repo, user.RoleStudent, "s3")

	cnt, err := f.svc.AssignStudents(f.ctx, ev1, ev1.ID, []string{s1.ID})
	assert.Equal(t, user.ErrForbidden, err)
	assert.Zero(t, cnt)

	cnt, err = f.svc.AssignStudents(f.ctx, admin, ev1.ID, []string{s1.ID, s2.ID, ev2.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, cnt, "only students are mapped")

	cnt, err = f.svc.AssignStudents(f.ctx, admin, ev1.ID, []string{s1.ID, s2.ID})
	require.NoError(t, err)
	assert.Zero(t, cnt, "mappings are not duplicated")

	_, err = f.svc.AssignStudents(f.ctx, admin, s1.ID, []string{s2.ID})
	assert.Equal(t, user.ErrNotFound, err)

	tests := []struct {
		name    string
		actor   user.User
		want    []string
		wantErr error
	}{
		{"admin sees all", admin, []string{"s1", "s2", "s3"}, nil},
		{"mapped students", ev1, []string{"s1", "s2"}, nil},
		{"no mapping", ev2, []string{}, nil},
		{"students cannot", s1, nil, user.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := f.svc.QueryStudents(f.ctx, tt.actor)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
			if tt.wantErr == nil {
				unames := make([]string, 0, len(students))
				for _, s := range students {
					unames = append(unames, s.Username)
				}
				assert.ElementsMatch(t, tt.want, unames)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	testutil.CreateUser(t, f.repo, user.RoleEvaluator, "ada", testutil.WithName("Ada", "Lovelace"), testutil.WithDepartment("Computer Science"))
	testutil.CreateUser(t, f.repo, user.RoleEvaluator, "alan", testutil.WithName("Alan", "Turing"), testutil.WithDepartment("Maths"), testutil.Inactive())
	testutil.CreateUser(t, f.repo, user.RoleStudent, "grace", testutil.WithName("Grace", "Hopper"), testutil.WithDepartment("computer science"))
	testutil.CreateUser(t, f.repo, user.RoleStudent, "linus", testutil.Pending())

	active := true
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []string
	}{
		{"all", user.QueryFilter{}, []string{"admin", "ada", "alan", "grace", "linus"}},
		{"search", user.QueryFilter{Search: "LOVE"}, []string{"ada"}},
		{"role", user.QueryFilter{Roles: []string{user.RoleEvaluator}}, []string{"ada", "alan"}},
		{"department", user.QueryFilter{Department: "COMPUTER SCIENCE"}, []string{"ada", "grace"}},
		{"active", user.QueryFilter{IsActive: &active, Roles: []string{user.RoleEvaluator}}, []string{"ada"}},
		{"approval", user.QueryFilter{ApprovalStatus: []string{user.ApprovalPending}}, []string{"linus"}},
		{"no ids", user.QueryFilter{IDs: []string{}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			users, total, err := f.svc.Query(f.ctx, &filter, nil, core.Page{})
			require.NoError(t, err)
			unames := make([]string, 0, len(users))
			for _, u := range users {
				unames = append(unames, u.Username)
			}
			assert.ElementsMatch(t, tt.want, unames)
			assert.Equal(t, len(tt.want), total)
		})
	}

	users, total, err := f.svc.Query(f.ctx, &user.QueryFilter{}, []core.DBOrdering{{Field: "username", Ascending: true}}, core.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, users, 2)
	assert.Equal(t, "alan", users[0].Username)
	assert.Equal(t, "grace", users[1].Username)

	evaluators, err := f.svc.QueryEvaluators(f.ctx, " computer science ")
	require.NoError(t, err)
	require.Len(t, evaluators, 1)
	assert.Equal(t, "ada", evaluators[0].Username)
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	student := testutil.CreateUser(t, f.repo, user.RoleStudent, "jroe", testutil.WithDepartment("Maths"))

	uu := user.UpdateUser{FirstName: "Janet", PhoneNumber: "+243 810000000", Password: "N3w-Passw0rd", PasswordConfirm: "N3w-Passw0rd"}
	require.NoError(t, uu.Validate(f.ctx, student, f.validate, f.svc))
	usr, err := f.svc.Update(f.ctx, student.ID, uu)
	require.NoError(t, err)
	assert.Equal(t, "Janet", usr.FirstName)
	assert.Equal(t, "Maths", usr.Department, "blank fields are kept")
	assert.Equal(t, student.StudentID, usr.StudentID)

	_, err = f.svc.Authenticate(f.ctx, "jroe", "N3w-Passw0rd")
	assert.NoError(t, err)

	other := testutil.CreateUser(t, f.repo, user.RoleStudent, "other")
	uu = user.UpdateUser{Email: other.Email}
	err = uu.Validate(f.ctx, student, f.validate, f.svc)
	assert.Equal(t, user.ErrEmailExists.Error(), fieldErrors(t, err)["email"])

	uu = user.UpdateUser{Email: student.Email}
	assert.NoError(t, uu.Validate(f.ctx, student, f.validate, f.svc), "own email")

	_, err = f.svc.Update(f.ctx, "missing", user.UpdateUser{})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestBulkActions(t *testing.T) {
	f := setup(t)
	u1 := testutil.CreateUser(t, f.repo, user.RoleStudent, "u1")
	u2 := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "u2")

	cnt, err := f.svc.SetActive(f.ctx, false, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
	_, err = f.svc.Authenticate(f.ctx, "u1", testutil.Password)
	assert.Equal(t, user.ErrAccountDeactivated, err)

	cnt, err = f.svc.SetActive(f.ctx, true, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	_, err = f.svc.Authenticate(f.ctx, "u1", testutil.Password)
	assert.NoError(t, err)

	pwds, err := f.svc.GenerateRandomPasswords(f.ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	require.Len(t, pwds, 2)
	for _, gp := range pwds {
		assert.Len(t, gp.Password, 12)
		assert.True(t, gp.EmailSent)
		usr, err := f.repo.GetUser(f.ctx, user.GetFilter{ID: gp.UserID})
		require.NoError(t, err)
		assert.Error(t, usr.CheckPassword(testutil.Password), "password changed")
		assert.NoError(t, usr.CheckPassword(gp.Password))
	}
	assert.Equal(t, []string{"account_credentials", "account_credentials"}, f.notifier.Kinds())
}

func TestPasswordReset(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.repo, user.RoleStudent, "jroe")
	testutil.CreateUser(t, f.repo, user.RoleStudent, "pending", testutil.Pending())

	assert.Equal(t, user.ErrNotFound, errors.Cause(f.svc.RequestPasswordReset(f.ctx, "nobody@uni.test")))
	assert.Equal(t, user.ErrNotFound, errors.Cause(f.svc.RequestPasswordReset(f.ctx, "pending@reportal.test")))

	require.NoError(t, f.svc.RequestPasswordReset(f.ctx, " JROE@reportal.test "))
	require.Len(t, f.notifier.Calls, 1)
	token := f.notifier.Calls[0].Token
	uid := user.EncodeUID(usr)

	data := user.ResetUserPassword{UID: uid, Token: "bad-token-x", Password: "An0ther-Pwd", PasswordConfirm: "An0ther-Pwd"}
	require.NoError(t, data.Validate(f.validate))
	err := f.svc.ResetPassword(f.ctx, data)
	_, isValidation := err.(*core.ValidationError)
	assert.True(t, isValidation)

	data.Token = token
	require.NoError(t, f.svc.ResetPassword(f.ctx, data))
	_, err = f.svc.Authenticate(f.ctx, "jroe", "An0ther-Pwd")
	assert.NoError(t, err)

	// tokens are single use: the password hash changed
	data.Password, data.PasswordConfirm = "Y3t-An0ther", "Y3t-An0ther"
	err = f.svc.ResetPassword(f.ctx, data)
	_, isValidation = err.(*core.ValidationError)
	assert.True(t, isValidation)
}

type cleanerMock struct {
	ids       []string
	committed bool
	err       error
}

func (c *cleanerMock) CleanUpUserData(_ context.Context, ids []string, _ core.DBExecutor) (func(context.Context), error) {
	c.ids = ids
	return func(context.Context) { c.committed = true }, c.err
}

func TestDelete(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	evaluator := testutil.CreateUser(t, f.repo, user.RoleEvaluator, "mentor")
	student := testutil.CreateUser(t, f.repo, user.RoleStudent, "jroe")
	_, err := f.svc.AssignStudents(f.ctx, admin, evaluator.ID, []string{student.ID})
	require.NoError(t, err)

	failing := &cleanerMock{err: errors.New("boom")}
	f.svc.AddCleaners(failing)
	_, err = f.svc.Delete(f.ctx, student.ID)
	require.Error(t, err)
	assert.False(t, failing.committed)
	_, err = f.svc.GetByID(f.ctx, student.ID)
	assert.NoError(t, err, "rolled back")

	f = setup(t)
	admin = testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	evaluator = testutil.CreateUser(t, f.repo, user.RoleEvaluator, "mentor")
	student = testutil.CreateUser(t, f.repo, user.RoleStudent, "jroe")
	_, err = f.svc.AssignStudents(f.ctx, admin, evaluator.ID, []string{student.ID})
	require.NoError(t, err)

	cleaner := new(cleanerMock)
	f.svc.AddCleaners(cleaner)
	cnt, err := f.svc.Delete(f.ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	assert.Equal(t, []string{student.ID}, cleaner.ids)
	assert.True(t, cleaner.committed)

	_, err = f.svc.GetByID(f.ctx, student.ID)
	assert.Equal(t, user.ErrNotFound, err)
	mappings, err := f.asgRepo.QueryStudentAssignments(f.ctx, assignment.StudentFilter{EvaluatorIDs: []string{evaluator.ID}})
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestCreate_credentialsDelivery(t *testing.T) {
	f := setup(t)
	conf := testutil.Config()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := user.NewService(f.db, f.repo, f.asgRepo, notify.New(mailSvc), logsvc.NewNopLogger(), conf)
	admin := testutil.CreateUser(t, f.repo, user.RoleAdmin, "admin")
	t.Cleanup(func() { core.ParseEmailTemplates(appfs.FS, conf, logsvc.NewNopLogger()) })

	brokenTemplates := fstest.MapFS{
		"assets/templates/email/account_credentials.txt": &fstest.MapFile{Data: []byte(`{{define "content"}}{{.Data.Password}}{{end}}`)},
	}
	tests := []struct {
		name          string
		fsys          fs.FS
		wantEmailSent bool
	}{
		{name: "emailed", fsys: appfs.FS, wantEmailSent: true},
		{name: "template without base", fsys: brokenTemplates},
		{name: "no templates", fsys: fstest.MapFS{}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core.ParseEmailTemplates(tt.fsys, conf, logsvc.NewNopLogger())
			emailsvc.ResetSentMessages()

			uname := fmt.Sprintf("mentor%d", i)
			acc, err := svc.Create(f.ctx, admin, user.NewUser{Username: uname, Email: uname + "@uni.test", Role: user.RoleEvaluator})
			require.NoError(t, err)

			assert.Equal(t, tt.wantEmailSent, acc.EmailSent)
			if tt.wantEmailSent {
				assert.Empty(t, acc.Password)
				require.Len(t, emailsvc.GetSentMessages(), 1)
				return
			}
			assert.Empty(t, emailsvc.GetSentMessages())
			require.NotEmpty(t, acc.Password)
			usr, err := f.repo.GetUser(f.ctx, user.GetFilter{ID: acc.User.ID})
			require.NoError(t, err)
			assert.NoError(t, usr.CheckPassword(acc.Password))
		})
	}
}
