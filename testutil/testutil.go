// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
	appfs "github.com/trezcool/reportal/fs"
	logsvc "github.com/trezcool/reportal/services/logger"
	"github.com/trezcool/reportal/storage/database"
)

// Password satisfies the password policy.
const Password = "Rep0rt@l-Pwd"

var (
	confOnce sync.Once
	conf     *core.Config

	validatorsOnce sync.Once
	validate       *validator.Validate
	translator     ut.Translator
)

// Config returns the TEST environment config.
func Config() *core.Config {
	confOnce.Do(func() {
		_ = os.Setenv("ENV", "TEST")
		conf = core.NewConfig()
	})
	return conf
}

// Validator returns a validator with every app validator registered, and parses the email templates.
func Validator() (*validator.Validate, ut.Translator) {
	validatorsOnce.Do(func() {
		logger := logsvc.NewNopLogger()
		validate = validator.New()
		translator = core.NewTranslator()
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		report.InitValidators(validate, translator)
		user.LoadCommonPasswords(appfs.FS, logger)
		core.ParseEmailTemplates(appfs.FS, Config(), logger)
	})
	return validate, translator
}

// UserOption customizes the users created by CreateUser.
type UserOption func(usr *user.User)

func WithName(first, last string) UserOption {
	return func(usr *user.User) { usr.FirstName, usr.LastName = first, last }
}

func WithDepartment(dept string) UserOption {
	return func(usr *user.User) { usr.Department = dept }
}

func WithBatch(batch string) UserOption {
	return func(usr *user.User) { usr.Batch = batch }
}

func WithStudentID(id string) UserOption {
	return func(usr *user.User) { usr.StudentID = id }
}

func Pending() UserOption {
	return func(usr *user.User) {
		usr.IsActive = false
		usr.ApprovalStatus = user.ApprovalPending
	}
}

func Inactive() UserOption {
	return func(usr *user.User) { usr.IsActive = false }
}

func CreatedAt(t time.Time) UserOption {
	return func(usr *user.User) {
		usr.CreatedAt = t.UTC()
		usr.UpdatedAt = t.UTC()
	}
}

// CreateUser creates an active, approved user with Password. Students get a student ID from their username.
func CreateUser(t testing.TB, repo user.Repository, role, uname string, opts ...UserOption) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Username:       uname,
		Email:          uname + "@reportal.test",
		FirstName:      uname,
		Role:           role,
		IsActive:       true,
		ApprovalStatus: user.ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if role == user.RoleStudent {
		usr.StudentID = "ST-" + uname
	}
	for _, opt := range opts {
		opt(&usr)
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// PrepareDB opens the TEST database, migrates it and empties it.
// Tests are skipped when TEST_DATABASE_HOST is not set.
func PrepareDB(t testing.TB) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}

	c := Config()
	if err := database.CreateIfNotExist(c); err != nil {
		t.Fatalf("database.CreateIfNotExist() failed: %v", err)
	}
	db, err := database.Open(c)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	FlushDB(t, db)
	return db
}

// FlushDB empties every app table.
func FlushDB(t testing.TB, db *sqlx.DB) {
	t.Helper()
	q := "TRUNCATE feedback, report_assignment, evaluator_student_assignment, project_report, users CASCADE"
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("FlushDB() failed: %v", err)
	}
}
