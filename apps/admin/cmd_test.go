package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reportal/core/user"
	logsvc "github.com/trezcool/reportal/services/logger"
	dummydb "github.com/trezcool/reportal/storage/database/dummy"
	"github.com/trezcool/reportal/testutil"
)

type fixture struct {
	cli      *commandLine
	usrRepo  user.Repository
	notifier *user.NotifierMock
	out      *bytes.Buffer
}

func setup(t *testing.T) *fixture {
	db := dummydb.Open()
	f := &fixture{
		usrRepo:  dummydb.NewUserRepository(db),
		notifier: &user.NotifierMock{},
		out:      new(bytes.Buffer),
	}
	f.cli = &commandLine{
		usrRepo: f.usrRepo,
		usrSvc: user.NewService(
			db,
			f.usrRepo,
			dummydb.NewAssignmentRepository(db),
			f.notifier,
			logsvc.NewNopLogger(),
			testutil.Config(),
		),
		out: f.out,
	}
	return f
}

func (f *fixture) getUser(t *testing.T, id string) user.User {
	usr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: id})
	require.NoError(t, err)
	return usr
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) run(t *testing.T, cli *commandLine) {
	t.Helper()
	mockPassword(t, tt.pwd)

	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, f.cli)
		})
	}
	assert.Contains(t, f.out.String(), "createadmin [-username USERNAME]")
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	orig := gooseRunFunc
	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "report_tags", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, f.cli)
		})
	}
}

func Test_commandLine_createAdmin(t *testing.T) {
	f := setup(t)
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jdoe")

	t.Run("defaults", func(t *testing.T) {
		cliTest{args: []string{"createadmin"}}.run(t, f.cli)

		admin, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{UsernameOrEmail: defaultAdminUsername})
		require.NoError(t, err)
		assert.Equal(t, defaultAdminEmail, admin.Email)
		assert.True(t, admin.IsAdmin())
		assert.True(t, admin.IsActive)
		assert.Equal(t, user.ApprovalApproved, admin.ApprovalStatus)

		out := f.out.String()
		require.Contains(t, out, "password: ")
		pwd := strings.TrimSpace(out[strings.LastIndex(out, "password: ")+len("password: "):])
		assert.Len(t, pwd, generatedPasswordLen)
		assert.NoError(t, admin.CheckPassword(pwd))
	})

	tests := []cliTest{
		{name: "prompt: no password", args: []string{"createadmin", "-username", "root", "-prompt"}, wantErr: errHelp},
		{name: "prompt", args: []string{"createadmin", "-username", "Root", "-email", "ROOT@reportal.test", "-prompt"}, pwd: "s3cret"},
		{name: "promote", args: []string{"createadmin", "-username", "ignored", "-email", student.Email, "-prompt"}, pwd: "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, f.cli)
		})
	}

	root, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{UsernameOrEmail: "root"})
	require.NoError(t, err)
	assert.Equal(t, "root@reportal.test", root.Email)
	assert.True(t, root.IsAdmin())
	assert.NoError(t, root.CheckPassword("s3cret"))

	promoted := f.getUser(t, student.ID)
	assert.Equal(t, "jdoe", promoted.Username)
	assert.True(t, promoted.IsAdmin())
	assert.Empty(t, promoted.StudentID)
	assert.NoError(t, promoted.CheckPassword("s3cret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "awe")

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, f.cli)
			if tt.wantErr == nil {
				assert.NoError(t, f.getUser(t, usr.ID).CheckPassword(tt.pwd))
			}
		})
	}
}

func Test_commandLine_accounts(t *testing.T) {
	f := setup(t)
	mentor := testutil.CreateUser(t, f.usrRepo, user.RoleEvaluator, "mentor")
	student := testutil.CreateUser(t, f.usrRepo, user.RoleStudent, "jdoe")

	tests := []cliTest{
		{name: "activate: no users", args: []string{"activate"}, wantErr: errHelp},
		{name: "deactivate: blank users", args: []string{"deactivate", "-users", " , "}, wantErr: errHelp},
		{name: "deactivate: unknown user", args: []string{"deactivate", "-users", "mentor,lol"}, wantErr: user.ErrNotFound},
		{name: "deactivate", args: []string{"deactivate", "-users", "mentor, jdoe@reportal.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, f.cli)
		})
	}
	assert.False(t, f.getUser(t, mentor.ID).IsActive)
	assert.False(t, f.getUser(t, student.ID).IsActive)

	cliTest{args: []string{"activate", "-users", "jdoe"}}.run(t, f.cli)
	assert.True(t, f.getUser(t, student.ID).IsActive)
	assert.False(t, f.getUser(t, mentor.ID).IsActive)

	t.Run("genpasswords", func(t *testing.T) {
		f.out.Reset()
		cliTest{args: []string{"genpasswords", "-users", "jdoe"}}.run(t, f.cli)

		assert.Contains(t, f.out.String(), "USERNAME")
		assert.Contains(t, f.out.String(), "jdoe")
		require.Len(t, f.notifier.Calls, 1)
		call := f.notifier.Calls[0]
		assert.Equal(t, student.ID, call.User.ID)
		assert.Len(t, call.Password, 12)
		assert.Contains(t, f.out.String(), call.Password)
		assert.NoError(t, f.getUser(t, student.ID).CheckPassword(call.Password))
	})
}
