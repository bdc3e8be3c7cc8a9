package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@reportal.local"
	generatedPasswordLen = 12
)

// createAdmin promotes an existing user (matched by username, then email) or creates a new administrator.
// The account is left active and approved with the given password; an empty one is generated and printed once.
func (cli *commandLine) createAdmin(uname, email, pwd string) error {
	ctx := context.Background()
	generated := pwd == ""
	if generated {
		var err error
		if pwd, err = core.RandomAlphaNum(generatedPasswordLen); err != nil {
			return errors.Wrap(err, "generating password")
		}
	}
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	exists := true
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: email})
	}
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		exists = false
		now := user.NowFunc().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}

	usr.Role = user.RoleAdmin
	usr.StudentID = ""
	usr.IsActive = true
	usr.ApprovalStatus = user.ApprovalApproved
	usr.UpdatedAt = user.NowFunc().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}

	if generated {
		fmt.Fprintf(cli.stdout(), "admin %q created, password: %s\n", usr.Username, pwd)
	}
	return nil
}
