package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core/user"
)

// resetPassword sets a new password on the user matching the username or email.
// Pending and rejected students stay locked out: only the approval gate lets them in.
func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = user.NowFunc().UTC()
	if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	fmt.Fprintf(cli.stdout(), "password of %q updated\n", usr.Username)
	return nil
}
