package main

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func (cli *commandLine) userIDs(ctx context.Context, unames []string) ([]string, error) {
	ids := make([]string, 0, len(unames))
	for _, uname := range unames {
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", uname, err)
		}
		ids = append(ids, usr.ID)
	}
	return ids, nil
}

func (cli *commandLine) setActive(unames []string, active bool) error {
	ctx := context.Background()
	ids, err := cli.userIDs(ctx, unames)
	if err != nil {
		return err
	}
	cnt, err := cli.usrSvc.SetActive(ctx, active, ids...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "%d user(s) updated\n", cnt)
	return nil
}

// generatePasswords prints every generated password so that the ones which could not be emailed can be handed over.
func (cli *commandLine) generatePasswords(unames []string) error {
	ctx := context.Background()
	ids, err := cli.userIDs(ctx, unames)
	if err != nil {
		return err
	}
	pwds, err := cli.usrSvc.GenerateRandomPasswords(ctx, ids...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tPASSWORD\tEMAILED")
	for _, p := range pwds {
		fmt.Fprintf(w, "%s\t%s\t%t\n", p.Username, p.Password, p.EmailSent)
	}
	return w.Flush()
}
