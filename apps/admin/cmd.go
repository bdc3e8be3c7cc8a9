package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/reportal/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
	usrSvc  user.Service
	out     io.Writer
}

func (cli *commandLine) stdout() io.Writer {
	if cli.out == nil {
		return os.Stdout
	}
	return cli.out
}

func (cli *commandLine) printUsage() {
	w := cli.stdout()
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  migrate COMMAND [ARGS] - run a migration command (up, down, status, version, ...)")
	fmt.Fprintln(w, "  createadmin [-username USERNAME] [-email EMAIL] [-prompt] - create or promote an administrator")
	fmt.Fprintln(w, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(w, "  activate -users USERNAME[,USERNAME] - activate accounts")
	fmt.Fprintln(w, "  deactivate -users USERNAME[,USERNAME] - deactivate accounts")
	fmt.Fprintln(w, "  genpasswords -users USERNAME[,USERNAME] - set and email random passwords")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.stdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.stdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func splitUsernames(val string) []string {
	unames := make([]string, 0)
	for _, uname := range strings.Split(val, ",") {
		if uname = strings.TrimSpace(uname); uname != "" {
			unames = append(unames, uname)
		}
	}
	return unames
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ExitOnError)
	createAdminUname := createAdminCmd.String("username", defaultAdminUsername, "The admin's username.")
	createAdminEmail := createAdminCmd.String("email", defaultAdminEmail, "The admin's email.")
	createAdminPrompt := createAdminCmd.Bool("prompt", false, "Prompt for the password instead of generating one.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	usersCmd := flag.NewFlagSet(args[1], flag.ExitOnError)
	usersList := usersCmd.String("users", "", "Comma-separated usernames or emails.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createAdminUname == "" || *createAdminEmail == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		if !*createAdminPrompt {
			return cli.createAdmin(*createAdminUname, *createAdminEmail, "")
		}
		pwd, err := cli.promptPassword(createAdminCmd)
		if err != nil {
			return err
		}
		return cli.createAdmin(*createAdminUname, *createAdminEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "activate", "deactivate", "genpasswords":
		if err := usersCmd.Parse(args[2:]); err != nil {
			return err
		}
		unames := splitUsernames(*usersList)
		if len(unames) == 0 {
			usersCmd.Usage()
			return errHelp
		}
		if args[1] == "genpasswords" {
			return cli.generatePasswords(unames)
		}
		return cli.setActive(unames, args[1] == "activate")

	default:
		cli.printUsage()
		return errHelp
	}
}
