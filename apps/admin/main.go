package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
	appfs "github.com/trezcool/reportal/fs"
	emailsvc "github.com/trezcool/reportal/services/email"
	logsvc "github.com/trezcool/reportal/services/logger"
	"github.com/trezcool/reportal/services/notify"
	"github.com/trezcool/reportal/storage/database"
	sqlxrepos "github.com/trezcool/reportal/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	os.Exit(run(conf, logger))
}

func run(conf *core.Config, logger *logsvc.ZapLogger) int {
	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Error("opening database", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	if err = db.Ping(); err != nil {
		logger.Error("pinging database", err)
		return 1
	}

	mailSvc, err := emailsvc.New(conf)
	if err != nil {
		logger.Error("setting up email service", err)
		return 1
	}
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	// start CLI
	cli := newCommandLine(db, conf, logger, notify.New(mailSvc))
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		return 1
	}
	return 0
}

func newCommandLine(db *sqlx.DB, conf *core.Config, logger core.Logger, notifier user.Notifier) *commandLine {
	usrRepo := sqlxrepos.NewUserRepository(db)
	return &commandLine{
		db:      db,
		usrRepo: usrRepo,
		usrSvc: user.NewService(
			database.NewTransactor(db),
			usrRepo,
			sqlxrepos.NewAssignmentRepository(db),
			notifier,
			logger,
			conf,
		),
	}
}
