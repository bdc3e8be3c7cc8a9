package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/reportal/apps/api/echo"
	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
	appfs "github.com/trezcool/reportal/fs"
	emailsvc "github.com/trezcool/reportal/services/email"
	logsvc "github.com/trezcool/reportal/services/logger"
	"github.com/trezcool/reportal/services/notify"
	"github.com/trezcool/reportal/services/ratelimit"
	"github.com/trezcool/reportal/storage/database"
	sqlxrepos "github.com/trezcool/reportal/storage/database/sqlx"
	"github.com/trezcool/reportal/storage/files"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zap logger")
	}
	defer func() { _ = zl.Sync() }()
	logger := logsvc.NewRollbarLogger(zl, conf)
	defer logger.Close()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.Migrate(db, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	transactor := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	asgRepo := sqlxrepos.NewAssignmentRepository(db)

	// set up services
	store, err := files.New(context.Background(), conf)
	if err != nil {
		return errors.Wrap(err, "setting up file storage")
	}
	mailSvc, err := emailsvc.New(conf)
	if err != nil {
		return errors.Wrap(err, "setting up email service")
	}
	notifier := notify.New(mailSvc)

	usrSvc := user.NewService(transactor, usrRepo, asgRepo, notifier, logger, conf)
	repSvc := report.NewService(
		transactor,
		sqlxrepos.NewReportRepository(db),
		sqlxrepos.NewFeedbackRepository(db),
		asgRepo,
		usrRepo,
		store,
		notifier,
		logger,
	)
	usrSvc.AddCleaners(repSvc)

	// =========================================================================
	// Initialize App

	logger.Info("application initializing", map[string]interface{}{"version": conf.Build})
	defer logger.Info("application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	report.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, conf, logger)
	user.LoadCommonPasswords(appfs.FS, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Server.DebugHost != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error("debug server closed", err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(shutdown, &echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		ReportSvc:    repSvc,
		Validate:     validate,
		Translator:   translator,
		LoginLimiter: ratelimit.New(conf, "login", conf.Server.LoginRateLimit, conf.Server.LoginRateWindow),
		ResetLimiter: ratelimit.New(conf, "password-reset", conf.Server.LoginRateLimit, conf.Server.LoginRateWindow),
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening", map[string]interface{}{"host": conf.Server.Host})
		serverErrors <- server.Start(conf.Server.Host)
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info("start shutdown", map[string]interface{}{"signal": sig.String()})

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}
