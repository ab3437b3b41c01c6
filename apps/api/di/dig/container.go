package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/quizmaster/backend/apps/api/echo"
	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/export"
	"github.com/quizmaster/backend/core/jobs"
	"github.com/quizmaster/backend/core/notify"
	"github.com/quizmaster/backend/core/quiz"
	"github.com/quizmaster/backend/core/reminder"
	"github.com/quizmaster/backend/core/report"
	appfs "github.com/quizmaster/backend/fs"
	emailsvc "github.com/quizmaster/backend/services/email"
	logsvc "github.com/quizmaster/backend/services/logger"
	smssvc "github.com/quizmaster/backend/services/sms"
	webhooksvc "github.com/quizmaster/backend/services/webhook"
	"github.com/quizmaster/backend/storage/artifacts"
	"github.com/quizmaster/backend/storage/database"
	inmemdb "github.com/quizmaster/backend/storage/database/inmem"
	sqlxrepos "github.com/quizmaster/backend/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	JobLoggerParam struct {
		dig.In
		Logger core.Logger `name:"jobLogger"`
	}
)

// newValidator registers the custom tags before anything, config included, is validated.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newConfig(validate *validator.Validate) (*core.Config, error) {
	conf, err := core.NewConfig()
	if err != nil {
		return nil, err
	}
	if err = conf.Validate(validate); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return conf, nil
}

func newStdLogger(conf *core.Config, prefix string, flags int) core.Logger {
	stdLogger := log.New(os.Stdout, prefix, flags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode) && conf.RollbarToken != "")
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newStdLogger(conf, "API : ", log.LstdFlags)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newStdLogger(conf, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newJobLogger(conf *core.Config) core.Logger {
	return newStdLogger(conf, "JOBS : ", log.LstdFlags|log.Lmicroseconds)
}

// newDB returns nil for the inmem engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	if conf.Database.Engine == "inmem" {
		loggerParam.Logger.Warn("using the in-memory database: data is not persisted")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "setting up database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRepository(db *sqlx.DB) quiz.Repository {
	if db == nil {
		return inmemdb.NewActivityRepository(inmemdb.Open())
	}
	return sqlxrepos.NewActivityRepository(db)
}

func newTemplates(conf *core.Config) (*core.Templates, error) {
	return core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf.AppName, conf.AppURL, conf.Debug || conf.TestMode)
}

func newEmailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	switch conf.Mail.Backend {
	case "smtp":
		return emailsvc.NewSMTPService(conf)
	case "sendgrid":
		return emailsvc.NewSendgridService(conf, logger)
	}
	return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
}

func newChannels(conf *core.Config, mailSvc core.EmailService, loggerParam JobLoggerParam) notify.Channels {
	logger := loggerParam.Logger
	return notify.Channels{
		Email:   notify.NewEmailChannel(mailSvc, logger),
		Webhook: webhooksvc.NewGChatPoster(logger),
		SMS:     smssvc.NewTwilioSender(conf, logger),
	}
}

func newArtifactStore(conf *core.Config) (export.ArtifactStore, error) {
	return artifacts.New(context.Background(), conf)
}

func newReminderService(
	quizzes *quiz.Service,
	channels notify.Channels,
	tmpls *core.Templates,
	conf *core.Config,
	loggerParam JobLoggerParam,
) (*reminder.Service, error) {
	return reminder.NewService(quizzes, channels, tmpls, conf, loggerParam.Logger)
}

func newReportService(
	quizzes *quiz.Service,
	channels notify.Channels,
	tmpls *core.Templates,
	conf *core.Config,
	loggerParam JobLoggerParam,
) (*report.Service, error) {
	return report.NewService(quizzes, channels.Email, tmpls, conf, loggerParam.Logger)
}

func newExportService(quizzes *quiz.Service, store export.ArtifactStore, conf *core.Config, loggerParam JobLoggerParam) (*export.Service, error) {
	return export.NewService(quizzes, store, conf, loggerParam.Logger)
}

func newRunner(conf *core.Config, loggerParam JobLoggerParam) *jobs.Runner {
	return jobs.NewRunner(conf, loggerParam.Logger)
}

// newScheduler registers the recurring jobs; reminders are keyed by hour, reports by month.
func newScheduler(
	conf *core.Config,
	runner *jobs.Runner,
	reminders *reminder.Service,
	reports *report.Service,
	loggerParam JobLoggerParam,
) (*jobs.Scheduler, error) {
	s, err := jobs.NewScheduler(runner, conf, loggerParam.Logger)
	if err != nil {
		return nil, err
	}

	err = s.Register(echoapi.KindDailyReminders, conf.Jobs.ReminderSchedule, jobs.HourPeriod,
		func(ctx context.Context, at time.Time) (interface{}, error) {
			return reminders.SendDailyRemindersAt(ctx, at)
		},
	)
	if err != nil {
		return nil, err
	}

	err = s.Register(echoapi.KindMonthlyReports, conf.Jobs.ReportSchedule, jobs.MonthPeriod,
		func(ctx context.Context, at time.Time) (interface{}, error) {
			return reports.SendMonthlyReportsAt(ctx, at)
		},
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newDeps(
	runner *jobs.Runner,
	reminders *reminder.Service,
	reports *report.Service,
	exports *export.Service,
	store export.ArtifactStore,
) *echoapi.Deps {
	return &echoapi.Deps{
		Runner:    runner,
		Reminders: reminders,
		Reports:   reports,
		Exports:   exports,
		Artifacts: store,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newJobLogger, dig.Name("jobLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepository))
	must(c.Provide(quiz.NewService))
	must(c.Provide(newTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(newChannels))
	must(c.Provide(newArtifactStore))
	must(c.Provide(newReminderService))
	must(c.Provide(newReportService))
	must(c.Provide(newExportService))
	must(c.Provide(newRunner))
	must(c.Provide(newScheduler))
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(fmt.Sprintf("failed to provide dependency: %v", err))
	}
}
