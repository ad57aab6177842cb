package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/maktaba/apps/api/echo"
	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	"github.com/trezcool/maktaba/core/override"
	"github.com/trezcool/maktaba/core/payment"
	"github.com/trezcool/maktaba/core/report"
	"github.com/trezcool/maktaba/core/seat"
	"github.com/trezcool/maktaba/core/student"
	emailsvc "github.com/trezcool/maktaba/services/email"
	logsvc "github.com/trezcool/maktaba/services/logger"
	"github.com/trezcool/maktaba/storage/database"
	sqlxrepos "github.com/trezcool/maktaba/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	CronLoggerParam struct {
		dig.In
		Logger core.Logger `name:"cronLogger"`
	}

	serverParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		StudentSvc  *student.Service
		SeatSvc     *seat.Service
		PaymentSvc  *payment.Service
		OverrideSvc *override.Service
		ReportSvc   *report.Service
		Engine      *expiry.Engine
	}
)

func newRollbarLogger(conf *core.Config, prefix string) core.Logger {
	stdLogger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger     { return newRollbarLogger(conf, "API : ") }
func newDBLogger(conf *core.Config) core.Logger   { return newRollbarLogger(conf, "DB : ") }
func newCronLogger(conf *core.Config) core.Logger { return newRollbarLogger(conf, "CRON : ") }

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newClock(conf *core.Config) core.Clock {
	return conf.Today
}

func newNotifier(conf *core.Config, mailSvc core.EmailService, logger core.Logger) expiry.Notifier {
	if n := expiry.NewReportNotifier(mailSvc, conf.AdminEmail, logger); n != nil {
		return n
	}
	return nil // no report without an admin email
}

func newEngine(
	db core.DB,
	repo *sqlxrepos.ExpiryRepository,
	students *sqlxrepos.StudentRepository,
	seats *sqlxrepos.SeatRepository,
	payments *sqlxrepos.PaymentRepository,
	notifier expiry.Notifier,
	logger core.Logger,
) *expiry.Engine {
	return expiry.NewEngine(db, repo, students, seats, payments, notifier, logger)
}

func newScheduler(engine *expiry.Engine, clock core.Clock, conf *core.Config, loggerParam CronLoggerParam) *expiry.Scheduler {
	return expiry.NewScheduler(engine, clock, conf.Location, loggerParam.Logger)
}

func newStudentService(db core.DB, repo *sqlxrepos.StudentRepository, seats *sqlxrepos.SeatRepository, clock core.Clock) *student.Service {
	return student.NewService(db, repo, seats, clock)
}

func newSeatService(db core.DB, repo *sqlxrepos.SeatRepository, students *sqlxrepos.StudentRepository, clock core.Clock) *seat.Service {
	return seat.NewService(db, repo, students, clock)
}

func newPaymentService(db core.DB, repo *sqlxrepos.PaymentRepository, students *sqlxrepos.StudentRepository, clock core.Clock) *payment.Service {
	return payment.NewService(db, repo, students, clock)
}

func newOverrideService(db core.DB, repo *sqlxrepos.OverrideRepository, students *sqlxrepos.StudentRepository, clock core.Clock) *override.Service {
	return override.NewService(db, repo, students, clock)
}

func newReportService(
	db core.DB,
	students *sqlxrepos.StudentRepository,
	seats *sqlxrepos.SeatRepository,
	payments *sqlxrepos.PaymentRepository,
	overrides *sqlxrepos.OverrideRepository,
	clock core.Clock,
) *report.Service {
	return report.NewService(db, students, seats, payments, overrides, clock)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		StudentSvc:  p.StudentSvc,
		SeatSvc:     p.SeatSvc,
		PaymentSvc:  p.PaymentSvc,
		OverrideSvc: p.OverrideSvc,
		ReportSvc:   p.ReportSvc,
		Expiry:      p.Engine,
	})
}

// repositories are provided as concrete types; services narrow them to the interfaces they need.
func newRepositories(db core.DB) (
	*sqlxrepos.StudentRepository,
	*sqlxrepos.SeatRepository,
	*sqlxrepos.PaymentRepository,
	*sqlxrepos.OverrideRepository,
	*sqlxrepos.ExpiryRepository,
) {
	return sqlxrepos.NewStudentRepository(db),
		sqlxrepos.NewSeatRepository(db),
		sqlxrepos.NewPaymentRepository(db),
		sqlxrepos.NewOverrideRepository(db),
		sqlxrepos.NewExpiryRepository(db)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newCronLogger, dig.Name("cronLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newClock))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRepositories))
	must(c.Provide(newStudentService))
	must(c.Provide(newSeatService))
	must(c.Provide(newPaymentService))
	must(c.Provide(newOverrideService))
	must(c.Provide(newReportService))
	must(c.Provide(newNotifier))
	must(c.Provide(newEngine))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
