package dig_container

import (
	"context"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
	"github.com/trezcool/elimu/core/graph"
	"github.com/trezcool/elimu/core/insights"
	"github.com/trezcool/elimu/core/learningpath"
	"github.com/trezcool/elimu/core/lesson"
	"github.com/trezcool/elimu/core/observation"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/student"
	"github.com/trezcool/elimu/core/walker"
	contentsvc "github.com/trezcool/elimu/services/content"
	emailsvc "github.com/trezcool/elimu/services/email"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
	"github.com/trezcool/elimu/storage/docstore"
	"github.com/trezcool/elimu/storage/graphdb/neo4jgraph"
	"github.com/trezcool/elimu/storage/kv"
	"github.com/trezcool/elimu/storage/kv/badgerkv"
	"github.com/trezcool/elimu/storage/kv/memkv"
	"github.com/trezcool/elimu/storage/kv/rediskv"
	"github.com/trezcool/elimu/storage/seed"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	Repositories struct {
		dig.Out
		Staff        staff.Repository
		Students     student.Repository
		Sessions     appraisal.Repository
		Observations observation.Repository
		Lessons      lesson.Repository
	}

	ServicesParam struct {
		dig.In
		Conf         *core.Config
		Logger       core.Logger
		Tx           core.Transactor
		Graph        graph.Repository
		Content      lesson.ContentService
		MailSvc      core.EmailService
		Validate     *validator.Validate
		Translator   ut.Translator
		Staff        staff.Repository
		Students     student.Repository
		Sessions     appraisal.Repository
		Observations observation.Repository
		Lessons      lesson.Repository
	}
)

func newLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "API")
}

func newDBLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "DB")
}

func newRollbarLogger(conf *core.Config, name string) core.Logger {
	logger, err := logsvc.NewRollbarLogger(conf, name)
	if err != nil {
		log.Fatalf("setting up %s logger: %v", name, err)
	}
	logger.Enable(!conf.Debug)
	return logger
}

// newKVStore opens the backend selected by storage.engine.
func newKVStore(conf *core.Config, loggerParam DBLoggerParam) kv.Store {
	setUp := func() (kv.Store, error) {
		switch conf.Storage.Engine {
		case "", "memory":
			return memkv.New(), nil
		case "badger":
			return badgerkv.Open(conf.Storage.BadgerDir, loggerParam.Logger)
		case "redis":
			return rediskv.Open(rediskv.Options{
				Addr:     conf.Storage.RedisAddr,
				Password: conf.Storage.RedisPassword,
				DB:       conf.Storage.RedisDB,
				Prefix:   conf.Storage.KeyPrefix,
			})
		case "postgres":
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}
			if err = database.Migrate(db, "up"); err != nil {
				_ = db.Close()
				return nil, err
			}
			return database.NewKVStore(db), nil
		}
		return nil, errors.Errorf("unknown storage engine %q", conf.Storage.Engine)
	}

	kvs, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up storage", err)
	}
	return kvs
}

func newDocStore(kvs kv.Store) (*docstore.Store, core.Transactor) {
	s := docstore.New(kvs)
	return s, s
}

func newRepositories(s *docstore.Store) Repositories {
	return Repositories{
		Staff:        docstore.NewStaffRepository(s),
		Students:     docstore.NewStudentRepository(s),
		Sessions:     docstore.NewSessionRepository(s),
		Observations: docstore.NewObservationRepository(s),
		Lessons:      docstore.NewLessonRepository(s),
	}
}

// newGraphRepository returns the backend selected by graph.engine.
func newGraphRepository(conf *core.Config, s *docstore.Store, loggerParam DBLoggerParam) graph.Repository {
	if conf.Graph.Engine != "neo4j" {
		return docstore.NewGraphRepository(s)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	repo, err := neo4jgraph.Open(ctx, conf.Graph)
	if err != nil {
		loggerParam.Logger.Fatal("setting up neo4j graph", err)
	}
	return repo
}

func newContentService(conf *core.Config, logger core.Logger) lesson.ContentService {
	if conf.Content.Engine != "gemini" {
		return contentsvc.NewOfflineService()
	}
	svc, err := contentsvc.NewGeminiService(conf.Content)
	if err != nil {
		logger.Fatal("setting up content service", err)
	}
	return svc
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	staff.RegisterValidators(validate, translator)
	return validate
}

func newServices(p ServicesParam) walker.Services {
	staffSvc := staff.NewService(p.Staff, p.Tx, p.MailSvc, p.Validate, p.Translator, p.Conf)
	studentSvc := student.NewService(p.Students, p.Tx, p.Validate, p.Translator)
	return walker.Services{
		Appraisals:   appraisal.NewEngine(p.Sessions, staffSvc, p.Tx, p.MailSvc, p.Validate, p.Translator),
		Students:     studentSvc,
		Insights:     insights.NewAggregator(studentSvc),
		Paths:        learningpath.NewGenerator(graph.NewStore(p.Graph), studentSvc, p.Validate, p.Translator),
		Staff:        staffSvc,
		Observations: observation.NewService(p.Observations, staffSvc, p.Tx, p.Validate, p.Translator),
		Lessons:      lesson.NewService(p.Lessons, p.Tx, p.Content, p.Logger, p.Validate, p.Translator),
	}
}

func newSeeder(
	tx core.Transactor,
	staffRepo staff.Repository,
	studentRepo student.Repository,
	sessionRepo appraisal.Repository,
	logger core.Logger,
) *seed.Seeder {
	return seed.NewSeeder(tx, staffRepo, studentRepo, sessionRepo, logger)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	svc walker.Services,
	dispatcher *walker.Dispatcher,
	docs *docstore.Store,
	graphRepo graph.Repository,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		StaffSvc:   svc.Staff,
		Dispatcher: dispatcher,
		Store:      docs,
		Content:    svc.Lessons,
		Graph:      graphRepo,
		Validate:   validate,
		Translator: translator,
	})
}

type NewConfigFunc func() *core.Config

// New returns a new dependency injection dig.Container. newConf defaults to core.NewConfig.
func New(newConf ...NewConfigFunc) *dig.Container {
	c := dig.New()

	confFunc := core.NewConfig
	if len(newConf) > 0 && newConf[0] != nil {
		confFunc = newConf[0]
	}

	must(c.Provide(confFunc))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newKVStore))
	must(c.Provide(newDocStore))
	must(c.Provide(newRepositories))
	must(c.Provide(newGraphRepository))
	must(c.Provide(newContentService))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServices))
	must(c.Provide(walker.NewDispatcher))
	must(c.Provide(newSeeder))
	must(c.Provide(newServer))

	return c
}

// Visualize writes the dependency graph in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
