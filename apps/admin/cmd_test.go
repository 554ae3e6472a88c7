package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	"github.com/trezcool/elimu/storage/docstore"
	"github.com/trezcool/elimu/storage/kv/memkv"
	"github.com/trezcool/elimu/storage/seed"
)

type migration struct {
	command string
	args    []string
}

func setup(t *testing.T) (*commandLine, *bytes.Buffer, *[]migration) {
	t.Helper()
	conf := &core.Config{AppName: "Elimu", TestMode: true, SecretKey: "test-secret", PasswordResetTimeoutDelta: time.Hour}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	staff.RegisterValidators(validate, translator)

	docs := docstore.New(memkv.New())
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := core.NewNopLogger()

	staffRepo := docstore.NewStaffRepository(docs)
	studentRepo := docstore.NewStudentRepository(docs)
	sessionRepo := docstore.NewSessionRepository(docs)
	staffSvc := staff.NewService(staffRepo, docs, mailSvc, validate, translator, conf)
	studentSvc := student.NewService(studentRepo, docs, validate, translator)
	d := walker.NewDispatcher(walker.Services{
		Appraisals:   appraisal.NewEngine(sessionRepo, staffSvc, docs, mailSvc, validate, translator),
		Students:     studentSvc,
		Insights:     insights.NewAggregator(studentSvc),
		Paths:        learningpath.NewGenerator(graph.NewStore(docstore.NewGraphRepository(docs)), studentSvc, validate, translator),
		Staff:        staffSvc,
		Observations: observation.NewService(docstore.NewObservationRepository(docs), staffSvc, docs, validate, translator),
		Lessons: lesson.NewService(
			docstore.NewLessonRepository(docs), docs, contentsvc.NewOfflineService(), logger, validate, translator,
		),
	}, docs, mailSvc, logger)

	var out bytes.Buffer
	var migrations []migration
	cli := &commandLine{
		staffSvc:   staffSvc,
		seeder:     seed.NewSeeder(docs, staffRepo, studentRepo, sessionRepo, logger),
		dispatcher: d,
		migrate: func(command string, args ...string) error {
			switch command {
			case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
			case "up-to", "down-to":
				if len(args) == 0 {
					return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
				}
				if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
					return fmt.Errorf("version must be a number (got '%s')", args[0])
				}
			default:
				return fmt.Errorf("%q: no such command", command)
			}
			migrations = append(migrations, migration{command: command, args: args})
			return nil
		},
		out: &out,
	}
	return cli, &out, &migrations
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantErrFn  func(error) bool
}

func runTests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrFn != nil:
				assert.True(t, tt.wantErrFn(err), "unexpected error: %v", err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out, _ := setup(t)
	runTests(t, cli, []cliTest{
		{name: "no command", args: nil, wantErr: errHelp},
		{name: "unknown command", args: []string{"frobnicate"}, wantErr: errHelp},
	}, nil)
	assert.Contains(t, out.String(), "createstaff")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, migrations := setup(t)
	runTests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "sideways"}, wantErrStr: "no such command"},
		{name: "up-to without version", args: []string{"migrate", "up-to"}, wantErrStr: "must be of form"},
		{name: "up-to bad version", args: []string{"migrate", "up-to", "abc"}, wantErrStr: "version must be a number"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
	}, nil)
	assert.Equal(t, []migration{{command: "up", args: []string{}}, {command: "down-to", args: []string{"1"}}}, *migrations)
}

func Test_commandLine_createStaff(t *testing.T) {
	cli, _, _ := setup(t)
	readPasswordFunc = func(int) ([]byte, error) { return []byte("Str0ng-Passw0rd!"), nil }

	runTests(t, cli, []cliTest{
		{name: "missing email", args: []string{"createstaff", "-name", "Ann"}, wantErr: errHelp},
		{name: "bad role", args: []string{"createstaff", "-name", "Ann", "-email", "ann@elimu.local", "-role", "janitor"}, wantErrFn: core.IsValidationFailure},
		{
			name: "teacher",
			args: []string{"createstaff", "-name", "Ann Njeri", "-email", "Ann@Elimu.local", "-dept", "Science", "-registry", "TSC-1"},
		},
		{name: "duplicate email", args: []string{"createstaff", "-name", "Ann", "-email", "ann@elimu.local"}, wantErrFn: core.IsValidationFailure},
	}, nil)

	m, err := cli.staffSvc.GetByEmail(context.Background(), "ann@elimu.local")
	require.NoError(t, err)
	assert.Equal(t, staff.RoleTeacher, m.Role)
	assert.Equal(t, "Science", m.Department)
	assert.NoError(t, m.CheckPassword("Str0ng-Passw0rd!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _, _ := setup(t)
	require.NoError(t, cli.run([]string{"admin", "seed"}))

	readPasswordFunc = func(int) ([]byte, error) { return []byte(""), nil }
	assert.Equal(t, errHelp, cli.run([]string{"admin", "resetpassword", "-email", "jane.doe@elimu.local"}))

	readPasswordFunc = func(int) ([]byte, error) { return []byte("N3w-Passw0rd!"), nil }
	runTests(t, cli, []cliTest{
		{name: "missing email", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "unknown email", args: []string{"resetpassword", "-email", "nobody@elimu.local"}, wantErrFn: core.IsNotFound},
		{name: "ok", args: []string{"resetpassword", "-email", "jane.doe@elimu.local"}},
	}, nil)

	m, err := cli.staffSvc.GetByEmail(context.Background(), "jane.doe@elimu.local")
	require.NoError(t, err)
	assert.NoError(t, m.CheckPassword("N3w-Passw0rd!"))
}

func Test_commandLine_seed(t *testing.T) {
	cli, out, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, cli.run([]string{"admin", "seed"}))
	members, err := cli.staffSvc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 6)

	require.NoError(t, cli.run([]string{"admin", "seed"}))
	assert.Contains(t, out.String(), "nothing seeded")

	require.NoError(t, cli.staffSvc.Delete(ctx, "user-2"))
	require.NoError(t, cli.run([]string{"admin", "seed", "-force"}))
	members, err = cli.staffSvc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 6)
}

func Test_commandLine_walker(t *testing.T) {
	cli, out, _ := setup(t)
	require.NoError(t, cli.run([]string{"admin", "seed"}))
	out.Reset()

	runTests(t, cli, []cliTest{
		{name: "missing actor", args: []string{"walker", "-name", "get_class_insights"}, wantErr: errHelp},
		{name: "unknown command", args: []string{"walker", "-name", "fly", "-actor", "user-1"}, wantErrStr: "fly"},
		{name: "unknown actor", args: []string{"walker", "-name", "get_class_insights", "-actor", "nobody"}, wantErrFn: core.IsNotFound},
		{name: "bad payload", args: []string{"walker", "-name", "get_learning_path", "-actor", "user-1", "-payload", "{"}, wantErrStr: "payload"},
		{name: "insights", args: []string{"walker", "-name", "get_class_insights", "-actor", "user-1"}},
	}, nil)
	assert.Contains(t, out.String(), "Algebraic Expressions")
}
