package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dig_container "github.com/Digmusic88/MWPanel3.1--sub000/apps/api/di/dig"
	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
	testutil "github.com/Digmusic88/MWPanel3.1--sub000/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	conf := &core.Config{
		AppName:   "MWPanel",
		SecretKey: "secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		Storage: core.StorageConfig{
			Backend:       core.StorageSQLite,
			SQLitePath:    filepath.Join(t.TempDir(), "data", "admin.db"),
			RetryAttempts: 1,
		},
	}
	storage, err := dig_container.OpenStorage(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	out := new(bytes.Buffer)
	return &commandLine{
		conf:     conf,
		db:       storage.DB.DB,
		storage:  storage,
		usrSvc:   user.NewService(storage.Users),
		tokens:   user.NewTokenIssuer(conf.AppName, conf.SecretKey, time.Hour),
		validate: validate,
		logger:   core.NopLogger{},
		in:       strings.NewReader(""),
		out:      out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "grades", "sql"}},
	})

	t.Run("no sql database", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoSQLDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	inactive := testutil.CreateUser(t, cli.storage.Users, "Ana Gil", "ana@test.school", []string{user.RoleTutor}, false)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-name", "Eva"}, wantErr: errHelp},
		{name: "bad flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
		{name: "bad role", args: []string{"adduser", "-name", "Eva", "-email", "eva@test.school", "-role", "king:"}, wantErrStr: "roles"},
		{name: "bad email", args: []string{"adduser", "-name", "Eva", "-email", "eva"}, wantErrStr: "email"},
		{name: "create", args: []string{"adduser", "-name", "Eva Díaz", "-email", "EVA@test.school", "-role", "admin:principal, teacher:"}},
		{name: "reactivate", args: []string{"adduser", "-name", "Ana Gil", "-email", inactive.Email}},
	})

	eva, err := cli.usrSvc.GetByEmail(ctx, "eva@test.school")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{user.RoleAdminPrincipal, user.RoleTeacher}, eva.Roles)
	assert.True(t, eva.IsActive)
	assert.Contains(t, out.String(), "user "+eva.ID+" created")

	ana, err := cli.usrSvc.GetByID(ctx, inactive.ID)
	require.NoError(t, err)
	assert.True(t, ana.IsActive)
	assert.Equal(t, []string{user.RoleTutor}, ana.Roles)
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)

	usr := testutil.CreateUser(t, cli.storage.Users, "Luis Mora", "luis@test.school", []string{user.RoleStudent}, true)
	inactive := testutil.CreateUser(t, cli.storage.Users, "Rosa Vega", "rosa@test.school", []string{user.RoleStudent}, false)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "user not found", args: []string{"token", "-id", "lol"}, wantErr: user.ErrNotFound},
		{name: "inactive", args: []string{"token", "-email", inactive.Email}, wantErr: errInactiveUser},
		{name: "by email", args: []string{"token", "-email", usr.Email}},
	})

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "token", "-id", usr.ID}))
	claims, err := cli.tokens.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, claims.Subject)
	assert.True(t, claims.IsStudent)
}

func Test_commandLine_seed(t *testing.T) {
	cli, out := setup(t)
	isTerminal := isTerminalFunc
	isTerminalFunc = func(int) bool { return true }
	defer func() { isTerminalFunc = isTerminal }()

	cli.in = strings.NewReader("n\n")
	assert.Equal(t, errAborted, cli.run([]string{"admin", "seed"}))

	cli.in = strings.NewReader("yes\n")
	require.NoError(t, cli.run([]string{"admin", "seed"}))
	assert.Contains(t, out.String(), "seeded 2 levels, 2 groups and 6 students")

	assert.Equal(t, errNotEmpty, cli.run([]string{"admin", "seed", "-yes"}))

	// the seeded school survives a reload
	eng, err := dig_container.NewEngine(context.Background(), cli.conf, cli.storage, cli.usrSvc, cli.validate, cli.logger, nil)
	require.NoError(t, err)
	dash := eng.Dashboard()
	assert.Equal(t, 2, dash.TotalGroups)
	assert.Equal(t, 6, dash.ActiveEnrollments)

	t.Run("demo storage", func(t *testing.T) {
		cli.storage.Backend = core.StorageDemo
		defer func() { cli.storage.Backend = core.StorageSQLite }()
		assert.Equal(t, errDemoStorage, cli.run([]string{"admin", "seed", "-yes"}))
	})
}
