package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	dig_container "github.com/Digmusic88/MWPanel3.1--sub000/apps/api/di/dig"
	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	conf     *core.Config
	db       *sql.DB // postgres only
	storage  *dig_container.Storage
	usrSvc   *user.Service
	tokens   *user.TokenIssuer
	validate *validator.Validate
	logger   core.Logger

	in  io.Reader
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]             - run a goose command (up, down, status...) on the postgres database")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL -role ROLE[,ROLE] - create (or reactivate) a user")
	fmt.Fprintln(cli.out, "  token -id ID | -email EMAIL        - print an API token for a user")
	fmt.Fprintln(cli.out, "  seed [-yes]                        - load the demo school into an empty database")
}

// confirm asks a yes/no question when attached to a terminal. Anything but "y" or "yes" declines.
func (cli *commandLine) confirm(question string) bool {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(cli.in).ReadString('\n')
	answer = core.CleanString(answer, true /* lower */)
	return answer == "y" || answer == "yes"
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRoles := addUserCmd.String("role", user.RoleStudent, "Comma separated roles, e.g. admin:owner or teacher:tutor.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenID := tokenCmd.String("id", "", "The user's ID.")
	tokenEmail := tokenCmd.String("email", "", "The user's email.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedCmd.SetOutput(cli.out)
	seedYes := seedCmd.Bool("yes", false, "Do not ask for confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, strings.Split(*addUserRoles, ","))

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenID == "" && *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenID, *tokenEmail)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if !*seedYes && !cli.confirm(fmt.Sprintf("Seed the demo school into the %s storage?", cli.storage.Backend)) {
			return errAborted
		}
		return cli.seed()

	default:
		cli.printUsage()
		return errHelp
	}
}
