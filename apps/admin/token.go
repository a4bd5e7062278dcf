package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

var errInactiveUser = errors.New("user is not active")

// token prints a signed API token for the user identified by id, or else by email.
func (cli *commandLine) token(id, email string) error {
	ctx := context.Background()
	var (
		usr user.User
		err error
	)
	if id != "" {
		usr, err = cli.usrSvc.GetByID(ctx, id)
	} else {
		usr, err = cli.usrSvc.GetByEmail(ctx, email)
	}
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return errInactiveUser
	}

	token, err := cli.tokens.Issue(usr)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
