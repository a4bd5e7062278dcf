package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

// addUser creates a user.User, or reactivates the one already registered with email.
func (cli *commandLine) addUser(name, email string, roles []string) error {
	ctx := context.Background()
	nu := user.NewUser{Name: name, Email: email, Roles: roles}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	switch {
	case err == nil:
		if usr, err = cli.usrSvc.Activate(ctx, usr.ID); err != nil {
			return errors.Wrap(err, "activating user")
		}
		fmt.Fprintf(cli.out, "user %s already exists and is active\n", usr.ID)
		return nil
	case errors.Cause(err) != user.ErrNotFound:
		return errors.Wrap(err, "finding user by email")
	}

	if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s created\n", usr.ID)
	return nil
}
