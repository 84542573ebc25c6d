package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/user"
)

// addTeacher creates a teacher account, or updates an existing account
// with the same username.
func (cli *commandLine) addTeacher(uname, first, last, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	var exists bool
	usr, err := cli.usrRepo.GetUserByUsername(ctx, uname)
	switch err {
	case nil:
		exists = true
	case user.ErrNotFound:
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			Username:  uname,
			CreatedAt: now,
			UpdatedAt: now,
		}
	default:
		return err
	}
	usr.FirstName = core.CleanString(first)
	usr.LastName = core.CleanString(last)
	usr.Email = email
	usr.Role = user.RoleTeacher
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		usr.UpdatedAt = time.Now().UTC()
		if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
			return err
		}
		// UpdateUser covers profile columns only; the new hash goes
		// through the password path.
		return cli.usrRepo.SetUserPassword(ctx, usr.ID, usr.PasswordHash, false)
	}
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
