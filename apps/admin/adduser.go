package main

import (
	"context"
	"fmt"

	"github.com/acadmeter/acadmeter/core/user"
)

// addUser creates an account of any role; admins get no profile.
func (cli *commandLine) addUser(usr user.User, pwd string) error {
	usr, err := cli.usrSvc.CreateAccount(context.Background(), usr, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("created %s account %s <%s>\n", usr.Role, usr.ID, usr.Email)
	return nil
}
