package main

import (
	"fmt"

	echoapi "github.com/trezcool/alama/apps/api/echo"
)

// token prints a signed API token for an owner id; a development stand-in for
// the identity provider.
func (cli *commandLine) token(ownerID, email string) error {
	claims := echoapi.GetOwnerClaims(cli.conf, ownerID, email)
	tok, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
