package main

import (
	"fmt"
	"syscall"

	"github.com/pressly/goose/v3"

	appfs "github.com/trezcool/alama/fs"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	command := args[0]

	// destructive commands require typing the database name to confirm
	switch command {
	case "down", "down-to", "reset":
		fmt.Print("Enter the database name to confirm: ")
		confirm, err := readConfirmFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if string(confirm) != cli.conf.Database.Name {
			return errAborted
		}
	}

	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(command, cli.db.DB.DB, "migrations", arguments...)
}
