package main

import (
	"errors"
	"flag"
	"fmt"

	"golang.org/x/term"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
	"github.com/trezcool/alama/storage/database"
)

var (
	readConfirmFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db     database.DB
	conf   *core.Config
	catSvc *category.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  addcategory -name NAME [-owner ID] - create a category; shared system category by default")
	fmt.Println("  token -owner ID [-email EMAIL] - issue a dev API token for an owner id")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addCategoryCmd := flag.NewFlagSet("addcategory", flag.ExitOnError)
	addCategoryName := addCategoryCmd.String("name", "", "The category name.")
	addCategoryOwner := addCategoryCmd.String("owner", "", "Owner id; defaults to the shared system owner.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenOwner := tokenCmd.String("owner", "", "The owner id the token is issued for.")
	tokenEmail := tokenCmd.String("email", "", "Optional email claim.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addcategory":
		if err := addCategoryCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCategoryName == "" {
			addCategoryCmd.Usage()
			return errHelp
		}
		return cli.addCategory(*addCategoryName, *addCategoryOwner)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenOwner == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenOwner, *tokenEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
