package main

import (
	"github.com/trezcool/darasa/storage/database"
)

func (cli *commandLine) migrate(args []string) error {
	return database.Migrate(cli.db, cli.engine, args[0], args[1:]...)
}
