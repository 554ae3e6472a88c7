package main

import (
	"database/sql"
	"log"
	"os"

	dig_container "github.com/trezcool/elimu/apps/api/di/dig"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/walker"
	"github.com/trezcool/elimu/storage/database"
	"github.com/trezcool/elimu/storage/kv"
	"github.com/trezcool/elimu/storage/seed"
)

var logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	c := dig_container.New()

	var code int
	err := c.Invoke(func(
		conf *core.Config,
		store kv.Store,
		svc walker.Services,
		seeder *seed.Seeder,
		dispatcher *walker.Dispatcher,
	) {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Printf("closing store: %v", err)
			}
		}()

		cli := commandLine{
			staffSvc:   svc.Staff,
			seeder:     seeder,
			dispatcher: dispatcher,
			migrate:    postgresMigrator(conf),
			out:        os.Stdout,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %+v\n", err)
			}
			code = 1
		}
		dispatcher.Wait()
	})
	if err != nil {
		logger.Fatal(err)
	}
	os.Exit(code)
}

// postgresMigrator runs goose against the configured postgres database, creating it if needed.
func postgresMigrator(conf *core.Config) func(command string, args ...string) error {
	return func(command string, args ...string) error {
		if err := database.CreateIfNotExist(conf); err != nil {
			return err
		}
		db, err := database.Open(conf)
		if err != nil {
			return err
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)
		return database.Migrate(db, command, args...)
	}
}
