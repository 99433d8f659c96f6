package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"

	"github.com/saveourtool/save-cloud/pkg/buildtime"
	"github.com/saveourtool/save-cloud/pkg/domain/orchestrator/db/postgres"
	kos "github.com/saveourtool/save-cloud/pkg/utils/os"
	"github.com/saveourtool/save-cloud/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Host     string `flag:"host" help:"The host of the database."`
	Port     int    `flag:"port" help:"The port of the database."`
	User     string `flag:"user" help:"The user of the database."`
	Password string `flag:"pass" help:"The password of the database."`
	Database string `flag:"database" help:"The name of the database."`

	Schema string `flag:"schema" help:"The path to the schema repository directory."`
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader for save-orchestrator "+buildtime.VersionString(),
		Flag{
			Host:     os.Getenv("DB_HOST"),
			Port:     kos.GetEnvIntOr("DB_PORT", 5432),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),

			Schema: os.Getenv("SAVE_SCHEMA"),
		},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[Flag], a []any) error {
			flags := c.Flags()
			if flags.Schema == "" {
				return fmt.Errorf("%w: flag `--schema` (or, envvar SAVE_SCHEMA) is required", flarc.ErrUsage)
			}

			dburl := url.URL{
				Scheme: "postgres",
				User:   url.UserPassword(flags.User, flags.Password),
				Host:   fmt.Sprintf("%s:%d", flags.Host, flags.Port),
				Path:   "/" + flags.Database,
			}
			db, err := postgres.New(ctx, dburl.String(), postgres.WithSchemaRepository(flags.Schema))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Schema().Upgrade(ctx); err != nil {
				return err
			}
			logger.Println("schema is up to date")
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
