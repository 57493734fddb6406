package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"neodymium/cmd"
	"neodymium/config"
	"neodymium/database"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	app := &cli.App{
		Name:  "neodymium",
		Usage: "Discord moderation bot for rules acknowledgment and reaction roles",
		Action: func(c *cli.Context) error {
			cfg := config.Get()
			cmd.ConfigureLogging(cfg)
			return cmd.Run(c.Context, cfg)
		},
		Commands: []*cli.Command{
			newMigrateCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the postgres schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					databaseURL, err := config.LoadDatabaseURL()
					if err != nil {
						return err
					}
					return database.MigrateUp(databaseURL)
				},
			},
			{
				Name:      "down",
				Usage:     "roll back migrations",
				ArgsUsage: "[steps]",
				Action: func(c *cli.Context) error {
					steps := 1
					if c.Args().Present() {
						n, err := strconv.Atoi(c.Args().First())
						if err != nil {
							return fmt.Errorf("invalid steps value %q: %w", c.Args().First(), err)
						}
						steps = n
					}

					databaseURL, err := config.LoadDatabaseURL()
					if err != nil {
						return err
					}
					return database.MigrateDown(databaseURL, steps)
				},
			},
			{
				Name:  "status",
				Usage: "show the current migration version",
				Action: func(c *cli.Context) error {
					databaseURL, err := config.LoadDatabaseURL()
					if err != nil {
						return err
					}
					return database.MigrateStatus(databaseURL)
				},
			},
		},
	}
}
