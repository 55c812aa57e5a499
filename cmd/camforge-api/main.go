package main

import (
	"context"
	"os"
	"time"

	"github.com/camforge/camforge/pkg/archiver"
	"github.com/camforge/camforge/pkg/cmd"
	"github.com/camforge/camforge/pkg/config"
	"github.com/camforge/camforge/pkg/log"
	"github.com/camforge/camforge/pkg/otelhelper"
	"github.com/camforge/camforge/pkg/schema"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "camforge-api",
		Usage:                 "Create and govern manufacturing design sessions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a camforge.yaml with governance defaults and document schemas",
				Sources: cli.EnvVars("CAMFORGE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "archive-retention-hours",
				Usage:   "Hours a rejected session stays before the sweep archives it (0 disables the sweep)",
				Value:   0,
				Sources: cli.EnvVars("ARCHIVE_RETENTION_HOURS"),
			},
			&cli.StringFlag{
				Name:    "archive-schedule",
				Usage:   "Cron expression for the archive sweep",
				Value:   archiver.DefaultSchedule,
				Sources: cli.EnvVars("ARCHIVE_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces for engine commands",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing CamForge API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			schemas := schema.NewRegistry()

			var serverConfig *config.ServerConfigFile

			if path := command.String("config"); path != "" {
				loaded, err := config.LoadServerConfig(path)
				if err != nil {
					return err
				}

				serverConfig = loaded
				schemas = serverConfig.BuildSchemaRegistry()
			}

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				schemas,
			)

			if serverConfig != nil {
				policy := serverConfig.GovernancePolicy()
				api.SessionService().SetDefaultGovernance(&policy)
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "camforge-api")
				if err != nil {
					return err
				}

				api.SetTracer(tracer)
			}

			if retention := command.Int("archive-retention-hours"); retention > 0 {
				sweeper, err := archiver.New(
					api.SessionService(),
					persistence,
					time.Duration(retention)*time.Hour,
					command.String("archive-schedule"),
					logger,
				)
				if err != nil {
					return err
				}

				if err := sweeper.Start(ctx); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
