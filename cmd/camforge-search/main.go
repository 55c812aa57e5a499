// Package main provides the CamForge search runner: a one-shot CLI that
// executes a constraint-first candidate search against a stored session and
// prints the run report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/camforge/camforge/pkg/cmd"
	"github.com/camforge/camforge/pkg/feasibility"
	"github.com/camforge/camforge/pkg/log"
	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/search"
	"github.com/camforge/camforge/pkg/services"
	"github.com/camforge/camforge/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("search")

	command := &cli.Command{
		Name:                  "camforge-search",
		Usage:                 "Run a constraint-first candidate search for a session",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "session-id",
				Aliases:  []string{"s"},
				Usage:    "Session whose context drives the search",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Candidate attempt budget",
				Value: 25,
			},
			&cli.FloatFlag{
				Name:  "time-limit",
				Usage: "Wall-clock budget in seconds",
				Value: 30,
			},
			&cli.FloatFlag{
				Name:  "min-score",
				Usage: "Acceptable feasibility score floor for a best-effort result",
				Value: 70,
			},
			&cli.BoolFlag{
				Name:  "stop-on-first-green",
				Usage: "Stop as soon as a GREEN candidate is found",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "deterministic",
				Usage: "Seed the candidate generator deterministically",
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

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			sessionService := services.NewSession(
				persistence,
				workflow.New(),
				workflow.NewArtifactHookRegistry(logger),
				nil,
				nil,
				logger,
			)

			searchService := services.NewSearch(
				sessionService,
				feasibility.NewHeuristic(),
				search.DefaultPolicy(),
				nil,
				logger,
			)

			report, err := searchService.RunConstraintFirst(ctx, services.SearchRequest{
				SessionID: command.String("session-id"),
				Budget: models.SearchBudget{
					MaxAttempts:         command.Int("max-attempts"),
					TimeLimitSeconds:    command.Float("time-limit"),
					MinFeasibilityScore: command.Float("min-score"),
					StopOnFirstGreen:    command.Bool("stop-on-first-green"),
					Deterministic:       command.Bool("deterministic"),
				},
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, string(out))

			if !report.Succeeded() {
				return fmt.Errorf("search run %s ended with status %s (%s)", report.RunID, report.Status, report.Reason)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("search run failed", "error", err)
		os.Exit(1)
	}
}
