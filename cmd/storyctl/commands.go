package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"storybook/internal/bootstrap"
	"storybook/internal/infra"
	"storybook/internal/infra/credentials"
	"storybook/internal/middleware"
	"storybook/internal/pipeline"
	"storybook/pkg/storyclient"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "storyctl",
		Usage: "Operate the storybook illustration service",
		Commands: []*cli.Command{
			newMigrateCommand(),
			newSweepCommand(),
			newTokenCommand(),
			newCredentialsCommand(),
			newGenerateCommand(),
		},
	}
}

// withRuntime loads config and opens the database for one command.
func withRuntime(ctx context.Context, fn func(context.Context, *bootstrap.Runtime) error) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv)
	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the tables if they do not exist",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return withRuntime(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := rt.Migrate(ctx); err != nil {
					return err
				}
				fmt.Println("schema applied")
				return nil
			})
		},
	}
}

func newSweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete tasks older than the retention window",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Override TASK_RETENTION_DAYS",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
				retention := rt.Config.TaskRetention
				if d := cmd.Duration("older-than"); d > 0 {
					retention = d
				}
				n, err := pipeline.NewSweeper(rt.Tasks, retention, rt.Logger).Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d task(s)\n", n)
				return nil
			})
		},
	}
}

func newTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Mint a bearer token for a user",
		ArgsUsage: "<user_id>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
			&cli.StringFlag{
				Name:  "locale",
				Usage: "Preferred locale carried in the token",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			userID := strings.TrimSpace(cmd.Args().First())
			if userID == "" {
				return errors.New("user id is required")
			}
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is required")
			}
			token, err := middleware.SignJWT(secret, userID, cmd.String("locale"), cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func newCredentialsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "Manage provider API keys stored in the database",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store an API key for " + credentials.ProviderQwen + " or " + credentials.ProviderOpenAI,
				ArgsUsage: "<provider> <api_key>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					provider := strings.ToLower(strings.TrimSpace(cmd.Args().Get(0)))
					key := cmd.Args().Get(1)
					return withRuntime(ctx, func(ctx context.Context, rt *bootstrap.Runtime) error {
						if rt.Credentials == nil {
							return errors.New("stored credentials need a postgres DATABASE_URL")
						}
						if err := rt.Credentials.Set(ctx, provider, key); err != nil {
							return err
						}
						fmt.Printf("%s key stored\n", provider)
						return nil
					})
				},
			},
		},
	}
}

func newGenerateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Illustrate a storyboard through the API and follow progress",
		ArgsUsage: "<storyboard_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "Base URL of the API",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("STORYBOOK_API_URL"),
			},
			&cli.StringFlag{
				Name:     "token",
				Usage:    "Bearer token (see storyctl token)",
				Sources:  cli.EnvVars("STORYBOOK_TOKEN"),
				Required: true,
			},
			&cli.StringFlag{
				Name:  "style",
				Usage: "Art style: " + strings.Join(pipeline.Styles(), ", "),
				Value: pipeline.DefaultStyle,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Regenerate pages that already have an illustration",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Delay between advance calls",
				Value: storyclient.DefaultInterval,
			},
			&cli.IntFlag{
				Name:  "max-errors",
				Usage: "Consecutive transient errors tolerated",
				Value: storyclient.DefaultMaxConsecutiveErrors,
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	storyboardID := strings.TrimSpace(cmd.Args().First())
	if storyboardID == "" {
		return errors.New("storyboard id is required")
	}
	client := storyclient.New(cmd.String("api"), cmd.String("token"))

	var force *bool
	if cmd.IsSet("force") {
		v := cmd.Bool("force")
		force = &v
	}
	started, err := client.Start(ctx, storyboardID, cmd.String("style"), force)
	if err != nil {
		return err
	}
	fmt.Printf("task %s: %d page(s)\n", started.TaskID, started.TotalPages)
	if started.Status == "failed" {
		return fmt.Errorf("task failed on the first page: %s", started.Error)
	}

	view, err := client.Status(ctx, started.TaskID)
	if err != nil {
		return err
	}
	if view.Status == "completed" {
		printPages(os.Stdout, view.Result.Pages)
		return nil
	}

	poller := &storyclient.Poller{
		Client:               client,
		Interval:             cmd.Duration("interval"),
		MaxConsecutiveErrors: int(cmd.Int("max-errors")),
		OnUpdate: func(p storyclient.Progress) {
			last := p.Last
			verb := "illustrated"
			if last.Skipped {
				verb = "kept"
			}
			if last.PageNumber > 0 {
				fmt.Printf("[%3d%%] page %d %s\n", p.Percent, last.PageNumber, verb)
			}
		},
		OnError: func(err error, n int) {
			fmt.Fprintf(os.Stderr, "retrying after error %d: %v\n", n, err)
		},
	}
	final, err := poller.Run(ctx, started.TaskID, started.TotalPages, view.Result.Pages)
	if err != nil {
		return err
	}
	printPages(os.Stdout, final.SortedPages())
	return nil
}

func printPages(w io.Writer, pages []storyclient.PageImage) {
	for _, p := range pages {
		fmt.Fprintf(w, "page %d: %s\n", p.PageNumber, p.ImageURL)
	}
}
