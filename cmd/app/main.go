package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/packlint/internal"
	"github.com/starford/packlint/internal/apperr"
	pkgconfig "github.com/starford/packlint/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadIfExists(configPath, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		configPath = ""
	}

	if cmd.IsSet("force-pass") {
		cfg.Lint.ForcePass = cmd.Bool("force-pass")
	}
	if cmd.IsSet("cache-dir") {
		cfg.Cache.Dir = cmd.String("cache-dir")
	}
	if cmd.IsSet("output-define") {
		cfg.Lint.OutputDefine = cmd.StringSlice("output-define")
	}
	if cmd.IsSet("depth") {
		cfg.Lint.DetectionDepth = int(cmd.Int("depth"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, configPath, nil
}

func runner(watch bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, configPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithConfigPath(configPath),
			internal.WithWorkDir(cmd.String("dir")),
			internal.WithRegenerate(cmd.Bool("regenerate")),
			internal.WithWatch(watch),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			if errors.Is(err, apperr.ErrLintFailed) {
				return err
			}
			return fmt.Errorf("app run error: %w", err)
		}

		return nil
	}
}

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: ".packlint.yaml",
			Value:       ".packlint.yaml",
			Sources:     cli.EnvVars("PACKLINT_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Directory searched for packs",
			Value:   ".",
			Sources: cli.EnvVars("PACKLINT_DIR"),
		},
		&cli.IntFlag{
			Name:    "depth",
			Usage:   "Directory levels searched for pack roots",
			Sources: cli.EnvVars("PACKLINT_DETECTION_DEPTH"),
		},
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "Directory holding persisted lint state",
			Sources: cli.EnvVars("PACKLINT_CACHE_DIR"),
		},
		&cli.BoolFlag{
			Name:    "force-pass",
			Usage:   "Exit successfully even when the check fails",
			Sources: cli.EnvVars("PACKLINT_FORCE_PASS"),
		},
		&cli.BoolFlag{
			Name:    "regenerate",
			Usage:   "Discard persisted state and lint every file",
			Sources: cli.EnvVars("PACKLINT_REGENERATE"),
		},
		&cli.StringSliceFlag{
			Name:    "output-define",
			Usage:   "Test ids whose visible declarations are listed",
			Sources: cli.EnvVars("PACKLINT_OUTPUT_DEFINE"),
		},
	}

	cmd := &cli.Command{
		Name:   "packlint",
		Usage:  "Incremental linter for data packs",
		Action: runner(false),
		Flags:  flags,
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Lint, then lint again whenever a pack file changes",
				Action: runner(true),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, apperr.ErrLintFailed) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
