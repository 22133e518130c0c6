package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vitalplan/internal"
	pkgconfig "github.com/starford/vitalplan/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigPath(configPath),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func generate(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Generate(ctx, os.Stdout,
		int64(cmd.Int("owner")), cmd.String("domain"), cmd.String("preferences"), opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "vitalplan",
		Usage:   "Weekly nutrition and exercise plans from a generation service, validated and stored per user",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve plan tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:   "generate",
				Usage:  "Generate and store one plan, then print it as JSON",
				Action: generate,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "owner",
						Usage:    "Owner ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "domain",
						Aliases:  []string{"d"},
						Usage:    "Plan domain: nutrition (diet) or exercise (workout)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "preferences",
						Aliases: []string{"p"},
						Usage:   "Free-text preferences passed to the generator",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
