package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/FoxRefire/SpiceDL/internal/config"
	"github.com/FoxRefire/SpiceDL/internal/controller"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "download-folder",
				Usage:   "Destination directory for downloads",
				Sources: cli.EnvVars("SPICEDL_DOWNLOADS_FOLDER"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, store, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("download-folder"); v != "" {
				cfg.Downloads.Folder = v
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			return controller.Run(ctx, cfg, store)
		},
	}
}
