package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/FoxRefire/SpiceDL/internal/core/spotdl"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report availability of external dependencies (spotdl, ffmpeg)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var missing int
			for _, dep := range spotdl.Dependencies(ctx) {
				if dep.Available {
					fmt.Printf("%-8s ok       %s\n", dep.Name, dep.Path)
				} else {
					fmt.Printf("%-8s MISSING\n", dep.Name)
					missing++
				}
			}
			if tool, err := spotdl.Locate(ctx); err == nil {
				if v, err := tool.Version(ctx); err == nil {
					fmt.Printf("spotdl version: %s\n", v)
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d missing dependencies; install them before downloading", missing)
			}
			return nil
		},
	}
}
