package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowhost/pkg/loader"
	"github.com/dukex/flowhost/pkg/persistence"
)

var ErrMissingPath = errors.New("path is required")

func DefinitionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "definitions",
		Usage: "Manage workflow definitions",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import definition documents (" + strings.Join(loader.Extensions, ", ") + ") from a file or directory",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, command *cli.Command) error {
					path := command.Args().First()
					if path == "" {
						return ErrMissingPath
					}

					logger := slog.Default().With("module", "flowhost")

					return withPersistence(ctx, command, logger, func(store persistence.Persistence) error {
						return importDefinitions(ctx, store, path, logger)
					})
				},
			},
			{
				Name:      "validate",
				Usage:     "Check definition documents without storing them",
				ArgsUsage: "<path>",
				Action: func(_ context.Context, command *cli.Command) error {
					path := command.Args().First()
					if path == "" {
						return ErrMissingPath
					}

					definitions, err := loadDefinitions(path)
					if err != nil {
						return err
					}

					for _, definition := range definitions {
						fmt.Fprintf(os.Stdout, "%s\t%d activities\t%d connections\n",
							definition.ID, len(definition.Activities), len(definition.Connections))
					}

					return nil
				},
			},
		},
	}
}
