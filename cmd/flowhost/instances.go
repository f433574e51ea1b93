package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/services"
)

func InstancesCommand() *cli.Command {
	return &cli.Command{
		Name:  "instances",
		Usage: "Inspect workflow instances",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List workflow instances",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Only instances with this status (idle, completed, blocked, faulted)"},
					&cli.StringFlag{Name: "definition", Usage: "Only instances of this definition"},
					&cli.StringFlag{Name: "blocked-on", Usage: "Only instances blocked on this activity name"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of instances", Value: 20},
					&cli.IntFlag{Name: "offset", Usage: "Instances to skip"},
				},
				Action: listInstances,
			},
		},
	}
}

func listInstances(ctx context.Context, command *cli.Command) error {
	logger := slog.Default().With("module", "flowhost")

	return withPersistence(ctx, command, logger, func(store persistence.Persistence) error {
		response, err := services.NewWorkflow(store).ListWorkflows(ctx, services.ListWorkflowsRequest{
			Limit:        command.Int("limit"),
			Offset:       command.Int("offset"),
			Kind:         models.WorkflowKindInstance,
			Status:       models.WorkflowStatus(command.String("status")),
			DefinitionID: command.String("definition"),
			BlockedOn:    command.String("blocked-on"),
		})
		if err != nil {
			return err
		}

		printInstances(os.Stdout, response.Workflows)

		return nil
	})
}

func printInstances(w io.Writer, instances []*models.Workflow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tDEFINITION\tSTATUS\tVERSION\tBLOCKED ON\tUPDATED")

	for _, instance := range instances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			instance.ID,
			instance.DefinitionID,
			instance.Status,
			instance.Version,
			strings.Join(instance.BlockingActivities, ","),
			instance.UpdatedAt.Format(time.RFC3339),
		)
	}
}
