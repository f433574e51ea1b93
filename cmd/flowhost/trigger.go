package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowhost/pkg/cmd"
	"github.com/dukex/flowhost/pkg/events"
	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/host"
	"github.com/dukex/flowhost/pkg/invoker"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
)

var (
	ErrMissingActivity = errors.New("activity name is required")
	ErrInvalidArgument = errors.New("arguments must be key=value")
)

func TriggerCommand() *cli.Command {
	return &cli.Command{
		Name:      "trigger",
		Usage:     "Start and resume the workflows waiting on an activity name",
		ArgsUsage: "<activity>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "arg",
				Aliases: []string{"a"},
				Usage:   "Trigger argument as key=value, repeatable",
			},
			&cli.StringFlag{
				Name:  "arguments",
				Usage: "Trigger arguments as a JSON object",
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Publish the trigger on this event bus (gochannel, kafka) instead of running it",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
		},
		Action: trigger,
	}
}

func trigger(ctx context.Context, command *cli.Command) error {
	activityName := command.Args().First()
	if activityName == "" {
		return ErrMissingActivity
	}

	arguments, err := parseArguments(command.String("arguments"), command.StringSlice("arg"))
	if err != nil {
		return err
	}

	logger := slog.Default().With("module", "flowhost")

	if provider := command.String("event-bus"); provider != "" {
		return publishTrigger(ctx, provider, strings.Split(command.String("kafka-brokers"), ","), activityName, arguments, logger)
	}

	registry, err := cmd.NewRegistry(logger, os.Stdout, command.String("plugins-path"))
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	return withPersistence(ctx, command, logger, func(store persistence.Persistence) error {
		workflowHost := host.New(
			store.WorkflowRepository(),
			invoker.New(registry, expression.NewDefaultRegistry(), logger),
			logger,
		)

		result, err := workflowHost.Trigger(ctx, activityName, arguments)
		if result != nil {
			printTriggerResult(os.Stdout, result)
		}

		return err
	})
}

func publishTrigger(ctx context.Context, provider string, brokers []string, activityName string, arguments *models.Variables, logger *slog.Logger) error {
	bus, err := cmd.NewEventBus(provider, brokers, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	event := events.NewTriggerReceived(activityName, arguments)

	if err := bus.Publish(ctx, activityName, event); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}

	logger.InfoContext(ctx, "Published trigger", "activity_name", activityName, "event_id", event.ID)

	return nil
}

// parseArguments merges a JSON object with key=value pairs; pairs win.
func parseArguments(raw string, pairs []string) (*models.Variables, error) {
	arguments := models.NewVariables()

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), arguments); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, pair)
		}

		arguments.Set(key, value)
	}

	return arguments, nil
}

func printTriggerResult(w io.Writer, result *host.TriggerResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "PASS\tWORKFLOW\tACTIVITY\tSTATUS\tFAULT")

	write := func(kind string, contexts []*models.ExecutionContext) {
		for _, ec := range contexts {
			fault := ""
			if ec.Fault != nil {
				fault = ec.Fault.Message
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", kind, ec.WorkflowID, ec.ActivityID, ec.Status, fault)
		}
	}

	write("started", result.Started)
	write("resumed", result.Resumed)
}
