package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowhost/pkg/cmd"
	"github.com/dukex/flowhost/pkg/eventbus"
	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/host"
	"github.com/dukex/flowhost/pkg/invoker"
	"github.com/dukex/flowhost/pkg/loader"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/otelhelper"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/services"
	"github.com/dukex/flowhost/pkg/sources/schedule"
)

const shutdownTimeout = 10 * time.Second

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the workflow host with its HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP port",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka); empty disables the bus",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Workflows processed in parallel per trigger",
				Value:   4,
				Sources: cli.EnvVars("CONCURRENCY"),
			},
			&cli.StringFlag{
				Name:    "schedules",
				Usage:   "Scheduled triggers as name=cron pairs separated by ';'",
				Sources: cli.EnvVars("SCHEDULES"),
			},
			&cli.StringFlag{
				Name:    "timezone",
				Usage:   "Time zone the schedules run in",
				Value:   "UTC",
				Sources: cli.EnvVars("TIMEZONE"),
			},
			&cli.StringFlag{
				Name:    "definitions-path",
				Usage:   "Directory of definition documents imported on start",
				Sources: cli.EnvVars("DEFINITIONS_PATH"),
			},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("module", "flowhost")

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := otelhelper.Setup(ctx, "flowhost")
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to shut down tracing", "error", err)
			}
		}()
	}

	registry, err := cmd.NewRegistry(logger, os.Stdout, command.String("plugins-path"))
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	return withPersistence(ctx, command, logger, func(store persistence.Persistence) error {
		if path := command.String("definitions-path"); path != "" {
			if err := importDefinitions(ctx, store, path, logger); err != nil {
				return err
			}
		}

		opts := []host.Option{host.WithConcurrency(command.Int("concurrency"))}

		var bus *eventbus.WatermillEventBus

		if provider := command.String("event-bus"); provider != "" {
			bus, err = cmd.NewEventBus(provider, strings.Split(command.String("kafka-brokers"), ","), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			opts = append(opts, host.WithPublisher(bus))
		}

		workflowHost := host.New(
			store.WorkflowRepository(),
			invoker.New(registry, expression.NewDefaultRegistry(), logger),
			logger,
			opts...,
		)

		if bus != nil {
			if err := workflowHost.Listen(ctx, bus); err != nil {
				return err
			}
		}

		source, err := startSchedules(ctx, command, workflowHost, logger)
		if err != nil {
			return err
		}

		app := NewAPI(store, registry, workflowHost).App()

		errCh := make(chan error, 1)

		go func() {
			logger.Info("Starting HTTP server", "port", command.Int("port"))

			errCh <- app.Listen(":" + strconv.Itoa(command.Int("port")))
		}()

		select {
		case err = <-errCh:
		case <-ctx.Done():
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			err = app.ShutdownWithContext(shutdownCtx)
		}

		if source != nil {
			err = errors.Join(err, source.Stop(context.WithoutCancel(ctx)))
		}

		return err
	})
}

func importDefinitions(ctx context.Context, store persistence.Persistence, path string, logger *slog.Logger) error {
	definitions, err := loadDefinitions(path)
	if err != nil {
		return err
	}

	result, err := services.NewWorkflow(store).Import(ctx, definitions)
	if err != nil {
		return fmt.Errorf("failed to import definitions from %s: %w", path, err)
	}

	logger.Info("Imported definitions", "path", path, "created", len(result.Created), "updated", len(result.Updated))

	return nil
}

func loadDefinitions(path string) ([]*models.Workflow, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return loader.LoadDir(path)
	}

	definition, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return []*models.Workflow{definition}, nil
}

func startSchedules(ctx context.Context, command *cli.Command, workflowHost *host.WorkflowHost, logger *slog.Logger) (*schedule.Source, error) {
	value := command.String("schedules")
	if value == "" {
		return nil, nil
	}

	schedules, err := schedule.ParseSchedules(value)
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(command.String("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	source := schedule.NewSource(schedules, location, logger)

	err = source.Start(ctx, func(ctx context.Context, activityName string, arguments *models.Variables) error {
		_, err := workflowHost.Trigger(ctx, activityName, arguments)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start schedules: %w", err)
	}

	return source, nil
}
