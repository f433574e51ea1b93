// Package host matches trigger events to workflow definitions and blocked
// instances, runs them through the invoker and persists the outcome.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dukex/flowhost/pkg/eventbus"
	"github.com/dukex/flowhost/pkg/events"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/otelhelper"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

// Invoker runs one pass over an instance.
type Invoker interface {
	Start(ctx context.Context, workflow *models.Workflow, activityID string, arguments *models.Variables) (*models.ExecutionContext, error)
	Resume(ctx context.Context, workflow *models.Workflow, activityID string, arguments *models.Variables) (*models.ExecutionContext, error)
}

// TriggerResult holds the passes one Trigger produced.
type TriggerResult struct {
	Started []*models.ExecutionContext
	Resumed []*models.ExecutionContext
}

type WorkflowHost struct {
	repository  persistence.WorkflowRepository
	invoker     Invoker
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
	newID       func() (string, error)
	now         func() time.Time
}

func New(repository persistence.WorkflowRepository, invoker Invoker, logger *slog.Logger, opts ...Option) *WorkflowHost {
	h := &WorkflowHost{
		repository:  repository,
		invoker:     invoker,
		logger:      logger.With("module", "host"),
		tracer:      otel.Tracer("github.com/dukex/flowhost/pkg/host"),
		concurrency: 1,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}

			return id.String(), nil
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Trigger starts every definition whose entry point is named activityName and
// resumes every instance blocked on an activity with that name.
//
// Both queries run before anything is processed, so an instance started here
// is never resumed by the same call. Failures of single workflows are
// combined into the returned error; the passes that succeeded are still
// returned.
func (h *WorkflowHost) Trigger(ctx context.Context, activityName string, arguments *models.Variables) (*TriggerResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "host.trigger", attribute.String(otelhelper.ActivityNameKey, activityName))
	defer span.End()

	definitions, instances, err := h.query(ctx, activityName)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	result := &TriggerResult{}

	var errs error

	started := make([][]*models.ExecutionContext, len(definitions))
	resumed := make([][]*models.ExecutionContext, len(instances))

	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(h.concurrency)

	for i, definition := range definitions {
		g.Go(func() error {
			contexts, err := h.startDefinition(ctx, definition, activityName, arguments)
			started[i] = contexts

			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()

			return nil
		})
	}

	for i, instance := range instances {
		g.Go(func() error {
			contexts, err := h.resumeInstance(ctx, instance, activityName, arguments)
			resumed[i] = contexts

			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	for _, contexts := range started {
		result.Started = append(result.Started, contexts...)
	}

	for _, contexts := range resumed {
		result.Resumed = append(result.Resumed, contexts...)
	}

	span.SetAttributes(
		attribute.Int("workflows.started", len(result.Started)),
		attribute.Int("workflows.resumed", len(result.Resumed)),
	)

	if errs != nil {
		otelhelper.SetError(span, errs, attribute.Int("errors", len(multierr.Errors(errs))))
	}

	h.logger.InfoContext(ctx, "Trigger processed",
		"activity_name", activityName,
		"started", len(result.Started),
		"resumed", len(result.Resumed),
		"errors", len(multierr.Errors(errs)),
	)

	return result, errs
}

// StartNewWorkflows derives and starts one instance per matching entry point of every matching definition.
func (h *WorkflowHost) StartNewWorkflows(ctx context.Context, activityName string, arguments *models.Variables) ([]*models.ExecutionContext, error) {
	definitions, err := h.repository.GetMany(ctx, specification.Definitions(activityName))
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions starting with %q: %w", activityName, err)
	}

	var (
		contexts []*models.ExecutionContext
		errs     error
	)

	for _, definition := range definitions {
		started, err := h.startDefinition(ctx, definition, activityName, arguments)
		contexts = append(contexts, started...)
		errs = multierr.Append(errs, err)
	}

	return contexts, errs
}

// ResumeExistingWorkflows resumes every instance blocked on an activity named activityName.
func (h *WorkflowHost) ResumeExistingWorkflows(ctx context.Context, activityName string, arguments *models.Variables) ([]*models.ExecutionContext, error) {
	instances, err := h.repository.GetMany(ctx, specification.BlockedInstances(activityName))
	if err != nil {
		return nil, fmt.Errorf("failed to query instances blocked on %q: %w", activityName, err)
	}

	var (
		contexts []*models.ExecutionContext
		errs     error
	)

	for _, instance := range instances {
		resumed, err := h.resumeInstance(ctx, instance, activityName, arguments)
		contexts = append(contexts, resumed...)
		errs = multierr.Append(errs, err)
	}

	return contexts, errs
}

// StartWorkflow derives a new instance of definition, runs it from
// activityID and adds it to the repository. Cancelled passes are not stored.
func (h *WorkflowHost) StartWorkflow(ctx context.Context, definition *models.Workflow, activityID string, arguments *models.Variables) (*models.ExecutionContext, error) {
	if !definition.IsDefinition() {
		return nil, fmt.Errorf("workflow %s: %w", definition.ID, ErrNotDefinition)
	}

	id, err := h.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate instance id: %w", err)
	}

	instance := definition.Derive(id, h.now())

	ec, err := h.invoker.Start(ctx, instance, activityID, arguments.Clone())
	if err != nil {
		return ec, err
	}

	recordFault(instance, ec)

	if err := h.repository.Add(ctx, instance); err != nil {
		return ec, fmt.Errorf("failed to add instance %s of %s: %w", instance.ID, definition.ID, err)
	}

	h.logger.DebugContext(ctx, "Workflow started",
		"definition_id", definition.ID,
		"workflow_id", instance.ID,
		"activity_id", activityID,
		"status", ec.Status,
	)

	h.publish(ctx, instance.ID, events.NewInstanceStarted(ec, instance.Version))

	return ec, nil
}

// ResumeWorkflow resumes instance at the blocking activity activityID and
// updates it in the repository. A concurrency conflict is returned as is;
// the pass is lost and the instance stays blocked in storage.
func (h *WorkflowHost) ResumeWorkflow(ctx context.Context, instance *models.Workflow, activityID string, arguments *models.Variables) (*models.ExecutionContext, error) {
	ec, err := h.invoker.Resume(ctx, instance, activityID, arguments.Clone())
	if err != nil {
		return ec, err
	}

	recordFault(instance, ec)

	if err := h.repository.Update(ctx, instance); err != nil {
		return ec, fmt.Errorf("failed to update instance %s: %w", instance.ID, err)
	}

	h.logger.DebugContext(ctx, "Workflow resumed",
		"workflow_id", instance.ID,
		"activity_id", activityID,
		"status", ec.Status,
		"version", instance.Version,
	)

	h.publish(ctx, instance.ID, events.NewInstanceResumed(ec, instance.Version))

	return ec, nil
}

// query loads both candidate sets concurrently.
func (h *WorkflowHost) query(ctx context.Context, activityName string) ([]*models.Workflow, []*models.Workflow, error) {
	var definitions, instances []*models.Workflow

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		definitions, err = h.repository.GetMany(gctx, specification.Definitions(activityName))
		if err != nil {
			return fmt.Errorf("failed to query definitions starting with %q: %w", activityName, err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		instances, err = h.repository.GetMany(gctx, specification.BlockedInstances(activityName))
		if err != nil {
			return fmt.Errorf("failed to query instances blocked on %q: %w", activityName, err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return definitions, instances, nil
}

func (h *WorkflowHost) startDefinition(ctx context.Context, definition *models.Workflow, activityName string, arguments *models.Variables) ([]*models.ExecutionContext, error) {
	var (
		contexts []*models.ExecutionContext
		errs     error
	)

	for _, activity := range definition.StartActivitiesNamed(activityName) {
		ec, err := h.StartWorkflow(ctx, definition, activity.ID, arguments)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to start workflow",
				"definition_id", definition.ID, "activity_id", activity.ID, "error", err)

			errs = multierr.Append(errs, err)

			continue
		}

		contexts = append(contexts, ec)
	}

	return contexts, errs
}

// resumeInstance applies every matching resume to the same copy in blocking
// order. Each resume is stored before the next one runs, and the first
// failure stops work on the instance.
func (h *WorkflowHost) resumeInstance(ctx context.Context, instance *models.Workflow, activityName string, arguments *models.Variables) ([]*models.ExecutionContext, error) {
	var contexts []*models.ExecutionContext

	for _, activity := range instance.BlockingActivitiesNamed(activityName) {
		if !instance.IsBlockedOn(activity.ID) {
			continue
		}

		ec, err := h.ResumeWorkflow(ctx, instance, activity.ID, arguments)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to resume workflow",
				"workflow_id", instance.ID, "activity_id", activity.ID, "error", err)

			return contexts, err
		}

		contexts = append(contexts, ec)
	}

	return contexts, nil
}

func (h *WorkflowHost) publish(ctx context.Context, key string, event eventbus.Event) {
	if h.publisher == nil {
		return
	}

	if err := h.publisher.Publish(ctx, key, event); err != nil {
		h.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

// recordFault keeps the fault of a pass on the instance. The invoker has
// already left everything else as it was before the pass.
func recordFault(instance *models.Workflow, ec *models.ExecutionContext) {
	if ec.Status != models.ExecutionStatusFaulted {
		return
	}

	instance.Status = models.WorkflowStatusFaulted
	instance.Fault = ec.Fault.Error()
}
