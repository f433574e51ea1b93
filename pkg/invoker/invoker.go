// Package invoker walks a workflow instance graph from an entry point or a
// resumed blocking activity, one pass at a time.
package invoker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/otelhelper"
	"github.com/dukex/flowhost/pkg/protocol"
)

// ActivityCreator binds drivers to graph activities.
type ActivityCreator interface {
	CreateActivity(activity *models.Activity) (protocol.Activity, error)
}

type Invoker struct {
	activities  ActivityCreator
	expressions *expression.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func New(activities ActivityCreator, expressions *expression.Registry, logger *slog.Logger) *Invoker {
	return &Invoker{
		activities:  activities,
		expressions: expressions,
		logger:      logger.With("module", "invoker"),
		tracer:      otel.Tracer("github.com/dukex/flowhost/pkg/invoker"),
		now:         time.Now,
	}
}

// Start runs a pass from activityID, an entry point of the instance, after
// merging arguments into its variables.
//
// Faults are reported through the returned context, not as errors. Errors
// are reserved for invalid arguments and cancellation; in both cases the
// workflow is not modified.
func (i *Invoker) Start(ctx context.Context, workflow *models.Workflow, activityID string, arguments *models.Variables) (*models.ExecutionContext, error) {
	if !workflow.IsInstance() {
		return nil, &InvocationError{Op: "start", WorkflowID: workflow.ID, ActivityID: activityID, Err: ErrNotInstance}
	}

	if workflow.Activity(activityID) == nil || workflow.HasIncoming(activityID) {
		return nil, &InvocationError{Op: "start", WorkflowID: workflow.ID, ActivityID: activityID, Err: ErrInvalidStartActivity}
	}

	ctx, span := i.tracer.Start(ctx, "invoker.start", trace.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ActivityIDKey, activityID),
	))
	defer span.End()

	p := i.newPass(workflow, activityID)
	p.work.Variables.Merge(arguments)
	p.enqueue(step{activity: p.work.Activity(activityID), triggered: true})

	return p.run(ctx, workflow, span)
}

// Resume removes activityID from the blocking set, merges arguments, lets
// the activity finish and continues the walk from its outcome.
func (i *Invoker) Resume(ctx context.Context, workflow *models.Workflow, activityID string, arguments *models.Variables) (*models.ExecutionContext, error) {
	if !workflow.IsInstance() {
		return nil, &InvocationError{Op: "resume", WorkflowID: workflow.ID, ActivityID: activityID, Err: ErrNotInstance}
	}

	if !workflow.IsBlockedOn(activityID) {
		return nil, &InvocationError{Op: "resume", WorkflowID: workflow.ID, ActivityID: activityID, Err: ErrInvalidResumeTarget}
	}

	ctx, span := i.tracer.Start(ctx, "invoker.resume", trace.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ActivityIDKey, activityID),
	))
	defer span.End()

	p := i.newPass(workflow, activityID)
	p.work.Unblock(activityID)
	p.result.Unblocked = append(p.result.Unblocked, activityID)
	p.work.Variables.Merge(arguments)
	p.enqueue(step{activity: p.work.Activity(activityID), triggered: true, resumed: true})

	return p.run(ctx, workflow, span)
}

func (i *Invoker) newPass(workflow *models.Workflow, activityID string) *pass {
	return &pass{
		invoker: i,
		work:    workflow.Clone(),
		visited: make(map[string]bool),
		logger:  i.logger.With("workflow_id", workflow.ID, "entry_activity_id", activityID),
		result: &models.ExecutionContext{
			ID:           uuid.NewString(),
			WorkflowID:   workflow.ID,
			DefinitionID: workflow.DefinitionID,
			ActivityID:   activityID,
			Output:       models.NewVariables(),
			StartedAt:    i.now(),
		},
	}
}

type step struct {
	activity  *models.Activity
	via       *models.Connection
	triggered bool
	resumed   bool
}

// pass is one invocation. It mutates a working copy only; the caller's
// workflow receives the copy's state when the pass completes or blocks.
type pass struct {
	invoker *Invoker
	work    *models.Workflow
	result  *models.ExecutionContext
	queue   []step
	visited map[string]bool
	logger  *slog.Logger
}

func (p *pass) enqueue(s step) {
	p.queue = append(p.queue, s)
}

func (p *pass) run(ctx context.Context, target *models.Workflow, span trace.Span) (*models.ExecutionContext, error) {
	for len(p.queue) > 0 {
		if err := ctx.Err(); err != nil {
			p.finish(models.ExecutionStatusCancelled)
			otelhelper.SetStatus(span, string(models.ExecutionStatusCancelled))
			p.logger.InfoContext(ctx, "Pass cancelled", "error", err)

			return p.result, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		current := p.queue[0]
		p.queue = p.queue[1:]

		if p.visited[current.activity.ID] {
			p.logger.DebugContext(ctx, "Activity already executed in this pass, skipping",
				"activity_id", current.activity.ID,
				"via", connectionID(current.via),
			)

			continue
		}

		result, err := p.execute(ctx, current)
		if err != nil {
			fault := models.NewActivityFault(current.activity, err)
			p.result.Fault = fault
			p.finish(models.ExecutionStatusFaulted)

			otelhelper.SetError(span, fault, attribute.String(otelhelper.ActivityIDKey, current.activity.ID))
			p.logger.WarnContext(ctx, "Activity faulted",
				"activity_id", current.activity.ID,
				"activity_type", current.activity.Type,
				"error", err,
			)

			return p.result, nil
		}

		p.apply(ctx, current, result)
		span.AddEvent("activity", trace.WithAttributes(
			attribute.String(otelhelper.ActivityIDKey, current.activity.ID),
			attribute.String("activity.outcome", result.Outcome),
		))
	}

	p.commit(target)
	p.finish(blockedStatus(target))
	otelhelper.SetStatus(span, string(p.result.Status))
	p.logger.InfoContext(ctx, "Pass finished",
		"status", p.result.Status,
		"executed", len(p.result.Journal),
		"blocking", len(target.BlockingActivities),
	)

	return p.result, nil
}

func (p *pass) execute(ctx context.Context, current step) (protocol.Result, error) {
	driver, err := p.invoker.activities.CreateActivity(current.activity)
	if err != nil {
		return protocol.Result{}, err
	}

	sc := &scope{pass: p, step: current}

	if current.resumed {
		if resumable, ok := driver.(protocol.Resumable); ok {
			return resumable.Resume(ctx, sc)
		}

		return protocol.Done(), nil
	}

	return driver.Execute(ctx, sc)
}

func (p *pass) apply(ctx context.Context, current step, result protocol.Result) {
	entry := models.JournalEntry{ActivityID: current.activity.ID, Via: connectionID(current.via)}

	switch result.Kind {
	case protocol.ResultOutcome:
		p.visited[current.activity.ID] = true
		entry.Outcome = result.Outcome

		next := p.work.Outgoing(current.activity.ID, result.Outcome)
		for _, conn := range next {
			p.enqueue(step{activity: p.work.Activity(conn.Target), via: conn})
		}

		p.logger.DebugContext(ctx, "Activity completed",
			"activity_id", current.activity.ID,
			"outcome", result.Outcome,
			"scheduled", len(next),
		)
	case protocol.ResultSuspend:
		p.visited[current.activity.ID] = true
		entry.Suspended = true

		if p.work.Block(current.activity.ID) {
			p.result.Blocked = append(p.result.Blocked, current.activity.ID)
		}

		p.logger.DebugContext(ctx, "Activity suspended", "activity_id", current.activity.ID)
	case protocol.ResultHalt:
		p.logger.DebugContext(ctx, "Activity halted", "activity_id", current.activity.ID)
	}

	p.result.Journal = append(p.result.Journal, entry)
}

func (p *pass) commit(target *models.Workflow) {
	target.Variables = p.work.Variables
	target.BlockingActivities = p.work.BlockingActivities
	target.Arrivals = p.work.Arrivals
	target.Fault = ""
	target.Status = models.WorkflowStatusCompleted

	if len(target.BlockingActivities) > 0 {
		target.Status = models.WorkflowStatusBlocked
	}
}

func (p *pass) finish(status models.ExecutionStatus) {
	p.result.Status = status
	p.result.FinishedAt = p.invoker.now()

	// The working copy is dropped, so nothing it recorded took effect.
	if status == models.ExecutionStatusFaulted || status == models.ExecutionStatusCancelled {
		p.result.Blocked = nil
		p.result.Unblocked = nil
		p.result.Output = models.NewVariables()
	}
}

func blockedStatus(workflow *models.Workflow) models.ExecutionStatus {
	if len(workflow.BlockingActivities) > 0 {
		return models.ExecutionStatusBlocked
	}

	return models.ExecutionStatusCompleted
}

func connectionID(conn *models.Connection) string {
	if conn == nil {
		return ""
	}

	return conn.ID
}
