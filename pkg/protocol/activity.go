// Package protocol defines the contracts between the invoker and pluggable activity drivers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/flowhost/pkg/models"
)

// OutcomeDone is the outcome of an activity that has nothing else to say.
const OutcomeDone = "Done"

// ResultKind tells the invoker what to do after an activity ran.
type ResultKind int

const (
	ResultOutcome ResultKind = iota // Fire outgoing connections for Outcome
	ResultSuspend                   // Block until a trigger resumes the activity
	ResultHalt                      // Completed without firing anything
)

// Result is what an activity returns when it does not fault.
type Result struct {
	Kind    ResultKind
	Outcome string
}

func Outcome(name string) Result {
	return Result{Kind: ResultOutcome, Outcome: name}
}

func Done() Result {
	return Outcome(OutcomeDone)
}

func Suspend() Result {
	return Result{Kind: ResultSuspend}
}

func Halt() Result {
	return Result{Kind: ResultHalt}
}

// Activity is the executable behavior bound to one graph node. A returned
// error faults the pass.
type Activity interface {
	Execute(ctx context.Context, scope Scope) (Result, error)
}

// Resumable is implemented by activities that do work when resumed.
// Activities without it yield OutcomeDone on resume.
type Resumable interface {
	Resume(ctx context.Context, scope Scope) (Result, error)
}

// Scope is the view of the running instance an activity gets.
type Scope interface {
	WorkflowID() string
	Activity() *models.Activity

	// Inbound is the connection that scheduled this execution, nil for the
	// entry point of the pass.
	Inbound() *models.Connection
	Incoming() []*models.Connection

	// Triggered reports whether this activity is the one the trigger named,
	// started or resumed by this pass.
	Triggered() bool

	Variables() *models.Variables
	SetVariable(key string, value any)

	// Evaluate evaluates against the current variables.
	Evaluate(ctx context.Context, expr models.Expression) (any, error)

	// RecordArrival marks the inbound connection as arrived and returns every
	// connection arrived so far. ResetArrivals clears them.
	RecordArrival() []string
	ResetArrivals()

	Logger() *slog.Logger
}

// ActivityFactory creates activity drivers and provides metadata about the activity type.
type ActivityFactory interface {
	// Create binds a driver to an activity of the graph.
	Create(activity *models.Activity) (Activity, error)

	// ID returns the activity type this factory handles.
	ID() string

	// Name returns the human-readable name for this activity type.
	Name() string

	// Description returns a description of what this activity does.
	Description() string

	// Schema returns the JSON schema of the activity fields.
	Schema() map[string]any
}
