package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
	"github.com/dukex/flowhost/pkg/registry"
	"github.com/dukex/flowhost/pkg/testutil"
)

type activityFunc func(ctx context.Context, scope protocol.Scope) (protocol.Result, error)

func (f activityFunc) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	return f(ctx, scope)
}

type approval struct{}

func (approval) Execute(context.Context, protocol.Scope) (protocol.Result, error) {
	return protocol.Suspend(), nil
}

func (approval) Resume(_ context.Context, scope protocol.Scope) (protocol.Result, error) {
	if approved, _ := scope.Variables().Get("approved"); approved == true {
		return protocol.Outcome("Approved"), nil
	}

	return protocol.Outcome("Rejected"), nil
}

type staticFactory struct {
	id       string
	activity protocol.Activity
}

func (f staticFactory) Create(*models.Activity) (protocol.Activity, error) { return f.activity, nil }
func (f staticFactory) ID() string                                         { return f.id }
func (f staticFactory) Name() string                                       { return f.id }
func (f staticFactory) Description() string                                { return f.id }
func (f staticFactory) Schema() map[string]any                             { return nil }

func newTestInvoker(t *testing.T, extra ...protocol.ActivityFactory) (*Invoker, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer

	logger := slog.New(slog.DiscardHandler)
	activities := registry.NewRegistry(logger)
	activities.RegisterDefaultActivities(&out)

	for _, factory := range extra {
		activities.RegisterActivity(factory)
	}

	return New(activities, expression.NewDefaultRegistry(), logger), &out
}

func activity(id, activityType string, fields ...any) *models.Activity {
	a := testutil.CreateTestActivity(testutil.WithID(id), testutil.WithType(activityType))
	a.Fields = nil

	for i := 0; i+1 < len(fields); i += 2 {
		testutil.WithField(fields[i].(string), fields[i+1].(models.Expression))(a)
	}

	return a
}

// approvalWorkflow: go -> greet -> approve (blocks) -> record
func approvalWorkflow() *models.Workflow {
	def := testutil.CreateTestDefinition("approval",
		testutil.Signal("start", "go"),
		testutil.WriteLine("greet", models.Template("hello {{.name}}")),
		testutil.Signal("wait", "approve"),
		activity("record", "SetVariable", "name", models.PlainText("recorded"), "value", models.Template("{{.decision}}")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "greet")
	testutil.Connect(def, "greet", protocol.OutcomeDone, "wait")
	testutil.Connect(def, "wait", protocol.OutcomeDone, "record")

	return testutil.CreateTestInstance(def, "instance-1")
}

func snapshot(t *testing.T, wf *models.Workflow) string {
	t.Helper()

	data, err := json.Marshal(wf)
	require.NoError(t, err)

	return string(data)
}

func TestStart_BlocksAndResume_Completes(t *testing.T) {
	inv, out := newTestInvoker(t)
	wf := approvalWorkflow()

	result, err := inv.Start(context.Background(), wf, "start", models.VariablesFrom(map[string]any{"name": "Ada"}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusBlocked, result.Status)
	assert.Equal(t, []string{"wait"}, result.Blocked)
	assert.Equal(t, []string{"wait"}, wf.BlockingActivities)
	assert.Equal(t, models.WorkflowStatusBlocked, wf.Status)
	assert.Equal(t, "hello Ada\n", out.String())
	assert.True(t, result.Executed("greet"))
	assert.False(t, result.Executed("record"), "nothing behind the blocking activity runs")
	assert.False(t, wf.Variables.Has("recorded"))

	result, err = inv.Resume(context.Background(), wf, "wait", models.VariablesFrom(map[string]any{"decision": "yes"}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, []string{"wait"}, result.Unblocked)
	assert.Empty(t, wf.BlockingActivities)
	assert.Equal(t, models.WorkflowStatusCompleted, wf.Status)

	recorded, ok := wf.Variables.Get("recorded")
	require.True(t, ok)
	assert.Equal(t, "yes", recorded)
	assert.True(t, result.Output.Has("recorded"))
	assert.Equal(t, []string{"name", "decision", "recorded"}, wf.Variables.Keys())
}

func TestStart_Preconditions(t *testing.T) {
	inv, _ := newTestInvoker(t)

	tests := []struct {
		name       string
		workflow   func() *models.Workflow
		activityID string
		wantErr    error
	}{
		{
			name:       "activity with incoming connection",
			workflow:   approvalWorkflow,
			activityID: "greet",
			wantErr:    ErrInvalidStartActivity,
		},
		{
			name:       "unknown activity",
			workflow:   approvalWorkflow,
			activityID: "ghost",
			wantErr:    ErrInvalidStartActivity,
		},
		{
			name: "definition",
			workflow: func() *models.Workflow {
				wf := approvalWorkflow()
				wf.Kind = models.WorkflowKindDefinition

				return wf
			},
			activityID: "start",
			wantErr:    ErrNotInstance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := tt.workflow()
			before := snapshot(t, wf)

			result, err := inv.Start(context.Background(), wf, tt.activityID, nil)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			assert.Equal(t, before, snapshot(t, wf))
		})
	}
}

func TestResume_InvalidResumeTargetLeavesInstanceUntouched(t *testing.T) {
	inv, _ := newTestInvoker(t)
	wf := approvalWorkflow()

	_, err := inv.Start(context.Background(), wf, "start", models.VariablesFrom(map[string]any{"name": "Ada"}))
	require.NoError(t, err)

	before := snapshot(t, wf)

	for _, target := range []string{"start", "greet", "ghost"} {
		result, err := inv.Resume(context.Background(), wf, target, models.VariablesFrom(map[string]any{"x": 1}))

		require.Error(t, err)
		assert.True(t, IsInvalidResumeTarget(err))
		assert.Nil(t, result)

		var invocationErr *InvocationError
		require.ErrorAs(t, err, &invocationErr)
		assert.Equal(t, target, invocationErr.ActivityID)
	}

	assert.Equal(t, before, snapshot(t, wf))
}

func TestFaultIsolation(t *testing.T) {
	boom := errors.New("boom")
	inv, _ := newTestInvoker(t, staticFactory{id: "Boom", activity: activityFunc(func(context.Context, protocol.Scope) (protocol.Result, error) {
		return protocol.Result{}, boom
	})})

	// start fans out to a Signal that would block and to a SetVariable
	// followed by a faulting activity.
	def := testutil.CreateTestDefinition("faulty",
		testutil.Signal("start", "go"),
		testutil.Signal("pause", "later"),
		activity("set", "SetVariable", "name", models.PlainText("touched"), "value", models.PlainText("yes")),
		activity("boom", "Boom"),
		testutil.Signal("old", "previous"),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "pause")
	testutil.Connect(def, "start", protocol.OutcomeDone, "set")
	testutil.Connect(def, "set", protocol.OutcomeDone, "boom")

	wf := testutil.CreateTestInstance(def, "instance")
	wf.Block("old")
	before := snapshot(t, wf)

	result, err := inv.Start(context.Background(), wf, "start", models.VariablesFrom(map[string]any{"arg": 1}))
	require.NoError(t, err, "faults are reported through the context")

	assert.Equal(t, models.ExecutionStatusFaulted, result.Status)
	require.NotNil(t, result.Fault)
	assert.Equal(t, "boom", result.Fault.ActivityID)
	assert.ErrorIs(t, result.Fault, boom)
	assert.Empty(t, result.Blocked)
	assert.Zero(t, result.Output.Len())

	assert.Equal(t, []string{"old"}, wf.BlockingActivities)
	assert.Equal(t, before, snapshot(t, wf), "a faulted pass changes nothing")
}

func TestUnknownSyntax_BubblesFromStartAndResume(t *testing.T) {
	inv, _ := newTestInvoker(t)

	def := testutil.CreateTestDefinition("syntax",
		testutil.Signal("start", "go"),
		testutil.WriteLine("bad", models.Expression{Syntax: "cobol", Text: "DISPLAY"}),
		testutil.Signal("wait", "approve"),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "bad")
	testutil.Connect(def, "wait", protocol.OutcomeDone, "bad")

	wf := testutil.CreateTestInstance(def, "instance")

	started, err := inv.Start(context.Background(), wf, "start", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFaulted, started.Status)
	assert.ErrorIs(t, started.Fault, expression.ErrUnknownSyntax)

	wf.Block("wait")

	resumed, err := inv.Resume(context.Background(), wf, "wait", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFaulted, resumed.Status)
	assert.ErrorIs(t, resumed.Fault, expression.ErrUnknownSyntax)
	assert.Equal(t, started.Fault.ActivityID, resumed.Fault.ActivityID)
	assert.Equal(t, []string{"wait"}, wf.BlockingActivities)
}

func TestUnknownActivityTypeFaults(t *testing.T) {
	inv, _ := newTestInvoker(t)

	def := testutil.CreateTestDefinition("unknown", testutil.Signal("start", "go"), activity("x", "Teleport"))
	testutil.Connect(def, "start", protocol.OutcomeDone, "x")

	result, err := inv.Start(context.Background(), testutil.CreateTestInstance(def, "i"), "start", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFaulted, result.Status)
	assert.ErrorIs(t, result.Fault, registry.ErrActivityTypeNotRegistered)
}

func TestCycleIsBoundedPerPass(t *testing.T) {
	inv, out := newTestInvoker(t)

	def := testutil.CreateTestDefinition("loop",
		testutil.Signal("start", "go"),
		testutil.WriteLine("a", models.PlainText("a")),
		testutil.WriteLine("b", models.PlainText("b")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "a")
	testutil.Connect(def, "a", protocol.OutcomeDone, "b")
	testutil.Connect(def, "b", protocol.OutcomeDone, "a")

	result, err := inv.Start(context.Background(), testutil.CreateTestInstance(def, "i"), "start", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "a\nb\n", out.String())
	assert.Len(t, result.Journal, 3)
}

func TestFanOutAndDiamond(t *testing.T) {
	inv, out := newTestInvoker(t)

	def := testutil.CreateTestDefinition("diamond",
		testutil.Signal("start", "go"),
		testutil.WriteLine("left", models.PlainText("left")),
		testutil.WriteLine("right", models.PlainText("right")),
		testutil.WriteLine("merge", models.PlainText("merge")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "left")
	testutil.Connect(def, "start", protocol.OutcomeDone, "right")
	testutil.Connect(def, "left", protocol.OutcomeDone, "merge")
	testutil.Connect(def, "right", protocol.OutcomeDone, "merge")

	result, err := inv.Start(context.Background(), testutil.CreateTestInstance(def, "i"), "start", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "left\nright\nmerge\n", out.String(), "the second arrival in the same pass is skipped")
}

func TestJoinAcrossPasses(t *testing.T) {
	inv, out := newTestInvoker(t)

	def := testutil.CreateTestDefinition("join",
		testutil.Signal("start", "go"),
		testutil.Signal("approval", "approve"),
		testutil.WriteLine("check", models.PlainText("checked")),
		activity("join", "Join"),
		testutil.WriteLine("ship", models.PlainText("shipped")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "approval")
	testutil.Connect(def, "start", protocol.OutcomeDone, "check")
	testutil.Connect(def, "approval", protocol.OutcomeDone, "join")
	testutil.Connect(def, "check", protocol.OutcomeDone, "join")
	testutil.Connect(def, "join", protocol.OutcomeDone, "ship")

	wf := testutil.CreateTestInstance(def, "i")

	result, err := inv.Start(context.Background(), wf, "start", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusBlocked, result.Status)
	assert.Equal(t, "checked\n", out.String())
	assert.Equal(t, map[string][]string{"join": {"check:Done->join"}}, wf.Arrivals)

	result, err = inv.Resume(context.Background(), wf, "approval", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "checked\nshipped\n", out.String())
	assert.Nil(t, wf.Arrivals)
}

func TestJoinAnyFiresOncePerPass(t *testing.T) {
	inv, out := newTestInvoker(t)

	def := testutil.CreateTestDefinition("race",
		testutil.Signal("start", "go"),
		testutil.WriteLine("left", models.PlainText("left")),
		testutil.WriteLine("right", models.PlainText("right")),
		activity("join", "Join", "mode", models.PlainText("any")),
		testutil.WriteLine("ship", models.PlainText("shipped")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "left")
	testutil.Connect(def, "start", protocol.OutcomeDone, "right")
	testutil.Connect(def, "left", protocol.OutcomeDone, "join")
	testutil.Connect(def, "right", protocol.OutcomeDone, "join")
	testutil.Connect(def, "join", protocol.OutcomeDone, "ship")

	result, err := inv.Start(context.Background(), testutil.CreateTestInstance(def, "i"), "start", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "left\nright\nshipped\n", out.String())
}

func TestIfElseRoutesOneBranch(t *testing.T) {
	inv, out := newTestInvoker(t)

	def := testutil.CreateTestDefinition("branch",
		testutil.Signal("start", "go"),
		activity("check", "IfElse", "condition", models.JSONata("amount > 100")),
		testutil.WriteLine("big", models.PlainText("big")),
		testutil.WriteLine("small", models.PlainText("small")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "check")
	testutil.Connect(def, "check", "True", "big")
	testutil.Connect(def, "check", "False", "small")

	_, err := inv.Start(context.Background(), testutil.CreateTestInstance(def, "i"), "start", models.VariablesFrom(map[string]any{"amount": 500}))
	require.NoError(t, err)
	assert.Equal(t, "big\n", out.String())
}

func TestResume_UsesResumableOutcome(t *testing.T) {
	inv, out := newTestInvoker(t, staticFactory{id: "Approval", activity: approval{}})

	def := testutil.CreateTestDefinition("approval",
		testutil.Signal("start", "go"),
		activity("review", "Approval"),
		testutil.WriteLine("yes", models.PlainText("approved")),
		testutil.WriteLine("no", models.PlainText("rejected")),
	)
	def.Activities[1].Name = "review"
	testutil.Connect(def, "start", protocol.OutcomeDone, "review")
	testutil.Connect(def, "review", "Approved", "yes")
	testutil.Connect(def, "review", "Rejected", "no")

	wf := testutil.CreateTestInstance(def, "i")

	result, err := inv.Start(context.Background(), wf, "start", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"review"}, result.Blocked)

	_, err = inv.Resume(context.Background(), wf, "review", models.VariablesFrom(map[string]any{"approved": true}))
	require.NoError(t, err)
	assert.Equal(t, "approved\n", out.String())
}

func TestCancellationBetweenActivities(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv, out := newTestInvoker(t, staticFactory{id: "Cancel", activity: activityFunc(func(context.Context, protocol.Scope) (protocol.Result, error) {
		cancel()

		return protocol.Done(), nil
	})})

	def := testutil.CreateTestDefinition("cancel",
		testutil.Signal("start", "go"),
		activity("set", "SetVariable", "name", models.PlainText("touched"), "value", models.PlainText("yes")),
		activity("stop", "Cancel"),
		testutil.WriteLine("after", models.PlainText("after")),
	)
	testutil.Connect(def, "start", protocol.OutcomeDone, "set")
	testutil.Connect(def, "set", protocol.OutcomeDone, "stop")
	testutil.Connect(def, "stop", protocol.OutcomeDone, "after")

	wf := testutil.CreateTestInstance(def, "i")
	before := snapshot(t, wf)

	result, err := inv.Start(ctx, wf, "start", nil)

	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.ExecutionStatusCancelled, result.Status)
	assert.Empty(t, out.String())
	assert.Equal(t, before, snapshot(t, wf))
}

func TestResume_CancelledBeforeAnythingRuns(t *testing.T) {
	inv, _ := newTestInvoker(t)
	wf := approvalWorkflow()
	wf.Block("wait")
	before := snapshot(t, wf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := inv.Resume(ctx, wf, "wait", nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, models.ExecutionStatusCancelled, result.Status)
	assert.Equal(t, before, snapshot(t, wf))
}
