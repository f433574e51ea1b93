package host_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/events"
	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/host"
	"github.com/dukex/flowhost/pkg/invoker"
	"github.com/dukex/flowhost/pkg/mocks"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/persistence/memory"
	"github.com/dukex/flowhost/pkg/protocol"
	"github.com/dukex/flowhost/pkg/registry"
	"github.com/dukex/flowhost/pkg/specification"
	"github.com/dukex/flowhost/pkg/testutil"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type fixture struct {
	host *host.WorkflowHost
	repo persistence.WorkflowRepository
	out  *syncBuffer
}

func newFixture(t *testing.T, repo persistence.WorkflowRepository, opts ...host.Option) *fixture {
	t.Helper()

	out := &syncBuffer{}
	logger := slog.New(slog.DiscardHandler)

	activities := registry.NewRegistry(logger)
	activities.RegisterDefaultActivities(out)

	inv := invoker.New(activities, expression.NewDefaultRegistry(), logger)

	return &fixture{
		host: host.New(repo, inv, logger, opts...),
		repo: repo,
		out:  out,
	}
}

func (f *fixture) add(t *testing.T, workflows ...*models.Workflow) {
	t.Helper()

	for _, wf := range workflows {
		require.NoError(t, f.repo.Add(t.Context(), wf))
	}
}

func instances(t *testing.T, repo persistence.WorkflowRepository) []*models.Workflow {
	t.Helper()

	got, err := repo.GetMany(context.Background(), specification.IsInstance{})
	require.NoError(t, err)

	return got
}

// orderDefinition: start(Signal "go") -> wait(Signal "go")
// An instance of it blocks on an activity named like its own trigger.
func orderDefinition() *models.Workflow {
	def := testutil.CreateTestDefinition("order",
		testutil.Signal("start", "go"),
		testutil.Signal("wait", "go"),
	)
	testutil.Connect(def, "start", "Done", "wait")

	return def
}

// approvalDefinition: begin(Signal "begin") -> approve(Signal "go") -> done(WriteLine)
func approvalDefinition() *models.Workflow {
	def := testutil.CreateTestDefinition("approval",
		testutil.Signal("begin", "begin"),
		testutil.Signal("approve", "go"),
		testutil.WriteLine("done", models.Template("approved {{ .order_id }}")),
	)
	testutil.Connect(def, "begin", "Done", "approve")
	testutil.Connect(def, "approve", "Done", "done")

	return def
}

func arguments(pairs ...any) *models.Variables {
	vars := models.NewVariables()
	for i := 0; i+1 < len(pairs); i += 2 {
		vars.Set(pairs[i].(string), pairs[i+1])
	}

	return vars
}

func TestTrigger_StartsDefinitionsAndResumesInstances(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())
	f.add(t, orderDefinition(), approvalDefinition())

	_, err := f.host.Trigger(t.Context(), "begin", arguments("order_id", "A-1"))
	require.NoError(t, err)

	blocked := instances(t, f.repo)
	require.Len(t, blocked, 1)
	assert.Equal(t, []string{"approve"}, blocked[0].BlockingActivities)

	result, err := f.host.Trigger(t.Context(), "go", models.NewVariables())
	require.NoError(t, err)

	require.Len(t, result.Started, 1)
	require.Len(t, result.Resumed, 1)
	assert.NotEqual(t, result.Started[0].WorkflowID, result.Resumed[0].WorkflowID)
	assert.Equal(t, "order", result.Started[0].DefinitionID)
	assert.Equal(t, blocked[0].ID, result.Resumed[0].WorkflowID)

	resumed, err := f.repo.Get(t.Context(), blocked[0].ID)
	require.NoError(t, err)
	assert.Empty(t, resumed.BlockingActivities)
	assert.Equal(t, models.WorkflowStatusCompleted, resumed.Status)
	assert.Equal(t, int64(2), resumed.Version)
	assert.Equal(t, "approved A-1\n", f.out.String())

	// The instance started by "go" blocks on "go" again and must wait for the next trigger.
	started, err := f.repo.Get(t.Context(), result.Started[0].WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wait"}, started.BlockingActivities)
	assert.Equal(t, models.WorkflowStatusBlocked, started.Status)
	assert.Equal(t, int64(1), started.Version)
}

func TestTrigger_NoMatches(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())
	f.add(t, approvalDefinition())

	result, err := f.host.Trigger(t.Context(), "nobody", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Started)
	assert.Empty(t, result.Resumed)
	assert.Empty(t, instances(t, f.repo))
}

func TestStartWorkflow_PreservesGraphShape(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())
	def := approvalDefinition()
	def.Variables.Set("currency", "EUR")
	f.add(t, def)

	ec, err := f.host.StartWorkflow(t.Context(), def, "begin", arguments("order_id", "A-1"))
	require.NoError(t, err)

	instance, err := f.repo.Get(t.Context(), ec.WorkflowID)
	require.NoError(t, err)

	want, err := json.Marshal(map[string]any{"activities": def.Activities, "connections": def.Connections})
	require.NoError(t, err)
	got, err := json.Marshal(map[string]any{"activities": instance.Activities, "connections": instance.Connections})
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	assert.Equal(t, models.WorkflowKindInstance, instance.Kind)
	assert.Equal(t, def.ID, instance.DefinitionID)
	assert.Equal(t, []string{"currency", "order_id"}, instance.Variables.Keys())

	stored, err := f.repo.Get(t.Context(), def.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.BlockingActivities)
	assert.False(t, stored.Variables.Has("order_id"))
}

func TestStartWorkflow_RejectsInstances(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())

	instance := testutil.CreateTestInstance(approvalDefinition(), "i-1")

	_, err := f.host.StartWorkflow(t.Context(), instance, "begin", nil)
	assert.ErrorIs(t, err, host.ErrNotDefinition)
}

func TestTrigger_PersistsFaultedInstances(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())

	def := testutil.CreateTestDefinition("broken",
		testutil.Signal("start", "go"),
		testutil.CreateTestActivity(testutil.WithID("boom"), testutil.WithType("Fault"),
			testutil.WithField("message", models.PlainText("payment declined"))),
	)
	testutil.Connect(def, "start", "Done", "boom")
	f.add(t, def)

	result, err := f.host.Trigger(t.Context(), "go", nil)
	require.NoError(t, err)
	require.Len(t, result.Started, 1)

	ec := result.Started[0]
	assert.Equal(t, models.ExecutionStatusFaulted, ec.Status)
	require.NotNil(t, ec.Fault)
	assert.Equal(t, "boom", ec.Fault.ActivityID)
	assert.EqualError(t, errors.Unwrap(ec.Fault), "payment declined")

	stored, err := f.repo.Get(t.Context(), ec.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFaulted, stored.Status)
	assert.Contains(t, stored.Fault, "payment declined")
	assert.Empty(t, stored.BlockingActivities)
}

func TestTrigger_ResumesEveryMatchingBlockingActivity(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())

	def := testutil.CreateTestDefinition("parallel",
		testutil.Signal("start", "begin"),
		testutil.Signal("left", "approve"),
		testutil.Signal("right", "approve"),
	)
	testutil.Connect(def, "start", "Done", "left")
	testutil.Connect(def, "start", "Done", "right")
	f.add(t, def)

	_, err := f.host.Trigger(t.Context(), "begin", nil)
	require.NoError(t, err)

	blocked := instances(t, f.repo)
	require.Len(t, blocked, 1)
	assert.ElementsMatch(t, []string{"left", "right"}, blocked[0].BlockingActivities)

	result, err := f.host.Trigger(t.Context(), "approve", nil)
	require.NoError(t, err)
	require.Len(t, result.Resumed, 2)
	assert.Equal(t, models.ExecutionStatusBlocked, result.Resumed[0].Status)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Resumed[1].Status)

	stored, err := f.repo.Get(t.Context(), blocked[0].ID)
	require.NoError(t, err)
	assert.Empty(t, stored.BlockingActivities)
	assert.Equal(t, int64(3), stored.Version)
}

func TestTrigger_ConcurrentDeliveryResumesOnce(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository(), host.WithConcurrency(4))
	f.add(t, approvalDefinition())

	_, err := f.host.Trigger(t.Context(), "begin", arguments("order_id", "A-1"))
	require.NoError(t, err)

	const deliveries = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		resumed int
	)

	start := make(chan struct{})

	for range deliveries {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			result, err := f.host.Trigger(context.Background(), "go", nil)
			if err != nil {
				assert.True(t, persistence.IsConcurrencyConflict(err), "unexpected error: %v", err)
			}

			if result != nil {
				mu.Lock()
				resumed += len(result.Resumed)
				mu.Unlock()
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, resumed)
	assert.GreaterOrEqual(t, strings.Count(f.out.String(), "approved A-1"), 1)

	stored := instances(t, f.repo)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(2), stored[0].Version)
}

func TestResumeWorkflow_SurfacesConflictWithoutRetry(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	f := newFixture(t, repo)

	instance := testutil.CreateTestInstance(approvalDefinition(), "i-1")
	instance.Block("approve")
	instance.Version = 4

	conflict := &persistence.ConflictError{WorkflowID: "i-1", ExpectedVersion: 4, ActualVersion: 5}

	repo.On("GetMany", mock.Anything, specification.Definitions("go")).Return([]*models.Workflow{}, nil)
	repo.On("GetMany", mock.Anything, specification.BlockedInstances("go")).Return([]*models.Workflow{instance}, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(wf *models.Workflow) bool { return wf.ID == "i-1" })).
		Return(conflict).Once()

	result, err := f.host.Trigger(t.Context(), "go", arguments("order_id", "A-1"))
	require.Error(t, err)
	assert.True(t, persistence.IsConcurrencyConflict(err))
	assert.Empty(t, result.Resumed)

	repo.AssertNumberOfCalls(t, "Update", 1)
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestTrigger_CombinesFailuresAndKeepsSuccesses(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	f := newFixture(t, repo, host.WithConcurrency(2))

	def := orderDefinition()

	repo.On("GetMany", mock.Anything, specification.Definitions("go")).Return([]*models.Workflow{def}, nil)
	repo.On("GetMany", mock.Anything, specification.BlockedInstances("go")).Return([]*models.Workflow{}, nil)
	repo.On("Add", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	result, err := f.host.Trigger(t.Context(), "go", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, result.Started)
}

func TestTrigger_QueryFailure(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	f := newFixture(t, repo)

	repo.On("GetMany", mock.Anything, specification.Definitions("go")).Return(nil, errors.New("connection refused"))
	repo.On("GetMany", mock.Anything, specification.BlockedInstances("go")).Return([]*models.Workflow{}, nil).Maybe()

	result, err := f.host.Trigger(t.Context(), "go", nil)
	require.Error(t, err)
	assert.Nil(t, result)
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestTrigger_PublishesLifecycleEvents(t *testing.T) {
	bus := &mocks.MockEventBus{}
	f := newFixture(t, memory.NewWorkflowRepository(), host.WithPublisher(bus))
	f.add(t, approvalDefinition())

	bus.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.InstanceStarted")).Return(nil).Once()
	bus.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.InstanceResumed")).
		Return(errors.New("broker unavailable")).Once()

	started, err := f.host.Trigger(t.Context(), "begin", nil)
	require.NoError(t, err)

	result, err := f.host.Trigger(t.Context(), "go", nil)
	require.NoError(t, err, "publish failures are not returned")
	require.Len(t, result.Resumed, 1)

	bus.AssertExpectations(t)

	event := bus.Calls[0].Arguments.Get(2).(events.InstanceStarted)
	assert.Equal(t, started.Started[0].WorkflowID, event.WorkflowID)
	assert.Equal(t, int64(1), event.Version)
	assert.Equal(t, models.ExecutionStatusBlocked, event.Status)
	assert.Equal(t, started.Started[0].WorkflowID, bus.Calls[0].Arguments.String(1))
}

type cancelFactory struct {
	cancel context.CancelFunc
}

type cancelActivity struct {
	cancel context.CancelFunc
}

func (a cancelActivity) Execute(context.Context, protocol.Scope) (protocol.Result, error) {
	a.cancel()

	return protocol.Done(), nil
}

func (f cancelFactory) Create(*models.Activity) (protocol.Activity, error) {
	return cancelActivity(f), nil
}
func (cancelFactory) ID() string              { return "Cancel" }
func (cancelFactory) Name() string            { return "Cancel" }
func (cancelFactory) Description() string     { return "Cancels the running pass" }
func (cancelFactory) Schema() map[string]any { return nil }

func TestTrigger_CancelledPassIsNotPersisted(t *testing.T) {
	repo := memory.NewWorkflowRepository()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	logger := slog.New(slog.DiscardHandler)
	activities := registry.NewRegistry(logger)
	activities.RegisterDefaultActivities(out)
	activities.RegisterActivity(cancelFactory{cancel: cancel})

	h := host.New(repo, invoker.New(activities, expression.NewDefaultRegistry(), logger), logger)

	def := testutil.CreateTestDefinition("cancelled",
		testutil.Signal("start", "go"),
		testutil.CreateTestActivity(testutil.WithID("stop"), testutil.WithType("Cancel")),
		testutil.WriteLine("after", models.PlainText("never")),
	)
	testutil.Connect(def, "start", "Done", "stop")
	testutil.Connect(def, "stop", "Done", "after")
	require.NoError(t, repo.Add(context.Background(), def))

	result, err := h.Trigger(ctx, "go", nil)
	require.Error(t, err)
	assert.True(t, invoker.IsCancelled(err))
	assert.Empty(t, result.Started)

	assert.Empty(t, instances(t, repo))
	assert.Empty(t, out.String())
}

func TestHandleTriggerEvent(t *testing.T) {
	f := newFixture(t, memory.NewWorkflowRepository())
	f.add(t, approvalDefinition())

	err := f.host.HandleTriggerEvent(t.Context(), &events.TriggerReceived{ActivityName: "begin"})
	require.NoError(t, err)
	assert.Len(t, instances(t, f.repo), 1)

	assert.Error(t, f.host.HandleTriggerEvent(t.Context(), "not an event"))
}

func TestListen(t *testing.T) {
	bus := &mocks.MockEventBus{}
	f := newFixture(t, memory.NewWorkflowRepository())

	bus.On("Handle", events.TriggerReceivedEvent, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(nil)

	require.NoError(t, f.host.Listen(t.Context(), bus))
	bus.AssertExpectations(t)
}
