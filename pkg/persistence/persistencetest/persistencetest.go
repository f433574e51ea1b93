// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
	"github.com/dukex/flowhost/pkg/testutil"
)

// Factory opens a backend for one subtest. Backends shared between subtests
// are fine: every subtest uses unique IDs and activity names.
type Factory func(t *testing.T) persistence.Persistence

// RunWorkflowRepositoryTests runs the shared repository behaviour against a backend.
func RunWorkflowRepositoryTests(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("add then get returns an identical workflow", func(t *testing.T) {
		repo, ctx := open(t, factory)
		def := definition("approve")

		require.NoError(t, repo.Add(ctx, def))
		assert.Equal(t, int64(1), def.Version)

		got, err := repo.Get(ctx, def.ID)
		require.NoError(t, err)
		assertSameWorkflow(t, def, got)
		assert.Equal(t, []string{"greeting", "count"}, got.Variables.Keys())
	})

	t.Run("add rejects a duplicate id", func(t *testing.T) {
		repo, ctx := open(t, factory)
		def := definition("approve")

		require.NoError(t, repo.Add(ctx, def))

		err := repo.Add(ctx, def.Clone())
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowAlreadyExists(err))
	})

	t.Run("get unknown id", func(t *testing.T) {
		repo, ctx := open(t, factory)

		_, err := repo.Get(ctx, uuid.NewString())
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("returned workflows are private copies", func(t *testing.T) {
		repo, ctx := open(t, factory)
		def := definition("approve")
		require.NoError(t, repo.Add(ctx, def))

		def.Name = "changed after add"

		got, err := repo.Get(ctx, def.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "changed after add", got.Name)

		got.Variables.Set("greeting", "mutated")
		got.Activities[0].Name = "mutated"

		again, err := repo.Get(ctx, def.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", again.Variables.ToMap()["greeting"])
		assert.NotEqual(t, "mutated", again.Activities[0].Name)
	})

	t.Run("update increments the version", func(t *testing.T) {
		repo, ctx := open(t, factory)
		instance := blockedInstance("approve")
		require.NoError(t, repo.Add(ctx, instance))

		loaded, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)

		loaded.Variables.Set("approved", true)
		loaded.Unblock("wait")
		loaded.Status = models.WorkflowStatusCompleted

		require.NoError(t, repo.Update(ctx, loaded))
		assert.Equal(t, int64(2), loaded.Version)

		got, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, true, got.Variables.ToMap()["approved"])
		assert.Empty(t, got.BlockingActivities)
		assert.Equal(t, models.WorkflowStatusCompleted, got.Status)
	})

	t.Run("update with a stale version conflicts and stores nothing", func(t *testing.T) {
		repo, ctx := open(t, factory)
		instance := blockedInstance("approve")
		require.NoError(t, repo.Add(ctx, instance))

		first, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)
		stale, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)

		first.Variables.Set("winner", "first")
		require.NoError(t, repo.Update(ctx, first))

		stale.Variables.Set("winner", "stale")
		err = repo.Update(ctx, stale)
		require.Error(t, err)
		assert.True(t, persistence.IsConcurrencyConflict(err))
		assert.Equal(t, int64(1), stale.Version)

		got, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Variables.ToMap()["winner"])
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("update unknown id", func(t *testing.T) {
		repo, ctx := open(t, factory)
		instance := blockedInstance("approve")
		instance.Version = 1

		err := repo.Update(ctx, instance)
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("concurrent updates of one version let exactly one win", func(t *testing.T) {
		repo, ctx := open(t, factory)
		instance := blockedInstance("approve")
		require.NoError(t, repo.Add(ctx, instance))

		const writers = 4

		copies := make([]*models.Workflow, writers)
		for i := range copies {
			loaded, err := repo.Get(ctx, instance.ID)
			require.NoError(t, err)

			copies[i] = loaded
		}

		errs := make([]error, writers)

		var wg sync.WaitGroup

		start := make(chan struct{})

		for i, loaded := range copies {
			wg.Add(1)

			go func() {
				defer wg.Done()

				<-start

				loaded.Variables.Set("writer", float64(i))
				errs[i] = repo.Update(ctx, loaded)
			}()
		}

		close(start)
		wg.Wait()

		var succeeded, conflicted int

		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case persistence.IsConcurrencyConflict(err):
				conflicted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, writers-1, conflicted)

		got, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("get many matches definitions by start activity name", func(t *testing.T) {
		repo, ctx := open(t, factory)
		name := unique("order-received")

		older := definition(name)
		older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := definition(name)
		newer.CreatedAt = older.CreatedAt.Add(time.Hour)
		other := definition(unique("other"))
		instance := blockedInstance(name)

		for _, wf := range []*models.Workflow{newer, other, older, instance} {
			require.NoError(t, repo.Add(ctx, wf))
		}

		got, err := repo.GetMany(ctx, specification.Definitions(name))
		require.NoError(t, err)
		assert.Equal(t, []string{older.ID, newer.ID}, ids(got))
	})

	t.Run("get many matches instances by blocking activity name", func(t *testing.T) {
		repo, ctx := open(t, factory)
		name := unique("approve")

		blocked := blockedInstance(name)
		idle := blockedInstance(name)
		idle.BlockingActivities = nil
		def := definition(name)

		for _, wf := range []*models.Workflow{blocked, idle, def} {
			require.NoError(t, repo.Add(ctx, wf))
		}

		got, err := repo.GetMany(ctx, specification.BlockedInstances(name))
		require.NoError(t, err)
		assert.Equal(t, []string{blocked.ID}, ids(got))
	})

	t.Run("get many follows blocking changes made by update", func(t *testing.T) {
		repo, ctx := open(t, factory)
		name := unique("approve")
		instance := blockedInstance(name)
		require.NoError(t, repo.Add(ctx, instance))

		loaded, err := repo.Get(ctx, instance.ID)
		require.NoError(t, err)
		loaded.Unblock("wait")
		require.NoError(t, repo.Update(ctx, loaded))

		got, err := repo.GetMany(ctx, specification.BlockedInstances(name))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("get many with a contradictory specification", func(t *testing.T) {
		repo, ctx := open(t, factory)
		require.NoError(t, repo.Add(ctx, definition(unique("a"))))

		got, err := repo.GetMany(ctx, specification.And(specification.IsDefinition{}, specification.IsInstance{}))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("get many with an arbitrary predicate", func(t *testing.T) {
		repo, ctx := open(t, factory)
		def := definition(unique("a"))
		require.NoError(t, repo.Add(ctx, def))

		got, err := repo.GetMany(ctx, specification.Func(func(wf *models.Workflow) bool {
			return wf.ID == def.ID
		}))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assertSameWorkflow(t, def, got[0])
	})

	t.Run("delete", func(t *testing.T) {
		repo, ctx := open(t, factory)
		name := unique("approve")
		def := definition(name)
		require.NoError(t, repo.Add(ctx, def))

		require.NoError(t, repo.Delete(ctx, def.ID))

		_, err := repo.Get(ctx, def.ID)
		assert.True(t, persistence.IsWorkflowNotFound(err))

		got, err := repo.GetMany(ctx, specification.Definitions(name))
		require.NoError(t, err)
		assert.Empty(t, got)

		assert.True(t, persistence.IsWorkflowNotFound(repo.Delete(ctx, def.ID)))
	})

	t.Run("health check", func(t *testing.T) {
		p := factory(t)
		t.Cleanup(func() { _ = p.Close(context.Background()) })

		assert.NoError(t, p.HealthCheck(t.Context()))
	})
}

func open(t *testing.T, factory Factory) (persistence.WorkflowRepository, context.Context) {
	t.Helper()

	p := factory(t)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return p.WorkflowRepository(), t.Context()
}

func unique(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

// definition builds start(Signal name) -> greet(WriteLine) -> wait(Signal "wait-"+name).
func definition(startName string) *models.Workflow {
	def := testutil.CreateTestDefinition(uuid.NewString(),
		testutil.Signal("start", startName),
		testutil.WriteLine("greet", models.Template("{{ .greeting }}")),
		testutil.Signal("wait", "wait-"+startName),
	)
	testutil.Connect(def, "start", "Done", "greet")
	testutil.Connect(def, "greet", "Done", "wait")

	def.Variables.Set("greeting", "hello")
	def.Variables.Set("count", float64(3))

	return def
}

// blockedInstance is an instance whose "wait" activity is named blockedOn.
func blockedInstance(blockedOn string) *models.Workflow {
	def := definition(blockedOn)
	def.Activity("wait").Name = blockedOn

	instance := testutil.CreateTestInstance(def, uuid.NewString())
	instance.Block("wait")
	instance.Status = models.WorkflowStatusBlocked

	return instance
}

func ids(workflows []*models.Workflow) []string {
	out := make([]string, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, wf.ID)
	}

	return out
}

func assertSameWorkflow(t *testing.T, want, got *models.Workflow) {
	t.Helper()

	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)

	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}
