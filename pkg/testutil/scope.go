package testutil

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
)

// FakeScope is an in-memory activity scope for driver unit tests.
type FakeScope struct {
	Workflow      *models.Workflow
	Current       *models.Activity
	Via           *models.Connection
	IsTriggered   bool
	Vars          *models.Variables
	Written       *models.Variables
	ArrivedByEdge []string
	Registry      *expression.Registry
	Log           *slog.Logger
}

// NewFakeScope creates a scope for activity inside wf, evaluating with the default registry.
func NewFakeScope(wf *models.Workflow, activity *models.Activity) *FakeScope {
	vars := wf.Variables
	if vars == nil {
		vars = models.NewVariables()
	}

	return &FakeScope{
		Workflow: wf,
		Current:  activity,
		Vars:     vars,
		Written:  models.NewVariables(),
		Registry: expression.NewDefaultRegistry(),
		Log:      slog.New(slog.DiscardHandler),
	}
}

func (s *FakeScope) WorkflowID() string                { return s.Workflow.ID }
func (s *FakeScope) Activity() *models.Activity        { return s.Current }
func (s *FakeScope) Inbound() *models.Connection       { return s.Via }
func (s *FakeScope) Incoming() []*models.Connection    { return s.Workflow.Incoming(s.Current.ID) }
func (s *FakeScope) Triggered() bool                   { return s.IsTriggered }
func (s *FakeScope) Variables() *models.Variables      { return s.Vars }
func (s *FakeScope) Logger() *slog.Logger              { return s.Log }
func (s *FakeScope) SetVariable(key string, value any) { s.Vars.Set(key, value); s.Written.Set(key, value) }

func (s *FakeScope) Evaluate(ctx context.Context, expr models.Expression) (any, error) {
	return s.Registry.Evaluate(ctx, expr, s.Vars)
}

func (s *FakeScope) RecordArrival() []string {
	if s.Via != nil && !slices.Contains(s.ArrivedByEdge, s.Via.ID) {
		s.ArrivedByEdge = append(s.ArrivedByEdge, s.Via.ID)
	}

	return slices.Clone(s.ArrivedByEdge)
}

func (s *FakeScope) ResetArrivals() {
	s.ArrivedByEdge = nil
}
