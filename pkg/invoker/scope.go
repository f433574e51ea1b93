package invoker

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dukex/flowhost/pkg/models"
)

// scope exposes the working copy of a pass to one activity execution.
type scope struct {
	pass *pass
	step step
}

func (s *scope) WorkflowID() string {
	return s.pass.work.ID
}

func (s *scope) Activity() *models.Activity {
	return s.step.activity
}

func (s *scope) Inbound() *models.Connection {
	return s.step.via
}

func (s *scope) Incoming() []*models.Connection {
	return s.pass.work.Incoming(s.step.activity.ID)
}

func (s *scope) Triggered() bool {
	return s.step.triggered
}

func (s *scope) Variables() *models.Variables {
	return s.pass.work.Variables
}

func (s *scope) SetVariable(key string, value any) {
	s.pass.work.Variables.Set(key, value)
	s.pass.result.Output.Set(key, value)
}

func (s *scope) Evaluate(ctx context.Context, expr models.Expression) (any, error) {
	return s.pass.invoker.expressions.Evaluate(ctx, expr, s.pass.work.Variables)
}

func (s *scope) RecordArrival() []string {
	work := s.pass.work
	id := s.step.activity.ID

	if s.step.via != nil && !slices.Contains(work.Arrivals[id], s.step.via.ID) {
		if work.Arrivals == nil {
			work.Arrivals = make(map[string][]string)
		}

		work.Arrivals[id] = append(work.Arrivals[id], s.step.via.ID)
	}

	return slices.Clone(work.Arrivals[id])
}

func (s *scope) ResetArrivals() {
	delete(s.pass.work.Arrivals, s.step.activity.ID)

	if len(s.pass.work.Arrivals) == 0 {
		s.pass.work.Arrivals = nil
	}
}

func (s *scope) Logger() *slog.Logger {
	return s.pass.logger.With("activity_id", s.step.activity.ID, "activity_type", s.step.activity.Type)
}
