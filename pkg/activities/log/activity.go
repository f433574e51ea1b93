// Package log provides an activity that writes a message to the structured log.
package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowhost/pkg/expression"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

const (
	Type         = "Log"
	FieldMessage = "message"
	FieldLevel   = "level"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Log logs its message field at its level field through the scope logger.
type Log struct {
	message expression.Typed[string]
	level   expression.Typed[string]
}

func NewLog(activity *models.Activity) *Log {
	return &Log{
		message: expression.Field[string](activity, FieldMessage, models.PlainText("")),
		level:   expression.Field[string](activity, FieldLevel, models.PlainText("info")),
	}
}

func (a *Log) Execute(ctx context.Context, scope protocol.Scope) (protocol.Result, error) {
	message, err := a.message.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	levelName, err := a.level.Resolve(ctx, scope)
	if err != nil {
		return protocol.Result{}, err
	}

	level, ok := levels[levelName]
	if !ok {
		return protocol.Result{}, fmt.Errorf("unknown log level %q", levelName)
	}

	scope.Logger().Log(ctx, level, message,
		"workflow_id", scope.WorkflowID(),
		"activity_id", scope.Activity().ID,
	)

	return protocol.Done(), nil
}
