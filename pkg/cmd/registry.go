// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"io"
	"log/slog"

	"github.com/dukex/flowhost/pkg/registry"
)

// NewRegistry returns a registry with the built-in activities, writing
// WriteLine output to out, plus the activity plugins found under pluginsPath.
func NewRegistry(log *slog.Logger, out io.Writer, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)
	reg.RegisterDefaultActivities(out)

	if pluginsPath == "" {
		return reg, nil
	}

	if err := reg.LoadActivityPlugins(pluginsPath); err != nil {
		return nil, err
	}

	return reg, nil
}
