// Package registry maps activity types to the factories that create their drivers.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"slices"
	"sync"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

var ErrActivityTypeNotRegistered = errors.New("activity type not registered")

// Registry is filled at startup and read concurrently by every invocation.
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[string]protocol.ActivityFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.ActivityFactory),
	}
}

func (r *Registry) RegisterActivity(factory protocol.ActivityFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
}

// CreateActivity binds the driver registered for the activity's type.
func (r *Registry) CreateActivity(activity *models.Activity) (protocol.Activity, error) {
	r.mu.RLock()
	factory, ok := r.factories[activity.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrActivityTypeNotRegistered, activity.Type)
	}

	return factory.Create(activity)
}

func (r *Registry) IsRegistered(activityType string) bool {
	_, ok := r.GetActivity(activityType)

	return ok
}

// GetActivity returns the factory registered for activityType.
func (r *Registry) GetActivity(activityType string) (protocol.ActivityFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[activityType]

	return factory, ok
}

// GetAvailableActivities returns all registered factories ordered by type.
func (r *Registry) GetAvailableActivities() []protocol.ActivityFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.ActivityFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		factories = append(factories, factory)
	}

	slices.SortFunc(factories, func(a, b protocol.ActivityFactory) int {
		if a.ID() < b.ID() {
			return -1
		}

		if a.ID() > b.ID() {
			return 1
		}

		return 0
	})

	return factories
}

// LoadActivityPlugins opens every .so under pluginsPath/activities and
// registers the ActivityFactory exported as "Activity".
func (r *Registry) LoadActivityPlugins(pluginsPath string) error {
	factories, err := loadPlugin[protocol.ActivityFactory](r.logger, pluginsPath, "Activity")
	if err != nil {
		return err
	}

	for _, factory := range factories {
		r.RegisterActivity(factory)
	}

	return nil
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/activities"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", rootPath), slog.String("symbol", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup %s in plugin %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded activity plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
