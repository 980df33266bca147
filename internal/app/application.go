// Package app composes the queue layer services with their storage and
// lifecycle dependencies.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stone-edge/queue_layer/internal/app/services/observations"
	"github.com/stone-edge/queue_layer/internal/app/services/programs"
	"github.com/stone-edge/queue_layer/internal/app/skyviewer"
	"github.com/stone-edge/queue_layer/internal/app/storage"
	"github.com/stone-edge/queue_layer/internal/app/storage/memory"
	"github.com/stone-edge/queue_layer/internal/app/system"
	"github.com/stone-edge/queue_layer/pkg/logger"
)

// Watcher exposes a change subscription over the backing store. Stores
// without native change notification leave it nil and consumers fall back to
// polling.
type Watcher interface {
	Watch() (<-chan struct{}, func())
}

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Observations storage.ObservationStore
	Programs     storage.ProgramStore
}

// Options tunes optional collaborators.
type Options struct {
	// ViewerEndpoint locates the sky preview widget; empty disables it.
	ViewerEndpoint string
	ViewerAPIKey   string
}

// Application ties the domain services together.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Observations *observations.Service
	Programs     *programs.Service

	// ChangeFeed is non-nil when the backing store supports change
	// notification.
	ChangeFeed Watcher
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var feed Watcher
	if stores.Observations == nil || stores.Programs == nil {
		mem := memory.New()
		if stores.Observations == nil {
			stores.Observations = mem
		}
		if stores.Programs == nil {
			stores.Programs = mem
		}
		feed = mem
	} else if w, ok := stores.Observations.(Watcher); ok {
		feed = w
	}

	programService := programs.New(stores.Programs, log)
	observationService := observations.New(stores.Observations, stores.Programs, log)

	if opts.ViewerEndpoint != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		viewer, err := skyviewer.NewHTTPViewer(httpClient, opts.ViewerEndpoint, opts.ViewerAPIKey, log)
		if err != nil {
			log.WithError(err).Warn("sky viewer disabled")
		} else {
			observationService.AttachViewer(viewer)
		}
	} else {
		log.Warn("SKYVIEWER_URL not set; target preview disabled")
	}

	manager := system.NewManager()
	for _, name := range []string{"programs", "observations"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Observations: observationService,
		Programs:     programService,
		ChangeFeed:   feed,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
