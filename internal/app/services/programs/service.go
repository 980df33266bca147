// Package programs manages the program records observation requests are
// grouped under.
package programs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stone-edge/queue_layer/internal/app/domain/program"
	"github.com/stone-edge/queue_layer/internal/app/storage"
	"github.com/stone-edge/queue_layer/pkg/logger"
)

// ErrForbidden reports that the caller does not own the program.
var ErrForbidden = errors.New("caller does not own this program")

// ErrUnauthenticated reports that no caller identity was supplied.
var ErrUnauthenticated = errors.New("caller identity required")

// Service manages program records.
type Service struct {
	store storage.ProgramStore
	log   *logger.Logger
}

// New constructs a program service.
func New(store storage.ProgramStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("programs")
	}
	return &Service{store: store, log: log}
}

// Create registers a new program owned by the caller.
func (s *Service) Create(ctx context.Context, owner, name string) (program.Program, error) {
	if strings.TrimSpace(owner) == "" {
		return program.Program{}, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return program.Program{}, fmt.Errorf("program name is required")
	}

	created, err := s.store.CreateProgram(ctx, program.Program{Owner: owner, Name: name})
	if err != nil {
		return program.Program{}, err
	}
	s.log.WithField("program_id", created.ID).WithField("owner", owner).Info("program created")
	return created, nil
}

// Get retrieves a program readable by the caller.
func (s *Service) Get(ctx context.Context, caller, id string) (program.Program, error) {
	if strings.TrimSpace(caller) == "" {
		return program.Program{}, ErrUnauthenticated
	}
	p, err := s.store.GetProgram(ctx, id)
	if err != nil {
		return program.Program{}, err
	}
	if p.Owner != caller {
		return program.Program{}, ErrForbidden
	}
	return p, nil
}

// List returns the programs owned by the caller.
func (s *Service) List(ctx context.Context, caller string) ([]program.Program, error) {
	if strings.TrimSpace(caller) == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.ListPrograms(ctx, caller)
}

// Rename changes the program name, the only mutable field once observations
// reference it.
func (s *Service) Rename(ctx context.Context, caller, id, name string) (program.Program, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return program.Program{}, fmt.Errorf("program name is required")
	}

	if _, err := s.Get(ctx, caller, id); err != nil {
		return program.Program{}, err
	}
	renamed, err := s.store.RenameProgram(ctx, id, name)
	if err != nil {
		return program.Program{}, err
	}
	s.log.WithField("program_id", id).Info("program renamed")
	return renamed, nil
}
