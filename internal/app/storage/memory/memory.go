// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development. It also carries the change notification that
// backs the live list view.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/domain/program"
	"github.com/stone-edge/queue_layer/internal/app/storage"
)

// Store is the in-memory persistence layer.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	observations map[string]observation.Request
	programs     map[string]program.Program

	subMu  sync.Mutex
	subSeq int
	subs   map[int]chan struct{}
}

var _ storage.ObservationStore = (*Store)(nil)
var _ storage.ProgramStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextID:       1,
		observations: make(map[string]observation.Request),
		programs:     make(map[string]program.Program),
		subs:         make(map[int]chan struct{}),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// Watch returns a channel that receives a tick after every mutation, plus a
// cancel function releasing the subscription. Ticks are coalesced; a slow
// consumer sees at least one tick for any burst of changes.
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subSeq++
	id := s.subSeq
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ObservationStore implementation ---------------------------------------------

func (s *Store) CreateObservation(_ context.Context, req observation.Request) (observation.Request, error) {
	s.mu.Lock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	} else if _, exists := s.observations[req.ID]; exists {
		s.mu.Unlock()
		return observation.Request{}, fmt.Errorf("observation %s already exists", req.ID)
	}
	if req.SubmitDate.IsZero() {
		req.SubmitDate = time.Now().UTC()
	}
	req.Filters = append([]string(nil), req.Filters...)

	s.observations[req.ID] = req
	out := cloneObservation(req)
	s.mu.Unlock()

	s.notify()
	return out, nil
}

func (s *Store) GetObservation(_ context.Context, id string) (observation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.observations[id]
	if !ok {
		return observation.Request{}, storage.ErrNotFound
	}
	return cloneObservation(req), nil
}

func (s *Store) ListObservations(_ context.Context, owner string) ([]observation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]observation.Request, 0)
	for _, req := range s.observations {
		if owner == "" || req.Owner == owner {
			result = append(result, cloneObservation(req))
		}
	}
	sortBySubmitDate(result)
	return result, nil
}

func (s *Store) ListPendingObservations(_ context.Context) ([]observation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]observation.Request, 0)
	for _, req := range s.observations {
		if !req.Completed {
			result = append(result, cloneObservation(req))
		}
	}
	sortBySubmitDate(result)
	return result, nil
}

func (s *Store) SetObservationCompleted(_ context.Context, id string, completed bool) (observation.Request, error) {
	s.mu.Lock()

	req, ok := s.observations[id]
	if !ok {
		s.mu.Unlock()
		return observation.Request{}, storage.ErrNotFound
	}
	req.Completed = completed
	s.observations[id] = req
	out := cloneObservation(req)
	s.mu.Unlock()

	s.notify()
	return out, nil
}

func (s *Store) DeleteObservation(_ context.Context, id string) error {
	s.mu.Lock()

	if _, ok := s.observations[id]; !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(s.observations, id)
	s.mu.Unlock()

	s.notify()
	return nil
}

// ProgramStore implementation --------------------------------------------------

func (s *Store) CreateProgram(_ context.Context, p program.Program) (program.Program, error) {
	s.mu.Lock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.programs[p.ID]; exists {
		s.mu.Unlock()
		return program.Program{}, fmt.Errorf("program %s already exists", p.ID)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.programs[p.ID] = p
	s.mu.Unlock()

	s.notify()
	return p, nil
}

func (s *Store) GetProgram(_ context.Context, id string) (program.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.programs[id]
	if !ok {
		return program.Program{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPrograms(_ context.Context, owner string) ([]program.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]program.Program, 0)
	for _, p := range s.programs {
		if owner == "" || p.Owner == owner {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) RenameProgram(_ context.Context, id, name string) (program.Program, error) {
	s.mu.Lock()

	p, ok := s.programs[id]
	if !ok {
		s.mu.Unlock()
		return program.Program{}, storage.ErrNotFound
	}
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	s.programs[id] = p
	s.mu.Unlock()

	s.notify()
	return p, nil
}

// Helpers ----------------------------------------------------------------------

func cloneObservation(req observation.Request) observation.Request {
	req.Filters = append([]string(nil), req.Filters...)
	return req
}

func sortBySubmitDate(reqs []observation.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].SubmitDate.Before(reqs[j].SubmitDate)
	})
}
