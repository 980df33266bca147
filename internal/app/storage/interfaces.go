// Package storage defines the persistence boundary of the queue layer and
// the error kinds every implementation reports through it.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/domain/program"
)

// ErrNotFound reports that the requested record does not exist, typically a
// race with a concurrent delete.
var ErrNotFound = errors.New("record not found")

// TransientError wraps store or network failures the caller may retry
// manually. The queue layer never retries automatically.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("store temporarily unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError unless it already belongs to the
// taxonomy.
func Transient(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// ObservationStore persists observation requests.
type ObservationStore interface {
	CreateObservation(ctx context.Context, req observation.Request) (observation.Request, error)
	GetObservation(ctx context.Context, id string) (observation.Request, error)
	// ListObservations returns the requests owned by owner. An empty owner
	// returns everything (administrative use).
	ListObservations(ctx context.Context, owner string) ([]observation.Request, error)
	// ListPendingObservations returns uncompleted requests in submit order,
	// the set the nightly executor drains.
	ListPendingObservations(ctx context.Context) ([]observation.Request, error)
	SetObservationCompleted(ctx context.Context, id string, completed bool) (observation.Request, error)
	DeleteObservation(ctx context.Context, id string) error
}

// ProgramStore persists programs.
type ProgramStore interface {
	CreateProgram(ctx context.Context, p program.Program) (program.Program, error)
	GetProgram(ctx context.Context, id string) (program.Program, error)
	ListPrograms(ctx context.Context, owner string) ([]program.Program, error)
	RenameProgram(ctx context.Context, id, name string) (program.Program, error)
}
