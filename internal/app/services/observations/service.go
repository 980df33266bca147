// Package observations implements the observation-request lifecycle: form
// submission, completion toggling, deletion, and the derived list view. All
// mutations are ownership-checked against the caller identity.
package observations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/metrics"
	"github.com/stone-edge/queue_layer/internal/app/skyviewer"
	"github.com/stone-edge/queue_layer/internal/app/storage"
	"github.com/stone-edge/queue_layer/internal/app/validation"
	"github.com/stone-edge/queue_layer/pkg/logger"
)

// ErrForbidden reports that the caller does not own the record.
var ErrForbidden = errors.New("caller does not own this record")

// ErrUnauthenticated reports that no caller identity was supplied.
var ErrUnauthenticated = errors.New("caller identity required")

// Service orchestrates the observation-request lifecycle.
type Service struct {
	store    storage.ObservationStore
	programs storage.ProgramStore
	viewer   skyviewer.Viewer
	log      *logger.Logger
	now      func() time.Time
}

// New constructs an observation service.
func New(store storage.ObservationStore, programs storage.ProgramStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("observations")
	}
	return &Service{
		store:    store,
		programs: programs,
		viewer:   skyviewer.Nop{},
		log:      log,
		now:      time.Now,
	}
}

// AttachViewer injects the sky preview widget. A nil viewer leaves the
// explicit no-op in place.
func (s *Service) AttachViewer(v skyviewer.Viewer) {
	if v != nil {
		s.viewer = v
	}
}

// Submit validates the raw form, composes the request payload and persists
// it with owner, submit date and a cleared completed flag assigned here. The
// sky preview is pointed at the target on success, fire-and-forget.
func (s *Service) Submit(ctx context.Context, owner string, form validation.Form) (observation.Request, error) {
	if strings.TrimSpace(owner) == "" {
		return observation.Request{}, ErrUnauthenticated
	}

	validated, verrs := form.Validate()
	if verrs != nil {
		for field := range verrs {
			metrics.ObserveValidationFailure(field)
		}
		metrics.ObserveSubmission("invalid")
		return observation.Request{}, verrs
	}

	req := validated.Build()
	return s.Insert(ctx, owner, req)
}

// Insert persists an already-composed request payload. The field bounds are
// re-checked here so a payload that bypassed the form path still cannot
// violate them.
func (s *Service) Insert(ctx context.Context, owner string, req observation.Request) (observation.Request, error) {
	if strings.TrimSpace(owner) == "" {
		return observation.Request{}, ErrUnauthenticated
	}
	if verrs := validation.VerifyRequest(req); verrs != nil {
		metrics.ObserveSubmission("invalid")
		return observation.Request{}, verrs
	}

	// The referenced program must exist and belong to the submitter.
	p, err := s.programs.GetProgram(ctx, req.ProgramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.ObserveSubmission("invalid")
			return observation.Request{}, validation.Errors{
				validation.FieldProgram: validation.MsgProgramRequired,
			}
		}
		metrics.ObserveSubmission("error")
		return observation.Request{}, err
	}
	if p.Owner != owner {
		metrics.ObserveSubmission("forbidden")
		return observation.Request{}, ErrForbidden
	}

	req.ID = ""
	req.Owner = owner
	req.Completed = false
	req.SubmitDate = s.now().UTC()

	created, err := s.store.CreateObservation(ctx, req)
	if err != nil {
		metrics.ObserveSubmission("error")
		return observation.Request{}, err
	}

	s.viewer.PointAt(ctx, created.Target)

	metrics.ObserveSubmission("ok")
	s.log.WithField("observation_id", created.ID).
		WithField("owner", owner).
		WithField("target", created.Target).
		Info("observation submitted")
	return created, nil
}

// SetCompleted toggles the completed flag. Setting the current value again is
// a no-op success.
func (s *Service) SetCompleted(ctx context.Context, caller, id string, completed bool) (observation.Request, error) {
	req, err := s.owned(ctx, caller, id)
	if err != nil {
		metrics.ObserveLifecycleOp("set_completed", err)
		return observation.Request{}, err
	}
	if req.Completed == completed {
		metrics.ObserveLifecycleOp("set_completed", nil)
		return req, nil
	}

	updated, err := s.store.SetObservationCompleted(ctx, id, completed)
	metrics.ObserveLifecycleOp("set_completed", err)
	if err != nil {
		return observation.Request{}, err
	}
	s.log.WithField("observation_id", id).
		WithField("completed", completed).
		Info("observation completion changed")
	return updated, nil
}

// Remove deletes the record. There is no soft delete or undo.
func (s *Service) Remove(ctx context.Context, caller, id string) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		metrics.ObserveLifecycleOp("remove", err)
		return err
	}

	err := s.store.DeleteObservation(ctx, id)
	metrics.ObserveLifecycleOp("remove", err)
	if err != nil {
		return err
	}
	s.log.WithField("observation_id", id).Info("observation removed")
	return nil
}

// Get retrieves a single request owned by the caller.
func (s *Service) Get(ctx context.Context, caller, id string) (observation.Request, error) {
	return s.owned(ctx, caller, id)
}

// List returns the caller's observation requests in store order.
func (s *Service) List(ctx context.Context, caller string) ([]observation.Request, error) {
	if strings.TrimSpace(caller) == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.ListObservations(ctx, caller)
}

// ListPending returns every uncompleted request in submit order, the view
// the nightly executor consumes.
func (s *Service) ListPending(ctx context.Context) ([]observation.Request, error) {
	return s.store.ListPendingObservations(ctx)
}

func (s *Service) owned(ctx context.Context, caller, id string) (observation.Request, error) {
	if strings.TrimSpace(caller) == "" {
		return observation.Request{}, ErrUnauthenticated
	}
	req, err := s.store.GetObservation(ctx, id)
	if err != nil {
		return observation.Request{}, err
	}
	if req.Owner != caller {
		return observation.Request{}, ErrForbidden
	}
	return req, nil
}
