package observations

import (
	"context"
	"strings"
	"time"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/domain/program"
)

// Row is a display-ready projection of an observation request: the program
// id resolved to its name, the filter list joined for tabular display, and
// the completed flag mapped to a label. Remaining columns pass through.
type Row struct {
	ID            string    `json:"id"`
	Program       string    `json:"program"`
	Target        string    `json:"target"`
	ExposureTime  float64   `json:"exposure_time"`
	ExposureCount int       `json:"exposure_count"`
	Binning       int       `json:"binning"`
	Filters       string    `json:"filters"`
	Lunar         string    `json:"lunar,omitempty"`
	Airmass       string    `json:"airmass,omitempty"`
	OffsetRA      string    `json:"offset_ra,omitempty"`
	OffsetDec     string    `json:"offset_dec,omitempty"`
	Completed     string    `json:"completed"`
	SubmitDate    time.Time `json:"submit_date"`
}

// ProgramLookup resolves a program by id. A lookup failure must not fail the
// row; the program column is simply left empty.
type ProgramLookup func(ctx context.Context, id string) (program.Program, error)

// PresentRow projects a single request.
func PresentRow(ctx context.Context, req observation.Request, lookup ProgramLookup) Row {
	programName := ""
	if lookup != nil {
		if p, err := lookup(ctx, req.ProgramID); err == nil {
			programName = p.Name
		}
	}

	completed := "No"
	if req.Completed {
		completed = "Yes"
	}

	return Row{
		ID:            req.ID,
		Program:       programName,
		Target:        req.Target,
		ExposureTime:  req.ExposureTime,
		ExposureCount: req.ExposureCount,
		Binning:       req.Binning,
		Filters:       strings.Join(req.Filters, ", "),
		Lunar:         req.Options.Lunar,
		Airmass:       req.Options.Airmass,
		OffsetRA:      req.Options.OffsetRA,
		OffsetDec:     req.Options.OffsetDec,
		Completed:     completed,
		SubmitDate:    req.SubmitDate,
	}
}

// PresentRows projects a record sequence in its given order. An empty input
// yields an empty, non-nil slice so the rendering layer can show its
// placeholder without a special case.
func PresentRows(ctx context.Context, reqs []observation.Request, lookup ProgramLookup) []Row {
	rows := make([]Row, 0, len(reqs))
	for _, req := range reqs {
		rows = append(rows, PresentRow(ctx, req, lookup))
	}
	return rows
}

// Rows lists the caller's requests and projects them, resolving each program
// name once per call.
func (s *Service) Rows(ctx context.Context, caller string) ([]Row, error) {
	reqs, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}

	cache := make(map[string]program.Program)
	lookup := func(ctx context.Context, id string) (program.Program, error) {
		if p, ok := cache[id]; ok {
			return p, nil
		}
		p, err := s.programs.GetProgram(ctx, id)
		if err != nil {
			return program.Program{}, err
		}
		cache[id] = p
		return p, nil
	}

	return PresentRows(ctx, reqs, lookup), nil
}
