// Package observation defines the observation-request domain model: the
// record a user submits to have a target imaged, the closed set of optical
// filters an exposure may use, and the canonical encoding of filter
// selections.
package observation

import "time"

// Request is a user-submitted specification of an astronomical exposure.
// Owner is assigned at submission and never changes; Completed is mutated
// only through the lifecycle service.
type Request struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	ProgramID     string    `json:"program"`
	Target        string    `json:"target"`
	ExposureTime  float64   `json:"exposure_time"` // seconds, [0.1, 900]
	ExposureCount int       `json:"exposure_count"`
	Binning       int       `json:"binning"`
	Filters       []string  `json:"filters"`
	Options       Options   `json:"options"`
	Completed     bool      `json:"completed"`
	SubmitDate    time.Time `json:"submit_date"`
}

// Options carries the free-text observing constraints. They are stored as
// opaque strings and not range-validated.
type Options struct {
	Lunar     string `json:"lunar,omitempty"`
	Airmass   string `json:"airmass,omitempty"`
	OffsetRA  string `json:"offset_ra,omitempty"`
	OffsetDec string `json:"offset_dec,omitempty"`
}

// Field bounds enforced on every request.
const (
	TargetMinLen     = 2
	TargetMaxLen     = 18
	ExposureTimeMin  = 0.1
	ExposureTimeMax  = 900
	ExposureCountMin = 1
	ExposureCountMax = 100
	BinningMin       = 1
	BinningMax       = 8
)
