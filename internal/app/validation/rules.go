// Package validation holds the observation request form rules. The rules are
// a data-driven table (field → ordered predicate+message pairs) so the same
// table serves full-form validation on submit and per-field feedback on blur,
// without any round trip to the store.
package validation

import (
	"strconv"
	"strings"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
)

// Form field identifiers as submitted by the request form.
const (
	FieldProgram  = "program"
	FieldTarget   = "target"
	FieldExpTime  = "exptime"
	FieldExpCount = "expcount"
	FieldBinning  = "binning"
	FieldFilters  = "filters"
)

// Validation message catalog. These strings are user-facing contract; tests
// pin them.
const (
	MsgProgramRequired = "Please select a program for your observation!"

	MsgTargetRequired  = "Please enter a target for your observation!"
	MsgTargetMinLength = "That doesn't look like a real target..."
	MsgTargetMaxLength = "That's not a valid target name - please enter an identifier i.e. 'M31', 'NGC6946'"

	MsgExpTimeRequired = "We need to know how long you want to expose for!"
	MsgExpTimeNumber   = "The exposure time needs to be a number"
	MsgExpTimeMin      = "That exposure time is too short; minimum exposure-time is 0.1s"
	MsgExpTimeMax      = "That exposure time is waaaaay too long; most things will be saturated"

	MsgExpCountRequired = "We need to know how many exposures you want to take!"
	MsgExpCountDigits   = "The exposure count needs to be a whole number"
	MsgExpCountMin      = "You need to take at least one exposure!"
	MsgExpCountMax      = "That's too many exposures; 100 is the most we can take"

	MsgBinningRequired = "We need to know what binning you want to use!"
	MsgBinningDigits   = "The binning factor needs to be a whole number"
	MsgBinningMin      = "The detector can't bin below 1x1"
	MsgBinningMax      = "That binning is too coarse; maximum binning is 8"

	MsgFiltersEmpty   = "Your observation needs at least one filter."
	MsgFiltersInvalid = "That filter isn't one this telescope carries"
)

// rule is a single predicate over the raw field value. ok returning false
// surfaces message and stops evaluation for that field.
type rule struct {
	name    string
	message string
	ok      func(raw string) bool
}

var fieldOrder = []string{FieldProgram, FieldTarget, FieldExpTime, FieldExpCount, FieldBinning}

var fieldRules = map[string][]rule{
	FieldProgram: {
		{"required", MsgProgramRequired, present},
	},
	FieldTarget: {
		{"required", MsgTargetRequired, present},
		{"minlength", MsgTargetMinLength, func(raw string) bool {
			return len(strings.TrimSpace(raw)) >= observation.TargetMinLen
		}},
		{"maxlength", MsgTargetMaxLength, func(raw string) bool {
			return len(strings.TrimSpace(raw)) <= observation.TargetMaxLen
		}},
	},
	FieldExpTime: {
		{"required", MsgExpTimeRequired, present},
		{"number", MsgExpTimeNumber, isNumber},
		{"min", MsgExpTimeMin, func(raw string) bool {
			v, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			return v >= observation.ExposureTimeMin
		}},
		{"max", MsgExpTimeMax, func(raw string) bool {
			v, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			return v <= observation.ExposureTimeMax
		}},
	},
	FieldExpCount: {
		{"required", MsgExpCountRequired, present},
		{"digits", MsgExpCountDigits, isDigits},
		{"min", MsgExpCountMin, func(raw string) bool {
			v, _ := strconv.Atoi(strings.TrimSpace(raw))
			return v >= observation.ExposureCountMin
		}},
		{"max", MsgExpCountMax, func(raw string) bool {
			v, _ := strconv.Atoi(strings.TrimSpace(raw))
			return v <= observation.ExposureCountMax
		}},
	},
	FieldBinning: {
		{"required", MsgBinningRequired, present},
		{"digits", MsgBinningDigits, isDigits},
		{"min", MsgBinningMin, func(raw string) bool {
			v, _ := strconv.Atoi(strings.TrimSpace(raw))
			return v >= observation.BinningMin
		}},
		{"max", MsgBinningMax, func(raw string) bool {
			v, _ := strconv.Atoi(strings.TrimSpace(raw))
			return v <= observation.BinningMax
		}},
	},
}

func present(raw string) bool { return strings.TrimSpace(raw) != "" }

func isNumber(raw string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil
}

func isDigits(raw string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(raw))
	return err == nil
}

// Check evaluates a single field against its rules, as blur feedback does.
// It returns true when the value passes; otherwise the first violated rule's
// message. Unknown fields pass.
func Check(field, raw string) (bool, string) {
	for _, r := range fieldRules[field] {
		if !r.ok(raw) {
			return false, r.message
		}
	}
	return true, ""
}

// Form is the raw request form: the five validated fields as entered, the
// filter toggle states, and the unvalidated option strings.
type Form struct {
	Fields  map[string]string
	Filters observation.FilterSelection
	Options observation.Options
}

// Validated is the typed field set produced by a successful validation pass.
type Validated struct {
	ProgramID     string
	Target        string
	ExposureTime  float64
	ExposureCount int
	Binning       int
	Filters       []string
	Options       observation.Options
}

// Validate runs the full rule table over the form. Field rules run first in
// declaration order; the filter set is encoded afterwards and an empty result
// surfaces the filters warning. Validation is pure and idempotent.
func (f Form) Validate() (Validated, Errors) {
	errs := Errors{}
	for _, field := range fieldOrder {
		if ok, msg := Check(field, f.Fields[field]); !ok {
			errs[field] = msg
		}
	}

	filters := observation.EncodeFilters(f.Filters)
	if len(filters) == 0 {
		errs[FieldFilters] = MsgFiltersEmpty
	}

	if len(errs) > 0 {
		return Validated{}, errs
	}

	expTime, _ := strconv.ParseFloat(strings.TrimSpace(f.Fields[FieldExpTime]), 64)
	expCount, _ := strconv.Atoi(strings.TrimSpace(f.Fields[FieldExpCount]))
	binning, _ := strconv.Atoi(strings.TrimSpace(f.Fields[FieldBinning]))

	return Validated{
		ProgramID:     strings.TrimSpace(f.Fields[FieldProgram]),
		Target:        strings.TrimSpace(f.Fields[FieldTarget]),
		ExposureTime:  expTime,
		ExposureCount: expCount,
		Binning:       binning,
		Filters:       filters,
		Options:       f.Options,
	}, nil
}

// Build composes the validated field set into a request payload. ID, owner,
// submit date and the completed flag are assigned by the lifecycle service.
func (v Validated) Build() observation.Request {
	return observation.Request{
		ProgramID:     v.ProgramID,
		Target:        v.Target,
		ExposureTime:  v.ExposureTime,
		ExposureCount: v.ExposureCount,
		Binning:       v.Binning,
		Filters:       append([]string(nil), v.Filters...),
		Options:       v.Options,
	}
}

// VerifyRequest re-checks a composed request against the domain invariants.
// The lifecycle service calls it before persisting, so a payload that skipped
// the form path still cannot violate the bounds.
func VerifyRequest(req observation.Request) Errors {
	errs := Errors{}
	if strings.TrimSpace(req.ProgramID) == "" {
		errs[FieldProgram] = MsgProgramRequired
	}
	if l := len(strings.TrimSpace(req.Target)); l == 0 {
		errs[FieldTarget] = MsgTargetRequired
	} else if l < observation.TargetMinLen {
		errs[FieldTarget] = MsgTargetMinLength
	} else if l > observation.TargetMaxLen {
		errs[FieldTarget] = MsgTargetMaxLength
	}
	if req.ExposureTime < observation.ExposureTimeMin {
		errs[FieldExpTime] = MsgExpTimeMin
	} else if req.ExposureTime > observation.ExposureTimeMax {
		errs[FieldExpTime] = MsgExpTimeMax
	}
	if req.ExposureCount < observation.ExposureCountMin {
		errs[FieldExpCount] = MsgExpCountMin
	} else if req.ExposureCount > observation.ExposureCountMax {
		errs[FieldExpCount] = MsgExpCountMax
	}
	if req.Binning < observation.BinningMin {
		errs[FieldBinning] = MsgBinningMin
	} else if req.Binning > observation.BinningMax {
		errs[FieldBinning] = MsgBinningMax
	}
	if len(req.Filters) == 0 {
		errs[FieldFilters] = MsgFiltersEmpty
	} else {
		seen := make(map[string]bool, len(req.Filters))
		for _, name := range req.Filters {
			if !observation.ValidFilterName(name) || seen[name] {
				errs[FieldFilters] = MsgFiltersInvalid
				break
			}
			seen[name] = true
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
