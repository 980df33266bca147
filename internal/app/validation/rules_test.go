package validation

import (
	"reflect"
	"testing"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
)

func validForm() Form {
	return Form{
		Fields: map[string]string{
			FieldProgram:  "prog-1",
			FieldTarget:   "M31",
			FieldExpTime:  "30",
			FieldExpCount: "3",
			FieldBinning:  "2",
		},
		Filters: observation.FilterSelection{observation.ToggleClear: true},
		Options: observation.Options{Lunar: "15", Airmass: "2.0"},
	}
}

func TestValidateAccepts(t *testing.T) {
	v, errs := validForm().Validate()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if v.ProgramID != "prog-1" || v.Target != "M31" {
		t.Fatalf("unexpected validated fields: %+v", v)
	}
	if v.ExposureTime != 30 || v.ExposureCount != 3 || v.Binning != 2 {
		t.Fatalf("unexpected numeric fields: %+v", v)
	}
	if !reflect.DeepEqual(v.Filters, []string{"clear"}) {
		t.Fatalf("unexpected filters: %v", v.Filters)
	}
}

func TestValidateMessages(t *testing.T) {
	cases := []struct {
		name  string
		field string
		raw   string
		want  string
	}{
		{"program missing", FieldProgram, "", MsgProgramRequired},
		{"target missing", FieldTarget, "", MsgTargetRequired},
		{"target too short", FieldTarget, "M", MsgTargetMinLength},
		{"target at min", FieldTarget, "M1", ""},
		{"target at max", FieldTarget, "NGC6946-field-eee1", ""},
		{"target too long", FieldTarget, "NGC6946-field-eeee1", MsgTargetMaxLength},
		{"exptime missing", FieldExpTime, "", MsgExpTimeRequired},
		{"exptime not a number", FieldExpTime, "ten", MsgExpTimeNumber},
		{"exptime below min", FieldExpTime, "0.09", MsgExpTimeMin},
		{"exptime at min", FieldExpTime, "0.1", ""},
		{"exptime at max", FieldExpTime, "900", ""},
		{"exptime above max", FieldExpTime, "900.1", MsgExpTimeMax},
		{"expcount missing", FieldExpCount, "", MsgExpCountRequired},
		{"expcount fractional", FieldExpCount, "1.5", MsgExpCountDigits},
		{"expcount zero", FieldExpCount, "0", MsgExpCountMin},
		{"expcount at max", FieldExpCount, "100", ""},
		{"expcount above max", FieldExpCount, "101", MsgExpCountMax},
		{"binning missing", FieldBinning, "", MsgBinningRequired},
		{"binning fractional", FieldBinning, "1.5", MsgBinningDigits},
		{"binning zero", FieldBinning, "0", MsgBinningMin},
		{"binning at max", FieldBinning, "8", ""},
		{"binning above max", FieldBinning, "9", MsgBinningMax},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			form.Fields[tc.field] = tc.raw
			_, errs := form.Validate()

			if tc.want == "" {
				if msg, found := errs[tc.field]; found {
					t.Fatalf("unexpected violation on %s: %q", tc.field, msg)
				}
				return
			}
			if errs == nil {
				t.Fatalf("expected violation on %s", tc.field)
			}
			if got := errs[tc.field]; got != tc.want {
				t.Fatalf("message on %s = %q, want %q", tc.field, got, tc.want)
			}
		})
	}
}

func TestValidateFirstViolationWins(t *testing.T) {
	form := validForm()
	form.Fields[FieldExpTime] = ""

	_, errs := form.Validate()
	if got := errs[FieldExpTime]; got != MsgExpTimeRequired {
		t.Fatalf("message = %q, want the required message first", got)
	}
}

func TestValidateNoFilters(t *testing.T) {
	form := validForm()
	form.Filters = observation.FilterSelection{observation.ToggleU: false}

	_, errs := form.Validate()
	if got := errs[FieldFilters]; got != MsgFiltersEmpty {
		t.Fatalf("message = %q, want %q", got, MsgFiltersEmpty)
	}
}

func TestValidateCollectsAllFields(t *testing.T) {
	_, errs := Form{}.Validate()
	for _, field := range []string{FieldProgram, FieldTarget, FieldExpTime, FieldExpCount, FieldBinning, FieldFilters} {
		if _, found := errs[field]; !found {
			t.Errorf("expected a violation on %s", field)
		}
	}
}

func TestValidateIdempotent(t *testing.T) {
	form := validForm()
	first, errs1 := form.Validate()
	second, errs2 := form.Validate()
	if errs1 != nil || errs2 != nil {
		t.Fatalf("unexpected errors: %v %v", errs1, errs2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validation not idempotent: %+v vs %+v", first, second)
	}
}

func TestCheckSingleField(t *testing.T) {
	if ok, _ := Check(FieldTarget, "M31"); !ok {
		t.Fatal("expected M31 to pass")
	}
	if ok, msg := Check(FieldTarget, "M"); ok || msg != MsgTargetMinLength {
		t.Fatalf("got (%v, %q)", ok, msg)
	}
	if ok, _ := Check("unknown", "anything"); !ok {
		t.Fatal("unknown fields should pass")
	}
}

func TestBuildComposesRequest(t *testing.T) {
	v, errs := validForm().Validate()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}

	req := v.Build()
	if req.ID != "" || req.Owner != "" || req.Completed {
		t.Fatalf("lifecycle fields must stay unset: %+v", req)
	}
	if req.ProgramID != "prog-1" || req.Target != "M31" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Options.Lunar != "15" || req.Options.Airmass != "2.0" {
		t.Fatalf("options not carried: %+v", req.Options)
	}
	if verrs := VerifyRequest(req); verrs != nil {
		t.Fatalf("built request failed verification: %v", verrs)
	}
}

func TestVerifyRequestRejectsBadFilters(t *testing.T) {
	v, _ := validForm().Validate()

	req := v.Build()
	req.Filters = []string{"clear", "clear"}
	if errs := VerifyRequest(req); errs[FieldFilters] != MsgFiltersInvalid {
		t.Fatalf("duplicate filters: got %v", errs)
	}

	req.Filters = []string{"y-band"}
	if errs := VerifyRequest(req); errs[FieldFilters] != MsgFiltersInvalid {
		t.Fatalf("unknown filter: got %v", errs)
	}

	req.Filters = nil
	if errs := VerifyRequest(req); errs[FieldFilters] != MsgFiltersEmpty {
		t.Fatalf("empty filters: got %v", errs)
	}
}

func TestErrorsRendersStable(t *testing.T) {
	errs := Errors{FieldTarget: MsgTargetRequired, FieldBinning: MsgBinningRequired}
	want := "binning: " + MsgBinningRequired + "; target: " + MsgTargetRequired
	if got := errs.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
