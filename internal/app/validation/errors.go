package validation

import (
	"fmt"
	"sort"
	"strings"
)

// Errors maps a form field to the message of the first rule it violated. A
// non-empty Errors value blocks submission; it is recoverable by fixing the
// fields and resubmitting.
type Errors map[string]string

// Error renders the violations field-by-field in a stable order.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return strings.Join(parts, "; ")
}

// AsErrors unwraps err into Errors when it carries field violations.
func AsErrors(err error) (Errors, bool) {
	verr, ok := err.(Errors)
	return verr, ok
}
