package observation

// FilterToggle identifies one of the seven filter-wheel positions as exposed
// on the request form. The declaration order below is the canonical ordering
// of every encoded filter list.
type FilterToggle string

const (
	ToggleClear  FilterToggle = "clear"
	ToggleU      FilterToggle = "u"
	ToggleG      FilterToggle = "g"
	ToggleR      FilterToggle = "r"
	ToggleI      FilterToggle = "i"
	ToggleZ      FilterToggle = "z"
	ToggleHAlpha FilterToggle = "ha"
)

// ToggleOrder is the fixed declaration order of the filter toggles.
var ToggleOrder = []FilterToggle{
	ToggleClear, ToggleU, ToggleG, ToggleR, ToggleI, ToggleZ, ToggleHAlpha,
}

// FilterSelection maps each toggle to its checked state. Toggles absent from
// the map are treated as unchecked.
type FilterSelection map[FilterToggle]bool

// FilterName returns the canonical stored name for a toggle: "clear" stays
// "clear", "ha" becomes "h-alpha", every other toggle x becomes "x-band".
func FilterName(t FilterToggle) string {
	switch t {
	case ToggleClear:
		return "clear"
	case ToggleHAlpha:
		return "h-alpha"
	default:
		return string(t) + "-band"
	}
}

// EncodeFilters walks the toggles in canonical order and emits the stored
// name of each checked one. An all-unchecked selection yields an empty list;
// rejecting that is the validator's job, not the encoder's.
func EncodeFilters(sel FilterSelection) []string {
	names := make([]string, 0, len(ToggleOrder))
	for _, t := range ToggleOrder {
		if sel[t] {
			names = append(names, FilterName(t))
		}
	}
	return names
}

// ValidFilterName reports whether name belongs to the closed filter enum.
func ValidFilterName(name string) bool {
	for _, t := range ToggleOrder {
		if FilterName(t) == name {
			return true
		}
	}
	return false
}
