package prowl

import "strings"

// Values adapters use to pad fields they could not fill. The filter
// treats a finding whose data carries nothing but these as empty.
var placeholderValues = map[string]struct{}{
	"":     {},
	"-":    {},
	"0":    {},
	"null": {},
	"none": {},
	"n/a":  {},
}

// Zero-result markers follow the `no_<thing>` convention, e.g.
// "no_open_ports". Adapters emit them to signal a scan that ran
// successfully and found nothing actionable.
func zeroResultMarker(s string) bool {
	return strings.HasPrefix(s, "no_") && !strings.ContainsAny(s, " \t")
}

func trivialValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		if zeroResultMarker(val) {
			return true
		}
		_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(val))]
		return ok
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	case Data:
		return len(val) == 0
	default:
		return false
	}
}

// Reports whether a finding carries no information worth persisting.
// The check is adapter-agnostic: it looks at the presence and shape of
// data values, never at field names, so new adapters need no collector
// changes.
func TrivialData(d Data) bool {
	if len(d) == 0 {
		return true
	}
	for _, v := range d {
		if !trivialValue(v) {
			return false
		}
	}
	return true
}

// Drops findings the store must never see: empty payloads and
// placeholder-only payloads.
func FilterFindings(findings []*Finding) []*Finding {
	return Filter(findings, func(f *Finding) bool {
		return !TrivialData(f.Data())
	})
}
