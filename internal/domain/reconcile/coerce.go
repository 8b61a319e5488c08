package reconcile

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/spf13/cast"
)

// NormalizeID returns the canonical string form of an identifier so that the
// number 7 and the string "7" produce the same key. Nil and blank ids are not
// keys.
func NormalizeID(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// numericPrefix matches the longest leading decimal number, so "20.5C"
// reads as 20.5 and "5 kWh" as 5.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

// plotValue coerces a feature used for plotting. Strings are read up to the
// first character that cannot continue a number, after leading whitespace.
// Anything without a finite numeric value becomes NaN so the join can
// exclude it.
func plotValue(v any) model.Measure {
	switch x := v.(type) {
	case nil, bool:
		return model.NaN()
	case string:
		m := numericPrefix.FindString(strings.TrimLeftFunc(x, unicode.IsSpace))
		if m == "" {
			return model.NaN()
		}
		v = m
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return model.NaN()
	}
	return model.Measure(f)
}

// totalValue coerces a field that feeds totals and displays; failures
// degrade to 0.
func totalValue(v any) float64 {
	m := plotValue(v)
	if !m.Valid() {
		return 0
	}
	return float64(m)
}

// clusterLabel coerces a cluster label. Labels must be non-negative integers.
func clusterLabel(v any) (int, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) || x < 0 || x > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, false
		}
		v = x
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// roundTo rounds x to the given number of decimal places.
func roundTo(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
