package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range separators seen in the wild, widest first so " – " doesn't get
// split on the bare dash.
var rangeSeparators = []string{" – ", " - ", "–", "-"}

// RentCents parses a raw rent value into integer cents. It strips a
// "Starting at" prefix, currency symbols, thousands separators, and a
// trailing "/mo"; a dash-separated range resolves to its lower bound.
// Rounding is standard (half away from zero), not truncation.
func RentCents(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "starting at") {
		s = strings.TrimSpace(s[len("starting at"):])
	}
	s = strings.NewReplacer("$", "", ",", "", "/mo", "").Replace(s)
	s = strings.TrimSpace(s)
	for _, sep := range rangeSeparators {
		if idx := strings.Index(s, sep); idx >= 0 {
			s = strings.TrimSpace(s[:idx])
			break
		}
	}
	dollars, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse rent value %q", raw)
	}
	return int64(math.Round(dollars * 100)), nil
}
