package normalize

import "strings"

// Canonical bed type categories. Every raw bedroom label maps into one of
// these or passes through verbatim flagged non-canonical.
const (
	BedStudio      = "Studio"
	BedConvertible = "Convertible"
	Bed1BR         = "1BR"
	Bed1BRDen      = "1BR+Den"
	Bed2BR         = "2BR"
	Bed3BRPlus     = "3BR+"
)

var canonicalBedTypes = map[string]bool{
	BedStudio:      true,
	BedConvertible: true,
	Bed1BR:         true,
	Bed1BRDen:      true,
	Bed2BR:         true,
	Bed3BRPlus:     true,
}

// bedTypeAliases maps lowercased, trimmed raw values to canonical bed
// types. Covers every spelling the strategies have produced. 4BR-and-up
// aliases collapse into 3BR+. Labels like "Duplex" or "Penthouse" are
// intentionally absent: they pass through as-is and get flagged
// non-canonical rather than silently dropped.
var bedTypeAliases = map[string]string{
	// Studio
	"0":              BedStudio,
	"0br":            BedStudio,
	"studio":         BedStudio,
	"studio/1 bath":  BedStudio,
	"studio/1bath":   BedStudio,
	"loft studio":    BedStudio,

	// Convertible
	"convertible":                BedConvertible,
	"convertible deluxe":         BedConvertible,
	"alcove":                     BedConvertible,
	"jr 1br":                     BedConvertible,
	"jr one bedroom/1 bath":      BedConvertible,
	"junior one bedroom/1 bath":  BedConvertible,
	"convertible/1 bath":         BedConvertible,
	"convertible/1bath":          BedConvertible,

	// 1BR
	"1":                  Bed1BR,
	"1br":                Bed1BR,
	"1 bed":              Bed1BR,
	"one bedroom":        Bed1BR,
	"1 bedroom/1bath":    Bed1BR,
	"1 bedroom/1 bath":   Bed1BR,

	// 1BR+Den
	"1br+den":   Bed1BRDen,
	"1 bed den": Bed1BRDen,
	"1+den":     Bed1BRDen,

	// 2BR
	"2":                  Bed2BR,
	"2br":                Bed2BR,
	"2 bed":              Bed2BR,
	"2 beds":             Bed2BR,
	"two bedroom":        Bed2BR,
	"2 bedroom/1 bath":   Bed2BR,
	"2 bedroom/1bath":    Bed2BR,
	"2 bedroom/2 bath":   Bed2BR,
	"2 bedroom/2bath":    Bed2BR,

	// 3BR+ (4BR and above also land here)
	"3":                  Bed3BRPlus,
	"3br":                Bed3BRPlus,
	"3 bed":              Bed3BRPlus,
	"3 beds":             Bed3BRPlus,
	"3+":                 Bed3BRPlus,
	"4br":                Bed3BRPlus,
	"4 bed":              Bed3BRPlus,
	"4 beds":             Bed3BRPlus,
	"3 bedroom/3 bath":   Bed3BRPlus,
	"3 bedroom/2 bath":   Bed3BRPlus,
	"3 bedroom/3bath":    Bed3BRPlus,
}

// BedType maps a raw bedroom label to its canonical category. Unmapped
// values are returned with original casing and nonCanonical=true.
func BedType(raw string) (bedType string, nonCanonical bool) {
	stripped := strings.TrimSpace(raw)
	if canonical, ok := bedTypeAliases[strings.ToLower(stripped)]; ok {
		return canonical, false
	}
	return stripped, !canonicalBedTypes[stripped]
}
