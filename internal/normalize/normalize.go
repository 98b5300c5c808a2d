// Package normalize converts raw upstream text into typed values.
//
// Every function here is total: malformed input yields the documented
// sentinel (false, ClassYearUnknown, or an error value for distances) and
// never panics. Callers decide whether a sentinel nulls a field or drops a row.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

const (
	metersPerMile      = 1609
	metersPerKilometer = 1000
)

var (
	distancePattern = regexp.MustCompile(`([\d.]+) ?(.*)`)
	placePattern    = regexp.MustCompile(`^\d+`)
	timeField       = regexp.MustCompile(`^\d+(\.\d+)?$`)
	listingDate     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})$`)
)

// timeMarkers are upstream cell values meaning the athlete has no finish time.
var timeMarkers = map[string]struct{}{
	"DNF": {},
	"DNS": {},
	"DQ":  {},
	"SCR": {},
	"NT":  {},
}

var unitMultipliers = map[string]float64{
	"Mile":      metersPerMile,
	"mile":      metersPerMile,
	"M":         metersPerMile,
	"Kilometer": metersPerKilometer,
	"kilometer": metersPerKilometer,
	"K":         metersPerKilometer,
	"k":         metersPerKilometer,
	"m":         1,
	"":          1,
}

var classYears = map[string]xc.ClassYear{
	"FR":        xc.ClassYearFreshman,
	"FR-1":      xc.ClassYearFreshman,
	"FY":        xc.ClassYearFreshman,
	"FY-1":      xc.ClassYearFreshman,
	"FRESHMAN":  xc.ClassYearFreshman,
	"SO":        xc.ClassYearSophomore,
	"SO-2":      xc.ClassYearSophomore,
	"SOPHOMORE": xc.ClassYearSophomore,
	"JR":        xc.ClassYearJunior,
	"JR-3":      xc.ClassYearJunior,
	"JUNIOR":    xc.ClassYearJunior,
	"SR":        xc.ClassYearSenior,
	"SR-4":      xc.ClassYearSenior,
	"SENIOR":    xc.ClassYearSenior,
}

// CollapseSpace trims s and folds every whitespace run (including
// non-breaking spaces) into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseDistance converts "8K", "5000m", "6 Mile" and friends to meters.
// An unrecognised unit returns an error wrapping xc.ErrUnknownDistanceUnit.
func ParseDistance(s string) (float64, error) {
	m := distancePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("distance %q: no numeric value", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("distance %q: %w", s, err)
	}
	unit := strings.TrimSpace(m[2])
	mult, ok := unitMultipliers[unit]
	if !ok {
		return 0, fmt.Errorf("distance %q: %w %q", s, xc.ErrUnknownDistanceUnit, unit)
	}
	return value * mult, nil
}

// ParseTime converts "H:MM:SS.ss", "MM:SS.ss" or "SS.ss" to seconds. Fields
// are read least-significant first. Empty input, status markers such as DNF,
// non-numeric fields and a zero total all report false.
func ParseTime(s string) (float64, bool) {
	s = CollapseSpace(s)
	if s == "" {
		return 0, false
	}
	if _, marker := timeMarkers[strings.ToUpper(s)]; marker {
		return 0, false
	}
	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return 0, false
	}
	multiplier := 1.0
	total := 0.0
	for i := len(fields) - 1; i >= 0; i-- {
		field := strings.TrimSpace(fields[i])
		// ParseFloat alone would accept NaN, Inf, hex and exponent forms.
		if !timeField.MatchString(field) {
			return 0, false
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, false
		}
		total += v * multiplier
		multiplier *= 60
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// ParsePlace reads the leading integer of a place or score cell. "0" is a
// valid place (upstream uses it for DNF/DNS/DQ); empty or non-numeric text
// reports false.
func ParsePlace(s string) (int, bool) {
	digits := placePattern.FindString(strings.TrimSpace(s))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseClassYear maps the class-year spellings used upstream onto FR, SO,
// JR or SR. Anything else, including graduation years, is unknown.
func ParseClassYear(s string) xc.ClassYear {
	if cy, ok := classYears[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return cy
	}
	return xc.ClassYearUnknown
}

// InferGender returns F when the race name mentions women, M otherwise.
func InferGender(raceName string) xc.Gender {
	if strings.Contains(strings.ToLower(raceName), "women") {
		return xc.GenderFemale
	}
	return xc.GenderMale
}

// ParseListingDate reads the M/D/YY (or M/D/YYYY) dates of the meet listing.
// Two-digit years are in the 2000s.
func ParseListingDate(s string) (time.Time, bool) {
	m := listingDate.FindStringSubmatch(CollapseSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
