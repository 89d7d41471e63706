// Package units converts posted restriction values into canonical units:
// metres for lengths and metric tonnes for weights.
package units

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	metersPerFoot       = 0.3048
	metersPerInch       = 0.0254
	tonnesPerPound      = 0.00045359237
	poundsPerShortTon   = 2000
	poundsPerLongTon    = 2240
	kilogramsPerTonne   = 1000
	centimetersPerMeter = 100
)

var (
	// ErrNoLimit means the tag explicitly states there is no restriction.
	ErrNoLimit = errors.New("no limit")
	// ErrUnparseable means the raw value is not a recognised quantity.
	ErrUnparseable = errors.New("unparseable value")
)

var (
	feetInchesPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:'|ft|feet|foot)\s*(?:(\d+(?:\.\d+)?)\s*(?:"|''|in|inch|inches)?)?$`)
	quantityPattern   = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]*)$`)
)

// FeetInchesToMeters converts feet and inches to metres.
func FeetInchesToMeters(feet, inches float64) float64 {
	return feet*metersPerFoot + inches*metersPerInch
}

// PoundsToTonnes converts pounds to metric tonnes.
func PoundsToTonnes(lb float64) float64 {
	return lb * tonnesPerPound
}

// ShortTonsToTonnes converts US short tons (2000 lb) to metric tonnes.
func ShortTonsToTonnes(st float64) float64 {
	return PoundsToTonnes(st * poundsPerShortTon)
}

// LongTonsToTonnes converts UK long tons (2240 lb) to metric tonnes.
func LongTonsToTonnes(lt float64) float64 {
	return PoundsToTonnes(lt * poundsPerLongTon)
}

// ParseLength parses an OSM-style length such as "4.1", "4.1 m", "13'6\"",
// "13 ft 6 in" or "410 cm" and returns metres.
func ParseLength(raw string) (float64, error) {
	s, err := clean(raw)
	if err != nil {
		return 0, err
	}

	if m := feetInchesPattern.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.ParseFloat(m[1], 64)
		var inches float64
		if m[2] != "" {
			inches, _ = strconv.ParseFloat(m[2], 64)
		}
		return FeetInchesToMeters(feet, inches), nil
	}

	value, unit, err := quantity(raw, s)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "m", "meter", "meters", "metre", "metres":
		return value, nil
	case "cm":
		return value / centimetersPerMeter, nil
	case "in", "inch", "inches":
		return value * metersPerInch, nil
	default:
		return 0, fmt.Errorf("%w: length %q", ErrUnparseable, raw)
	}
}

// ParseWeight parses an OSM-style weight such as "40", "40 t", "40000 kg",
// "80000 lbs" or "20 st" and returns metric tonnes. A bare number is tonnes.
func ParseWeight(raw string) (float64, error) {
	s, err := clean(raw)
	if err != nil {
		return 0, err
	}

	value, unit, err := quantity(raw, s)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "t", "tonne", "tonnes", "mt":
		return value, nil
	case "kg":
		return value / kilogramsPerTonne, nil
	case "lb", "lbs":
		return PoundsToTonnes(value), nil
	case "st", "ton", "tons", "short_ton":
		return ShortTonsToTonnes(value), nil
	case "lt", "long_ton":
		return LongTonsToTonnes(value), nil
	default:
		return 0, fmt.Errorf("%w: weight %q", ErrUnparseable, raw)
	}
}

func clean(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return "", fmt.Errorf("%w: empty", ErrUnparseable)
	case "none", "default", "below_default", "no", "unsigned":
		return "", ErrNoLimit
	}
	// Some mappers use a decimal comma.
	return strings.ReplaceAll(s, ",", "."), nil
}

func quantity(raw, s string) (float64, string, error) {
	m := quantityPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}
	if value <= 0 {
		return 0, "", fmt.Errorf("%w: non-positive %q", ErrUnparseable, raw)
	}
	return value, m[2], nil
}
