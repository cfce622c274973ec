package neasmart

import "math"

// NoSensor is the vendor's sentinel for an absent sensor. It must map to
// nil, never to a temperature: 32767 decoded naively reads as 3276.7 °F.
const NoSensor = 32767

// CelsiusOf decodes a raw vendor temperature (Fahrenheit × 10) to Celsius,
// rounded to one decimal. Returns nil for the no-sensor sentinel.
func CelsiusOf(raw int) *float64 {
	if raw == NoSensor {
		return nil
	}
	c := round10(((float64(raw) / 10) - 32) * 5 / 9)
	return &c
}

// CelsiusOfPtr is CelsiusOf lifted over optional fields.
func CelsiusOfPtr(raw *int) *float64 {
	if raw == nil {
		return nil
	}
	return CelsiusOf(*raw)
}

// RawOf encodes a Celsius temperature back into the vendor's raw
// Fahrenheit × 10 format, rounded to the nearest unit.
func RawOf(celsius float64) int {
	return int(math.Round((celsius*9/5 + 32) * 10))
}

func round10(v float64) float64 {
	return math.Round(v*10) / 10
}
