package alert

import (
	"fmt"
	"strconv"
)

type Type string

const (
	TypeNone            Type = "none"
	TypePoorAirQuality  Type = "poor_air_quality"
	TypeHighTemperature Type = "high_temperature"
	TypeLowTemperature  Type = "low_temperature"
	TypeHighHumidity    Type = "high_humidity"
	TypeDoorIntrusion   Type = "door_intrusion"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Thresholds holds the trigger levels a reading is checked against.
type Thresholds struct {
	AirQuality   int64
	TempHigh     float64
	TempLow      float64
	HumidityHigh float64
	Distance     int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		AirQuality:   600,
		TempHigh:     30.0,
		TempLow:      18.0,
		HumidityHigh: 70.0,
		Distance:     50,
	}
}

// Sensors is one reported sample. Nil fields were not reported by the
// device and never trigger an alert.
type Sensors struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	AirQuality  *int64   `json:"air_quality,omitempty"`
	Distance    *int64   `json:"distance,omitempty"`
}

type Decision struct {
	Type   Type
	Active bool
}

// Evaluate runs the fixed-priority threshold chain: first match wins,
// later thresholds are not consulted once one fires.
func Evaluate(s Sensors, t Thresholds) Decision {
	switch {
	case s.AirQuality != nil && *s.AirQuality > t.AirQuality:
		return Decision{Type: TypePoorAirQuality, Active: true}
	case s.Temperature != nil && *s.Temperature > t.TempHigh:
		return Decision{Type: TypeHighTemperature, Active: true}
	case s.Temperature != nil && *s.Temperature < t.TempLow:
		return Decision{Type: TypeLowTemperature, Active: true}
	case s.Humidity != nil && *s.Humidity > t.HumidityHigh:
		return Decision{Type: TypeHighHumidity, Active: true}
	case s.Distance != nil && *s.Distance < t.Distance:
		return Decision{Type: TypeDoorIntrusion, Active: true}
	}
	return Decision{Type: TypeNone, Active: false}
}

// SeverityFor maps an active alert type to its severity. Door intrusion
// and poor air quality are the immediate-response classes.
func SeverityFor(t Type) Severity {
	switch t {
	case TypeDoorIntrusion, TypePoorAirQuality:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// MessageFor renders the operator-facing alert text for a type.
func MessageFor(t Type, s Sensors) string {
	switch t {
	case TypePoorAirQuality:
		return fmt.Sprintf("Poor air quality detected: %s ppm", fmtInt(s.AirQuality))
	case TypeHighTemperature:
		return fmt.Sprintf("High temperature alert: %s°C", fmtFloat(s.Temperature))
	case TypeLowTemperature:
		return fmt.Sprintf("Low temperature alert: %s°C", fmtFloat(s.Temperature))
	case TypeHighHumidity:
		return fmt.Sprintf("High humidity alert: %s%%", fmtFloat(s.Humidity))
	case TypeDoorIntrusion:
		return fmt.Sprintf("Unattended door activity detected: %s cm", fmtInt(s.Distance))
	default:
		return fmt.Sprintf("Alert: %s", t)
	}
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtInt(v *int64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatInt(*v, 10)
}
