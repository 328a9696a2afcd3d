// Package types defines the shared domain records, error taxonomy, and
// cross-cutting interfaces of the raincheck service. It has no dependencies on
// other internal packages so that every layer can import it freely.
package types

import "time"

// ISODateLayout is the canonical calendar-day format used throughout the
// pipeline ("YYYY-MM-DD", always UTC).
const ISODateLayout = "2006-01-02"

// Coordinate is a WGS84 point. Both fields are set or the pipeline fails
// before the coordinate is used; there is no partially-resolved coordinate.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParsedIntent is the structured interpretation of a free-text query.
// Fields are independently optional; the empty string means "absent".
// Partial intents are valid and mergeable.
type ParsedIntent struct {
	Location string `json:"location"`
	DateISO  string `json:"dateISO"`
	Activity string `json:"activity"`
}

// Merge fills the gaps of p from fallback. Existing values are never
// overwritten: first non-empty wins, so an AI-provided field always takes
// precedence over a heuristic one when merged in that order.
func (p ParsedIntent) Merge(fallback ParsedIntent) ParsedIntent {
	if p.Location == "" {
		p.Location = fallback.Location
	}
	if p.DateISO == "" {
		p.DateISO = fallback.DateISO
	}
	if p.Activity == "" {
		p.Activity = fallback.Activity
	}
	return p
}

// Complete reports whether both fields required by strict parsing are present.
func (p ParsedIntent) Complete() bool {
	return p.Location != "" && p.DateISO != ""
}

// ForecastSample is a single-day numerical forecast for one location, derived
// from an hourly series. All fields are independently nullable: an upstream
// source may omit any variable without failing the fetch.
type ForecastSample struct {
	TempC         *float64 `json:"tempC"`
	WindSpeedMs   *float64 `json:"windSpeedMs"`
	CloudPct      *float64 `json:"cloudPct"`
	PrecipMm      *float64 `json:"precipMm"`
	PrecipProbPct *float64 `json:"precipProbPct"`
}

// ClimatologySample aggregates same-calendar-day observations across past
// years. All fields are nil when no year could be retrieved; the absence of
// data must never read as favorable weather.
type ClimatologySample struct {
	RainProbabilityPct *float64 `json:"rainProbabilityPct"`
	MeanTempC          *float64 `json:"meanTempC"`
	MeanWindMs         *float64 `json:"meanWindMs"`
}

// Empty reports whether the sample carries no data at all.
func (s ClimatologySample) Empty() bool {
	return s.RainProbabilityPct == nil && s.MeanTempC == nil && s.MeanWindMs == nil
}

// WindLabel buckets a wind speed for display.
type WindLabel string

const (
	WindFaible  WindLabel = "faible"
	WindModere  WindLabel = "modéré"
	WindFort    WindLabel = "fort"
	WindInconnu WindLabel = "inconnu"
)

// LabelWind maps a wind speed in m/s to its display bucket.
// A nil speed yields WindInconnu.
func LabelWind(speedMs *float64) WindLabel {
	switch {
	case speedMs == nil:
		return WindInconnu
	case *speedMs > 10:
		return WindFort
	case *speedMs > 5:
		return WindModere
	default:
		return WindFaible
	}
}

// SourceTag records which retrieval path produced a prediction, for
// auditability.
type SourceTag string

const (
	// SourceBlended is the near-future path: live forecast blended with
	// historical climatology.
	SourceBlended SourceTag = "GFS+ERA5"
	// SourceClimatology is the historical-only path used for past dates and
	// dates beyond the forecast horizon.
	SourceClimatology SourceTag = "ERA5"
)

// PredictionResult is the externally visible outcome of the pipeline.
// JSON field names are part of the public API contract.
type PredictionResult struct {
	RainRiskPct int       `json:"rainRisk"`
	Wind        WindLabel `json:"wind"`
	TempC       *float64  `json:"temp"`
	Source      SourceTag `json:"source"`
	Date        string    `json:"date"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Float64Ptr returns a pointer to v. Convenience for building nullable samples.
func Float64Ptr(v float64) *float64 { return &v }
