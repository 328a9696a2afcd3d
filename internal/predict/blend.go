package predict

import (
	"math"
	"regexp"

	"raincheck/internal/types"
)

// Weights holds the blending constants. The values carry no documented
// meteorological derivation; they are kept configurable so they can be tuned
// without a code change, but the defaults must be preserved for output
// compatibility.
type Weights struct {
	// ForecastWeight and HistoricalWeight blend the forecast rain
	// probability with the climatological one. They should sum to 1.
	ForecastWeight   float64
	HistoricalWeight float64
	// OutdoorFactor inflates the risk for outdoor activities as a
	// conservatism adjustment.
	OutdoorFactor float64
	// LogisticMidpointMm is the daily precipitation (mm) at which the
	// logistic mm-to-probability conversion crosses 50%.
	LogisticMidpointMm float64
}

// DefaultWeights returns the canonical blending constants.
func DefaultWeights() Weights {
	return Weights{
		ForecastWeight:     0.7,
		HistoricalWeight:   0.3,
		OutdoorFactor:      1.15,
		LogisticMidpointMm: 3,
	}
}

// outdoorActivityPattern matches the vocabulary that triggers the risk
// inflation anywhere in the activity text, so multi-word activities like
// "vacances à la plage" still count.
var outdoorActivityPattern = regexp.MustCompile(`(?i)\b(vacances|extérieur|exterieur|rando|plage)\b`)

// BlendResult combines one forecast sample and one climatology sample into
// the externally visible prediction fields. Either input may be nil; the
// blend degrades through a fixed priority order and bottoms out at a neutral
// 50% risk rather than failing.
func BlendResult(
	forecast *types.ForecastSample,
	historical *types.ClimatologySample,
	activity string,
	source types.SourceTag,
	dateISO string,
	w Weights,
) types.PredictionResult {
	return types.PredictionResult{
		RainRiskPct: blendRisk(forecast, historical, activity, w),
		Wind:        types.LabelWind(coalesce(fcWind(forecast), histWind(historical))),
		TempC:       coalesce(fcTemp(forecast), histTemp(historical)),
		Source:      source,
		Date:        dateISO,
	}
}

// blendRisk resolves the rain risk in priority order: forecast probability,
// forecast precipitation via a logistic conversion, climatology alone, then
// a neutral 50. The outdoor-activity inflation applies after resolution.
func blendRisk(forecast *types.ForecastSample, historical *types.ClimatologySample, activity string, w Weights) int {
	histProb := histRainProb(historical)

	var risk int
	switch {
	case forecast != nil && forecast.PrecipProbPct != nil:
		risk = weighted(*forecast.PrecipProbPct, histProb, w)
	case forecast != nil && forecast.PrecipMm != nil:
		converted := logisticProbability(*forecast.PrecipMm, w.LogisticMidpointMm)
		risk = weighted(converted, histProb, w)
	case histProb != nil:
		risk = int(math.Round(*histProb))
	default:
		risk = 50
	}

	if activity != "" && outdoorActivityPattern.MatchString(activity) {
		risk = int(math.Round(float64(risk) * w.OutdoorFactor))
	}

	return clampRisk(risk)
}

// weighted blends a forecast-derived probability with the historical one,
// substituting the forecast value when no climatology is available.
func weighted(forecastProb float64, histProb *float64, w Weights) int {
	h := forecastProb
	if histProb != nil {
		h = *histProb
	}
	return int(math.Round(w.ForecastWeight*forecastProb + w.HistoricalWeight*h))
}

// logisticProbability converts a daily precipitation amount to a rain
// probability via 100 / (1 + e^{-(mm - midpoint)}), clamped to [0, 100].
func logisticProbability(mm, midpointMm float64) float64 {
	p := math.Round(100 / (1 + math.Exp(-(mm - midpointMm))))
	return math.Min(100, math.Max(0, p))
}

func clampRisk(risk int) int {
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}

func coalesce(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func fcTemp(f *types.ForecastSample) *float64 {
	if f == nil {
		return nil
	}
	return f.TempC
}

func fcWind(f *types.ForecastSample) *float64 {
	if f == nil {
		return nil
	}
	return f.WindSpeedMs
}

func histTemp(h *types.ClimatologySample) *float64 {
	if h == nil {
		return nil
	}
	return h.MeanTempC
}

func histWind(h *types.ClimatologySample) *float64 {
	if h == nil {
		return nil
	}
	return h.MeanWindMs
}

func histRainProb(h *types.ClimatologySample) *float64 {
	if h == nil {
		return nil
	}
	return h.RainProbabilityPct
}
