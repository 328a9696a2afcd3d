package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"raincheck/internal/types"
)

const defaultForecastBaseURL = "https://api.open-meteo.com"

// ForecastClient fetches hourly weather forecasts from the Open-Meteo
// forecast API (GFS and friends) and condenses one day of hourly data into a
// single representative sample.
type ForecastClient struct {
	*BaseClient
	BaseURL string // overridable for testing
	logger  *slog.Logger
}

// NewForecastClient creates a forecast client. An empty baseURL falls back to
// the public Open-Meteo API.
func NewForecastClient(base *BaseClient, baseURL string, logger *slog.Logger) *ForecastClient {
	if baseURL == "" {
		baseURL = defaultForecastBaseURL
	}
	return &ForecastClient{
		BaseClient: base,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Name identifies this source in logs and error messages.
func (c *ForecastClient) Name() string { return "open-meteo-forecast" }

type openMeteoHourly struct {
	Time                     []string   `json:"time"`
	Temperature2m            []*float64 `json:"temperature_2m"`
	WindSpeed10m             []*float64 `json:"windspeed_10m"`
	CloudCover               []*float64 `json:"cloudcover"`
	Precipitation            []*float64 `json:"precipitation"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
}

type openMeteoForecastResponse struct {
	Hourly openMeteoHourly `json:"hourly"`
}

// Fetch retrieves the hourly forecast for the given coordinate and day and
// condenses it: temperature and wind are taken at midday (the hours around
// noon are the most representative for outdoor plans), cloud cover and
// precipitation probability are averaged over the day, and precipitation is
// summed. Variables missing from the response yield nil fields rather than
// an error, so a partial forecast still contributes to the blend.
func (c *ForecastClient) Fetch(ctx context.Context, coord types.Coordinate, date time.Time) (types.ForecastSample, error) {
	day := date.UTC().Format(types.ISODateLayout)

	query := url.Values{}
	query.Set("latitude", formatCoord(coord.Lat))
	query.Set("longitude", formatCoord(coord.Lon))
	query.Set("hourly", "temperature_2m,windspeed_10m,cloudcover,precipitation,precipitation_probability")
	query.Set("windspeed_unit", "ms")
	query.Set("start_date", day)
	query.Set("end_date", day)
	query.Set("timezone", "UTC")

	reqURL := c.BaseURL + "/v1/forecast?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.ForecastSample{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create forecast request",
			err,
		)
	}

	resp, err := c.Do(req)
	if err != nil {
		return types.ForecastSample{}, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			"forecast request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.ForecastSample{}, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast API returned status %d", resp.StatusCode),
			fmt.Errorf("response: %s", string(respBody)),
		)
	}

	var payload openMeteoForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.ForecastSample{}, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			"failed to decode forecast response",
			err,
		)
	}

	return condenseHourly(payload.Hourly), nil
}

// condenseHourly reduces one day of hourly series to a single sample.
func condenseHourly(h openMeteoHourly) types.ForecastSample {
	midday := middayIndex(h.Time)

	return types.ForecastSample{
		TempC:         valueAt(h.Temperature2m, midday),
		WindSpeedMs:   valueAt(h.WindSpeed10m, midday),
		CloudPct:      meanOf(h.CloudCover),
		PrecipMm:      sumOf(h.Precipitation),
		PrecipProbPct: meanOf(h.PrecipitationProbability),
	}
}

// middayIndex finds the 12:00 entry in the hourly time axis, falling back to
// the middle of the series when the axis is irregular.
func middayIndex(times []string) int {
	for i, t := range times {
		if strings.HasSuffix(t, "T12:00") {
			return i
		}
	}
	return len(times) / 2
}

func valueAt(series []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(series) {
		return nil
	}
	return series[idx]
}

func meanOf(series []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range series {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func sumOf(series []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range series {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return &sum
}

// formatCoord renders a coordinate with enough precision for any provider
// while keeping URLs stable for tests and logs.
func formatCoord(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
