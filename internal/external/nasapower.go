package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"raincheck/internal/types"
)

const defaultPowerBaseURL = "https://power.larc.nasa.gov"

// powerMissingValue is the sentinel NASA POWER uses for unavailable data.
const powerMissingValue = -999.0

// PowerClient builds climatologies from the NASA POWER daily point API. It
// serves as the secondary historical source when the ERA5 archive is down.
type PowerClient struct {
	*BaseClient
	BaseURL  string // overridable for testing
	lookback int
	logger   *slog.Logger
}

// NewPowerClient creates a NASA POWER client. An empty baseURL falls back to
// the public POWER API.
func NewPowerClient(base *BaseClient, baseURL string, lookbackYears int, logger *slog.Logger) *PowerClient {
	if baseURL == "" {
		baseURL = defaultPowerBaseURL
	}
	return &PowerClient{
		BaseClient: base,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		lookback:   lookbackYears,
		logger:     logger,
	}
}

// Name identifies this source in logs and error messages.
func (c *PowerClient) Name() string { return "nasa-power" }

// POWER keys each parameter by YYYYMMDD date string.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// Fetch aggregates the same calendar day across the configured lookback
// years into a climatology sample.
func (c *PowerClient) Fetch(ctx context.Context, coord types.Coordinate, date time.Time) (types.ClimatologySample, error) {
	return aggregateYears(ctx, coord, date.UTC(), c.lookback, c.fetchYear, c.logger, c.Name())
}

// fetchYear retrieves one historical day from POWER.
func (c *PowerClient) fetchYear(ctx context.Context, coord types.Coordinate, day time.Time) (dailyObservation, error) {
	compact := day.Format("20060102")

	query := url.Values{}
	query.Set("parameters", "PRECTOTCORR,T2M,WS10M")
	query.Set("community", "RE")
	query.Set("latitude", formatCoord(coord.Lat))
	query.Set("longitude", formatCoord(coord.Lon))
	query.Set("start", compact)
	query.Set("end", compact)
	query.Set("format", "JSON")

	reqURL := c.BaseURL + "/api/temporal/daily/point?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create POWER request",
			err,
		)
	}

	resp, err := c.Do(req)
	if err != nil {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			"POWER request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			fmt.Sprintf("POWER API returned status %d", resp.StatusCode),
			fmt.Errorf("response: %s", string(respBody)),
		)
	}

	var payload powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			"failed to decode POWER response",
			err,
		)
	}

	return dailyObservation{
		PrecipMm: powerValue(payload, "PRECTOTCORR", compact),
		TempC:    powerValue(payload, "T2M", compact),
		WindMs:   powerValue(payload, "WS10M", compact),
	}, nil
}

// powerValue extracts one parameter value for the given day, treating the
// POWER missing-data sentinel as absent.
func powerValue(payload powerResponse, param, day string) *float64 {
	series, ok := payload.Properties.Parameter[param]
	if !ok {
		return nil
	}
	v, ok := series[day]
	if !ok || v == powerMissingValue {
		return nil
	}
	return &v
}
