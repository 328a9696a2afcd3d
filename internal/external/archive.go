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

const defaultArchiveBaseURL = "https://archive-api.open-meteo.com"

// ArchiveClient builds climatologies from the Open-Meteo archive API, which
// serves ERA5 reanalysis data. It is the primary historical source.
type ArchiveClient struct {
	*BaseClient
	BaseURL  string // overridable for testing
	lookback int
	logger   *slog.Logger
}

// NewArchiveClient creates an ERA5 archive client. An empty baseURL falls
// back to the public Open-Meteo archive API.
func NewArchiveClient(base *BaseClient, baseURL string, lookbackYears int, logger *slog.Logger) *ArchiveClient {
	if baseURL == "" {
		baseURL = defaultArchiveBaseURL
	}
	return &ArchiveClient{
		BaseClient: base,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		lookback:   lookbackYears,
		logger:     logger,
	}
}

// Name identifies this source in logs and error messages.
func (c *ArchiveClient) Name() string { return "open-meteo-era5" }

type openMeteoDaily struct {
	Time              []string   `json:"time"`
	PrecipitationSum  []*float64 `json:"precipitation_sum"`
	Temperature2mMean []*float64 `json:"temperature_2m_mean"`
	WindSpeed10mMax   []*float64 `json:"windspeed_10m_max"`
}

type openMeteoArchiveResponse struct {
	Daily openMeteoDaily `json:"daily"`
}

// Fetch aggregates the same calendar day across the configured lookback
// years into a climatology sample.
func (c *ArchiveClient) Fetch(ctx context.Context, coord types.Coordinate, date time.Time) (types.ClimatologySample, error) {
	return aggregateYears(ctx, coord, date.UTC(), c.lookback, c.fetchYear, c.logger, c.Name())
}

// fetchYear retrieves one historical day from the archive.
func (c *ArchiveClient) fetchYear(ctx context.Context, coord types.Coordinate, day time.Time) (dailyObservation, error) {
	iso := day.Format(types.ISODateLayout)

	query := url.Values{}
	query.Set("latitude", formatCoord(coord.Lat))
	query.Set("longitude", formatCoord(coord.Lon))
	query.Set("start_date", iso)
	query.Set("end_date", iso)
	query.Set("daily", "precipitation_sum,temperature_2m_mean,windspeed_10m_max")
	query.Set("windspeed_unit", "ms")
	query.Set("timezone", "UTC")

	reqURL := c.BaseURL + "/v1/archive?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create archive request",
			err,
		)
	}

	resp, err := c.Do(req)
	if err != nil {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			"archive request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			fmt.Sprintf("archive API returned status %d", resp.StatusCode),
			fmt.Errorf("response: %s", string(respBody)),
		)
	}

	var payload openMeteoArchiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			"failed to decode archive response",
			err,
		)
	}

	daily := payload.Daily
	if len(daily.Time) == 0 {
		return dailyObservation{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			fmt.Sprintf("archive returned no data for %s", iso),
			nil,
		)
	}

	return dailyObservation{
		PrecipMm: valueAt(daily.PrecipitationSum, 0),
		TempC:    valueAt(daily.Temperature2mMean, 0),
		WindMs:   valueAt(daily.WindSpeed10mMax, 0),
	}, nil
}
