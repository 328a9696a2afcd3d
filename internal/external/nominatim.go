package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"raincheck/internal/types"
)

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimClient resolves free-text place names to coordinates through the
// OSM Nominatim search API. Nominatim's usage policy requires a descriptive
// User-Agent, which the embedded BaseClient injects on every request.
type NominatimClient struct {
	*BaseClient
	BaseURL string // overridable for testing
	logger  *slog.Logger
}

// NewNominatimClient creates a geocoder client. An empty baseURL falls back
// to the public Nominatim instance.
func NewNominatimClient(base *BaseClient, baseURL string, logger *slog.Logger) *NominatimClient {
	if baseURL == "" {
		baseURL = defaultNominatimBaseURL
	}
	return &NominatimClient{
		BaseClient: base,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Nominatim returns lat/lon as JSON strings, not numbers.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a place name to a coordinate. French place names are
// preferred in results via accept-language. It returns ErrCodeGeocodeNoResults
// when the query matches nothing, so callers can distinguish "unknown place"
// from "geocoder down" and keep walking their fallback chain.
func (c *NominatimClient) Geocode(ctx context.Context, place string) (types.Coordinate, error) {
	query := url.Values{}
	query.Set("q", place)
	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("accept-language", "fr")

	reqURL := c.BaseURL + "/search?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create geocoding request",
			err,
		)
	}

	resp, err := c.Do(req)
	if err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeUpstreamGeocoder,
			"geocoding request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeUpstreamGeocoder,
			fmt.Sprintf("geocoder returned status %d", resp.StatusCode),
			fmt.Errorf("response: %s", string(respBody)),
		)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeUpstreamGeocoder,
			"failed to decode geocoder response",
			err,
		)
	}

	if len(results) == 0 {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeGeocodeNoResults,
			fmt.Sprintf("no geocoding results for %q", place),
			nil,
		)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeUpstreamGeocoder,
			"geocoder returned an unparseable latitude",
			err,
		)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeUpstreamGeocoder,
			"geocoder returned an unparseable longitude",
			err,
		)
	}

	c.logger.DebugContext(ctx, "geocoded place",
		slog.String("place", place),
		slog.String("resolved", results[0].DisplayName),
		slog.Float64("lat", lat),
		slog.Float64("lon", lon),
	)

	return types.Coordinate{Lat: lat, Lon: lon}, nil
}
