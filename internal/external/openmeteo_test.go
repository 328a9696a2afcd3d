package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"raincheck/internal/types"
)

func TestCondenseHourly(t *testing.T) {
	hourly := openMeteoHourly{
		Time: []string{
			"2025-10-10T10:00", "2025-10-10T11:00", "2025-10-10T12:00", "2025-10-10T13:00",
		},
		Temperature2m:            []*float64{types.Float64Ptr(10), types.Float64Ptr(12), types.Float64Ptr(15), types.Float64Ptr(14)},
		WindSpeed10m:             []*float64{types.Float64Ptr(2), types.Float64Ptr(3), types.Float64Ptr(6), types.Float64Ptr(5)},
		CloudCover:               []*float64{types.Float64Ptr(20), types.Float64Ptr(40), types.Float64Ptr(60), types.Float64Ptr(80)},
		Precipitation:            []*float64{types.Float64Ptr(0.5), types.Float64Ptr(1), types.Float64Ptr(0), types.Float64Ptr(0.5)},
		PrecipitationProbability: []*float64{types.Float64Ptr(10), types.Float64Ptr(30), types.Float64Ptr(50), types.Float64Ptr(30)},
	}

	sample := condenseHourly(hourly)

	// Instantaneous fields come from the 12:00 record.
	if sample.TempC == nil || *sample.TempC != 15 {
		t.Errorf("tempC = %v, want 15", sample.TempC)
	}
	if sample.WindSpeedMs == nil || *sample.WindSpeedMs != 6 {
		t.Errorf("windSpeedMs = %v, want 6", sample.WindSpeedMs)
	}
	// Cloud cover and precipitation probability are day-means.
	if sample.CloudPct == nil || *sample.CloudPct != 50 {
		t.Errorf("cloudPct = %v, want 50", sample.CloudPct)
	}
	if sample.PrecipProbPct == nil || *sample.PrecipProbPct != 30 {
		t.Errorf("precipProbPct = %v, want 30", sample.PrecipProbPct)
	}
	// Precipitation is a day-sum.
	if sample.PrecipMm == nil || *sample.PrecipMm != 2 {
		t.Errorf("precipMm = %v, want 2", sample.PrecipMm)
	}
}

func TestCondenseHourly_MiddayFallback(t *testing.T) {
	// No 12:00 entry: the midpoint of the series is used instead.
	hourly := openMeteoHourly{
		Time:          []string{"2025-10-10T00:00", "2025-10-10T06:00", "2025-10-10T18:00"},
		Temperature2m: []*float64{types.Float64Ptr(5), types.Float64Ptr(8), types.Float64Ptr(11)},
	}

	sample := condenseHourly(hourly)
	if sample.TempC == nil || *sample.TempC != 8 {
		t.Errorf("tempC = %v, want midpoint value 8", sample.TempC)
	}
}

func TestCondenseHourly_MissingVariablesAreNil(t *testing.T) {
	hourly := openMeteoHourly{
		Time:          []string{"2025-10-10T12:00"},
		Temperature2m: []*float64{types.Float64Ptr(15)},
		// No wind, cloud, precipitation, or probability series.
	}

	sample := condenseHourly(hourly)
	if sample.TempC == nil {
		t.Error("tempC should be present")
	}
	if sample.WindSpeedMs != nil || sample.CloudPct != nil || sample.PrecipMm != nil || sample.PrecipProbPct != nil {
		t.Errorf("missing variables must be nil, got %+v", sample)
	}
}

func TestForecastFetch(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		payload := openMeteoForecastResponse{
			Hourly: openMeteoHourly{
				Time:          []string{"2025-10-10T12:00"},
				Temperature2m: []*float64{types.Float64Ptr(17.5)},
				WindSpeed10m:  []*float64{types.Float64Ptr(4.2)},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewForecastClient(newTestBaseClient(), server.URL, testLogger())

	date := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	sample, err := client.Fetch(context.Background(), testCoord, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sample.TempC == nil || *sample.TempC != 17.5 {
		t.Errorf("tempC = %v, want 17.5", sample.TempC)
	}

	if gotQuery["start_date"] != "2025-10-10" || gotQuery["end_date"] != "2025-10-10" {
		t.Errorf("expected single-day window, got %v", gotQuery)
	}
	if gotQuery["windspeed_unit"] != "ms" {
		t.Errorf("windspeed_unit = %q, want ms", gotQuery["windspeed_unit"])
	}
	if gotQuery["timezone"] != "UTC" {
		t.Errorf("timezone = %q, want UTC", gotQuery["timezone"])
	}
}

func TestForecastFetch_NonSuccessPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"reason":"invalid coordinates"}`))
	}))
	defer server.Close()

	client := NewForecastClient(newTestBaseClient(), server.URL, testLogger())

	_, err := client.Fetch(context.Background(), testCoord, time.Now())
	if err == nil {
		t.Fatal("expected error on non-200 status")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamForecast {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamForecast)
	}
}

func TestArchiveFetchYear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := openMeteoArchiveResponse{
			Daily: openMeteoDaily{
				Time:              []string{"2024-10-10"},
				PrecipitationSum:  []*float64{types.Float64Ptr(3.2)},
				Temperature2mMean: []*float64{types.Float64Ptr(14.1)},
				WindSpeed10mMax:   []*float64{types.Float64Ptr(8.9)},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewArchiveClient(newTestBaseClient(), server.URL, 10, testLogger())

	obs, err := client.fetchYear(context.Background(), testCoord, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.PrecipMm == nil || *obs.PrecipMm != 3.2 {
		t.Errorf("precipMm = %v, want 3.2", obs.PrecipMm)
	}
	if obs.TempC == nil || *obs.TempC != 14.1 {
		t.Errorf("tempC = %v, want 14.1", obs.TempC)
	}
	if obs.WindMs == nil || *obs.WindMs != 8.9 {
		t.Errorf("windMs = %v, want 8.9", obs.WindMs)
	}
}

func TestPowerFetchYear_MissingSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"properties": {
				"parameter": {
					"PRECTOTCORR": {"20241010": 2.5},
					"T2M": {"20241010": -999},
					"WS10M": {"20241010": 3.4}
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewPowerClient(newTestBaseClient(), server.URL, 10, testLogger())

	obs, err := client.fetchYear(context.Background(), testCoord, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.PrecipMm == nil || *obs.PrecipMm != 2.5 {
		t.Errorf("precipMm = %v, want 2.5", obs.PrecipMm)
	}
	if obs.TempC != nil {
		t.Errorf("tempC = %v, want nil for the missing-data sentinel", obs.TempC)
	}
	if obs.WindMs == nil || *obs.WindMs != 3.4 {
		t.Errorf("windMs = %v, want 3.4", obs.WindMs)
	}
}
