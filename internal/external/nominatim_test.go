package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"raincheck/internal/types"
)

func newTestNominatim(baseURL string) *NominatimClient {
	return NewNominatimClient(newTestBaseClient(), baseURL, testLogger())
}

func TestGeocode_Success(t *testing.T) {
	var gotQuery string
	var gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotLang = r.URL.Query().Get("accept-language")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"48.8534951","lon":"2.3483915","display_name":"Paris, France"}]`))
	}))
	defer server.Close()

	client := newTestNominatim(server.URL)

	coord, err := client.Geocode(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if coord.Lat != 48.8534951 || coord.Lon != 2.3483915 {
		t.Errorf("unexpected coordinate: %+v", coord)
	}
	if gotQuery != "Paris" {
		t.Errorf("q = %q, want Paris", gotQuery)
	}
	if gotLang != "fr" {
		t.Errorf("accept-language = %q, want fr", gotLang)
	}
}

func TestGeocode_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestNominatim(server.URL)

	_, err := client.Geocode(context.Background(), "Zzyzx-sur-Mer")
	if err == nil {
		t.Fatal("expected error for empty result set")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeGeocodeNoResults {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeGeocodeNoResults)
	}
}

func TestGeocode_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestNominatim(server.URL)

	_, err := client.Geocode(context.Background(), "Paris")
	if err == nil {
		t.Fatal("expected error on 503")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamGeocoder {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamGeocoder)
	}
}

func TestGeocode_UnparseableCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"not-a-number","lon":"2.35"}]`))
	}))
	defer server.Close()

	client := newTestNominatim(server.URL)

	_, err := client.Geocode(context.Background(), "Paris")
	if err == nil {
		t.Fatal("expected error for unparseable latitude")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamGeocoder {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamGeocoder)
	}
}
