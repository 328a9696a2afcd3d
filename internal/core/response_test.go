package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"raincheck/internal/types"
)

func TestJSON_WritesStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusCreated, map[string]string{"hello": "world"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"hello":"world"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestError_AppErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation error is 400",
			err:        types.NewAppError(types.ErrCodeValidationInvalidDate, "bad date", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "extraction incomplete is 422",
			err:        types.NewAppError(types.ErrCodeExtractionIncomplete, "missing fields", nil),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unresolvable location is 400",
			err:        types.NewAppError(types.ErrCodeLocationUnresolvable, "nowhere", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing credential is 500",
			err:        types.NewAppError(types.ErrCodeConfigMissingCredential, "no key", nil),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "upstream failure is 502",
			err:        types.NewAppError(types.ErrCodeUpstreamModel, "model down", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "wrapped AppError is unwrapped",
			err:        fmt.Errorf("pipeline: %w", types.NewAppError(types.ErrCodeUpstreamForecast, "forecast down", nil)),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "generic error is 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			Error(rec, req, tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if body.Error == "" {
				t.Error("expected a non-empty error message")
			}
		})
	}
}

func TestError_GenericErrorDoesNotLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, errors.New("pq: connection refused at 10.0.0.3"))

	if strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Error("internal error details must not reach the client")
	}
}

func TestError_DetailsArePreserved(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, types.NewAppErrorWithDetails(
		types.ErrCodeExtractionIncomplete,
		"incomplete",
		nil,
		map[string]any{"location": false, "dateISO": true},
	))

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.Details["location"] != false || body.Details["dateISO"] != true {
		t.Errorf("unexpected details: %v", body.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}

	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		var p payload
		return DecodeJSON(rec, req, &p)
	}

	t.Run("valid body", func(t *testing.T) {
		if err := decode(`{"query":"demain"}`); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	invalid := map[string]string{
		"malformed JSON":   `{"query":`,
		"unknown field":    `{"nope":true}`,
		"empty body":       ``,
		"two JSON values":  `{"query":"a"} {"query":"b"}`,
		"wrong value type": `{"query":123}`,
	}

	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			err := decode(body)
			if err == nil {
				t.Fatal("expected a decode error")
			}
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.Code != types.ErrCodeValidationInvalidJSON {
				t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeValidationInvalidJSON)
			}
			if appErr.HTTPStatus() != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", appErr.HTTPStatus())
			}
		})
	}
}
