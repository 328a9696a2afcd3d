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

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func noopSleep(time.Duration) {}

func newTestBaseClient() *BaseClient {
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-breaker",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"raincheck-test/1.0",
		WithSleepFunc(noopSleep),
	)
}

func newTestModelClient(baseURL, apiKey string) *ModelClient {
	return NewModelClient(
		newTestBaseClient(),
		baseURL,
		types.SecretString(apiKey),
		"test-model",
		fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		testLogger(),
	)
}

func completionBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestModelClient_Complete(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(`{"location":"Paris","dateISO":"2025-10-10","activity":null}`)))
	}))
	defer server.Close()

	client := newTestModelClient(server.URL, "sk-test")

	content, err := client.Complete(context.Background(), "Vacances à Paris le 10 octobre")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != `{"location":"Paris","dateISO":"2025-10-10","activity":null}` {
		t.Errorf("unexpected content: %s", content)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if gotBody.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotBody.Temperature)
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_schema" {
		t.Error("expected a json_schema response format")
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[1].Content != "Vacances à Paris le 10 octobre" {
		t.Errorf("unexpected messages: %+v", gotBody.Messages)
	}
}

func TestModelClient_Complete_MissingCredential(t *testing.T) {
	client := newTestModelClient("http://unused.invalid", "")

	_, err := client.Complete(context.Background(), "demain ?")
	if err == nil {
		t.Fatal("expected error with no API key")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeConfigMissingCredential {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeConfigMissingCredential)
	}
	if appErr.HTTPStatus() != 500 {
		t.Errorf("status = %d, want 500", appErr.HTTPStatus())
	}
}

func TestModelClient_Complete_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	client := newTestModelClient(server.URL, "sk-bad")

	_, err := client.Complete(context.Background(), "demain ?")
	if err == nil {
		t.Fatal("expected error on non-200 status")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamModel {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamModel)
	}
	if appErr.HTTPStatus() != 502 {
		t.Errorf("status = %d, want 502", appErr.HTTPStatus())
	}
}

func TestParseModelContent(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		raw, err := ParseModelContent(`{"location":"Paris"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if raw["location"] != "Paris" {
			t.Errorf("location = %v, want Paris", raw["location"])
		}
	})

	t.Run("markdown fences stripped", func(t *testing.T) {
		raw, err := ParseModelContent("```json\n{\"location\":\"Lyon\"}\n```")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if raw["location"] != "Lyon" {
			t.Errorf("location = %v, want Lyon", raw["location"])
		}
	})

	t.Run("non-JSON content", func(t *testing.T) {
		_, err := ParseModelContent("Je ne peux pas répondre.")
		if err == nil {
			t.Fatal("expected error for prose output")
		}
		var appErr *types.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected AppError, got %T", err)
		}
		if appErr.Code != types.ErrCodeUpstreamModelOutput {
			t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamModelOutput)
		}
	})
}

func TestProjectIntent(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want types.ParsedIntent
	}{
		{
			name: "canonical keys",
			raw:  map[string]any{"location": "Paris", "dateISO": "2025-10-10", "activity": "Vacances"},
			want: types.ParsedIntent{Location: "Paris", DateISO: "2025-10-10", Activity: "vacances"},
		},
		{
			name: "french synonyms",
			raw:  map[string]any{"lieu": "Lyon", "date": "2025-06-05", "activite": "rando"},
			want: types.ParsedIntent{Location: "Lyon", DateISO: "2025-06-05", Activity: "rando"},
		},
		{
			name: "ville synonym and accented activity key",
			raw:  map[string]any{"ville": "Nice", "activité": "plage"},
			want: types.ParsedIntent{Location: "Nice", Activity: "plage"},
		},
		{
			name: "null activity treated as absent",
			raw:  map[string]any{"location": "Paris", "dateISO": "2025-10-10", "activity": nil},
			want: types.ParsedIntent{Location: "Paris", DateISO: "2025-10-10"},
		},
		{
			name: "unknown keys ignored",
			raw:  map[string]any{"location": "Paris", "confidence": 0.9},
			want: types.ParsedIntent{Location: "Paris"},
		},
		{
			name: "numeric values coerced",
			raw:  map[string]any{"location": "Paris", "dateISO": float64(2025)},
			want: types.ParsedIntent{Location: "Paris", DateISO: "2025"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ProjectIntent(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestExtractIntent_NeverErrors(t *testing.T) {
	t.Run("upstream down yields empty intent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newTestModelClient(server.URL, "sk-test")

		intent, responded := client.ExtractIntent(context.Background(), "demain ?")
		if responded {
			t.Error("expected responded=false on upstream failure")
		}
		if intent != (types.ParsedIntent{}) {
			t.Errorf("expected empty intent, got %+v", intent)
		}
	})

	t.Run("prose output yields empty intent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(completionBody("Je ne sais pas.")))
		}))
		defer server.Close()

		client := newTestModelClient(server.URL, "sk-test")

		intent, responded := client.ExtractIntent(context.Background(), "demain ?")
		if !responded {
			t.Error("expected responded=true: the model did answer")
		}
		if intent != (types.ParsedIntent{}) {
			t.Errorf("expected empty intent, got %+v", intent)
		}
	})

	t.Run("valid output projected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(completionBody(`{"lieu":"Brest","date":"2025-07-14","activity":"plage"}`)))
		}))
		defer server.Close()

		client := newTestModelClient(server.URL, "sk-test")

		intent, responded := client.ExtractIntent(context.Background(), "plage à Brest le 14 juillet")
		if !responded {
			t.Error("expected responded=true")
		}
		want := types.ParsedIntent{Location: "Brest", DateISO: "2025-07-14", Activity: "plage"}
		if intent != want {
			t.Errorf("got %+v, want %+v", intent, want)
		}
	})
}
