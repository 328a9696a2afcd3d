package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"raincheck/internal/types"
)

const defaultModelBaseURL = "https://api.openai.com"

// extractionSystemPrompt builds the system message for intent extraction.
// Today's date is included so the model can resolve relative and yearless
// dates ("demain", "le 10 octobre") deterministically.
func extractionSystemPrompt(today string) string {
	return "Tu extrais des informations d'une question météo en français. " +
		"La date d'aujourd'hui est " + today + ". " +
		"Réponds uniquement en JSON minifié avec les clés location (nom de lieu), " +
		"dateISO (date au format YYYY-MM-DD) et activity (activité mentionnée, ou null). " +
		"Si une information est absente, utilise une chaîne vide."
}

// intentSchema is the JSON schema enforced through the chat completion
// response_format. Keeping it as a raw message avoids rebuilding the
// structure on every call.
var intentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"location": {"type": "string"},
		"dateISO": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"activity": {"type": ["string", "null"]}
	},
	"required": ["location", "dateISO", "activity"],
	"additionalProperties": false
}`)

// ModelClient calls an OpenAI-compatible chat completions API to extract
// structured trip intent from free-text queries.
type ModelClient struct {
	*BaseClient
	BaseURL string // overridable for testing
	apiKey  types.SecretString
	model   string
	clock   types.Clock
	logger  *slog.Logger
}

// NewModelClient creates a client for the configured chat completions
// endpoint. An empty baseURL falls back to the public OpenAI API.
func NewModelClient(
	base *BaseClient,
	baseURL string,
	apiKey types.SecretString,
	model string,
	clock types.Clock,
	logger *slog.Logger,
) *ModelClient {
	if baseURL == "" {
		baseURL = defaultModelBaseURL
	}
	return &ModelClient{
		BaseClient: base,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		clock:      clock,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the query through the chat completions API and returns the
// raw message content produced by the model. It fails with a configuration
// error when no API key is set, so callers can surface the misconfiguration
// instead of a confusing upstream failure.
func (c *ModelClient) Complete(ctx context.Context, query string) (string, error) {
	if c.apiKey.Unmask() == "" {
		return "", types.NewAppError(
			types.ErrCodeConfigMissingCredential,
			"model API key is not configured",
			nil,
		)
	}

	today := c.clock.Now().UTC().Format(types.ISODateLayout)
	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionSystemPrompt(today)},
			{Role: "user", Content: query},
		},
		Temperature: 0,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "trip_intent",
				Strict: true,
				Schema: intentSchema,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal chat completion request",
			err,
		)
	}

	url := c.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create chat completion request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.Do(req)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamModel,
			"chat completion request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", types.NewAppError(
			types.ErrCodeUpstreamModel,
			fmt.Sprintf("chat completion returned status %d", resp.StatusCode),
			fmt.Errorf("response: %s", string(respBody)),
		)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamModel,
			"failed to decode chat completion response",
			err,
		)
	}
	if len(completion.Choices) == 0 {
		return "", types.NewAppError(
			types.ErrCodeUpstreamModelOutput,
			"chat completion returned no choices",
			nil,
		)
	}

	return completion.Choices[0].Message.Content, nil
}

// ParseModelContent interprets raw model output as a JSON object. Models
// occasionally wrap JSON in markdown fences despite instructions, so fences
// are stripped before decoding.
func ParseModelContent(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamModelOutput,
			"model output is not a JSON object",
			err,
		)
	}
	return raw, nil
}

// intentKeyAliases maps key spellings the model has been observed to emit
// onto the canonical intent field names.
var intentKeyAliases = map[string]string{
	"location": "location",
	"lieu":     "location",
	"ville":    "location",
	"dateiso":  "dateISO",
	"date":     "dateISO",
	"activity": "activity",
	"activite": "activity",
	"activité": "activity",
}

type modelIntent struct {
	Location string `mapstructure:"location"`
	DateISO  string `mapstructure:"dateISO"`
	Activity string `mapstructure:"activity"`
}

// ProjectIntent converts a loosely-shaped model output map into a
// ParsedIntent. Unknown keys are ignored, alias keys are canonicalized, and
// null values are treated as absent. Non-string scalars are coerced so a
// model emitting a bare year as a number does not break the pipeline.
func ProjectIntent(raw map[string]any) (types.ParsedIntent, error) {
	canonical := make(map[string]any, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		if field, ok := intentKeyAliases[strings.ToLower(key)]; ok {
			canonical[field] = value
		}
	}

	var out modelIntent
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return types.ParsedIntent{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build intent decoder",
			err,
		)
	}
	if err := decoder.Decode(canonical); err != nil {
		return types.ParsedIntent{}, types.NewAppError(
			types.ErrCodeUpstreamModelOutput,
			"model output fields have unusable types",
			err,
		)
	}

	return types.ParsedIntent{
		Location: strings.TrimSpace(out.Location),
		DateISO:  strings.TrimSpace(out.DateISO),
		Activity: strings.TrimSpace(strings.ToLower(out.Activity)),
	}, nil
}

// ExtractIntent runs the full model extraction and returns whatever fields
// could be recovered. It never returns an error: any failure along the way
// yields an empty intent so the caller can fall back to other sources. The
// bool reports whether the model responded at all.
func (c *ModelClient) ExtractIntent(ctx context.Context, query string) (types.ParsedIntent, bool) {
	content, err := c.Complete(ctx, query)
	if err != nil {
		c.logger.WarnContext(ctx, "model extraction unavailable", slog.String("error", err.Error()))
		return types.ParsedIntent{}, false
	}

	raw, err := ParseModelContent(content)
	if err != nil {
		c.logger.WarnContext(ctx, "model output unparseable", slog.String("error", err.Error()))
		return types.ParsedIntent{}, true
	}

	intent, err := ProjectIntent(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "model output unprojectable", slog.String("error", err.Error()))
		return types.ParsedIntent{}, true
	}
	return intent, true
}
