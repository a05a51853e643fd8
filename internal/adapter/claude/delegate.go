// Package claude resolves queries the core engine cannot answer itself by
// asking a Claude model to translate free text into a structured incident
// history filter, then executing it against the history store.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/emberwatch/fire-danger-service/internal/adapter/postgres"
	"github.com/emberwatch/fire-danger-service/internal/domain"
)

const translateSystemPrompt = `You translate questions about historical fire incidents into a JSON filter.
Respond with ONLY a JSON object, no prose, using these optional keys:
  "region": string, "since": RFC3339 timestamp, "until": RFC3339 timestamp,
  "min_acres": number, "peak_danger": one of LOW MODERATE HIGH VERY_HIGH EXTREME,
  "limit": integer.
Omit keys the question does not constrain.`

const maxTranslateTokens = 1024

// HistoryQuerier answers structured incident filters. Satisfied by the
// postgres history store.
type HistoryQuerier interface {
	Incidents(ctx context.Context, filter postgres.IncidentFilter) ([]postgres.Incident, error)
}

// Delegate translates and answers history queries. It implements the
// coordinator's Delegate interface.
type Delegate struct {
	client  anthropic.Client
	model   anthropic.Model
	history HistoryQuerier
	logger  *slog.Logger
}

// New creates a Delegate. history may be nil, in which case the translated
// filter itself is the payload.
func New(apiKey, model string, history HistoryQuerier, logger *slog.Logger) (*Delegate, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &Delegate{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(model),
		history: history,
		logger:  logger,
	}, nil
}

// Resolve asks the model for a structured filter, runs it against the
// history store when one is configured, and returns the rows.
func (d *Delegate) Resolve(ctx context.Context, query string) (domain.StructuredResult, error) {
	filter, err := d.translate(ctx, query)
	if err != nil {
		return domain.StructuredResult{}, err
	}

	if d.history == nil {
		payload, err := json.Marshal(filter)
		if err != nil {
			return domain.StructuredResult{}, fmt.Errorf("encode filter: %w", err)
		}
		return domain.StructuredResult{
			Kind:    "history_filter",
			Payload: payload,
			Source:  string(d.model),
		}, nil
	}

	incidents, err := d.history.Incidents(ctx, filter)
	if err != nil {
		return domain.StructuredResult{}, fmt.Errorf("query incident history: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"filter":    filter,
		"incidents": incidents,
		"count":     len(incidents),
	})
	if err != nil {
		return domain.StructuredResult{}, fmt.Errorf("encode incidents: %w", err)
	}
	return domain.StructuredResult{
		Kind:    "incident_history",
		Payload: payload,
		Source:  string(d.model),
	}, nil
}

func (d *Delegate) translate(ctx context.Context, query string) (postgres.IncidentFilter, error) {
	resp, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     d.model,
		MaxTokens: maxTranslateTokens,
		System: []anthropic.TextBlockParam{
			{Text: translateSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return postgres.IncidentFilter{}, fmt.Errorf("translate query: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	filter, err := ParseFilter(text.String())
	if err != nil {
		d.logger.Warn("model returned an unparseable filter", "error", err)
		return postgres.IncidentFilter{}, err
	}
	return filter, nil
}

// ParseFilter decodes a model response into an incident filter, tolerating
// surrounding prose and markdown fences.
func ParseFilter(text string) (postgres.IncidentFilter, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return postgres.IncidentFilter{}, fmt.Errorf("no JSON object in model response")
	}

	var filter postgres.IncidentFilter
	if err := json.Unmarshal([]byte(text[start:end+1]), &filter); err != nil {
		return postgres.IncidentFilter{}, fmt.Errorf("decode filter: %w", err)
	}
	return filter, nil
}
