package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/username/lotfolio/src/ledger"
	"github.com/username/lotfolio/src/logger"
)

// analysisServiceImpl wraps the Gemini API. It only ever consumes the
// ledger's summaries; the ledger has no awareness of it.
type analysisServiceImpl struct {
	client         *genai.Client
	model          string
	promptTemplate string
}

// NewAnalysisService creates the Gemini-backed analysis service. An empty
// apiKey yields a service whose calls fail with ErrAnalysisUnavailable, so
// the rest of the application works without AI configured.
func NewAnalysisService(ctx context.Context, apiKey, model, promptTemplate string) (AnalysisService, error) {
	s := &analysisServiceImpl{model: model, promptTemplate: promptTemplate}
	if apiKey == "" {
		return s, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *analysisServiceImpl) AnalyzePortfolio(ctx context.Context, summaries []ledger.PositionSummary) (string, error) {
	if s.client == nil {
		return "", ErrAnalysisUnavailable
	}
	if len(summaries) == 0 {
		return "", fmt.Errorf("%w: no positions to analyze", ErrAnalysisUnavailable)
	}

	prompt := strings.ReplaceAll(s.promptTemplate, "{{POSITIONS}}", formatPositions(summaries))
	logger.L.Debug("Generating portfolio analysis", "model", s.model, "positions", len(summaries))

	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis: %w", err)
	}
	return extractText(result)
}

// valuationPrompt asks for strict JSON so the overlay can be parsed without
// depending on prose structure.
const valuationPrompt = `For each of the following stock positions, estimate a cheap, fair and
expensive price per share plus a 12-month target price. Respond with a JSON
array only, no prose, one object per ticker with the keys:
ticker, cheap_price, fair_price, expensive_price, target_price, rationale.

%s`

func (s *analysisServiceImpl) EstimateValuations(ctx context.Context, summaries []ledger.PositionSummary) (map[string]Valuation, error) {
	if s.client == nil {
		return nil, ErrAnalysisUnavailable
	}
	if len(summaries) == 0 {
		return map[string]Valuation{}, nil
	}

	prompt := fmt.Sprintf(valuationPrompt, formatPositions(summaries))
	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate valuations: %w", err)
	}
	text, err := extractText(result)
	if err != nil {
		return nil, err
	}

	var valuations []Valuation
	if err := json.Unmarshal([]byte(stripJSONFences(text)), &valuations); err != nil {
		return nil, fmt.Errorf("%w: unparseable valuation response: %v", ErrAnalysisUnavailable, err)
	}

	// The overlay never feeds back into the ledger: it is keyed by ticker
	// and merged at presentation time only.
	overlay := make(map[string]Valuation, len(valuations))
	for _, v := range valuations {
		v.Ticker = ledger.NormalizeTicker(v.Ticker)
		if v.Ticker != "" {
			overlay[v.Ticker] = v
		}
	}
	return overlay, nil
}

// formatPositions renders summaries as the plain-text table the prompt
// templates expect.
func formatPositions(summaries []ledger.PositionSummary) string {
	var sb strings.Builder
	sb.WriteString("TICKER | NAME | SHARES | AVG COST | CURRENT PRICE | MARKET VALUE | UNREALIZED P&L | REALIZED P&L\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "%s | %s | %d | %.2f | %.2f | %.2f | %.2f | %.2f\n",
			s.Ticker, s.Name, s.TotalShares, s.AvgCost, s.CurrentPrice, s.MarketValue, s.UnrealizedPL, s.RealizedPL)
	}
	return sb.String()
}

// extractText flattens a generate-content response into plain text.
func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content generated", ErrAnalysisUnavailable)
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// stripJSONFences removes a surrounding markdown code fence, which the model
// sometimes adds despite the JSON-only instruction.
func stripJSONFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
