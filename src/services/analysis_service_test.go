package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/lotfolio/src/ledger"
)

func TestAnalysisUnavailableWithoutAPIKey(t *testing.T) {
	ctx := context.Background()
	svc, err := NewAnalysisService(ctx, "", "gemini-2.5-flash", "analyze: {{POSITIONS}}")
	require.NoError(t, err)

	_, err = svc.AnalyzePortfolio(ctx, []ledger.PositionSummary{{Ticker: "AAPL", TotalShares: 10}})
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)

	_, err = svc.EstimateValuations(ctx, []ledger.PositionSummary{{Ticker: "AAPL", TotalShares: 10}})
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)
}

func TestFormatPositions(t *testing.T) {
	out := formatPositions([]ledger.PositionSummary{
		{Ticker: "AAPL", Name: "Apple", TotalShares: 10, AvgCost: 100.5, CurrentPrice: 150, MarketValue: 1500, UnrealizedPL: 495, RealizedPL: 0},
		{Ticker: "MSFT", TotalShares: 2, AvgCost: 300, CurrentPrice: 310, MarketValue: 620, UnrealizedPL: 20, RealizedPL: 55.5},
	})

	assert.Contains(t, out, "TICKER | NAME | SHARES")
	assert.Contains(t, out, "AAPL | Apple | 10 | 100.50 | 150.00 | 1500.00 | 495.00 | 0.00")
	assert.Contains(t, out, "MSFT |  | 2 | 300.00 | 310.00 | 620.00 | 20.00 | 55.50")
}

func TestStripJSONFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `[{"ticker":"AAPL"}]`, `[{"ticker":"AAPL"}]`},
		{"json fence", "```json\n[{\"ticker\":\"AAPL\"}]\n```", `[{"ticker":"AAPL"}]`},
		{"plain fence", "```\n[]\n```", `[]`},
		{"surrounding whitespace", "  \n[1,2]\n ", `[1,2]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripJSONFences(tc.in))
		})
	}
}
