package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/lotfolio/src/ledger"
	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
	analysisService  services.AnalysisService
}

func NewPortfolioHandler(portfolioService services.PortfolioService, analysisService services.AnalysisService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		analysisService:  analysisService,
	}
}

// positionView is a PositionSummary with the optional AI valuation overlay
// merged in. The merge happens here, at presentation time only; the ledger
// never sees valuation data.
type positionView struct {
	ledger.PositionSummary
	Valuation *services.Valuation `json:"valuation,omitempty"`
}

func (h *PortfolioHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	refresh := r.URL.Query().Get("refresh") == "1"
	summaries, err := h.portfolioService.GetSummary(userID, refresh)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build summary", "error", err)
		utils.SendJSONError(w, "Failed to build portfolio summary", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []ledger.PositionSummary{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

func (h *PortfolioHandler) HandleAnalyzePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	summaries, err := h.portfolioService.GetSummary(userID, false)
	if err != nil {
		utils.SendJSONError(w, "Failed to build portfolio summary", http.StatusInternalServerError)
		return
	}

	report, err := h.analysisService.AnalyzePortfolio(r.Context(), summaries)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisUnavailable) {
			utils.SendJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		logger.FromContext(r.Context()).Error("Portfolio analysis failed", "error", err)
		utils.SendJSONError(w, "Portfolio analysis failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"report": report})
}

func (h *PortfolioHandler) HandleGetValuations(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	summaries, err := h.portfolioService.GetSummary(userID, false)
	if err != nil {
		utils.SendJSONError(w, "Failed to build portfolio summary", http.StatusInternalServerError)
		return
	}

	overlay, err := h.analysisService.EstimateValuations(r.Context(), summaries)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisUnavailable) {
			utils.SendJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		logger.FromContext(r.Context()).Error("Valuation estimation failed", "error", err)
		utils.SendJSONError(w, "Valuation estimation failed", http.StatusBadGateway)
		return
	}

	views := make([]positionView, 0, len(summaries))
	for _, s := range summaries {
		view := positionView{PositionSummary: s}
		if v, found := overlay[s.Ticker]; found {
			view.Valuation = &v
		}
		views = append(views, view)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}
