package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/lotfolio/src/ledger"
	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/security/validation"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type TransactionHandler struct {
	portfolioService services.PortfolioService
}

func NewTransactionHandler(portfolioService services.PortfolioService) *TransactionHandler {
	return &TransactionHandler{
		portfolioService: portfolioService,
	}
}

func (h *TransactionHandler) HandleRecordBuy(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req services.BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	req.Reason = validation.SanitizeText(req.Reason)

	rec, err := h.portfolioService.AddBuy(userID, req)
	if err != nil {
		if errors.Is(err, ledger.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to record buy", "ticker", req.Ticker, "error", err)
		utils.SendJSONError(w, "Failed to record buy", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Buy recorded", "ticker", rec.Ticker, "qty", rec.BuyQty)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

func (h *TransactionHandler) HandleRecordSell(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req services.SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.portfolioService.AddSell(userID, req)
	if err != nil {
		if errors.Is(err, ledger.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		var insufficient *ledger.InsufficientSharesError
		if errors.As(err, &insufficient) {
			// Surface the exact shortfall so the UI can tell the user
			// precisely how many shares are available.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":     insufficient.Error(),
				"ticker":    insufficient.Ticker,
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			})
			return
		}
		logger.FromContext(r.Context()).Error("Failed to record sell", "ticker", req.Ticker, "error", err)
		utils.SendJSONError(w, "Failed to record sell", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Sell recorded", "ticker", outcome.Ticker, "qty", outcome.Qty, "realizedPL", outcome.RealizedPL)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

func (h *TransactionHandler) HandleRemoveRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	recordID := chi.URLParam(r, "id")
	if recordID == "" {
		utils.SendJSONError(w, "record id is required", http.StatusBadRequest)
		return
	}

	// Removing an unknown id is treated as already removed.
	if err := h.portfolioService.RemoveRecord(userID, recordID); err != nil {
		logger.FromContext(r.Context()).Error("Failed to remove record", "recordID", recordID, "error", err)
		utils.SendJSONError(w, "Failed to remove record", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	records, err := h.portfolioService.ListRecords(userID)
	if err != nil {
		utils.SendJSONError(w, "Failed to load records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []ledger.TransactionRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
