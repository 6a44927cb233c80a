package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/lotfolio/src/database"
	"github.com/username/lotfolio/src/ledger"
	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/model"
)

const (
	ckSummary              = "res_summary_user_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type portfolioServiceImpl struct {
	priceService PriceService
	reportCache  *cache.Cache
	summaryTTL   time.Duration

	// One in-memory ledger per user, loaded lazily. The ledger itself is
	// single-writer, so all mutations are serialized behind mu.
	mu      sync.Mutex
	ledgers map[string]*ledger.LotLedger
}

func NewPortfolioService(priceService PriceService, reportCache *cache.Cache, summaryTTL time.Duration) PortfolioService {
	return &portfolioServiceImpl{
		priceService: priceService,
		reportCache:  reportCache,
		summaryTTL:   summaryTTL,
		ledgers:      make(map[string]*ledger.LotLedger),
	}
}

// ledgerFor returns the user's ledger, loading its records from the database
// on first touch. Callers must hold mu.
func (s *portfolioServiceImpl) ledgerFor(userID string) (*ledger.LotLedger, error) {
	if l, ok := s.ledgers[userID]; ok {
		return l, nil
	}
	records, err := model.LoadRecords(database.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading records for user %s: %w", userID, err)
	}
	l := ledger.New(records)
	s.ledgers[userID] = l
	return l, nil
}

// persist saves the user's record list in the background. The in-memory
// ledger stays authoritative: if the save fails, the next successful one
// writes the full current list again (at-least-once semantics).
func (s *portfolioServiceImpl) persist(userID string, records []ledger.TransactionRecord) {
	go func() {
		if err := model.SaveRecords(database.DB, userID, records); err != nil {
			logger.L.Error("Failed to persist records, in-memory state remains authoritative",
				"userID", userID, "records", len(records), "error", err)
			return
		}
		logger.L.Debug("Persisted records", "userID", userID, "records", len(records))
	}()
}

func (s *portfolioServiceImpl) AddBuy(userID string, req BuyRequest) (ledger.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(userID)
	if err != nil {
		return ledger.TransactionRecord{}, err
	}
	rec, err := l.RecordBuy(req.Ticker, req.Name, req.Date, req.Price, req.Qty, req.Reason)
	if err != nil {
		return ledger.TransactionRecord{}, err
	}
	logger.L.Info("Recorded buy", "userID", userID, "ticker", rec.Ticker, "qty", rec.BuyQty, "price", rec.BuyPrice)
	s.persist(userID, l.Records())
	s.invalidateLocked(userID)
	return rec, nil
}

func (s *portfolioServiceImpl) AddSell(userID string, req SellRequest) (ledger.SellOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(userID)
	if err != nil {
		return ledger.SellOutcome{}, err
	}
	outcome, err := l.RecordSell(req.Ticker, req.Date, req.Price, req.Qty)
	if err != nil {
		return ledger.SellOutcome{}, err
	}
	logger.L.Info("Recorded sell", "userID", userID, "ticker", outcome.Ticker,
		"qty", outcome.Qty, "fills", len(outcome.Fills), "realizedPL", outcome.RealizedPL)
	s.persist(userID, l.Records())
	s.invalidateLocked(userID)
	return outcome, nil
}

func (s *portfolioServiceImpl) RemoveRecord(userID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(userID)
	if err != nil {
		return err
	}
	// Removal of an unknown id is a no-op: treat as already removed.
	l.RemoveRecord(recordID)
	s.persist(userID, l.Records())
	s.invalidateLocked(userID)
	return nil
}

func (s *portfolioServiceImpl) ListRecords(userID string) ([]ledger.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerFor(userID)
	if err != nil {
		return nil, err
	}
	return l.Records(), nil
}

func (s *portfolioServiceImpl) GetSummary(userID string, refresh bool) ([]ledger.PositionSummary, error) {
	cacheKey := fmt.Sprintf(ckSummary, userID)
	if !refresh {
		if cached, found := s.reportCache.Get(cacheKey); found {
			return cached.([]ledger.PositionSummary), nil
		}
	}

	s.mu.Lock()
	l, err := s.ledgerFor(userID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	records := l.Records()
	s.mu.Unlock()

	// Collect the distinct tickers before valuing the positions.
	seen := make(map[string]bool)
	var tickers []string
	for _, rec := range records {
		t := ledger.NormalizeTicker(rec.Ticker)
		if !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}

	priceMap := make(map[string]float64)
	if len(tickers) > 0 {
		prices, err := s.priceService.GetCurrentPrices(tickers)
		if err != nil {
			logger.L.Warn("Could not fetch some or all current prices", "userID", userID, "error", err)
		}
		for t, info := range prices {
			if info.Status == "OK" {
				priceMap[t] = info.Price
			}
		}
	}

	summaries := ledger.New(records).Summarize(priceMap)
	s.reportCache.Set(cacheKey, summaries, s.summaryTTL)
	return summaries, nil
}

func (s *portfolioServiceImpl) InvalidateUserCache(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(userID)
}

func (s *portfolioServiceImpl) invalidateLocked(userID string) {
	s.reportCache.Delete(fmt.Sprintf(ckSummary, userID))
}
