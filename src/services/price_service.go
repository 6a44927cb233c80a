package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/lotfolio/src/database"
	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/model"
	"golang.org/x/net/publicsuffix"
)

// --- API Response Structs ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// --- Service Implementation ---

type priceServiceImpl struct {
	httpClient    http.Client
	quoteCache    *cache.Cache
	quoteTTL      time.Duration
	fetchLimit    int
	isInitialized bool
	crumb         string
	mu            sync.Mutex
}

const quoteUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func NewPriceService(quoteTTL, httpTimeout time.Duration, fetchLimit int) PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: httpTimeout,
	}
	if fetchLimit <= 0 {
		fetchLimit = 1
	}

	s := &priceServiceImpl{
		httpClient: client,
		quoteCache: cache.New(quoteTTL, 2*quoteTTL),
		quoteTTL:   quoteTTL,
		fetchLimit: fetchLimit,
	}

	go s.initializeYahooSession()

	return s
}

// initializeYahooSession warms the cookie jar and fetches the API crumb that
// Yahoo requires on quote endpoints.
func (s *priceServiceImpl) initializeYahooSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized && s.crumb != "" {
		return
	}

	logger.L.Info("Initializing Yahoo Finance session and fetching Crumb...")

	for _, url := range []string{"https://fc.yahoo.com", "https://finance.yahoo.com"} {
		req, _ := http.NewRequest("GET", url, nil)
		req.Header.Set("User-Agent", quoteUserAgent)
		resp, err := s.httpClient.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	req, _ := http.NewRequest("GET", "https://query1.finance.yahoo.com/v1/test/getcrumb", nil)
	req.Header.Set("User-Agent", quoteUserAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Error("Failed to fetch crumb", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		s.crumb = string(bodyBytes)
		s.isInitialized = true
		logger.L.Info("Yahoo session initialized successfully")
	} else {
		logger.L.Warn("Failed to fetch crumb", "status", resp.Status)
	}
}

func (s *priceServiceImpl) ensureSession() {
	s.mu.Lock()
	needsInit := !s.isInitialized || s.crumb == ""
	s.mu.Unlock()

	if needsInit {
		s.initializeYahooSession()
	}
}

// GetCurrentPrices fetches the latest quote for every ticker in the batch.
// Results come from the in-memory quote cache when fresh; misses are fetched
// concurrently (bounded fan-out). A ticker whose fetch fails falls back to
// the last price persisted in the daily_prices table, and is reported as
// UNAVAILABLE only when that fails too. One bad ticker never fails the batch.
func (s *priceServiceImpl) GetCurrentPrices(tickers []string) (map[string]PriceInfo, error) {
	result := make(map[string]PriceInfo, len(tickers))
	var misses []string

	for _, t := range tickers {
		if cached, found := s.quoteCache.Get(t); found {
			result[t] = cached.(PriceInfo)
			continue
		}
		misses = append(misses, t)
	}
	if len(misses) == 0 {
		return result, nil
	}

	s.ensureSession()

	var wg sync.WaitGroup
	var resultMu sync.Mutex
	sem := make(chan struct{}, s.fetchLimit)

	for _, ticker := range misses {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			info, err := s.fetchQuote(t)
			if err != nil {
				logger.L.Warn("Quote fetch failed, trying cached daily price", "ticker", t, "error", err)
				info = s.persistedFallback(t)
			} else {
				s.storeDailyPrice(t, info)
			}

			resultMu.Lock()
			result[t] = info
			resultMu.Unlock()

			if info.Status == "OK" {
				s.quoteCache.Set(t, info, s.quoteTTL)
			}
		}(ticker)
	}
	wg.Wait()

	return result, nil
}

// fetchQuote retrieves the regular market price for one ticker from the
// Yahoo chart endpoint.
func (s *priceServiceImpl) fetchQuote(ticker string) (PriceInfo, error) {
	url := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?range=1d&interval=1d", ticker)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return PriceInfo{Status: "UNAVAILABLE"}, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return PriceInfo{Status: "UNAVAILABLE"}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PriceInfo{Status: "UNAVAILABLE"}, fmt.Errorf("yahoo chart returned status %s", resp.Status)
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return PriceInfo{Status: "UNAVAILABLE"}, fmt.Errorf("error decoding chart response: %w", err)
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return PriceInfo{Status: "UNAVAILABLE"}, fmt.Errorf("no price in chart response for %s", ticker)
	}

	meta := chart.Chart.Result[0].Meta
	return PriceInfo{Status: "OK", Price: meta.RegularMarketPrice, Currency: meta.Currency}, nil
}

// persistedFallback serves the most recent daily price stored in sqlite.
func (s *priceServiceImpl) persistedFallback(ticker string) PriceInfo {
	cached, err := model.GetLatestPrices(database.DB, []string{ticker})
	if err != nil {
		logger.L.Warn("Daily price lookup failed", "ticker", ticker, "error", err)
		return PriceInfo{Status: "UNAVAILABLE"}
	}
	if p, ok := cached[ticker]; ok {
		return PriceInfo{Status: "OK", Price: p.Price, Currency: p.Currency}
	}
	return PriceInfo{Status: "UNAVAILABLE"}
}

func (s *priceServiceImpl) storeDailyPrice(ticker string, info PriceInfo) {
	if info.Status != "OK" {
		return
	}
	err := model.UpsertDailyPrice(database.DB, model.DailyPrice{
		TickerSymbol: ticker,
		Date:         time.Now().Format("2006-01-02"),
		Price:        info.Price,
		Currency:     info.Currency,
	})
	if err != nil {
		logger.L.Warn("Failed to persist daily price", "ticker", ticker, "error", err)
	}
}
