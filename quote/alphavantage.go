package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://www.alphavantage.co"

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

type symbolSearchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
	} `json:"bestMatches"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// AlphaVantage is a Provider backed by the Alpha Vantage query API.
type AlphaVantage struct {
	client *resty.Client
	apiKey string
	logger *logrus.Entry
}

func NewAlphaVantage(baseURL, apiKey string, timeout time.Duration, logger *logrus.Entry) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &AlphaVantage{
		client: client,
		apiKey: apiKey,
		logger: logger.WithField("module", "quote.alphavantage"),
	}
}

// Lookup fetches the latest price with GLOBAL_QUOTE and the company name with
// SYMBOL_SEARCH. A failed name search does not fail the lookup.
func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, ErrNotFound
	}

	l := a.logger.WithFields(logrus.Fields{
		"method":       "Lookup",
		"param_symbol": symbol,
	})

	var gq globalQuoteResponse
	if err := a.query(ctx, map[string]string{"function": "GLOBAL_QUOTE", "symbol": symbol}, &gq); err != nil {
		l.Errorf("GLOBAL_QUOTE failed: %v", err)
		return nil, err
	}
	if gq.Note != "" || gq.Information != "" {
		l.Warnf("Rate limited: %s%s", gq.Note, gq.Information)
		return nil, ErrRateLimited
	}
	if gq.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, gq.ErrorMessage)
	}
	if gq.GlobalQuote.Price == "" {
		l.Debugf("No quote for symbol")
		return nil, ErrNotFound
	}

	price, err := decimal.NewFromString(gq.GlobalQuote.Price)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage: bad price %q: %w", gq.GlobalQuote.Price, err)
	}

	q := &Quote{
		Symbol: symbol,
		Name:   symbol,
		Price:  price,
	}
	if gq.GlobalQuote.Symbol != "" {
		q.Symbol = Normalize(gq.GlobalQuote.Symbol)
		q.Name = q.Symbol
	}

	name, err := a.companyName(ctx, q.Symbol)
	if err != nil {
		l.Debugf("Company name lookup failed, using symbol: %v", err)
	} else if name != "" {
		q.Name = name
	}

	l.Debugf("Got quote %s @ %s", q.Symbol, q.Price)
	return q, nil
}

func (a *AlphaVantage) companyName(ctx context.Context, symbol string) (string, error) {
	var sr symbolSearchResponse
	if err := a.query(ctx, map[string]string{"function": "SYMBOL_SEARCH", "keywords": symbol}, &sr); err != nil {
		return "", err
	}
	if sr.Note != "" || sr.Information != "" {
		return "", ErrRateLimited
	}
	for _, m := range sr.BestMatches {
		if Normalize(m.Symbol) == symbol {
			return m.Name, nil
		}
	}
	return "", nil
}

func (a *AlphaVantage) query(ctx context.Context, params map[string]string, out interface{}) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("apikey", a.apiKey).
		Get("/query")
	if err != nil {
		return fmt.Errorf("%w: alpha vantage request: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: alpha vantage returned %s", ErrUnavailable, resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: decoding alpha vantage response: %v", ErrUnavailable, err)
	}
	return nil
}
