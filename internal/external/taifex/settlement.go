// Package taifex scrapes the exchange's daily settlement-price page. It
// exists for the table-extension workflow only: when a contract settles,
// the operator extends the curated settlement table, and the scraper
// supplies the final settlement prices the next_contract_diff is computed
// from. The curated table always wins over anything read here.
package taifex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/httputil"
	"github.com/taquant/mxfeed/pkg/logger"
)

// SettlementPrice is one contract month's final settlement price, whole
// index points.
type SettlementPrice struct {
	ContractYearMonth string // YYYYMM
	SettleDate        time.Time
	Price             int64
}

// Client fetches settlement data from the exchange website.
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// New creates a taifex client from config.
func New(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.NewWithTimeout(cfg, log, 30*time.Second).WithRetry(3, time.Second),
		baseURL:    cfg.Taifex.BaseURL,
		logger:     log,
	}
}

// FetchSettlements fetches the MXF final-settlement price table.
func (c *Client) FetchSettlements(ctx context.Context) ([]SettlementPrice, error) {
	url := fmt.Sprintf("%s/cht/5/mxfFSP", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	prices, err := parseSettlementHTML(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse settlement page: %w", err)
	}

	c.logger.WithField("count", len(prices)).Debug("Fetched settlement prices")
	return prices, nil
}

// SettlementPrice returns the final settlement price for one contract
// month.
func (c *Client) SettlementPrice(ctx context.Context, contractYearMonth string) (int64, error) {
	prices, err := c.FetchSettlements(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range prices {
		if p.ContractYearMonth == contractYearMonth {
			return p.Price, nil
		}
	}
	return 0, fmt.Errorf("no settlement price published for %s", contractYearMonth)
}

// parseSettlementHTML extracts (contract month, settle date, price) rows
// from the exchange's HTML table. Rows that do not look like data rows
// (headers, notes) are skipped.
func parseSettlementHTML(html string) ([]SettlementPrice, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	table := doc.Find("table.table_f")
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("no settlement table in page")
	}

	var prices []SettlementPrice
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		// Columns: settle date | contract month | settlement price
		dateText := strings.TrimSpace(cells.Eq(0).Text())
		settleDate, err := time.Parse("2006/01/02", dateText)
		if err != nil {
			return
		}

		ym := normalizeYearMonth(strings.TrimSpace(cells.Eq(1).Text()))
		if ym == "" {
			return
		}

		priceText := strings.ReplaceAll(strings.TrimSpace(cells.Eq(2).Text()), ",", "")
		price, err := strconv.ParseInt(priceText, 10, 64)
		if err != nil {
			return
		}

		prices = append(prices, SettlementPrice{
			ContractYearMonth: ym,
			SettleDate:        settleDate,
			Price:             price,
		})
	})

	if len(prices) == 0 {
		return nil, fmt.Errorf("settlement table held no parseable rows")
	}
	return prices, nil
}

// normalizeYearMonth accepts "202512" or "MXF202512" style cells.
func normalizeYearMonth(s string) string {
	s = strings.TrimPrefix(s, "MXF")
	if len(s) != 6 {
		return ""
	}
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	return s
}
