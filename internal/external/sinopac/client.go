// Package sinopac is the brokerage market-data collaborator: it fetches
// raw fixed-contract minute bars over the broker's REST bridge. Transient
// failures are retried here with backoff; the core engine never sees them.
package sinopac

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taquant/mxfeed/internal/contracts"
	"github.com/taquant/mxfeed/pkg/config"
	"github.com/taquant/mxfeed/pkg/httputil"
	"github.com/taquant/mxfeed/pkg/logger"
)

// Client talks to the broker's kbars endpoint. Implements
// contracts.BarSource.
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	apiKey     string
	secretKey  string
	logger     *logger.Logger
}

// New creates a sinopac client from config. The broker caps request
// volume per key, so the shared rate limit is applied here once.
func New(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.NewWithTimeout(cfg, log, 60*time.Second).
			WithRetry(3, time.Second).
			WithRateLimit(5, 5),
		baseURL:   cfg.Sinopac.BaseURL,
		apiKey:    cfg.Sinopac.APIKey,
		secretKey: cfg.Sinopac.SecretKey,
		logger:    log,
	}
}

// Fetch returns the 1-minute bars for one calendar date of a contract.
// Stamps mark the interval open, the same convention the rest of the
// system uses. A thin or empty day is returned as-is: feed gaps are
// expected input for the quality gate, not an error here.
func (c *Client) Fetch(ctx context.Context, date time.Time, contractCode string) ([]contracts.Bar, error) {
	day := date.In(contracts.Taipei).Format("2006-01-02")
	url := fmt.Sprintf("%s/v1/futures/kbars?contract=%s&date=%s", c.baseURL, contractCode, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create kbars request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Secret-Key", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kbars request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kbars %s %s: unexpected status code %d", contractCode, day, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read kbars response: %w", err)
	}

	bars, err := parseKbars(body, contractCode)
	if err != nil {
		return nil, fmt.Errorf("parse kbars %s %s: %w", contractCode, day, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"contract": contractCode,
		"date":     day,
		"bars":     len(bars),
	}).Debug("Fetched kbars")
	return bars, nil
}

// kbarsResponse is the broker's columnar kbar payload: parallel arrays,
// one entry per minute, timestamps in epoch nanoseconds.
type kbarsResponse struct {
	TS     []int64   `json:"ts"`
	Open   []float64 `json:"Open"`
	High   []float64 `json:"High"`
	Low    []float64 `json:"Low"`
	Close  []float64 `json:"Close"`
	Volume []int64   `json:"Volume"`
}

func parseKbars(body []byte, contractCode string) ([]contracts.Bar, error) {
	var payload kbarsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	n := len(payload.TS)
	for name, l := range map[string]int{
		"Open": len(payload.Open), "High": len(payload.High),
		"Low": len(payload.Low), "Close": len(payload.Close),
		"Volume": len(payload.Volume),
	} {
		if l != n {
			return nil, fmt.Errorf("column %s has %d entries, ts has %d", name, l, n)
		}
	}

	bars := make([]contracts.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, contracts.Bar{
			TS:           time.Unix(0, payload.TS[i]).In(contracts.Taipei),
			Open:         roundPoint(payload.Open[i]),
			High:         roundPoint(payload.High[i]),
			Low:          roundPoint(payload.Low[i]),
			Close:        roundPoint(payload.Close[i]),
			Volume:       payload.Volume[i],
			Timeframe:    contracts.Timeframe1m,
			ContractCode: contractCode,
		})
	}
	return bars, nil
}

// roundPoint converts a feed price to whole index points. MXF ticks are
// full points; anything fractional is feed noise.
func roundPoint(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return int64(v - 0.5)
}
