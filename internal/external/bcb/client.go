package bcb

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/httputil"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// maxSpanYears is the widest date range one SGS request may cover
const maxSpanYears = 5

// Client reads the daily CDI series from the Banco Central SGS API
// ⭐ SSOT: BCB calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new BCB client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("bcb"),
		baseURL:    baseURL,
	}
}

// sgsPoint is one observation as returned by SGS
type sgsPoint struct {
	Date  string `json:"data"`  // dd/mm/yyyy
	Value string `json:"valor"` // percent per day
}

// FetchCDI downloads daily CDI returns in [from, to], split into requests of
// at most five years. Returns are decimals (0.0004 = 0.04% a day).
func (c *Client) FetchCDI(ctx context.Context, from, to time.Time) ([]contracts.RateBar, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range %s..%s", contracts.FormatDate(from), contracts.FormatDate(to))
	}

	seen := make(map[time.Time]bool)
	var bars []contracts.RateBar
	for start := from; !start.After(to); {
		end := start.AddDate(maxSpanYears, 0, -1)
		if end.After(to) {
			end = to
		}

		chunk, err := c.fetchRange(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch cdi %s..%s: %w", contracts.FormatDate(start), contracts.FormatDate(end), err)
		}
		for _, b := range chunk {
			if !seen[b.Date] {
				seen[b.Date] = true
				bars = append(bars, b)
			}
		}
		start = end.AddDate(0, 0, 1)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.logger.WithFields(map[string]interface{}{
		"from": contracts.FormatDate(from),
		"to":   contracts.FormatDate(to),
		"rows": len(bars),
	}).Info("Fetched CDI history")

	return bars, nil
}

func (c *Client) fetchRange(ctx context.Context, from, to time.Time) ([]contracts.RateBar, error) {
	q := url.Values{}
	q.Set("formato", "json")
	q.Set("dataInicial", from.Format("02/01/2006"))
	q.Set("dataFinal", to.Format("02/01/2006"))

	var points []sgsPoint
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"?"+q.Encode(), &points); err != nil {
		return nil, err
	}

	bars := make([]contracts.RateBar, 0, len(points))
	for _, p := range points {
		bar, err := parsePoint(p)
		if err != nil {
			c.logger.WithField("date", p.Date).WithError(err).Warn("Skipping malformed CDI point")
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parsePoint(p sgsPoint) (contracts.RateBar, error) {
	d, err := time.Parse("02/01/2006", strings.TrimSpace(p.Date))
	if err != nil {
		return contracts.RateBar{}, fmt.Errorf("parse date: %w", err)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(p.Value), ",", "."), 64)
	if err != nil {
		return contracts.RateBar{}, fmt.Errorf("parse value: %w", err)
	}
	return contracts.RateBar{Date: d, Return: v / 100}, nil
}
