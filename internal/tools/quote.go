package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/finarena/finarena/internal/core/domain"
)

const quoteChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// NewStockQuoteTool looks up the latest market quote for one ticker symbol.
func NewStockQuoteTool() *domain.Tool {
	schema := openapi3.NewObjectSchema().
		WithProperty("symbol", stringParam("Ticker symbol, e.g. 'AAPL' or 'NVDA'."))
	schema.Required = []string{"symbol"}

	client := &http.Client{Timeout: 15 * time.Second}

	return &domain.Tool{
		Descriptor: domain.ToolDescriptor{
			Name:        "stock_quote",
			Description: "Fetch the latest market price, previous close and currency for a ticker symbol.",
			Parameters:  schema,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			symbol := strings.ToUpper(strArg(args, "symbol"))
			if symbol == "" {
				return nil, fmt.Errorf("symbol is required")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, quoteChartURL+url.PathEscape(symbol), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", edgarUserAgent)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("quote request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("unknown symbol: %s", symbol)
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("quote service returned %d", resp.StatusCode)
			}

			var payload struct {
				Chart struct {
					Result []struct {
						Meta struct {
							Symbol        string  `json:"symbol"`
							Currency      string  `json:"currency"`
							Price         float64 `json:"regularMarketPrice"`
							PreviousClose float64 `json:"chartPreviousClose"`
							Exchange      string  `json:"exchangeName"`
						} `json:"meta"`
					} `json:"result"`
					Error *struct {
						Description string `json:"description"`
					} `json:"error"`
				} `json:"chart"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return nil, fmt.Errorf("decode quote response: %w", err)
			}
			if payload.Chart.Error != nil {
				return nil, fmt.Errorf("quote lookup failed: %s", payload.Chart.Error.Description)
			}
			if len(payload.Chart.Result) == 0 {
				return nil, fmt.Errorf("no quote data for %s", symbol)
			}

			meta := payload.Chart.Result[0].Meta
			return map[string]any{
				"symbol":         meta.Symbol,
				"price":          meta.Price,
				"previous_close": meta.PreviousClose,
				"currency":       meta.Currency,
				"exchange":       meta.Exchange,
			}, nil
		},
	}
}
