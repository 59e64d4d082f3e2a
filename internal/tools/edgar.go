package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/finarena/finarena/internal/core/domain"
)

const (
	edgarSearchURL = "https://efts.sec.gov/LATEST/search-index"

	// SEC requires a descriptive User-Agent and throttles anonymous clients.
	edgarUserAgent = "finarena benchmark (contact@finarena.dev)"
)

// EdgarFiling is one hit from EDGAR full-text search.
type EdgarFiling struct {
	CIK      string `json:"cik"`
	Company  string `json:"company"`
	FormType string `json:"form_type"`
	Date     string `json:"date"`
	URL      string `json:"url"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// NewEdgarSearchTool searches SEC EDGAR full-text search for filings
// matching a query, optionally restricted by form type and date range.
func NewEdgarSearchTool() *domain.Tool {
	schema := openapi3.NewObjectSchema().
		WithProperty("query", stringParam("Full-text search query, e.g. 'NVIDIA data center revenue'.")).
		WithProperty("form_types", stringParam("Comma-separated form types to restrict to, e.g. '10-K,10-Q'.")).
		WithProperty("start_date", stringParam("Earliest filing date, YYYY-MM-DD.")).
		WithProperty("end_date", stringParam("Latest filing date, YYYY-MM-DD.")).
		WithProperty("top_n", intParam("Maximum number of results (default 5)."))
	schema.Required = []string{"query"}

	client := &http.Client{Timeout: 20 * time.Second}

	return &domain.Tool{
		Descriptor: domain.ToolDescriptor{
			Name:        "edgar_search",
			Description: "Search SEC EDGAR filings by full text. Returns matching filings with company, form type, date and document URL.",
			Parameters:  schema,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			query := strArg(args, "query")
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			topN := intArg(args, "top_n", 5)

			params := url.Values{}
			params.Set("q", fmt.Sprintf("%q", query))
			if forms := strArg(args, "form_types"); forms != "" {
				params.Set("forms", forms)
			}
			if start := strArg(args, "start_date"); start != "" {
				params.Set("dateRange", "custom")
				params.Set("startdt", start)
			}
			if end := strArg(args, "end_date"); end != "" {
				params.Set("dateRange", "custom")
				params.Set("enddt", end)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, edgarSearchURL+"?"+params.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", edgarUserAgent)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("edgar request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				return nil, fmt.Errorf("edgar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			var payload struct {
				Hits struct {
					Total struct {
						Value int `json:"value"`
					} `json:"total"`
					Hits []struct {
						ID     string `json:"_id"`
						Source struct {
							CIKs      []string `json:"ciks"`
							Names     []string `json:"display_names"`
							FormType  string   `json:"form_type"`
							FileDate  string   `json:"file_date"`
							ADSH      string   `json:"adsh"`
							FileType  string   `json:"file_type"`
						} `json:"_source"`
					} `json:"hits"`
				} `json:"hits"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return nil, fmt.Errorf("decode edgar response: %w", err)
			}

			filings := make([]EdgarFiling, 0, topN)
			for _, hit := range payload.Hits.Hits {
				if len(filings) >= topN {
					break
				}
				f := EdgarFiling{
					FormType: hit.Source.FormType,
					Date:     hit.Source.FileDate,
				}
				if len(hit.Source.CIKs) > 0 {
					f.CIK = hit.Source.CIKs[0]
				}
				if len(hit.Source.Names) > 0 {
					f.Company = hit.Source.Names[0]
				}
				f.URL = filingDocumentURL(f.CIK, hit.Source.ADSH, hit.ID)
				filings = append(filings, f)
			}

			return map[string]any{
				"total_found": payload.Hits.Total.Value,
				"filings":     filings,
			}, nil
		},
	}
}

// filingDocumentURL builds the Archives URL for one search hit. Hit IDs are
// "accession:filename"; the accession number is de-dashed in the path.
func filingDocumentURL(cik, adsh, hitID string) string {
	filename := hitID
	if idx := strings.Index(hitID, ":"); idx >= 0 {
		filename = hitID[idx+1:]
	}
	accession := strings.ReplaceAll(adsh, "-", "")
	cik = strings.TrimLeft(cik, "0")
	if cik == "" || accession == "" {
		return ""
	}
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s", cik, accession, filename)
}
