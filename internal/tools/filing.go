package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

// NewFetchFilingTool downloads a filing document, extracts its text and
// stores it in the document store under a caller-chosen key. Raw documents
// are cached on disk by URL so repeated runs do not re-download.
func NewFetchFilingTool(cache ports.FilingCache, docs *DocumentStore) *domain.Tool {
	schema := openapi3.NewObjectSchema().
		WithProperty("url", stringParam("Document URL, typically from an edgar_search result.")).
		WithProperty("key", stringParam("Label to store the document text under, e.g. 'nvda-10k-2024'."))
	schema.Required = []string{"url", "key"}

	client := &http.Client{Timeout: 30 * time.Second}

	return &domain.Tool{
		Descriptor: domain.ToolDescriptor{
			Name:        "fetch_filing",
			Description: "Download a filing document, extract its text and save it under a key for later read_filing calls.",
			Parameters:  schema,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			docURL := strArg(args, "url")
			key := strArg(args, "key")
			if docURL == "" || key == "" {
				return nil, fmt.Errorf("url and key are required")
			}

			raw, err := fetchDocument(ctx, client, cache, docURL)
			if err != nil {
				return nil, err
			}

			text := extractText(string(raw))
			if strings.TrimSpace(text) == "" {
				return nil, fmt.Errorf("document at %s contained no readable text", docURL)
			}
			docs.Put(key, text)

			return map[string]any{
				"success":        true,
				"message":        fmt.Sprintf("saved document under key %q (%d characters)", key, len(text)),
				"available_keys": docs.Keys(),
			}, nil
		},
	}
}

// NewReadFilingTool returns a slice of a previously fetched document. Large
// filings do not fit in one prompt, so reads are windowed by character
// offsets.
func NewReadFilingTool(docs *DocumentStore) *domain.Tool {
	schema := openapi3.NewObjectSchema().
		WithProperty("key", stringParam("Key the document was saved under by fetch_filing.")).
		WithProperty("start", intParam("Character offset to read from (default 0).")).
		WithProperty("length", intParam("Number of characters to return (default 4000)."))
	schema.Required = []string{"key"}

	return &domain.Tool{
		Descriptor: domain.ToolDescriptor{
			Name:        "read_filing",
			Description: "Read a window of text from a document previously saved with fetch_filing.",
			Parameters:  schema,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			key := strArg(args, "key")
			if key == "" {
				return nil, fmt.Errorf("key is required")
			}
			text, ok := docs.Get(key)
			if !ok {
				return nil, fmt.Errorf("no document under key %q; available keys: %s", key, strings.Join(docs.Keys(), ", "))
			}

			start := intArg(args, "start", 0)
			length := intArg(args, "length", 4000)
			if start < 0 {
				start = 0
			}
			if start >= len(text) {
				return nil, fmt.Errorf("start %d is past the end of the document (%d characters)", start, len(text))
			}
			if length <= 0 {
				length = 4000
			}
			end := start + length
			if end > len(text) {
				end = len(text)
			}

			return map[string]any{
				"key":         key,
				"text":        text[start:end],
				"start":       start,
				"end":         end,
				"total_chars": len(text),
			}, nil
		},
	}
}

// fetchDocument serves a document from the disk cache, downloading and
// caching it on a miss.
func fetchDocument(ctx context.Context, client *http.Client, cache ports.FilingCache, docURL string) ([]byte, error) {
	if cache != nil {
		if data, ok, err := cache.Get(docURL); err == nil && ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", edgarUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document fetch returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	if cache != nil {
		if err := cache.Put(docURL, raw); err != nil {
			return nil, fmt.Errorf("cache document: %w", err)
		}
	}
	return raw, nil
}

var (
	reScriptBlocks = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	reTags         = regexp.MustCompile(`<[^>]+>`)
	reWhitespace   = regexp.MustCompile(`\s+`)
)

// extractText strips markup from an HTML or XBRL filing body.
func extractText(body string) string {
	text := reScriptBlocks.ReplaceAllString(body, " ")
	text = reTags.ReplaceAllString(text, " ")
	text = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(text)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}
