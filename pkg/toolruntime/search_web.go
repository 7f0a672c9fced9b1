package toolruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// searchWebHTTPTimeout bounds both the instant-answer call and the
// page-fetch fallback (§4.9's web search tool).
const searchWebHTTPTimeout = 10 * time.Second

// duckDuckGoBaseURL is a var, not a const, so tests can point it at an
// httptest server.
var duckDuckGoBaseURL = "https://api.duckduckgo.com/"

// NewSearchWebTool builds the search_web tool. It first tries DuckDuckGo's
// instant-answer JSON API the way the teacher's executeWebSearch
// (pkg/agents/tools/websearch.go) does; when that comes back empty it
// falls back to fetching the first related-topic URL and summarizing its
// title/description with goquery, the same HTML-scraping approach the
// teacher's link previewer (pkg/connector/linkpreview.go) uses for
// Open-Graph-less pages.
func NewSearchWebTool() *Tool {
	client := &http.Client{Timeout: searchWebHTTPTimeout}

	return &Tool{
		Definition: Definition{
			Name:        "search_web",
			Description: "Search the web for information and return a summary of results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
				},
				"required": []string{"query"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (*Result, error) {
			query, err := readString(args, "query", true)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}

			answer, err := duckDuckGoInstantAnswer(ctx, client, query)
			if err != nil {
				return ErrorResult("web search failed: " + err.Error()), nil
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Search results for: %s\n\n", query)
			if answer.Answer != "" {
				fmt.Fprintf(&sb, "Answer: %s\n", answer.Answer)
			}
			if answer.Summary != "" {
				fmt.Fprintf(&sb, "Summary: %s\n", answer.Summary)
			}
			if answer.Definition != "" {
				fmt.Fprintf(&sb, "Definition: %s\n", answer.Definition)
			}
			for _, r := range answer.Related {
				fmt.Fprintf(&sb, "- %s (%s)\n", r.Text, r.URL)
			}

			if answer.Answer == "" && answer.Summary == "" && answer.Definition == "" {
				// No answer, summary or definition from the instant-answer API;
				// fetch the top related page and summarize its title/description.
				if pageURL := firstUsableURL(answer.Related); pageURL != "" {
					title, desc, fetchErr := fetchPageSummary(ctx, client, pageURL)
					if fetchErr == nil && (title != "" || desc != "") {
						fmt.Fprintf(&sb, "%s\n%s\n(%s)\n", title, desc, pageURL)
						return &Result{Status: ResultSuccess, Text: strings.TrimRight(sb.String(), "\n")}, nil
					}
				}
				if len(answer.Related) == 0 {
					fmt.Fprintf(&sb, "No direct results found for %q. Try rephrasing your query.", query)
				}
			}

			return &Result{Status: ResultSuccess, Text: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}

type relatedTopic struct {
	Text string
	URL  string
}

type instantAnswer struct {
	Answer     string
	Summary    string
	Definition string
	Related    []relatedTopic
}

func duckDuckGoInstantAnswer(ctx context.Context, client *http.Client, query string) (instantAnswer, error) {
	apiURL := duckDuckGoBaseURL + "?q=" + url.QueryEscape(query) + "&format=json&no_html=1&skip_disambig=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return instantAnswer{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return instantAnswer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return instantAnswer{}, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		AbstractText  string `json:"AbstractText"`
		Answer        string `json:"Answer"`
		Definition    string `json:"Definition"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return instantAnswer{}, fmt.Errorf("failed to parse results: %w", err)
	}

	out := instantAnswer{
		Answer:     parsed.Answer,
		Summary:    parsed.AbstractText,
		Definition: parsed.Definition,
	}
	for i, t := range parsed.RelatedTopics {
		if t.Text == "" {
			continue
		}
		out.Related = append(out.Related, relatedTopic{Text: t.Text, URL: t.FirstURL})
		if i >= 2 {
			break
		}
	}
	return out, nil
}

func firstUsableURL(related []relatedTopic) string {
	for _, r := range related {
		if r.URL != "" {
			return r.URL
		}
	}
	return ""
}

func fetchPageSummary(ctx context.Context, client *http.Client, pageURL string) (title, description string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; chatcore-websearch/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("status %d fetching %s", resp.StatusCode, pageURL)
	}

	limited := io.LimitReader(resp.Body, 2*1024*1024)
	doc, err := goquery.NewDocumentFromReader(limited)
	if err != nil {
		return "", "", err
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		title = og
	} else {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		description = og
	} else if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		description = desc
	}
	return title, description, nil
}
