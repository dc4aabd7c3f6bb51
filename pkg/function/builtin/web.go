package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// DefaultSearchBaseURL DuckDuckGo 即时答案接口
	DefaultSearchBaseURL = "https://api.duckduckgo.com/"
	// UserAgent 对外请求使用的 UA
	UserAgent = "taskter/0.1.0"

	maxRelatedTopics  = 3
	defaultFetchChars = 4000
	maxFetchBodyBytes = 2 << 20
)

// WebSearchParams web_search 参数
type WebSearchParams struct {
	Query string `json:"query" jsonschema:"description=Search query"`
}

// WebSearchFunction 通过即时答案接口检索
type WebSearchFunction struct {
	client  *http.Client
	baseURL string
	policy  *bluemonday.Policy
}

// NewWebSearchFunction 创建 WebSearchFunction
func NewWebSearchFunction(deps Deps) *WebSearchFunction {
	return &WebSearchFunction{
		client:  deps.httpClient(),
		baseURL: deps.SearchBaseURL,
		policy:  bluemonday.StrictPolicy(),
	}
}

func (f *WebSearchFunction) Name() string {
	return "web_search"
}

func (f *WebSearchFunction) Description() string {
	return "Searches the web and returns a short summary of the top result."
}

func (f *WebSearchFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(WebSearchParams{})
}

type searchResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	RelatedTopics []struct {
		Text   string `json:"Text"`
		Result string `json:"Result"`
	} `json:"RelatedTopics"`
}

func (f *WebSearchFunction) base() string {
	if f.baseURL != "" {
		return f.baseURL
	}
	if env := os.Getenv("SEARCH_API_BASE_URL"); env != "" {
		return env
	}
	return DefaultSearchBaseURL
}

func (f *WebSearchFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(WebSearchParams)
	if p.Query == "" {
		return "", errors.New("query missing")
	}

	endpoint := fmt.Sprintf("%s?q=%s&format=json&no_redirect=1&skip_disambig=1", f.base(), url.QueryEscape(p.Query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("request failed: %s", resp.Status)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Heading != "" || result.AbstractText != "" {
		return fmt.Sprintf("%s: %s", result.Heading, result.AbstractText), nil
	}

	// 没有摘要时退回相关主题
	var topics []string
	for _, topic := range result.RelatedTopics {
		text := topic.Text
		if text == "" {
			text = f.policy.Sanitize(topic.Result)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		topics = append(topics, text)
		if len(topics) == maxRelatedTopics {
			break
		}
	}
	if len(topics) == 0 {
		return "No results", nil
	}
	return strings.Join(topics, "\n"), nil
}

// FetchURLParams fetch_url 参数
type FetchURLParams struct {
	URL      string `json:"url" jsonschema:"description=Absolute http or https URL"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"description=Maximum characters of page text to return,default=4000"`
}

// FetchURLFunction 抓取网页标题和正文
type FetchURLFunction struct {
	client *http.Client
}

// NewFetchURLFunction 创建 FetchURLFunction
func NewFetchURLFunction(deps Deps) *FetchURLFunction {
	return &FetchURLFunction{client: deps.httpClient()}
}

func (f *FetchURLFunction) Name() string {
	return "fetch_url"
}

func (f *FetchURLFunction) Description() string {
	return "Downloads a web page and returns its title and readable text."
}

func (f *FetchURLFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(FetchURLParams{})
}

func (f *FetchURLFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(FetchURLParams)
	if p.URL == "" {
		return "", errors.New("url missing")
	}
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid url: %s", p.URL)
	}
	limit := p.MaxChars
	if limit <= 0 {
		limit = defaultFetchChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("request failed: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFetchBodyBytes))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := visibleText(doc.Find("body"))

	if runes := []rune(text); len(runes) > limit {
		text = string(runes[:limit])
	}
	if title == "" {
		return text, nil
	}
	return fmt.Sprintf("Title: %s\n\n%s", title, text), nil
}

// visibleText 收集文本节点，相邻元素之间以空格分隔
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				parts = append(parts, child.Text())
				return
			}
			walk(child)
		})
	}
	walk(sel)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
