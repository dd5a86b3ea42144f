// internal/service/source/feed.go

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"buzztrack/internal/service/listening"
)

// FeedConfig configures a FeedSource
type FeedConfig struct {
	// Name identifies the source in logs and cycle stats
	Name string

	// URLs lists the feeds polled each cycle
	URLs []string

	// PerFeed caps how many titles one feed contributes per cycle
	PerFeed int

	// UserAgent is sent with every request
	UserAgent string

	// Skip lists lowercase fragments that mark boilerplate titles, such as
	// feed headers and category links
	Skip []string
}

// FeedSource aggregates titles from a set of RSS and Atom feeds. One Fetch
// retrieves every feed concurrently and flattens the titles into a single
// batch.
type FeedSource struct {
	config     FeedConfig
	httpClient *http.Client
}

var _ listening.Source = (*FeedSource)(nil)

// NewFeedSource creates a new feed source
func NewFeedSource(config FeedConfig) *FeedSource {
	if config.PerFeed <= 0 {
		config.PerFeed = 50
	}
	if config.UserAgent == "" {
		config.UserAgent = "buzztrack/1.0"
	}
	return &FeedSource{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name identifies the feed source
func (s *FeedSource) Name() string { return s.config.Name }

// Fetch retrieves all feeds concurrently. Individual feed failures are
// tolerated and their titles skipped; Fetch fails only when every feed does.
func (s *FeedSource) Fetch(ctx context.Context) ([]string, error) {
	type result struct {
		titles []string
		err    error
	}
	results := make([]result, len(s.config.URLs))

	var wg sync.WaitGroup
	for i, url := range s.config.URLs {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			titles, err := s.fetchFeed(ctx, url)
			results[i] = result{titles: titles, err: err}
		}(i, url)
	}
	wg.Wait()

	var titles []string
	var failed int
	var lastErr error
	for _, res := range results {
		if res.err != nil {
			failed++
			lastErr = res.err
			continue
		}
		titles = append(titles, res.titles...)
	}

	if len(s.config.URLs) > 0 && failed == len(s.config.URLs) {
		return nil, fmt.Errorf("all %d feeds failed, last error: %w", failed, lastErr)
	}

	return titles, nil
}

func (s *FeedSource) fetchFeed(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", url, resp.StatusCode)
	}

	var doc feedDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding feed %s: %w", url, err)
	}

	titles := make([]string, 0, s.config.PerFeed)
	for _, item := range doc.items() {
		title := strings.TrimSpace(item.Title)
		if title == "" || s.boilerplate(title) {
			continue
		}
		titles = append(titles, title)
		if len(titles) >= s.config.PerFeed {
			break
		}
	}

	return titles, nil
}

func (s *FeedSource) boilerplate(title string) bool {
	lower := strings.ToLower(title)
	for _, skip := range s.config.Skip {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

// feedDocument covers the feed shapes in the wild: RSS 2.0 items nested
// under channel, Atom entries at the top level, and RDF items at the top
// level. Only titles are read.
type feedDocument struct {
	Channel struct {
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
	Entries []feedItem `xml:"entry"`
	Items   []feedItem `xml:"item"`
}

type feedItem struct {
	Title string `xml:"title"`
}

func (d feedDocument) items() []feedItem {
	switch {
	case len(d.Channel.Items) > 0:
		return d.Channel.Items
	case len(d.Entries) > 0:
		return d.Entries
	default:
		return d.Items
	}
}
