// internal/service/source/reddit.go

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"buzztrack/internal/service/listening"
)

// RedditConfig configures a RedditSource
type RedditConfig struct {
	// Subreddits lists the communities polled each cycle
	Subreddits []string

	// Limit caps the posts fetched per subreddit
	Limit int

	// TimeRange selects the listing window: hour, day, week, month, year, all
	TimeRange string

	// BaseURL overrides the API host, used in tests
	BaseURL string

	// UserAgent is sent with every request
	UserAgent string
}

// RedditSource fetches top post titles from a set of subreddits through the
// public JSON listing API.
type RedditSource struct {
	config     RedditConfig
	httpClient *http.Client
}

var _ listening.Source = (*RedditSource)(nil)

// NewRedditSource creates a new Reddit source
func NewRedditSource(config RedditConfig) *RedditSource {
	if config.Limit <= 0 {
		config.Limit = 50
	}
	if config.TimeRange == "" {
		config.TimeRange = "day"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://www.reddit.com"
	}
	if config.UserAgent == "" {
		config.UserAgent = "buzztrack/1.0"
	}
	return &RedditSource{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the Reddit source
func (s *RedditSource) Name() string { return "reddit" }

// Fetch retrieves the top posts of every configured subreddit concurrently
// and returns their titles as one batch. Fetch fails only when every
// subreddit does.
func (s *RedditSource) Fetch(ctx context.Context) ([]string, error) {
	type result struct {
		titles []string
		err    error
	}
	results := make([]result, len(s.config.Subreddits))

	var wg sync.WaitGroup
	for i, subreddit := range s.config.Subreddits {
		wg.Add(1)
		go func(i int, subreddit string) {
			defer wg.Done()
			titles, err := s.fetchSubreddit(ctx, subreddit)
			results[i] = result{titles: titles, err: err}
		}(i, subreddit)
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

	if len(s.config.Subreddits) > 0 && failed == len(s.config.Subreddits) {
		return nil, fmt.Errorf("all %d subreddits failed, last error: %w", failed, lastErr)
	}

	return titles, nil
}

func (s *RedditSource) fetchSubreddit(ctx context.Context, subreddit string) ([]string, error) {
	url := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=%s",
		s.config.BaseURL, subreddit, s.config.Limit, s.config.TimeRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building reddit request: %w", err)
	}

	// Reddit throttles requests without a User-Agent
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching r/%s: %w", subreddit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("r/%s returned status %d", subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding r/%s listing: %w", subreddit, err)
	}

	titles := make([]string, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if title := strings.TrimSpace(child.Data.Title); title != "" {
			titles = append(titles, title)
		}
	}

	return titles, nil
}

// redditListing mirrors the slice of the listing response we read
type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title string `json:"title"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}
