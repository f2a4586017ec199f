package news

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"MarkWatch/internal/domain/models"
	domsvc "MarkWatch/internal/domain/service"
	"MarkWatch/pkg/logger"
)

const (
	newsflashPath = "/rss/newsflash"
	articlePath   = "/rss/post"
)

var tagRE = regexp.MustCompile(`<[^>]+>`)

// Config points at the RSS endpoints.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

// Client reads the newsflash and article RSS feeds.
type Client struct {
	baseURL  string
	pageSize int
	parser   *gofeed.Parser
	logger   *logger.Logger
}

func NewClient(cfg Config, lgr *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://rss.odaily.news"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
		parser:   parser,
		logger:   lgr,
	}
}

// FetchSince returns feed entries published strictly after since, oldest
// first. A zero since returns everything the feed currently carries.
func (c *Client) FetchSince(ctx context.Context, source models.NewsSource, since time.Time) ([]models.NewsItem, error) {
	path := newsflashPath
	if source == models.NewsArticle {
		path = articlePath
	}

	feed, err := c.parser.ParseURLWithContext(c.baseURL+path, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", source, err)
	}

	skipped := 0
	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.PublishedParsed == nil {
			skipped++
			continue
		}
		published := entry.PublishedParsed.UTC()
		if !since.IsZero() && !published.After(since) {
			continue
		}
		items = append(items, models.NewsItem{
			Source:      source,
			ExternalID:  entryID(entry),
			Title:       strings.TrimSpace(entry.Title),
			Summary:     stripHTML(entry.Description),
			Link:        entry.Link,
			PublishedAt: published,
		})
		if len(items) >= c.pageSize {
			break
		}
	}
	if skipped > 0 {
		c.logger.Debug("feed entries without publish time skipped",
			logger.String("source", string(source)), logger.Int("skipped", skipped))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.Before(items[j].PublishedAt)
	})
	return items, nil
}

// entryID mirrors the feed's dedup chain: guid, then link, then title.
func entryID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	if entry.Link != "" {
		return entry.Link
	}
	return entry.Title
}

// stripHTML flattens a feed description to plain text: tags removed,
// entities decoded, whitespace runs collapsed to single spaces.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(tagRE.ReplaceAllString(s, " "))
	return strings.Join(strings.Fields(text), " ")
}

var _ domsvc.NewsFetcher = (*Client)(nil)
