// Package newsfeed fills company news from RSS and Atom feeds.
package newsfeed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Item is one feed entry reduced to what a news record keeps.
type Item struct {
	Title   string
	Content string
	Link    string
}

type Fetcher struct {
	parser *gofeed.Parser
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = "stakevoice-newsfeed/1.0"
	return &Fetcher{parser: p}
}

// Fetch downloads and parses the feed at url. Entries without title and
// link are skipped.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Item, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := Item{
			Title:   strings.TrimSpace(it.Title),
			Content: strings.TrimSpace(it.Description),
			Link:    strings.TrimSpace(it.Link),
		}
		if item.Content == "" {
			item.Content = strings.TrimSpace(it.Content)
		}
		if item.Link == "" {
			item.Link = strings.TrimSpace(it.GUID)
		}
		if item.Title == "" && item.Link == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
