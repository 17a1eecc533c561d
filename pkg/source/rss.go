package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS collects news entries from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []RSSFeed
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRSS creates a new RSS collector. Entries published more than window ago
// are skipped.
func NewRSS(feeds []RSSFeed, window time.Duration, logger *slog.Logger) *RSS {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

func (r *RSS) Name() string { return "rss" }

// Collect fetches every feed. A failing feed is logged and skipped; an error
// is returned only when no feed could be read.
func (r *RSS) Collect(ctx context.Context) ([]Entry, error) {
	var all []Entry
	var errs []error

	for _, feed := range r.feeds {
		entries, err := r.collectFeed(ctx, feed)
		if err != nil {
			r.logger.Warn("rss feed failed", "feed", feed.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		all = append(all, entries...)
	}

	if len(r.feeds) > 0 && len(errs) == len(r.feeds) {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "trendfit/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	now := r.now().UTC()
	cutoff := now.Add(-r.window)

	var entries []Entry
	for _, item := range parsed.Items {
		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) || item.Title == "" {
			continue
		}

		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		guid := item.GUID
		if guid == "" {
			guid = link
		}

		entries = append(entries, Entry{
			Feed:        feed.Name,
			GUID:        guid,
			Title:       item.Title,
			URL:         link,
			Description: truncate(item.Description, 500),
			Categories:  item.Categories,
			PublishedAt: published,
		})
	}

	r.logger.Debug("rss feed collected", "feed", feed.Name, "entries", len(entries))
	return entries, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
