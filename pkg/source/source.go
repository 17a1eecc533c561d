package source

import (
	"context"
	"time"
)

// Entry is one collected news article before clustering.
type Entry struct {
	Feed        string    `json:"feed"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Categories  []string  `json:"categories"`
	PublishedAt time.Time `json:"published_at"`
}

// Source is the interface every collector must implement.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Entry, error)
}
